package allocator

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/util"
)

func leafClass(id string, uplinks, endpoints int) spec.LeafClass {
	return spec.LeafClass{
		ID:             id,
		UplinksPerLeaf: uplinks,
		EndpointProfiles: []spec.EndpointProfile{
			{Name: "server", PortsPerEndpoint: 1, Count: endpoints},
		},
	}
}

func fabric(classes ...spec.LeafClass) *spec.FabricSpec {
	return &spec.FabricSpec{
		Name:         "dc1",
		SpineModelID: "celestica-ds3000",
		LeafModelID:  "celestica-ds2000",
		LeafClasses:  classes,
	}
}

func ds3000() *spec.SwitchProfile {
	return spec.BuiltinCatalog()["celestica-ds3000"]
}

func TestAllocateFabric_ClassOrdering(t *testing.T) {
	f := fabric(leafClass("zebra", 2, 10), leafClass("alpha", 2, 10))

	for i := 0; i < 3; i++ {
		r := AllocateFabric(f, spec.BuiltinCatalog(), ds3000())
		if !r.OK() {
			t.Fatalf("OverallIssues = %v", r.OverallIssues.Messages())
		}
		if len(r.ClassAllocations) != 2 {
			t.Fatalf("len(ClassAllocations) = %d, want 2", len(r.ClassAllocations))
		}
		if r.ClassAllocations[0].ClassID != "alpha" || r.ClassAllocations[1].ClassID != "zebra" {
			t.Errorf("order = %s, %s", r.ClassAllocations[0].ClassID, r.ClassAllocations[1].ClassID)
		}
	}
	if f.LeafClasses[0].ID != "zebra" {
		t.Error("input class order was mutated")
	}
}

func TestAllocateFabric_SharedSpinePool(t *testing.T) {
	f := fabric(leafClass("web", 2, 10), leafClass("db", 2, 10))
	r := AllocateFabric(f, spec.BuiltinCatalog(), ds3000())
	if !r.OK() {
		t.Fatalf("OverallIssues = %v", r.OverallIssues.Messages())
	}

	if !reflect.DeepEqual(r.SpineUtilization, []int{4}) {
		t.Errorf("SpineUtilization = %v, want [4]", r.SpineUtilization)
	}
	if r.TotalLeavesAllocated != 2 {
		t.Errorf("TotalLeavesAllocated = %d, want 2", r.TotalLeavesAllocated)
	}

	db, web := r.ClassAllocations[0], r.ClassAllocations[1]
	if db.LeafMaps[0].LeafID != 0 || web.LeafMaps[0].LeafID != 1 {
		t.Errorf("leaf ids = %d, %d, want 0, 1", db.LeafMaps[0].LeafID, web.LeafMaps[0].LeafID)
	}

	wantDB := []Uplink{
		{Port: "E1/49", ToSpine: 0, SpinePort: "E1/1"},
		{Port: "E1/50", ToSpine: 0, SpinePort: "E1/2"},
	}
	wantWeb := []Uplink{
		{Port: "E1/49", ToSpine: 0, SpinePort: "E1/3"},
		{Port: "E1/50", ToSpine: 0, SpinePort: "E1/4"},
	}
	if !reflect.DeepEqual(db.LeafMaps[0].Uplinks, wantDB) {
		t.Errorf("db uplinks = %+v", db.LeafMaps[0].Uplinks)
	}
	if !reflect.DeepEqual(web.LeafMaps[0].Uplinks, wantWeb) {
		t.Errorf("web uplinks = %+v", web.LeafMaps[0].Uplinks)
	}

	if problems := ValidateMultiClassResult(r); len(problems) != 0 {
		t.Errorf("ValidateMultiClassResult = %v", problems)
	}
}

func TestAllocateFabric_ClassDetails(t *testing.T) {
	storage := leafClass("storage", 4, 0)
	storage.LeafCount = 3
	storage.LeafModelID = "edgecore-dcs203"
	compute := leafClass("compute", 2, 120)
	compute.EndpointProfiles = append(compute.EndpointProfiles, spec.EndpointProfile{Name: "bmc", Count: 10})

	r := AllocateFabric(fabric(storage, compute), spec.BuiltinCatalog(), ds3000())
	if !r.OK() {
		t.Fatalf("OverallIssues = %v", r.OverallIssues.Messages())
	}

	// compute: 130 ports of demand over 54 downlinks -> 3 leaves
	want := []struct {
		id, model        string
		leaves, endpoint int
		firstLeaf        int
	}{
		{"compute", "celestica-ds2000", 3, 130, 0},
		{"storage", "edgecore-dcs203", 3, 0, 3},
	}
	for i, w := range want {
		ca := r.ClassAllocations[i]
		if ca.ClassID != w.id || ca.LeafModelID != w.model || ca.LeavesAllocated != w.leaves ||
			ca.TotalEndpoints != w.endpoint || ca.LeafMaps[0].LeafID != w.firstLeaf {
			t.Errorf("ClassAllocations[%d] = {%s %s leaves=%d endpoints=%d first=%d}",
				i, ca.ClassID, ca.LeafModelID, ca.LeavesAllocated, ca.TotalEndpoints, ca.LeafMaps[0].LeafID)
		}
	}
	if r.TotalLeavesAllocated != 6 {
		t.Errorf("TotalLeavesAllocated = %d, want 6", r.TotalLeavesAllocated)
	}
	if !reflect.DeepEqual(r.SpineUtilization, []int{3*2 + 3*4}) {
		t.Errorf("SpineUtilization = %v", r.SpineUtilization)
	}
}

func TestAllocateFabric_Failures(t *testing.T) {
	missing := leafClass("gpu", 2, 10)
	missing.LeafModelID = "missing-model"

	big := leafClass("big", 2, 0)
	big.LeafCount = 20

	huge := leafClass("huge", 2, 0)
	huge.LeafCount = 1 << 40

	flood := leafClass("flood", 2, math.MaxInt)
	flood.EndpointProfiles[0].PortsPerEndpoint = 4

	tests := []struct {
		name      string
		f         *spec.FabricSpec
		spine     *spec.SwitchProfile
		want      []string
		sentinel  error
		wantSlots int
	}{
		{
			name:      "unresolved model",
			f:         fabric(leafClass("alpha", 2, 10), missing),
			spine:     ds3000(),
			want:      []string{"Leaf profile not found for class gpu model: missing-model"},
			sentinel:  util.ErrProfileNotFound,
			wantSlots: 1,
		},
		{
			name:      "global divisibility",
			f:         fabric(big, leafClass("odd", 3, 10)),
			spine:     ds3000(),
			want:      []string{"Uplinks per leaf (3) for class odd must be divisible by number of spines (2)"},
			sentinel:  util.ErrConstraintViolation,
			wantSlots: 2,
		},
		{
			name:      "leaf fabric ports too few",
			f:         fabric(leafClass("wide", 12, 10)),
			spine:     ds3000(),
			want:      []string{"Leaf capacity exceeded for class wide: need 12 ports, leaf has 8 fabricAssignable"},
			sentinel:  util.ErrCapacityExceeded,
			wantSlots: 1,
		},
		{
			name:      "explicit leaf count beyond maximum",
			f:         fabric(huge),
			spine:     ds3000(),
			want:      []string{"Leaves needed for class huge (1099511627776) exceeds the supported maximum of 65536"},
			sentinel:  util.ErrConstraintViolation,
			wantSlots: 1,
		},
		{
			name:      "overflowing endpoint demand",
			f:         fabric(flood),
			spine:     ds3000(),
			want:      []string{"Leaves needed for class flood (170803185867681034) exceeds the supported maximum of 65536"},
			sentinel:  util.ErrConstraintViolation,
			wantSlots: 1,
		},
		{
			name:      "class without demand",
			f:         fabric(leafClass("empty", 2, 0)),
			spine:     ds3000(),
			want:      []string{"Leaves needed for class empty must be positive (got 0)"},
			sentinel:  util.ErrConstraintViolation,
			wantSlots: 1,
		},
		{
			name:      "spine without fabric ports",
			f:         fabric(leafClass("alpha", 2, 10)),
			spine:     &spec.SwitchProfile{ModelID: "bare"},
			want:      []string{"Spine profile bare has no fabricAssignable ports"},
			sentinel:  util.ErrConstraintViolation,
			wantSlots: 1,
		},
		{
			name:      "empty fabric",
			f:         &spec.FabricSpec{Name: "empty", SpineModelID: "celestica-ds3000"},
			spine:     ds3000(),
			want:      []string{"Fabric empty has neither leafClasses nor legacy single-group fields"},
			sentinel:  util.ErrConstraintViolation,
			wantSlots: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := AllocateFabric(tt.f, spec.BuiltinCatalog(), tt.spine)
			if !reflect.DeepEqual(r.OverallIssues.Messages(), tt.want) {
				t.Errorf("OverallIssues = %v, want %v", r.OverallIssues.Messages(), tt.want)
			}
			if !errors.Is(r.OverallIssues.Err(), tt.sentinel) {
				t.Errorf("Err() does not match %v", tt.sentinel)
			}
			if r.ClassAllocations == nil || len(r.ClassAllocations) != 0 {
				t.Errorf("ClassAllocations = %v, want empty", r.ClassAllocations)
			}
			if !reflect.DeepEqual(r.SpineUtilization, make([]int, tt.wantSlots)) {
				t.Errorf("SpineUtilization = %v, want %d zeros", r.SpineUtilization, tt.wantSlots)
			}
			if r.TotalLeavesAllocated != 0 {
				t.Errorf("TotalLeavesAllocated = %d", r.TotalLeavesAllocated)
			}
		})
	}
}

func TestAllocateFabric_LegacyFallback(t *testing.T) {
	catalog := spec.BuiltinCatalog()
	f := &spec.FabricSpec{
		Name:           "dc1",
		SpineModelID:   "celestica-ds3000",
		LeafModelID:    "celestica-ds2000",
		UplinksPerLeaf: 4,
		EndpointCount:  100,
	}

	r := AllocateFabric(f, catalog, ds3000())
	if r.Legacy == nil {
		t.Fatal("Legacy = nil")
	}
	if r.ClassAllocations == nil || len(r.ClassAllocations) != 0 {
		t.Errorf("ClassAllocations = %v, want empty", r.ClassAllocations)
	}

	direct := Allocate(FromFabric(f, catalog["celestica-ds2000"], ds3000()), catalog["celestica-ds2000"], ds3000())
	if !reflect.DeepEqual(r.Legacy, direct) {
		t.Errorf("Legacy differs from direct allocation:\n%+v\n%+v", r.Legacy, direct)
	}
	if !reflect.DeepEqual(r.SpineUtilization, []int{8}) || r.TotalLeavesAllocated != 2 {
		t.Errorf("SpineUtilization = %v, TotalLeavesAllocated = %d", r.SpineUtilization, r.TotalLeavesAllocated)
	}
	if problems := ValidateMultiClassResult(r); len(problems) != 0 {
		t.Errorf("ValidateMultiClassResult = %v", problems)
	}
}

func TestAllocateFabric_LegacyUnknownLeaf(t *testing.T) {
	f := &spec.FabricSpec{
		Name:           "dc1",
		SpineModelID:   "celestica-ds3000",
		LeafModelID:    "nope",
		UplinksPerLeaf: 4,
		EndpointCount:  100,
	}
	r := AllocateFabric(f, spec.BuiltinCatalog(), ds3000())
	want := []string{"Leaf profile not found: nope"}
	if !reflect.DeepEqual(r.OverallIssues.Messages(), want) || !reflect.DeepEqual(r.Legacy.Issues.Messages(), want) {
		t.Errorf("issues = %v / %v", r.OverallIssues.Messages(), r.Legacy.Issues.Messages())
	}
}

func TestAllocateFabric_Deterministic(t *testing.T) {
	a := fabric(leafClass("zebra", 2, 200), leafClass("alpha", 4, 300), leafClass("mid", 2, 60))
	b := fabric(leafClass("mid", 2, 60), leafClass("alpha", 4, 300), leafClass("zebra", 2, 200))

	want, err := json.Marshal(AllocateFabric(a, spec.BuiltinCatalog(), ds3000()))
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	out := make([][]byte, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := a
			if i%2 == 1 {
				f = b
			}
			out[i], _ = json.Marshal(AllocateFabric(f, spec.BuiltinCatalog(), ds3000()))
		}(i)
	}
	wg.Wait()

	for i, got := range out {
		if string(got) != string(want) {
			t.Errorf("run %d differs", i)
		}
	}
}

func TestValidateMultiClassResult_DetectsTampering(t *testing.T) {
	r := AllocateFabric(fabric(leafClass("a", 2, 60), leafClass("b", 2, 10)), spec.BuiltinCatalog(), ds3000())
	if !r.OK() {
		t.Fatalf("OverallIssues = %v", r.OverallIssues.Messages())
	}

	// a: 2 leaves (ids 0, 1), b: 1 leaf (id 2)
	r.ClassAllocations[1].LeafMaps[0].LeafID = 7
	r.ClassAllocations[1].LeafMaps[0].Uplinks[0].SpinePort = "E1/1"
	r.TotalLeavesAllocated = 4

	want := []string{
		"Class b: leaf id 7 out of order, expected 2",
		"Total leaves allocated 4, classes sum to 3",
		"Spine 0 port E1/1 assigned more than once",
	}
	if got := ValidateMultiClassResult(r); !reflect.DeepEqual(got, want) {
		t.Errorf("ValidateMultiClassResult =\n%v\nwant\n%v", got, want)
	}
}

func TestValidateMultiClassResult_UnevenSpines(t *testing.T) {
	result := func(utilization []int) *MultiClassResult {
		return &MultiClassResult{
			ClassAllocations: []ClassAllocation{{
				ClassID:        "a",
				UplinksPerLeaf: 2,
				LeafMaps: []LeafMap{
					{LeafID: 0, Uplinks: []Uplink{{"E1/49", 0, "E1/1"}, {"E1/50", 1, "E1/1"}}},
					{LeafID: 1, Uplinks: []Uplink{{"E1/49", 0, "E1/2"}, {"E1/50", 0, "E1/3"}}},
				},
				LeavesAllocated: 2,
			}},
			SpineUtilization:     utilization,
			TotalLeavesAllocated: 2,
			OverallIssues:        Issues{},
		}
	}

	tests := []struct {
		name        string
		utilization []int
		want        []string
	}{
		{
			name:        "uplinks piled on one spine",
			utilization: []int{3, 1},
			want:        []string{"Spine 1 utilization 1 differs from spine 0 (3)"},
		},
		{
			name:        "utilization disagrees with uplinks",
			utilization: []int{2, 2},
			want: []string{
				"Spine 0 utilization 2, expected 3",
				"Spine 1 utilization 2, expected 1",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMultiClassResult(result(tt.utilization)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateMultiClassResult =\n%v\nwant\n%v", got, tt.want)
			}
		})
	}
}

func TestValidateMultiClassResult_EvenAcrossSpines(t *testing.T) {
	big := leafClass("big", 2, 0)
	big.LeafCount = 20
	r := AllocateFabric(fabric(big, leafClass("small", 2, 10)), spec.BuiltinCatalog(), ds3000())
	if !r.OK() {
		t.Fatalf("OverallIssues = %v", r.OverallIssues.Messages())
	}
	if !reflect.DeepEqual(r.SpineUtilization, []int{21, 21}) {
		t.Fatalf("SpineUtilization = %v, want [21 21]", r.SpineUtilization)
	}
	if got := ValidateMultiClassResult(r); len(got) != 0 {
		t.Errorf("ValidateMultiClassResult = %v, want none", got)
	}
}

func TestMultiClassResultJSON(t *testing.T) {
	r := AllocateFabric(fabric(leafClass("a", 2, 10)), spec.BuiltinCatalog(), ds3000())
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"classAllocations", "spineUtilization", "totalLeavesAllocated", "overallIssues"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if _, ok := decoded["legacy"]; ok {
		t.Errorf("unexpected legacy key in %s", data)
	}
}
