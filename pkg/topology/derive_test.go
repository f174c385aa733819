package topology

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/newtron-network/fabricplan/pkg/spec"
)

func legacyFabric() *spec.FabricSpec {
	return &spec.FabricSpec{
		Name:           "dc1",
		SpineModelID:   "celestica-ds3000",
		LeafModelID:    "celestica-ds2000",
		UplinksPerLeaf: 4,
		EndpointCount:  100,
	}
}

func class(id string, uplinks, endpoints int, mcLag bool) spec.LeafClass {
	return spec.LeafClass{
		ID:             id,
		UplinksPerLeaf: uplinks,
		MCLAG:          mcLag,
		EndpointProfiles: []spec.EndpointProfile{
			{Name: "server", PortsPerEndpoint: 1, Count: endpoints},
		},
	}
}

func multiFabric(classes ...spec.LeafClass) *spec.FabricSpec {
	return &spec.FabricSpec{
		Name:         "dc1",
		SpineModelID: "celestica-ds3000",
		LeafModelID:  "celestica-ds2000",
		LeafClasses:  classes,
	}
}

// ============================================================================
// Sizing helpers
// ============================================================================

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{100, 52, 2},
		{7, 0, 0},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLeavesForDemand(t *testing.T) {
	tests := []struct {
		name                       string
		demand, downlink, explicit int
		want                       int
	}{
		{"exact fit", 52, 52, 0, 1},
		{"one over", 53, 52, 0, 2},
		{"explicit wins", 1000, 52, 3, 3},
		{"no downlinks", 10, 0, 0, 0},
		{"no demand", 0, 52, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LeavesForDemand(tt.demand, tt.downlink, tt.explicit); got != tt.want {
				t.Errorf("LeavesForDemand() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSpinesForUplinks(t *testing.T) {
	tests := []struct {
		total, budget, want int
	}{
		{0, 32, 1},
		{8, 32, 1},
		{32, 32, 1},
		{33, 32, 2},
		{80, 32, 3},
		{8, 0, 0},
	}
	for _, tt := range tests {
		if got := SpinesForUplinks(tt.total, tt.budget); got != tt.want {
			t.Errorf("SpinesForUplinks(%d, %d) = %d, want %d", tt.total, tt.budget, got, tt.want)
		}
	}
}

// ============================================================================
// Legacy mode
// ============================================================================

func TestDerive_Legacy(t *testing.T) {
	topo := Derive(legacyFabric(), spec.BuiltinCatalog())

	if !topo.IsValid {
		t.Fatalf("IsValid = false, errors: %v", topo.ValidationErrors)
	}
	// ds2000: 56 ports, 4 uplinks -> 52 downlinks; 100 endpoints -> 2 leaves
	if topo.LeavesNeeded != 2 {
		t.Errorf("LeavesNeeded = %d, want 2", topo.LeavesNeeded)
	}
	if topo.SpinesNeeded != 1 {
		t.Errorf("SpinesNeeded = %d, want 1", topo.SpinesNeeded)
	}
	if topo.TotalPorts != 2*56+32 {
		t.Errorf("TotalPorts = %d, want %d", topo.TotalPorts, 2*56+32)
	}
	if topo.UsedPorts != 100+16 {
		t.Errorf("UsedPorts = %d, want %d", topo.UsedPorts, 116)
	}
	// 2*52*25 / (8*100)
	if math.Abs(topo.OversubscriptionRatio-3.25) > 1e-9 {
		t.Errorf("OversubscriptionRatio = %v, want 3.25", topo.OversubscriptionRatio)
	}
	if topo.Guards == nil || len(topo.Guards) != 0 {
		t.Errorf("Guards = %v, want empty non-nil", topo.Guards)
	}
	if topo.ValidationErrors == nil {
		t.Error("ValidationErrors is nil, want empty slice")
	}
}

func TestDerive_LegacyPortsPerEndpoint(t *testing.T) {
	f := legacyFabric()
	f.EndpointProfile = &spec.EndpointProfile{Name: "dual-homed", PortsPerEndpoint: 2}

	topo := Derive(f, spec.BuiltinCatalog())
	// 200 ports of demand over 52 downlinks
	if topo.LeavesNeeded != 4 {
		t.Errorf("LeavesNeeded = %d, want 4", topo.LeavesNeeded)
	}
	if topo.UsedPorts != 200+2*16 {
		t.Errorf("UsedPorts = %d, want %d", topo.UsedPorts, 232)
	}
}

func TestDerive_LegacyProfileCount(t *testing.T) {
	f := legacyFabric()
	f.EndpointCount = 0
	f.EndpointProfile = &spec.EndpointProfile{Name: "server", PortsPerEndpoint: 1, Count: 100}

	topo := Derive(f, spec.BuiltinCatalog())
	if !topo.IsValid {
		t.Fatalf("IsValid = false: %v", topo.ValidationErrors)
	}
	if topo.LeavesNeeded != 2 || topo.UsedPorts != 100+16 {
		t.Errorf("LeavesNeeded = %d, UsedPorts = %d, want 2, 116", topo.LeavesNeeded, topo.UsedPorts)
	}
}

func TestDerive_LegacyErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *spec.FabricSpec)
		want   string
	}{
		{
			name:   "unknown spine",
			mutate: func(f *spec.FabricSpec) { f.SpineModelID = "nope" },
			want:   "Spine profile not found: nope",
		},
		{
			name:   "unknown leaf",
			mutate: func(f *spec.FabricSpec) { f.LeafModelID = "nope" },
			want:   "Leaf profile not found: nope",
		},
		{
			name:   "zero uplinks",
			mutate: func(f *spec.FabricSpec) { f.UplinksPerLeaf = 0 },
			want:   "Uplinks per leaf must be positive (got 0)",
		},
		{
			name:   "negative endpoints",
			mutate: func(f *spec.FabricSpec) { f.EndpointCount = -5 },
			want:   "Endpoint count must be positive (got -5)",
		},
		{
			name:   "more uplinks than fabric ports",
			mutate: func(f *spec.FabricSpec) { f.UplinksPerLeaf = 10 },
			want:   "Leaf profile celestica-ds2000 has 8 fabricAssignable ports, need 10 uplinks",
		},
		{
			name: "indivisible uplinks",
			mutate: func(f *spec.FabricSpec) {
				// 40 leaves x 3 uplinks = 120 uplinks over 32-port spines -> 4 spines
				f.UplinksPerLeaf = 3
				f.EndpointCount = 40 * 53
			},
			want: "Uplinks per leaf (3) must be divisible by number of spines (4)",
		},
		{
			name:   "leaves beyond maximum",
			mutate: func(f *spec.FabricSpec) { f.EndpointCount = 1 << 40 },
			want:   "Leaves needed (21144454381) exceeds the supported maximum of 65536",
		},
		{
			name:   "oversubscription cap",
			mutate: func(f *spec.FabricSpec) { f.MaxOversubscription = 3 },
			want:   "Oversubscription ratio 3.25 exceeds maximum 3.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := legacyFabric()
			tt.mutate(f)
			topo := Derive(f, spec.BuiltinCatalog())
			if topo.IsValid {
				t.Fatal("IsValid = true, want false")
			}
			found := false
			for _, e := range topo.ValidationErrors {
				if e == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidationErrors = %v, want to contain %q", topo.ValidationErrors, tt.want)
			}
			if len(topo.Guards) != 0 {
				t.Errorf("legacy mode produced guards: %v", topo.Guards)
			}
		})
	}
}

func TestDerive_LegacyIgnoresMCLAG(t *testing.T) {
	// A legacy fabric sized to a single leaf never produces an MC-LAG guard.
	f := legacyFabric()
	f.EndpointCount = 10
	topo := Derive(f, spec.BuiltinCatalog())
	if topo.LeavesNeeded != 1 {
		t.Fatalf("LeavesNeeded = %d, want 1", topo.LeavesNeeded)
	}
	if len(topo.Guards) != 0 {
		t.Errorf("Guards = %v, want none", topo.Guards)
	}
}

// ============================================================================
// Multi-class mode
// ============================================================================

func TestDerive_MultiClassSums(t *testing.T) {
	f := multiFabric(
		class("compute", 4, 100, false),
		class("storage", 2, 30, false),
	)
	topo := Derive(f, spec.BuiltinCatalog())

	if !topo.IsValid {
		t.Fatalf("IsValid = false, errors: %v", topo.ValidationErrors)
	}
	// compute: 52 downlinks -> 2 leaves; storage: 54 downlinks -> 1 leaf
	if topo.LeavesNeeded != 3 {
		t.Errorf("LeavesNeeded = %d, want 3", topo.LeavesNeeded)
	}
	if topo.SpinesNeeded != 1 {
		t.Errorf("SpinesNeeded = %d, want 1", topo.SpinesNeeded)
	}
	if topo.UsedPorts != 130+2*(8+2) {
		t.Errorf("UsedPorts = %d, want %d", topo.UsedPorts, 150)
	}
	if len(topo.Classes) != 2 || topo.Classes[0].ClassID != "compute" || topo.Classes[1].ClassID != "storage" {
		t.Fatalf("Classes = %+v", topo.Classes)
	}
	if topo.Classes[1].DownlinkPortsPerLeaf != 54 {
		t.Errorf("storage downlinks = %d, want 54", topo.Classes[1].DownlinkPortsPerLeaf)
	}
}

func TestDerive_MCLAGGuard(t *testing.T) {
	topo := Derive(multiFabric(class("web", 2, 10, true)), spec.BuiltinCatalog())

	if topo.IsValid {
		t.Error("IsValid = true, want false")
	}
	if len(topo.ValidationErrors) != 0 {
		t.Errorf("ValidationErrors = %v, want none", topo.ValidationErrors)
	}
	if len(topo.Guards) != 1 {
		t.Fatalf("len(Guards) = %d, want 1", len(topo.Guards))
	}

	g, ok := topo.Guards[0].(MCLAGOddLeafCount)
	if !ok {
		t.Fatalf("Guards[0] is %T, want MCLAGOddLeafCount", topo.Guards[0])
	}
	if g.GuardType() != GuardMCLAGOddLeafCount {
		t.Errorf("GuardType() = %q", g.GuardType())
	}
	want := MCLAGDetails{ClassID: "web", LeafCount: 1, MCLAGEnabled: true}
	if g.Details() != want {
		t.Errorf("Details() = %+v, want %+v", g.Details(), want)
	}
	if g.Message() != "MC-LAG requires even leaf count >= 2, but class 'web' has 1 leaves" {
		t.Errorf("Message() = %q", g.Message())
	}
}

func TestDerive_MCLAGParity(t *testing.T) {
	tests := []struct {
		name      string
		mcLag     bool
		leafCount int
		wantGuard bool
	}{
		{"mclag one leaf", true, 1, true},
		{"mclag two leaves", true, 2, false},
		{"mclag three leaves", true, 3, true},
		{"mclag four leaves", true, 4, false},
		{"no mclag one leaf", false, 1, false},
		{"no mclag three leaves", false, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := class("rack", 2, 10, tt.mcLag)
			c.LeafCount = tt.leafCount
			topo := Derive(multiFabric(c), spec.BuiltinCatalog())
			if got := len(topo.Guards) == 1; got != tt.wantGuard {
				t.Errorf("guard emitted = %v, want %v (guards %v)", got, tt.wantGuard, topo.Guards)
			}
			if topo.LeavesNeeded != tt.leafCount {
				t.Errorf("LeavesNeeded = %d, want explicit %d", topo.LeavesNeeded, tt.leafCount)
			}
			if topo.IsValid == tt.wantGuard {
				t.Errorf("IsValid = %v with guard = %v", topo.IsValid, tt.wantGuard)
			}
		})
	}
}

func TestDerive_GuardPerClass(t *testing.T) {
	a := class("a", 2, 10, true)
	b := class("b", 2, 10, true)
	b.LeafCount = 3
	c := class("c", 2, 10, false)
	topo := Derive(multiFabric(c, b, a), spec.BuiltinCatalog())

	if len(topo.Guards) != 2 {
		t.Fatalf("len(Guards) = %d, want 2", len(topo.Guards))
	}
	first := topo.Guards[0].(MCLAGOddLeafCount)
	second := topo.Guards[1].(MCLAGOddLeafCount)
	if first.ClassID != "a" || second.ClassID != "b" || second.LeafCount != 3 {
		t.Errorf("guards = %+v, %+v", first, second)
	}
}

func TestDerive_GuardJSON(t *testing.T) {
	topo := Derive(multiFabric(class("web", 2, 10, true)), spec.BuiltinCatalog())
	data, err := json.Marshal(topo.Guards)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"guardType":"MC_LAG_ODD_LEAF_COUNT",` +
		`"message":"MC-LAG requires even leaf count >= 2, but class 'web' has 1 leaves",` +
		`"details":{"classId":"web","leafCount":1,"mcLagEnabled":true}}]`
	if string(data) != want {
		t.Errorf("guards JSON =\n%s\nwant\n%s", data, want)
	}
}

func TestDerive_EmptyListsInJSON(t *testing.T) {
	data, err := json.Marshal(Derive(legacyFabric(), spec.BuiltinCatalog()))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"guards":[]`, `"validationErrors":[]`, `"isValid":true`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}

func TestDerive_MultiClassErrors(t *testing.T) {
	tests := []struct {
		name string
		f    *spec.FabricSpec
		want string
	}{
		{
			name: "unknown class model",
			f: func() *spec.FabricSpec {
				c := class("gpu", 2, 10, false)
				c.LeafModelID = "missing-model"
				return multiFabric(c)
			}(),
			want: "Leaf profile not found for class gpu model: missing-model",
		},
		{
			name: "duplicate ids",
			f:    multiFabric(class("x", 2, 10, false), class("x", 2, 10, false)),
			want: "Duplicate leaf class id: x",
		},
		{
			name: "mixed shapes",
			f: func() *spec.FabricSpec {
				f := multiFabric(class("x", 2, 10, false))
				f.EndpointCount = 5
				return f
			}(),
			want: "Fabric spec cannot combine leafClasses with legacy single-group fields",
		},
		{
			name: "global divisibility",
			f: func() *spec.FabricSpec {
				// big: 20 leaves x 2 uplinks = 40 uplinks -> 2 spines; odd has 3 uplinks
				big := class("big", 2, 0, false)
				big.LeafCount = 20
				return multiFabric(big, class("odd", 3, 10, false))
			}(),
			want: "Uplinks per leaf (3) for class odd must be divisible by number of spines (2)",
		},
		{
			name: "explicit leaf count beyond maximum",
			f: func() *spec.FabricSpec {
				c := class("huge", 2, 0, true)
				c.LeafCount = 1 << 40
				return multiFabric(c)
			}(),
			want: "Leaf class 'huge': leaves needed (1099511627776) exceeds the supported maximum of 65536",
		},
		{
			name: "overflowing endpoint demand",
			f:    multiFabric(class("flood", 2, math.MaxInt, false), class("flood2", 2, math.MaxInt, false)),
			want: "Leaf class 'flood': leaves needed (170803185867681034) exceeds the supported maximum of 65536",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := Derive(tt.f, spec.BuiltinCatalog())
			if topo.IsValid {
				t.Fatal("IsValid = true, want false")
			}
			found := false
			for _, e := range topo.ValidationErrors {
				if e == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidationErrors = %v, want to contain %q", topo.ValidationErrors, tt.want)
			}
		})
	}
}

func TestDerive_Deterministic(t *testing.T) {
	a := multiFabric(class("zebra", 2, 60, true), class("alpha", 4, 200, false))
	b := multiFabric(class("alpha", 4, 200, false), class("zebra", 2, 60, true))

	ja, _ := json.Marshal(Derive(a, spec.BuiltinCatalog()))
	jb, _ := json.Marshal(Derive(b, spec.BuiltinCatalog()))
	if string(ja) != string(jb) {
		t.Errorf("class order changed output:\n%s\n%s", ja, jb)
	}
}
