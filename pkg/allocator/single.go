package allocator

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/topology"
	"github.com/newtron-network/fabricplan/pkg/util"
)

// AllocationSpec is the sizing input of a single-class allocation.
type AllocationSpec struct {
	UplinksPerLeaf int `json:"uplinksPerLeaf" yaml:"uplinksPerLeaf"`
	LeavesNeeded   int `json:"leavesNeeded" yaml:"leavesNeeded"`
	SpinesNeeded   int `json:"spinesNeeded" yaml:"spinesNeeded"`
	EndpointCount  int `json:"endpointCount" yaml:"endpointCount"`
}

// FromFabric sizes a legacy single-group fabric the same way the topology
// deriver does.
func FromFabric(f *spec.FabricSpec, leaf, spine *spec.SwitchProfile) AllocationSpec {
	as := AllocationSpec{
		UplinksPerLeaf: f.UplinksPerLeaf,
		EndpointCount:  f.LegacyEndpointCount(),
	}
	if leaf == nil || spine == nil || f.UplinksPerLeaf <= 0 {
		return as
	}
	downlinks := topology.DownlinkPortsPerLeaf(leaf, f.UplinksPerLeaf)
	as.LeavesNeeded = topology.LeavesForDemand(f.LegacyEndpointDemand(), downlinks, 0)
	as.SpinesNeeded = topology.SpinesForUplinks(as.LeavesNeeded*f.UplinksPerLeaf, len(spine.FabricPorts()))
	return as
}

// Uplink is one leaf-to-spine connection.
type Uplink struct {
	Port      string `json:"port"`
	ToSpine   int    `json:"toSpine"`
	SpinePort string `json:"spinePort"`
}

// LeafMap lists a leaf's uplinks grouped by spine in ascending order.
type LeafMap struct {
	LeafID  int      `json:"leafId"`
	Uplinks []Uplink `json:"uplinks"`
}

// Result is the outcome of a single-class allocation. When Issues is
// non-empty LeafMaps is empty and SpineUtilization is all zeros.
type Result struct {
	LeafMaps         []LeafMap `json:"leafMaps"`
	SpineUtilization []int     `json:"spineUtilization"`
	Issues           Issues    `json:"issues"`
}

// OK reports whether the allocation succeeded.
func (r *Result) OK() bool { return r.Issues.OK() }

// failedResult zero-fills one utilization slot per spine, or a single slot
// when the spine count is out of range.
func failedResult(spines int, issues Issues) *Result {
	return &Result{
		LeafMaps:         []LeafMap{},
		SpineUtilization: make([]int, utilizationSlots(spines)),
		Issues:           issues,
	}
}

func utilizationSlots(spines int) int {
	if spines < 1 || spines > topology.MaxSwitches {
		return 1
	}
	return spines
}

// Allocate maps every leaf's uplinks round robin across the spines. All
// precondition violations are collected before giving up.
func Allocate(as AllocationSpec, leaf, spine *spec.SwitchProfile) *Result {
	log := util.WithField("allocator", "single")

	var issues Issues
	if as.SpinesNeeded > 0 && as.UplinksPerLeaf%as.SpinesNeeded != 0 {
		issues = append(issues, newIssue(ConstraintViolation,
			"Uplinks per leaf (%d) must be divisible by number of spines (%d)", as.UplinksPerLeaf, as.SpinesNeeded))
	}
	if as.UplinksPerLeaf <= 0 {
		issues = append(issues, newIssue(ConstraintViolation, "Uplinks per leaf must be positive (got %d)", as.UplinksPerLeaf))
	}
	if as.LeavesNeeded <= 0 {
		issues = append(issues, newIssue(ConstraintViolation, "Leaves needed must be positive (got %d)", as.LeavesNeeded))
	}
	if as.SpinesNeeded <= 0 {
		issues = append(issues, newIssue(ConstraintViolation, "Spines needed must be positive (got %d)", as.SpinesNeeded))
	}
	issues = append(issues, checkBound("Uplinks per leaf", as.UplinksPerLeaf)...)
	issues = append(issues, checkBound("Leaves needed", as.LeavesNeeded)...)
	issues = append(issues, checkBound("Spines needed", as.SpinesNeeded)...)

	leafPorts := fabricPorts(leaf)
	if len(leafPorts) == 0 {
		issues = append(issues, newIssue(ConstraintViolation, "Leaf profile %s has no fabricAssignable ports", modelID(leaf)))
	}
	spinePorts := fabricPorts(spine)
	if len(spinePorts) == 0 {
		issues = append(issues, newIssue(ConstraintViolation, "Spine profile %s has no fabricAssignable ports", modelID(spine)))
	}

	if len(issues) > 0 {
		log.Debugf("preconditions failed: %v", issues.Messages())
		return failedResult(as.SpinesNeeded, issues)
	}

	total, ok := util.MulInt(as.LeavesNeeded, as.UplinksPerLeaf)
	if !ok {
		return failedResult(as.SpinesNeeded, Issues{newIssue(ConstraintViolation,
			"Total uplinks (%d leaves x %d) exceed the supported maximum", as.LeavesNeeded, as.UplinksPerLeaf)})
	}
	if len(leafPorts) < as.UplinksPerLeaf {
		issues = append(issues, newIssue(CapacityExceeded,
			"Leaf capacity exceeded: need %d ports, leaf has %d fabricAssignable", as.UplinksPerLeaf, len(leafPorts)))
	}
	if need := topology.CeilDiv(total, as.SpinesNeeded); len(spinePorts) < need {
		issues = append(issues, newIssue(CapacityExceeded,
			"Spine capacity exceeded: need %d ports, spine has %d fabricAssignable", need, len(spinePorts)))
	}
	if len(issues) > 0 {
		log.Debugf("capacity check failed: %v", issues.Messages())
		return failedResult(as.SpinesNeeded, issues)
	}

	pool := newSpinePool(spinePorts, as.SpinesNeeded)
	maps, exhausted := assignLeaves(pool, leafPorts, 0, as.LeavesNeeded, as.UplinksPerLeaf)
	if exhausted >= 0 {
		log.Debugf("spine %d exhausted", exhausted)
		return failedResult(as.SpinesNeeded, Issues{
			newIssue(ResourceExhaustion, "Ran out of spine fabric ports for spine %d", exhausted),
		})
	}

	log.Debugf("allocated %d uplinks across %d leaves and %d spines", total, as.LeavesNeeded, as.SpinesNeeded)
	return &Result{
		LeafMaps:         maps,
		SpineUtilization: pool.utilization,
		Issues:           Issues{},
	}
}

// checkBound reports a count above topology.MaxSwitches.
func checkBound(what string, n int) Issues {
	if n <= topology.MaxSwitches {
		return nil
	}
	return Issues{newIssue(ConstraintViolation, "%s (%d) exceeds the supported maximum of %d", what, n, topology.MaxSwitches)}
}

// ValidateResult re-checks a successful result against as. It returns the
// list of inconsistencies found, empty when the result is consistent.
func ValidateResult(r *Result, as AllocationSpec) []string {
	problems := []string{}
	if len(r.LeafMaps) != as.LeavesNeeded {
		problems = append(problems, fmt.Sprintf("Expected %d leaves, got %d", as.LeavesNeeded, len(r.LeafMaps)))
	}
	for _, lm := range r.LeafMaps {
		if len(lm.Uplinks) != as.UplinksPerLeaf {
			problems = append(problems, fmt.Sprintf("Leaf %d has %d uplinks, expected %d", lm.LeafID, len(lm.Uplinks), as.UplinksPerLeaf))
		}
	}
	if len(r.SpineUtilization) != as.SpinesNeeded {
		problems = append(problems, fmt.Sprintf("Expected %d spine utilization entries, got %d", as.SpinesNeeded, len(r.SpineUtilization)))
	}
	if as.SpinesNeeded > 0 {
		total, _ := util.MulInt(as.LeavesNeeded, as.UplinksPerLeaf)
		want := total / as.SpinesNeeded
		for s, u := range r.SpineUtilization {
			if u != want {
				problems = append(problems, fmt.Sprintf("Spine %d utilization %d, expected %d", s, u, want))
			}
		}
	}
	return append(problems, duplicateSpinePorts(r.LeafMaps)...)
}

// duplicateSpinePorts reports spine ports used by more than one uplink.
func duplicateSpinePorts(maps []LeafMap) []string {
	var problems []string
	used := make(map[int]sets.String)
	for _, lm := range maps {
		for _, u := range lm.Uplinks {
			if used[u.ToSpine] == nil {
				used[u.ToSpine] = sets.NewString()
			}
			if used[u.ToSpine].Has(u.SpinePort) {
				problems = append(problems, fmt.Sprintf("Spine %d port %s assigned more than once", u.ToSpine, u.SpinePort))
				continue
			}
			used[u.ToSpine].Insert(u.SpinePort)
		}
	}
	return problems
}

func fabricPorts(p *spec.SwitchProfile) []string {
	if p == nil {
		return nil
	}
	return p.FabricPorts()
}

func modelID(p *spec.SwitchProfile) string {
	if p == nil {
		return "<nil>"
	}
	return p.ModelID
}
