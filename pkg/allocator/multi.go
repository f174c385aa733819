package allocator

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/topology"
	"github.com/newtron-network/fabricplan/pkg/util"
)

// ClassAllocation is one leaf class's share of a multi-class allocation.
type ClassAllocation struct {
	ClassID         string    `json:"classId"`
	LeafModelID     string    `json:"leafModelId"`
	UplinksPerLeaf  int       `json:"uplinksPerLeaf"`
	LeafMaps        []LeafMap `json:"leafMaps"`
	LeavesAllocated int       `json:"leavesAllocated"`
	TotalEndpoints  int       `json:"totalEndpoints"`
}

// MultiClassResult is the outcome of allocating every leaf class of a fabric
// against one shared spine tier. Classes commit together or not at all.
type MultiClassResult struct {
	ClassAllocations     []ClassAllocation `json:"classAllocations"`
	SpineUtilization     []int             `json:"spineUtilization"`
	TotalLeavesAllocated int               `json:"totalLeavesAllocated"`
	OverallIssues        Issues            `json:"overallIssues"`
	Legacy               *Result           `json:"legacy,omitempty"`
}

// OK reports whether the allocation succeeded.
func (r *MultiClassResult) OK() bool { return r.OverallIssues.OK() }

func failedMulti(spines int, issues Issues) *MultiClassResult {
	return &MultiClassResult{
		ClassAllocations: []ClassAllocation{},
		SpineUtilization: make([]int, utilizationSlots(spines)),
		OverallIssues:    issues,
	}
}

// classPlan is a resolved, sized leaf class awaiting allocation.
type classPlan struct {
	class     spec.LeafClass
	model     string
	leafPorts []string
	leaves    int
}

// AllocateFabric allocates uplinks for every leaf class of f. Fabrics using
// the legacy single-group fields are handed to Allocate and the result is
// returned under Legacy.
func AllocateFabric(f *spec.FabricSpec, catalog spec.Catalog, spine *spec.SwitchProfile) *MultiClassResult {
	log := util.WithFabric(f.Name)

	if !f.IsMultiClass() {
		if !f.HasLegacyFields() {
			return failedMulti(0, Issues{newIssue(ConstraintViolation,
				"Fabric %s has neither leafClasses nor legacy single-group fields", f.Name)})
		}
		return allocateLegacy(f, catalog, spine)
	}

	spinePorts := fabricPorts(spine)
	if len(spinePorts) == 0 {
		return failedMulti(0, Issues{newIssue(ConstraintViolation,
			"Spine profile %s has no fabricAssignable ports", modelID(spine))})
	}

	classes := f.SortedClasses()
	ids := make([]string, len(classes))
	for n, c := range classes {
		ids[n] = c.ID
	}
	log.Debugf("allocating classes in order %v", ids)

	// Resolution failures are fatal for the whole batch.
	var issues Issues
	plans := make([]classPlan, 0, len(classes))
	for _, c := range classes {
		model := c.ModelFor(f.LeafModelID)
		leaf, ok := catalog.Lookup(model)
		if !ok {
			issues = append(issues, newIssue(ProfileResolutionFailure,
				"Leaf profile not found for class %s model: %s", c.ID, model))
			continue
		}
		plans = append(plans, classPlan{class: c, model: model, leafPorts: leaf.FabricPorts()})
	}
	if len(issues) > 0 {
		return failedMulti(0, issues)
	}

	totalUplinks := 0
	seen := sets.NewString()
	for n := range plans {
		p := &plans[n]
		c := p.class
		if seen.Has(c.ID) {
			issues = append(issues, newIssue(ConstraintViolation, "Duplicate leaf class id: %s", c.ID))
			continue
		}
		seen.Insert(c.ID)

		if c.UplinksPerLeaf <= 0 {
			issues = append(issues, newIssue(ConstraintViolation,
				"Uplinks per leaf for class %s must be positive (got %d)", c.ID, c.UplinksPerLeaf))
			continue
		}
		if len(p.leafPorts) < c.UplinksPerLeaf {
			issues = append(issues, newIssue(CapacityExceeded,
				"Leaf capacity exceeded for class %s: need %d ports, leaf has %d fabricAssignable",
				c.ID, c.UplinksPerLeaf, len(p.leafPorts)))
			continue
		}

		leaf, _ := catalog.Lookup(p.model)
		p.leaves = topology.LeavesForDemand(c.EndpointDemand(), topology.DownlinkPortsPerLeaf(leaf, c.UplinksPerLeaf), c.LeafCount)
		if p.leaves <= 0 {
			issues = append(issues, newIssue(ConstraintViolation,
				"Leaves needed for class %s must be positive (got %d)", c.ID, p.leaves))
			continue
		}
		if p.leaves > topology.MaxSwitches {
			issues = append(issues, newIssue(ConstraintViolation,
				"Leaves needed for class %s (%d) exceeds the supported maximum of %d", c.ID, p.leaves, topology.MaxSwitches))
			continue
		}
		uplinks, ok := util.MulInt(p.leaves, c.UplinksPerLeaf)
		if ok {
			totalUplinks, ok = util.AddInt(totalUplinks, uplinks)
		}
		if !ok {
			issues = append(issues, newIssue(ConstraintViolation,
				"Total uplinks exceed the supported maximum at class %s", c.ID))
			continue
		}
		util.WithClass(f.Name, c.ID).Debugf("%d leaves x %d uplinks on %s", p.leaves, c.UplinksPerLeaf, p.model)
	}

	spines := topology.SpinesForUplinks(totalUplinks, len(spinePorts))
	issues = append(issues, checkBound("Spines needed", spines)...)
	for _, p := range plans {
		if p.class.UplinksPerLeaf > 0 && p.class.UplinksPerLeaf%spines != 0 {
			issues = append(issues, newIssue(ConstraintViolation,
				"Uplinks per leaf (%d) for class %s must be divisible by number of spines (%d)",
				p.class.UplinksPerLeaf, p.class.ID, spines))
		}
	}
	if len(issues) > 0 {
		log.Debugf("batch rejected: %v", issues.Messages())
		return failedMulti(spines, issues)
	}

	pool := newSpinePool(spinePorts, spines)
	allocations := make([]ClassAllocation, 0, len(plans))
	nextLeaf := 0
	for _, p := range plans {
		maps, exhausted := assignLeaves(pool, p.leafPorts, nextLeaf, p.leaves, p.class.UplinksPerLeaf)
		// Unreachable while spines is derived from totalUplinks; the abort
		// itself is covered by TestSpinePoolExhaustion.
		if exhausted >= 0 {
			log.Debugf("spine %d exhausted during class %s, discarding %d classes", exhausted, p.class.ID, len(allocations))
			return failedMulti(spines, Issues{
				newIssue(ResourceExhaustion, "Ran out of spine fabric ports for spine %d", exhausted),
			})
		}
		nextLeaf += p.leaves
		allocations = append(allocations, ClassAllocation{
			ClassID:         p.class.ID,
			LeafModelID:     p.model,
			UplinksPerLeaf:  p.class.UplinksPerLeaf,
			LeafMaps:        maps,
			LeavesAllocated: p.leaves,
			TotalEndpoints:  p.class.EndpointCount(),
		})
	}

	log.Debugf("allocated %d leaves in %d classes across %d spines", nextLeaf, len(allocations), spines)
	return &MultiClassResult{
		ClassAllocations:     allocations,
		SpineUtilization:     pool.utilization,
		TotalLeavesAllocated: nextLeaf,
		OverallIssues:        Issues{},
	}
}

func allocateLegacy(f *spec.FabricSpec, catalog spec.Catalog, spine *spec.SwitchProfile) *MultiClassResult {
	var legacy *Result
	if leaf, ok := catalog.Lookup(f.LeafModelID); ok {
		as := FromFabric(f, leaf, spine)
		util.WithFabric(f.Name).Debugf("legacy fabric: %+v", as)
		legacy = Allocate(as, leaf, spine)
	} else {
		legacy = failedResult(0, Issues{newIssue(ProfileResolutionFailure, "Leaf profile not found: %s", f.LeafModelID)})
	}

	utilization := make([]int, len(legacy.SpineUtilization))
	copy(utilization, legacy.SpineUtilization)
	return &MultiClassResult{
		ClassAllocations:     []ClassAllocation{},
		SpineUtilization:     utilization,
		TotalLeavesAllocated: len(legacy.LeafMaps),
		OverallIssues:        append(Issues{}, legacy.Issues...),
		Legacy:               legacy,
	}
}

// ValidateMultiClassResult audits a successful multi-class result. It checks
// per-class counts, global leaf id ordering, utilization conservation, even
// spine utilization and spine port reuse.
func ValidateMultiClassResult(r *MultiClassResult) []string {
	if r.Legacy != nil {
		as := AllocationSpec{
			LeavesNeeded: len(r.Legacy.LeafMaps),
			SpinesNeeded: len(r.Legacy.SpineUtilization),
		}
		if len(r.Legacy.LeafMaps) > 0 {
			as.UplinksPerLeaf = len(r.Legacy.LeafMaps[0].Uplinks)
		}
		return ValidateResult(r.Legacy, as)
	}

	problems := []string{}
	var all []LeafMap
	expectID := 0
	uplinks := 0
	perSpine := make([]int, len(r.SpineUtilization))
	for _, ca := range r.ClassAllocations {
		if len(ca.LeafMaps) != ca.LeavesAllocated {
			problems = append(problems, fmt.Sprintf("Class %s: expected %d leaves, got %d", ca.ClassID, ca.LeavesAllocated, len(ca.LeafMaps)))
		}
		for _, lm := range ca.LeafMaps {
			if lm.LeafID != expectID {
				problems = append(problems, fmt.Sprintf("Class %s: leaf id %d out of order, expected %d", ca.ClassID, lm.LeafID, expectID))
			}
			expectID = lm.LeafID + 1
			if len(lm.Uplinks) != ca.UplinksPerLeaf {
				problems = append(problems, fmt.Sprintf("Class %s: leaf %d has %d uplinks, expected %d",
					ca.ClassID, lm.LeafID, len(lm.Uplinks), ca.UplinksPerLeaf))
			}
			for _, u := range lm.Uplinks {
				if u.ToSpine < 0 || u.ToSpine >= len(r.SpineUtilization) {
					problems = append(problems, fmt.Sprintf("Class %s: leaf %d uplink %s targets unknown spine %d",
						ca.ClassID, lm.LeafID, u.Port, u.ToSpine))
					continue
				}
				perSpine[u.ToSpine]++
			}
			uplinks += len(lm.Uplinks)
		}
		all = append(all, ca.LeafMaps...)
	}

	leaves := 0
	for _, ca := range r.ClassAllocations {
		leaves += ca.LeavesAllocated
	}
	if leaves != r.TotalLeavesAllocated {
		problems = append(problems, fmt.Sprintf("Total leaves allocated %d, classes sum to %d", r.TotalLeavesAllocated, leaves))
	}

	used := 0
	for _, u := range r.SpineUtilization {
		used += u
	}
	if used != uplinks {
		problems = append(problems, fmt.Sprintf("Spine utilization sums to %d, expected %d uplinks", used, uplinks))
	}
	for s, u := range r.SpineUtilization {
		if u != perSpine[s] {
			problems = append(problems, fmt.Sprintf("Spine %d utilization %d, expected %d", s, u, perSpine[s]))
		}
		if u != r.SpineUtilization[0] {
			problems = append(problems, fmt.Sprintf("Spine %d utilization %d differs from spine 0 (%d)", s, u, r.SpineUtilization[0]))
		}
	}
	return append(problems, duplicateSpinePorts(all)...)
}
