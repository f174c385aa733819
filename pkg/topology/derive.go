// Package topology sizes leaf-spine fabrics: leaf and spine counts, port
// usage, oversubscription, validation errors and structural guards.
package topology

import (
	"fmt"

	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/util"
)

// ClassSizing is the per-class breakdown of a multi-class derivation.
type ClassSizing struct {
	ClassID              string `json:"classId"`
	LeafModelID          string `json:"leafModelId"`
	UplinksPerLeaf       int    `json:"uplinksPerLeaf"`
	EndpointDemand       int    `json:"endpointDemand"`
	DownlinkPortsPerLeaf int    `json:"downlinkPortsPerLeaf"`
	LeavesNeeded         int    `json:"leavesNeeded"`
	MCLAG                bool   `json:"mcLag,omitempty"`
}

// DerivedTopology is the sizing and validation result for a fabric.
type DerivedTopology struct {
	LeavesNeeded          int           `json:"leavesNeeded"`
	SpinesNeeded          int           `json:"spinesNeeded"`
	TotalPorts            int           `json:"totalPorts"`
	UsedPorts             int           `json:"usedPorts"`
	OversubscriptionRatio float64       `json:"oversubscriptionRatio"`
	IsValid               bool          `json:"isValid"`
	ValidationErrors      []string      `json:"validationErrors"`
	Guards                []Guard       `json:"guards"`
	Classes               []ClassSizing `json:"classes,omitempty"`
}

// capacity accumulates the inputs of the oversubscription ratio.
type capacity struct {
	downlink float64
	uplink   float64
}

func (c capacity) ratio() float64 {
	if c.uplink == 0 {
		return 0
	}
	return c.downlink / c.uplink
}

// Derive sizes f against catalog. It never fails: problems are reported in
// ValidationErrors and Guards, and IsValid is false when either is non-empty.
func Derive(f *spec.FabricSpec, catalog spec.Catalog) *DerivedTopology {
	t := &DerivedTopology{
		ValidationErrors: []string{},
		Guards:           []Guard{},
	}
	v := &util.ValidationBuilder{}

	spineBudget := 0
	spine, ok := catalog.Lookup(f.SpineModelID)
	if !ok {
		v.AddErrorf("Spine profile not found: %s", f.SpineModelID)
	} else {
		spineBudget = len(spine.FabricPorts())
		if spineBudget == 0 {
			v.AddErrorf("Spine profile %s has no fabricAssignable ports", f.SpineModelID)
		}
	}

	if f.IsMultiClass() {
		deriveMultiClass(t, v, f, catalog, spineBudget)
	} else {
		deriveLegacy(t, v, f, catalog, spineBudget)
	}

	if f.MaxOversubscription > 0 && t.OversubscriptionRatio > f.MaxOversubscription {
		v.AddErrorf("Oversubscription ratio %.2f exceeds maximum %.2f", t.OversubscriptionRatio, f.MaxOversubscription)
	}

	t.ValidationErrors = append(t.ValidationErrors, v.Messages()...)
	t.IsValid = len(t.ValidationErrors) == 0 && len(t.Guards) == 0

	util.WithFabric(f.Name).WithField("valid", t.IsValid).Debugf(
		"derived %d leaves, %d spines, oversubscription %.2f (%d errors, %d guards)",
		t.LeavesNeeded, t.SpinesNeeded, t.OversubscriptionRatio, len(t.ValidationErrors), len(t.Guards))
	return t
}

func deriveLegacy(t *DerivedTopology, v *util.ValidationBuilder, f *spec.FabricSpec, catalog spec.Catalog, spineBudget int) {
	demand := f.LegacyEndpointDemand()
	uplinks := f.UplinksPerLeaf

	v.Add(uplinks > 0, fmt.Sprintf("Uplinks per leaf must be positive (got %d)", uplinks))
	v.Add(demand > 0, fmt.Sprintf("Endpoint count must be positive (got %d)", f.LegacyEndpointCount()))

	leaf, ok := catalog.Lookup(f.LeafModelID)
	if !ok {
		v.AddErrorf("Leaf profile not found: %s", f.LeafModelID)
		return
	}
	if uplinks <= 0 {
		return
	}

	fabricPorts := len(leaf.FabricPorts())
	if fabricPorts < uplinks {
		v.AddErrorf("Leaf profile %s has %d fabricAssignable ports, need %d uplinks", leaf.ModelID, fabricPorts, uplinks)
	}
	downlinks := DownlinkPortsPerLeaf(leaf, uplinks)
	if downlinks <= 0 {
		v.AddErrorf("Leaf profile %s has no downlink ports left after %d uplinks", leaf.ModelID, uplinks)
		return
	}

	t.LeavesNeeded = LeavesForDemand(demand, downlinks, 0)
	if t.LeavesNeeded > MaxSwitches {
		v.AddErrorf("Leaves needed (%d) exceeds the supported maximum of %d", t.LeavesNeeded, MaxSwitches)
		return
	}
	totalUplinks := t.LeavesNeeded * uplinks
	if spineBudget > 0 {
		t.SpinesNeeded = SpinesForUplinks(totalUplinks, spineBudget)
		if uplinks%t.SpinesNeeded != 0 {
			v.AddErrorf("Uplinks per leaf (%d) must be divisible by number of spines (%d)", uplinks, t.SpinesNeeded)
		}
	}

	t.TotalPorts = t.LeavesNeeded*leaf.PortBudget() + t.SpinesNeeded*spineBudget
	t.UsedPorts, _ = util.AddInt(demand, 2*totalUplinks)

	speeds := leaf.Speeds(spec.RoleLeaf)
	c := capacity{
		downlink: float64(t.LeavesNeeded * downlinks * speeds.EndpointSpeedGbps),
		uplink:   float64(totalUplinks * speeds.FabricSpeedGbps),
	}
	t.OversubscriptionRatio = c.ratio()
}

func deriveMultiClass(t *DerivedTopology, v *util.ValidationBuilder, f *spec.FabricSpec, catalog spec.Catalog, spineBudget int) {
	if f.HasLegacyFields() {
		v.AddError("Fabric spec cannot combine leafClasses with legacy single-group fields")
	}

	var (
		c            capacity
		totalUplinks int
		demand       int
		leafPorts    int
		seen         = make(map[string]bool)
	)

	for _, class := range f.SortedClasses() {
		if class.ID == "" {
			v.AddError("Leaf class id is required")
			continue
		}
		if seen[class.ID] {
			v.AddErrorf("Duplicate leaf class id: %s", class.ID)
			continue
		}
		seen[class.ID] = true

		s := ClassSizing{
			ClassID:        class.ID,
			LeafModelID:    class.ModelFor(f.LeafModelID),
			UplinksPerLeaf: class.UplinksPerLeaf,
			EndpointDemand: class.EndpointDemand(),
			MCLAG:          class.MCLAG,
		}
		log := util.WithClass(f.Name, class.ID)

		if s.UplinksPerLeaf <= 0 {
			v.AddErrorf("Leaf class '%s': uplinks per leaf must be positive (got %d)", class.ID, s.UplinksPerLeaf)
		}
		if class.LeafCount <= 0 && s.EndpointDemand <= 0 {
			v.AddErrorf("Leaf class '%s' has no endpoint demand", class.ID)
		}

		leaf, ok := catalog.Lookup(s.LeafModelID)
		if !ok {
			v.AddErrorf("Leaf profile not found for class %s model: %s", class.ID, s.LeafModelID)
		} else if s.UplinksPerLeaf > 0 {
			if fp := len(leaf.FabricPorts()); fp < s.UplinksPerLeaf {
				v.AddErrorf("Leaf class '%s': profile %s has %d fabricAssignable ports, need %d uplinks",
					class.ID, leaf.ModelID, fp, s.UplinksPerLeaf)
			}
			s.DownlinkPortsPerLeaf = DownlinkPortsPerLeaf(leaf, s.UplinksPerLeaf)
			if s.DownlinkPortsPerLeaf <= 0 {
				v.AddErrorf("Leaf class '%s': profile %s has no downlink ports left after %d uplinks",
					class.ID, leaf.ModelID, s.UplinksPerLeaf)
			}
		}

		s.LeavesNeeded = LeavesForDemand(s.EndpointDemand, s.DownlinkPortsPerLeaf, class.LeafCount)
		bounded := s.LeavesNeeded <= MaxSwitches
		if !bounded {
			v.AddErrorf("Leaf class '%s': leaves needed (%d) exceeds the supported maximum of %d",
				class.ID, s.LeavesNeeded, MaxSwitches)
		}
		determined := class.LeafCount > 0 || s.DownlinkPortsPerLeaf > 0
		if determined {
			if g := checkMCLAG(class.ID, class.MCLAG, s.LeavesNeeded); g != nil {
				log.Debugf("guard %s: %s", g.GuardType(), g.Message())
				t.Guards = append(t.Guards, g)
			}
		}

		if ok && s.UplinksPerLeaf > 0 && bounded {
			speeds := leaf.Speeds(spec.RoleLeaf)
			c.downlink += float64(s.LeavesNeeded * max(s.DownlinkPortsPerLeaf, 0) * speeds.EndpointSpeedGbps)
			c.uplink += float64(s.LeavesNeeded * s.UplinksPerLeaf * speeds.FabricSpeedGbps)
			leafPorts += s.LeavesNeeded * leaf.PortBudget()
			totalUplinks += s.LeavesNeeded * s.UplinksPerLeaf
		}
		demand, _ = util.AddInt(demand, s.EndpointDemand)
		t.LeavesNeeded, _ = util.AddInt(t.LeavesNeeded, s.LeavesNeeded)
		t.Classes = append(t.Classes, s)
		log.Debugf("class sized: %d leaves x %d uplinks (model %s)", s.LeavesNeeded, s.UplinksPerLeaf, s.LeafModelID)
	}

	if spineBudget > 0 {
		t.SpinesNeeded = SpinesForUplinks(totalUplinks, spineBudget)
		for _, s := range t.Classes {
			if s.UplinksPerLeaf > 0 && s.UplinksPerLeaf%t.SpinesNeeded != 0 {
				v.AddErrorf("Uplinks per leaf (%d) for class %s must be divisible by number of spines (%d)",
					s.UplinksPerLeaf, s.ClassID, t.SpinesNeeded)
			}
		}
	}

	t.TotalPorts = leafPorts + t.SpinesNeeded*spineBudget
	t.UsedPorts, _ = util.AddInt(demand, 2*totalUplinks)
	t.OversubscriptionRatio = c.ratio()
}
