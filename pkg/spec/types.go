// Package spec defines switch profiles and fabric specifications and loads
// them from YAML or JSON files.
package spec

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fabricplan/pkg/util"
)

// Switch roles used in profiles and speed profile lookups.
const (
	RoleLeaf  = "leaf"
	RoleSpine = "spine"
)

// ============================================================================
// Switch Profiles
// ============================================================================

// PortRangeDescriptor is a compact port range ("E1/49-56"), a literal port
// name, or a pre-expanded list of port names.
type PortRangeDescriptor struct {
	Pattern string
	List    []string
}

// Range builds a descriptor from a pattern or literal.
func Range(pattern string) PortRangeDescriptor {
	return PortRangeDescriptor{Pattern: pattern}
}

// List builds a descriptor from an already expanded port list.
func List(ports ...string) PortRangeDescriptor {
	return PortRangeDescriptor{List: ports}
}

// Ports expands the descriptor. Lists are returned as a sorted copy.
func (d PortRangeDescriptor) Ports() []string {
	if d.List != nil {
		return util.SortPorts(d.List)
	}
	return util.ParsePortRange(d.Pattern)
}

// UnmarshalYAML accepts either a scalar or a sequence.
func (d *PortRangeDescriptor) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		d.Pattern = node.Value
		d.List = nil
		return nil
	case yaml.SequenceNode:
		var ports []string
		if err := node.Decode(&ports); err != nil {
			return err
		}
		if ports == nil {
			ports = []string{}
		}
		d.Pattern = ""
		d.List = ports
		return nil
	}
	return fmt.Errorf("line %d: port range must be a string or a list of strings", node.Line)
}

// MarshalYAML writes the descriptor back in the form it was given.
func (d PortRangeDescriptor) MarshalYAML() (interface{}, error) {
	if d.List != nil {
		return d.List, nil
	}
	return d.Pattern, nil
}

// UnmarshalJSON accepts either a string or an array of strings.
func (d *PortRangeDescriptor) UnmarshalJSON(data []byte) error {
	var pattern string
	if err := json.Unmarshal(data, &pattern); err == nil {
		d.Pattern = pattern
		d.List = nil
		return nil
	}
	var ports []string
	if err := json.Unmarshal(data, &ports); err != nil {
		return fmt.Errorf("port range must be a string or a list of strings: %w", err)
	}
	if ports == nil {
		ports = []string{}
	}
	d.Pattern = ""
	d.List = ports
	return nil
}

// MarshalJSON mirrors MarshalYAML.
func (d PortRangeDescriptor) MarshalJSON() ([]byte, error) {
	if d.List != nil {
		return json.Marshal(d.List)
	}
	return json.Marshal(d.Pattern)
}

// String renders the descriptor for display.
func (d PortRangeDescriptor) String() string {
	if d.List != nil {
		return util.CompactPorts(d.List)
	}
	return d.Pattern
}

// ExpandDescriptors expands, deduplicates and sorts a descriptor list.
func ExpandDescriptors(descs []PortRangeDescriptor) []string {
	var flat []string
	for _, d := range descs {
		flat = append(flat, d.Ports()...)
	}
	return util.DedupPorts(flat)
}

// SwitchPorts groups a profile's port inventory by purpose.
type SwitchPorts struct {
	EndpointAssignable []PortRangeDescriptor `yaml:"endpointAssignable,omitempty" json:"endpointAssignable,omitempty"`
	FabricAssignable   []PortRangeDescriptor `yaml:"fabricAssignable,omitempty" json:"fabricAssignable,omitempty"`
}

// SpeedProfile holds port speeds used for oversubscription math.
type SpeedProfile struct {
	EndpointSpeedGbps int `yaml:"endpointSpeedGbps,omitempty" json:"endpointSpeedGbps,omitempty"`
	FabricSpeedGbps   int `yaml:"fabricSpeedGbps,omitempty" json:"fabricSpeedGbps,omitempty"`
}

// SwitchProfile describes a switch model's port inventory.
type SwitchProfile struct {
	ModelID       string                  `yaml:"modelId" json:"modelId"`
	DisplayName   string                  `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Roles         []string                `yaml:"roles,omitempty" json:"roles,omitempty"`
	Ports         SwitchPorts             `yaml:"ports" json:"ports"`
	SpeedProfiles map[string]SpeedProfile `yaml:"speedProfiles,omitempty" json:"speedProfiles,omitempty"`
}

// FabricPorts returns the expanded, sorted fabric-assignable ports.
func (p *SwitchProfile) FabricPorts() []string {
	return ExpandDescriptors(p.Ports.FabricAssignable)
}

// EndpointPorts returns the expanded, sorted endpoint-assignable ports.
func (p *SwitchProfile) EndpointPorts() []string {
	return ExpandDescriptors(p.Ports.EndpointAssignable)
}

// PortBudget is the number of distinct assignable ports of either kind.
func (p *SwitchProfile) PortBudget() int {
	all := append(append([]PortRangeDescriptor{}, p.Ports.EndpointAssignable...), p.Ports.FabricAssignable...)
	return len(ExpandDescriptors(all))
}

// SupportsRole reports whether the profile lists role. Profiles without
// roles are usable in any role.
func (p *SwitchProfile) SupportsRole(role string) bool {
	if len(p.Roles) == 0 {
		return true
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Speeds returns the speed profile for role with unset speeds defaulting to 1.
func (p *SwitchProfile) Speeds(role string) SpeedProfile {
	sp := p.SpeedProfiles[role]
	if sp.EndpointSpeedGbps <= 0 {
		sp.EndpointSpeedGbps = 1
	}
	if sp.FabricSpeedGbps <= 0 {
		sp.FabricSpeedGbps = 1
	}
	return sp
}

// Catalog maps a model identifier to its switch profile. Callers hand a
// catalog to the engine; it is never mutated there.
type Catalog map[string]*SwitchProfile

// Lookup returns the profile for modelID.
func (c Catalog) Lookup(modelID string) (*SwitchProfile, bool) {
	p, ok := c[modelID]
	return p, ok && p != nil
}

// ModelIDs returns the catalog's model identifiers in sorted order.
func (c Catalog) ModelIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ============================================================================
// Fabric Specifications
// ============================================================================

// EndpointProfile describes a group of identical endpoints.
type EndpointProfile struct {
	Name             string `yaml:"name" json:"name"`
	PortsPerEndpoint int    `yaml:"portsPerEndpoint" json:"portsPerEndpoint"`
	Count            int    `yaml:"count,omitempty" json:"count,omitempty"`
}

// Ports returns PortsPerEndpoint, treating zero as one.
func (e EndpointProfile) Ports() int {
	if e.PortsPerEndpoint <= 0 {
		return 1
	}
	return e.PortsPerEndpoint
}

// LeafClass is a named, independently sized group of leaves.
type LeafClass struct {
	ID               string            `yaml:"id" json:"id"`
	Role             string            `yaml:"role,omitempty" json:"role,omitempty"`
	UplinksPerLeaf   int               `yaml:"uplinksPerLeaf" json:"uplinksPerLeaf"`
	EndpointProfiles []EndpointProfile `yaml:"endpointProfiles,omitempty" json:"endpointProfiles,omitempty"`
	LeafModelID      string            `yaml:"leafModelId,omitempty" json:"leafModelId,omitempty"`
	MCLAG            bool              `yaml:"mcLag,omitempty" json:"mcLag,omitempty"`
	LeafCount        int               `yaml:"leafCount,omitempty" json:"leafCount,omitempty"` // explicit count; 0 = derive from demand
}

// EndpointDemand is the number of leaf ports the class's endpoints consume.
// It saturates at math.MaxInt.
func (c *LeafClass) EndpointDemand() int {
	total := 0
	for _, ep := range c.EndpointProfiles {
		if ep.Count <= 0 {
			continue
		}
		ports, ok := util.MulInt(ep.Count, ep.Ports())
		if !ok {
			return math.MaxInt
		}
		if total, ok = util.AddInt(total, ports); !ok {
			return math.MaxInt
		}
	}
	return total
}

// EndpointCount is the number of endpoints in the class.
func (c *LeafClass) EndpointCount() int {
	total := 0
	for _, ep := range c.EndpointProfiles {
		total += ep.Count
	}
	return total
}

// ModelFor returns the class's leaf model, falling back to def.
func (c *LeafClass) ModelFor(def string) string {
	if c.LeafModelID != "" {
		return c.LeafModelID
	}
	return def
}

// FabricSpec describes a fabric's demand. The legacy single-group fields and
// LeafClasses are mutually exclusive.
type FabricSpec struct {
	Name         string `yaml:"name" json:"name"`
	SpineModelID string `yaml:"spineModelId" json:"spineModelId"`
	LeafModelID  string `yaml:"leafModelId" json:"leafModelId"`

	// Legacy single-group shape
	UplinksPerLeaf  int              `yaml:"uplinksPerLeaf,omitempty" json:"uplinksPerLeaf,omitempty"`
	EndpointCount   int              `yaml:"endpointCount,omitempty" json:"endpointCount,omitempty"`
	EndpointProfile *EndpointProfile `yaml:"endpointProfile,omitempty" json:"endpointProfile,omitempty"`

	LeafClasses []LeafClass `yaml:"leafClasses,omitempty" json:"leafClasses,omitempty"`

	// MaxOversubscription bounds the derived ratio when positive.
	MaxOversubscription float64 `yaml:"maxOversubscription,omitempty" json:"maxOversubscription,omitempty"`
}

// IsMultiClass reports whether the spec uses leaf classes.
func (f *FabricSpec) IsMultiClass() bool {
	return len(f.LeafClasses) > 0
}

// HasLegacyFields reports whether any single-group field is set.
func (f *FabricSpec) HasLegacyFields() bool {
	return f.UplinksPerLeaf != 0 || f.EndpointCount != 0 || f.EndpointProfile != nil
}

// LegacyEndpointCount is EndpointCount, or the endpoint profile's count
// when EndpointCount is unset.
func (f *FabricSpec) LegacyEndpointCount() int {
	if f.EndpointCount == 0 && f.EndpointProfile != nil {
		return f.EndpointProfile.Count
	}
	return f.EndpointCount
}

// LegacyEndpointDemand is the endpoint count × portsPerEndpoint, saturating
// at math.MaxInt.
func (f *FabricSpec) LegacyEndpointDemand() int {
	count := f.LegacyEndpointCount()
	if count <= 0 {
		return count
	}
	ports := 1
	if f.EndpointProfile != nil {
		ports = f.EndpointProfile.Ports()
	}
	demand, _ := util.MulInt(count, ports)
	return demand
}

// SortedClasses returns a copy of the leaf classes ordered by id.
func (f *FabricSpec) SortedClasses() []LeafClass {
	classes := make([]LeafClass, len(f.LeafClasses))
	copy(classes, f.LeafClasses)
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].ID < classes[j].ID
	})
	return classes
}

// Validate checks the spec's shape. Numeric sizing constraints are left to
// the topology and allocator packages.
func (f *FabricSpec) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(f.Name != "", "name is required")
	v.Add(f.SpineModelID != "", "spineModelId is required")

	if f.IsMultiClass() {
		if f.HasLegacyFields() {
			v.AddError("leafClasses cannot be combined with uplinksPerLeaf/endpointCount/endpointProfile")
		}
		seen := make(map[string]bool)
		for i, c := range f.LeafClasses {
			if c.ID == "" {
				v.AddErrorf("leafClasses[%d]: id is required", i)
				continue
			}
			if seen[c.ID] {
				v.AddErrorf("leafClasses[%d]: duplicate id %q", i, c.ID)
			}
			seen[c.ID] = true
			if c.ModelFor(f.LeafModelID) == "" {
				v.AddErrorf("leafClasses[%d]: no leafModelId and no fabric default", i)
			}
		}
	} else {
		v.Add(f.LeafModelID != "", "leafModelId is required")
		v.Add(f.HasLegacyFields(), "either leafClasses or uplinksPerLeaf/endpointCount must be set")
	}
	return v.Build()
}
