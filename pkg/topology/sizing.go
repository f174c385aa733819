package topology

import "github.com/newtron-network/fabricplan/pkg/spec"

// MaxSwitches bounds the leaf count, the spine count and the uplinks per
// leaf of a fabric. Larger values are reported as constraint violations.
const MaxSwitches = 1 << 16

// CeilDiv returns ceil(a/b) for non-negative a and positive b.
func CeilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	q := a / b
	if a%b > 0 {
		q++
	}
	return q
}

// DownlinkPortsPerLeaf is the leaf's port budget minus its uplinks.
func DownlinkPortsPerLeaf(leaf *spec.SwitchProfile, uplinksPerLeaf int) int {
	return leaf.PortBudget() - uplinksPerLeaf
}

// LeavesForDemand returns how many leaves serve demand endpoint ports. An
// explicit count wins when positive. Zero is returned when there are no
// downlink ports to serve demand with.
func LeavesForDemand(demand, downlinkPortsPerLeaf, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if downlinkPortsPerLeaf <= 0 || demand <= 0 {
		return 0
	}
	return CeilDiv(demand, downlinkPortsPerLeaf)
}

// SpinesForUplinks returns max(1, ceil(totalUplinks/spineFabricPorts)), or
// zero when the spine has no fabric ports.
func SpinesForUplinks(totalUplinks, spineFabricPorts int) int {
	if spineFabricPorts <= 0 {
		return 0
	}
	n := CeilDiv(totalUplinks, spineFabricPorts)
	if n < 1 {
		n = 1
	}
	return n
}
