package allocator

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/newtron-network/fabricplan/pkg/util"
)

// spinePool tracks which fabric ports of each spine are taken. It lives for
// one allocation call and is shared by every leaf class in that call.
type spinePool struct {
	ports       []string
	used        []sets.String
	utilization []int
}

func newSpinePool(ports []string, spines int) *spinePool {
	p := &spinePool{
		ports:       ports,
		used:        make([]sets.String, spines),
		utilization: make([]int, spines),
	}
	for s := range p.used {
		p.used[s] = sets.NewString()
	}
	return p
}

// take claims the lowest free port on spine s.
func (p *spinePool) take(s int) (string, bool) {
	port, ok := util.NextAvailablePort(p.used[s], p.ports)
	if !ok {
		return "", false
	}
	p.used[s].Insert(port)
	p.utilization[s]++
	return port, true
}

// assignLeaves maps uplinks for leaves [firstLeaf, firstLeaf+leaves). Each
// leaf uses the same sequence of its own fabric ports; spine ports come from
// the shared pool. The spine index of an exhausted pool is returned as the
// second value, or -1 on success.
func assignLeaves(p *spinePool, leafPorts []string, firstLeaf, leaves, uplinksPerLeaf int) ([]LeafMap, int) {
	spines := len(p.used)
	perSpine := uplinksPerLeaf / spines

	maps := make([]LeafMap, 0, leaves)
	for l := 0; l < leaves; l++ {
		lm := LeafMap{
			LeafID:  firstLeaf + l,
			Uplinks: make([]Uplink, 0, uplinksPerLeaf),
		}
		for s := 0; s < spines; s++ {
			for j := 0; j < perSpine; j++ {
				spinePort, ok := p.take(s)
				if !ok {
					return nil, s
				}
				lm.Uplinks = append(lm.Uplinks, Uplink{
					Port:      leafPorts[s*perSpine+j],
					ToSpine:   s,
					SpinePort: spinePort,
				})
			}
		}
		maps = append(maps, lm)
	}
	return maps, -1
}
