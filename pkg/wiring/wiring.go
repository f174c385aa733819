// Package wiring turns allocation results into a leaf-spine graph.
package wiring

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/newtron-network/fabricplan/pkg/allocator"
	"github.com/newtron-network/fabricplan/pkg/spec"
)

// Node is a leaf or spine switch in the wiring graph.
type Node struct {
	id      int64
	Name    string
	Role    string
	ClassID string
	Index   int
}

func (n *Node) ID() int64      { return n.id }
func (n *Node) DOTID() string  { return n.Name }
func (n *Node) String() string { return n.Name }

// Attributes implements encoding.Attributer.
func (n *Node) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "role", Value: n.Role}}
	if n.ClassID != "" {
		attrs = append(attrs, encoding.Attribute{Key: "class", Value: n.ClassID})
	}
	return attrs
}

// Link is one uplink cable between a leaf port and a spine port.
type Link struct {
	F, T     graph.Node
	UID      int64
	FromPort string
	ToPort   string
}

func (l *Link) From() graph.Node { return l.F }
func (l *Link) To() graph.Node   { return l.T }
func (l *Link) ID() int64        { return l.UID }

// ReversedLine returns a copy with the ends and ports swapped.
func (l *Link) ReversedLine() graph.Line {
	return &Link{F: l.T, T: l.F, UID: l.UID, FromPort: l.ToPort, ToPort: l.FromPort}
}

// Attributes implements encoding.Attributer.
func (l *Link) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: l.FromPort + ":" + l.ToPort},
	}
}

// Cable is the flat, serializable form of a Link, leaf side first.
type Cable struct {
	Leaf      string `json:"leaf"`
	LeafPort  string `json:"leafPort"`
	Spine     string `json:"spine"`
	SpinePort string `json:"spinePort"`
	ClassID   string `json:"classId,omitempty"`
}

// Wiring is the graph of a fabric's leaves, spines and uplinks.
type Wiring struct {
	name   string
	graph  *multi.UndirectedGraph
	spines []*Node
	leaves map[int]*Node
	nextID int64
}

// Build creates the wiring graph for a multi-class result, or for its
// legacy single-class result when present.
func Build(name string, r *allocator.MultiClassResult) *Wiring {
	if r.Legacy != nil {
		return BuildSingle(name, r.Legacy)
	}
	w := newWiring(name, len(r.SpineUtilization))
	for _, ca := range r.ClassAllocations {
		w.addLeaves(ca.ClassID, ca.LeafMaps)
	}
	return w
}

// BuildSingle creates the wiring graph for a single-class result.
func BuildSingle(name string, r *allocator.Result) *Wiring {
	w := newWiring(name, len(r.SpineUtilization))
	w.addLeaves("", r.LeafMaps)
	return w
}

func newWiring(name string, spines int) *Wiring {
	w := &Wiring{
		name:   name,
		graph:  multi.NewUndirectedGraph(),
		spines: make([]*Node, spines),
		leaves: make(map[int]*Node),
	}
	for s := 0; s < spines; s++ {
		n := &Node{id: w.nextID, Name: fmt.Sprintf("%s-%d", spec.RoleSpine, s), Role: spec.RoleSpine, Index: s}
		w.nextID++
		w.spines[s] = n
		w.graph.AddNode(n)
	}
	return w
}

func (w *Wiring) addLeaves(classID string, maps []allocator.LeafMap) {
	for _, lm := range maps {
		leaf := &Node{id: w.nextID, Name: fmt.Sprintf("%s-%d", spec.RoleLeaf, lm.LeafID), Role: spec.RoleLeaf, ClassID: classID, Index: lm.LeafID}
		w.nextID++
		w.leaves[lm.LeafID] = leaf
		w.graph.AddNode(leaf)

		for _, u := range lm.Uplinks {
			if u.ToSpine < 0 || u.ToSpine >= len(w.spines) {
				continue
			}
			w.graph.SetLine(&Link{
				F:        leaf,
				T:        w.spines[u.ToSpine],
				UID:      w.nextID,
				FromPort: u.Port,
				ToPort:   u.SpinePort,
			})
			w.nextID++
		}
	}
}

// Nodes returns the spines in index order followed by the leaves in leaf id
// order.
func (w *Wiring) Nodes() []*Node {
	nodes := make([]*Node, 0, len(w.spines)+len(w.leaves))
	nodes = append(nodes, w.spines...)
	ids := make([]int, 0, len(w.leaves))
	for id := range w.leaves {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		nodes = append(nodes, w.leaves[id])
	}
	return nodes
}

// Links returns every uplink in allocation order.
func (w *Wiring) Links() []*Link {
	links := make([]*Link, 0)
	it := w.graph.Edges()
	for it.Next() {
		edge := it.Edge().(multi.Edge)
		for edge.Lines.Next() {
			links = append(links, leafFirst(edge.Lines.Line()))
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].UID < links[j].UID })
	return links
}

// Cables returns Links in their flat form.
func (w *Wiring) Cables() []Cable {
	links := w.Links()
	cables := make([]Cable, len(links))
	for i, l := range links {
		leaf, spine := l.F.(*Node), l.T.(*Node)
		cables[i] = Cable{
			Leaf:      leaf.Name,
			LeafPort:  l.FromPort,
			Spine:     spine.Name,
			SpinePort: l.ToPort,
			ClassID:   leaf.ClassID,
		}
	}
	return cables
}

// SpineLinks counts the uplinks landing on spine s.
func (w *Wiring) SpineLinks(s int) int {
	if s < 0 || s >= len(w.spines) {
		return 0
	}
	sid := w.spines[s].ID()
	count := 0
	neighbors := w.graph.From(sid)
	for neighbors.Next() {
		lines := w.graph.Lines(sid, neighbors.Node().ID())
		for lines.Next() {
			count++
		}
	}
	return count
}

// DOT renders the graph in Graphviz DOT format, one edge per uplink.
func (w *Wiring) DOT() ([]byte, error) {
	return dot.MarshalMulti(w.graph, w.name, "", "  ")
}

// leafFirst orients a line so that its From end is the leaf.
func leafFirst(l graph.Line) *Link {
	link := l.(*Link)
	if link.F.(*Node).Role == spec.RoleLeaf {
		return link
	}
	return link.ReversedLine().(*Link)
}
