package graph

import (
	"github.com/ShehabAgain/threat-grapher/internal/logparse"
)

// edgeKey identifies an edge by its endpoints. A repeat observation of the
// same (src, dst) pair increments the existing edge's weight regardless of
// label, matching node/edge dedup semantics.
type edgeKey struct {
	src string
	dst string
}

// Graph is the deduplicated entity-relationship graph for one build call.
// Node counts and edge weights are commutative over input order; only the
// first-seen ordering of Nodes()/Edges() reflects the input sequence. Graphs
// carry no positional data.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[edgeKey]*Edge
	edgeOrder []edgeKey
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[edgeKey]*Edge),
	}
}

// AddBatch folds one batch of extracted nodes and edges into the graph.
// First-seen attributes win; repeats only increment counts and weights. Nil
// edge entries are dropped.
func (g *Graph) AddBatch(nodes []*Node, edges []*Edge) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if existing, ok := g.nodes[n.ID]; ok {
			existing.Count++
			continue
		}
		added := *n
		added.Count = 1
		g.nodes[n.ID] = &added
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}

	for _, e := range edges {
		if e == nil {
			continue
		}
		key := edgeKey{src: e.Src, dst: e.Dst}
		if existing, ok := g.edges[key]; ok {
			existing.Weight++
			continue
		}
		added := *e
		added.Weight = 1
		g.edges[key] = &added
		g.edgeOrder = append(g.edgeOrder, key)
	}
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Edge returns the edge between two node ids, or nil.
func (g *Graph) Edge(src, dst string) *Edge {
	return g.edges[edgeKey{src: src, dst: dst}]
}

// Nodes returns all nodes in first-seen order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in first-seen order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		out = append(out, g.edges[key])
	}
	return out
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Build extracts and folds all events of one file into a graph. When allowed
// is non-empty, only events whose discriminant is in the allow-list
// contribute.
func Build(events []*logparse.Event, format logparse.Format, allowed []string) *Graph {
	var allowSet map[string]struct{}
	if len(allowed) > 0 {
		allowSet = make(map[string]struct{}, len(allowed))
		for _, id := range allowed {
			allowSet[id] = struct{}{}
		}
	}

	g := NewGraph()
	for _, ev := range events {
		if allowSet != nil {
			if _, ok := allowSet[Discriminant(ev)]; !ok {
				continue
			}
		}
		nodes, edges := Extract(ev, format)
		g.AddBatch(nodes, edges)
	}
	return g
}

// Discriminant returns the event-type field used to classify an event: the
// XML event id, the key-value event code, or the cloud audit action name,
// whichever the event carries.
func Discriminant(ev *logparse.Event) string {
	for _, key := range []string{"EventID", "EventCode", "eventName"} {
		if v := ev.Get(key); v != "" {
			return v
		}
	}
	return ""
}
