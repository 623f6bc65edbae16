// Package grn models weighted directed gene regulatory networks. Nodes are
// gene names resolved to dense integer IDs at load time; edges carry an
// interaction probability and, in extended mode, four additional
// per-interaction measurements.
package grn

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNodeNotFound is returned when an operation references an unknown gene.
var ErrNodeNotFound = errors.New("gene not found in network")

// ErrBadWeight is returned when an interaction probability falls outside (0, 1].
var ErrBadWeight = errors.New("interaction probability outside (0, 1]")

// EdgeAttrs holds the extended per-interaction measurements present when a
// network is loaded in extended mode.
type EdgeAttrs struct {
	TFExpression     float64
	TargetExpression float64
	WeightedBinding  float64
	Activity         float64
}

// Edge is a directed interaction to Target. Attrs is nil unless the graph
// was built in extended mode.
type Edge struct {
	Target int32
	Weight float64
	Attrs  *EdgeAttrs
}

// Graph is a directed weighted network over gene names. Node IDs are dense
// integers assigned in first-appearance order, so traversal and per-node
// bookkeeping can use slices instead of maps.
type Graph struct {
	names    []string
	index    map[string]int32
	out      [][]Edge
	edgePos  map[uint64]int32 // packed (from,to) → index into out[from]
	edges    int
	extended bool
}

// NewGraph creates an empty graph. Extended graphs carry EdgeAttrs on every
// edge; minimal graphs carry only weights.
func NewGraph(extended bool) *Graph {
	return &Graph{
		index:    make(map[string]int32),
		edgePos:  make(map[uint64]int32),
		extended: extended,
	}
}

func packEdge(from, to int32) uint64 {
	return uint64(uint32(from))<<32 | uint64(uint32(to))
}

// EnsureNode returns the ID for name, creating the node if needed.
func (g *Graph) EnsureNode(name string) int32 {
	if id, ok := g.index[name]; ok {
		return id
	}
	id := int32(len(g.names))
	g.index[name] = id
	g.names = append(g.names, name)
	g.out = append(g.out, nil)
	return id
}

// AddEdge inserts (or overwrites) the directed interaction tf → target.
// Weights outside (0, 1] are rejected: a probability of exactly 0 would make
// the log-cost transform diverge during path search.
func (g *Graph) AddEdge(tf, target string, weight float64, attrs *EdgeAttrs) error {
	if weight <= 0 || weight > 1 {
		return fmt.Errorf("%w: %s → %s has weight %v", ErrBadWeight, tf, target, weight)
	}
	return g.addEdgeUnchecked(tf, target, weight, attrs)
}

// addEdgeUnchecked inserts an edge without the (0, 1] weight check. Used by
// Diff, whose weights are deltas rather than probabilities.
func (g *Graph) addEdgeUnchecked(tf, target string, weight float64, attrs *EdgeAttrs) error {
	from := g.EnsureNode(tf)
	to := g.EnsureNode(target)
	key := packEdge(from, to)
	if pos, ok := g.edgePos[key]; ok {
		g.out[from][pos] = Edge{Target: to, Weight: weight, Attrs: attrs}
		return nil
	}
	g.edgePos[key] = int32(len(g.out[from]))
	g.out[from] = append(g.out[from], Edge{Target: to, Weight: weight, Attrs: attrs})
	g.edges++
	return nil
}

// NumNodes returns the number of genes in the graph.
func (g *Graph) NumNodes() int { return len(g.names) }

// NumEdges returns the number of interactions in the graph.
func (g *Graph) NumEdges() int { return g.edges }

// Extended reports whether edges carry EdgeAttrs.
func (g *Graph) Extended() bool { return g.extended }

// Lookup resolves a gene name to its dense ID.
func (g *Graph) Lookup(name string) (int32, bool) {
	id, ok := g.index[name]
	return id, ok
}

// Name returns the gene name for a dense ID.
func (g *Graph) Name(id int32) string { return g.names[id] }

// Out returns the outgoing edges of a node. The returned slice is owned by
// the graph and must not be mutated.
func (g *Graph) Out(id int32) []Edge { return g.out[id] }

// OutDegree returns the number of outgoing interactions of a node.
func (g *Graph) OutDegree(id int32) int { return len(g.out[id]) }

// FindEdge returns the edge from → to, if present.
func (g *Graph) FindEdge(from, to int32) (Edge, bool) {
	pos, ok := g.edgePos[packEdge(from, to)]
	if !ok {
		return Edge{}, false
	}
	return g.out[from][pos], true
}

// NodeSet returns the set of gene names in the graph.
func (g *Graph) NodeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(g.names))
	for _, name := range g.names {
		set[name] = struct{}{}
	}
	return set
}

// SortedNames returns all gene names in lexicographic order. Used wherever
// iteration order must be reproducible across runs.
func (g *Graph) SortedNames() []string {
	names := make([]string, len(g.names))
	copy(names, g.names)
	sort.Strings(names)
	return names
}
