package zones

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/constraints"
	"golang.org/x/tools/container/intsets"
)

// A VertID names a vertex of a constraint graph. IDs of forgotten vertices
// are recycled by NewVertex.
type VertID = int

// A GraphEdge pairs a neighbouring vertex with the weight of the connecting
// edge.
type GraphEdge[W constraints.Signed] struct {
	Vert VertID
	Wt   W
}

// A Graph is a weighted directed graph with O(1) edge-weight reads. At most
// one edge exists per ordered vertex pair; the edge-writing primitives differ
// only in how they treat an existing weight.
type Graph[W constraints.Signed] struct {
	succs []map[VertID]W
	preds []*intsets.Sparse
	live  intsets.Sparse
	free  []VertID
}

func NewGraph[W constraints.Signed]() *Graph[W] {
	return &Graph[W]{}
}

// NewVertex allocates a fresh vertex, reusing the slot of a forgotten one
// when available.
func (g *Graph[W]) NewVertex() VertID {
	var v VertID
	if n := len(g.free); n > 0 {
		v = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		v = len(g.succs)
		g.succs = append(g.succs, nil)
		g.preds = append(g.preds, &intsets.Sparse{})
	}
	g.live.Insert(v)
	return v
}

// Size is the number of vertex slots ever allocated, free or not. Valid
// vertex IDs are smaller than Size.
func (g *Graph[W]) Size() int { return len(g.succs) }

func (g *Graph[W]) IsVert(v VertID) bool { return g.live.Has(v) }

// Verts returns the live vertices in ascending order.
func (g *Graph[W]) Verts() []VertID {
	return g.live.AppendTo(nil)
}

func (g *Graph[W]) Lookup(i, j VertID) (W, bool) {
	w, ok := g.succs[i][j]
	return w, ok
}

func (g *Graph[W]) Elem(i, j VertID) bool {
	_, ok := g.succs[i][j]
	return ok
}

// AddEdge inserts edge i→j with weight w. The edge must not already exist.
func (g *Graph[W]) AddEdge(i VertID, w W, j VertID) {
	if g.Elem(i, j) {
		panic(fmt.Sprintf("graph: edge %d->%d already present", i, j))
	}
	g.setEdge(i, w, j)
}

// SetEdge installs edge i→j with weight w, overwriting any previous weight.
func (g *Graph[W]) SetEdge(i VertID, w W, j VertID) {
	g.setEdge(i, w, j)
}

// UpdateEdge installs edge i→j with weight w unless an edge with a smaller
// or equal weight already exists.
func (g *Graph[W]) UpdateEdge(i VertID, w W, j VertID) {
	if old, ok := g.Lookup(i, j); ok && old <= w {
		return
	}
	g.setEdge(i, w, j)
}

func (g *Graph[W]) setEdge(i VertID, w W, j VertID) {
	if !g.live.Has(i) || !g.live.Has(j) {
		panic(fmt.Sprintf("graph: edge %d->%d touches a dead vertex", i, j))
	}
	if g.succs[i] == nil {
		g.succs[i] = map[VertID]W{}
	}
	g.succs[i][j] = w
	g.preds[j].Insert(i)
}

func (g *Graph[W]) RemoveEdge(i, j VertID) {
	if _, ok := g.succs[i][j]; !ok {
		return
	}
	delete(g.succs[i], j)
	g.preds[j].Remove(i)
}

// Forget removes v and every incident edge. The slot becomes reusable.
func (g *Graph[W]) Forget(v VertID) {
	if !g.live.Has(v) {
		return
	}
	for _, d := range g.Succs(v) {
		g.preds[d].Remove(v)
	}
	g.succs[v] = nil
	for _, s := range g.preds[v].AppendTo(nil) {
		delete(g.succs[s], v)
	}
	g.preds[v].Clear()
	g.live.Remove(v)
	g.free = append(g.free, v)
}

// Succs returns the successors of v in ascending order.
func (g *Graph[W]) Succs(v VertID) []VertID {
	out := make([]VertID, 0, len(g.succs[v]))
	for d := range g.succs[v] {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Preds returns the predecessors of v in ascending order.
func (g *Graph[W]) Preds(v VertID) []VertID {
	return g.preds[v].AppendTo(nil)
}

// SuccEdges returns a snapshot of v's outgoing edges, safe to hold across
// mutation of g.
func (g *Graph[W]) SuccEdges(v VertID) []GraphEdge[W] {
	out := make([]GraphEdge[W], 0, len(g.succs[v]))
	for d, w := range g.succs[v] {
		out = append(out, GraphEdge[W]{Vert: d, Wt: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vert < out[j].Vert })
	return out
}

// PredEdges returns a snapshot of v's incoming edges.
func (g *Graph[W]) PredEdges(v VertID) []GraphEdge[W] {
	srcs := g.preds[v].AppendTo(nil)
	out := make([]GraphEdge[W], 0, len(srcs))
	for _, s := range srcs {
		out = append(out, GraphEdge[W]{Vert: s, Wt: g.succs[s][v]})
	}
	return out
}

func (g *Graph[W]) NumEdges() int {
	n := 0
	for _, m := range g.succs {
		n += len(m)
	}
	return n
}

func (g *Graph[W]) IsEmpty() bool { return g.NumEdges() == 0 }

func (g *Graph[W]) Clone() *Graph[W] {
	out := &Graph[W]{
		succs: make([]map[VertID]W, len(g.succs)),
		preds: make([]*intsets.Sparse, len(g.preds)),
		free:  append([]VertID(nil), g.free...),
	}
	for i, m := range g.succs {
		if m != nil {
			nm := make(map[VertID]W, len(m))
			for k, w := range m {
				nm[k] = w
			}
			out.succs[i] = nm
		}
	}
	for i, p := range g.preds {
		np := &intsets.Sparse{}
		np.Copy(p)
		out.preds[i] = np
	}
	out.live.Copy(&g.live)
	return out
}

func (g *Graph[W]) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for _, s := range g.Verts() {
		for _, e := range g.SuccEdges(s) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&sb, "%d->%d:%d", s, e.Vert, e.Wt)
		}
	}
	sb.WriteString("}")
	return sb.String()
}
