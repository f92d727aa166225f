package zones

import (
	"fmt"
	"math"
	"math/big"

	"golang.org/x/tools/container/intsets"
)

// Wt is the weight type of constraint graphs. It must be wide enough to hold
// any coefficient–constant product the derivation routines feed it; values
// that do not fit are rejected at conversion time.
type Wt = int64

// convertToWt narrows an arbitrary-precision number to an edge weight.
// The second result is false when the value does not fit. The minimum int64
// is rejected so that negating a converted weight can never wrap.
func convertToWt(n *big.Int) (Wt, bool) {
	if !n.IsInt64() {
		return 0, false
	}
	v := n.Int64()
	if v == math.MinInt64 {
		return 0, false
	}
	return v, true
}

func addWt(a, b Wt) (Wt, bool) {
	r := a + b
	if (r > a) != (b > 0) && b != 0 {
		return 0, false
	}
	return r, true
}

func mulWt(a, b Wt) (Wt, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

// shortestFrom computes single-source shortest path weights from src,
// ignoring the skip vertex. The graph must not contain negative cycles.
func shortestFrom(g *Graph[Wt], src, skip VertID) map[VertID]Wt {
	return shortest(g, src, skip, (*Graph[Wt]).SuccEdges)
}

// shortestTo computes shortest path weights from every vertex to dst,
// ignoring the skip vertex.
func shortestTo(g *Graph[Wt], dst, skip VertID) map[VertID]Wt {
	return shortest(g, dst, skip, (*Graph[Wt]).PredEdges)
}

func shortest(g *Graph[Wt], src, skip VertID, edges func(*Graph[Wt], VertID) []GraphEdge[Wt]) map[VertID]Wt {
	dist := map[VertID]Wt{src: 0}
	queue := []VertID{src}
	queued := map[VertID]bool{src: true}
	relaxed := map[VertID]int{}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		queued[v] = false
		if relaxed[v]++; relaxed[v] > g.Size()+1 {
			panic("zones: negative cycle in a graph with a feasible potential")
		}
		dv := dist[v]
		for _, e := range edges(g, v) {
			if e.Vert == skip {
				continue
			}
			nd := dv + e.Wt
			if d, ok := dist[e.Vert]; !ok || nd < d {
				dist[e.Vert] = nd
				if !queued[e.Vert] {
					queue = append(queue, e.Vert)
					queued[e.Vert] = true
				}
			}
		}
	}
	delete(dist, src)
	return dist
}

// selectPotentials recomputes a feasible potential for g, warm-started from
// pot. It reports false, leaving pot untouched, when g has a negative cycle.
func selectPotentials(g *Graph[Wt], pot []Wt) bool {
	verts := g.Verts()
	dist := make(map[VertID]Wt, len(verts))
	for _, v := range verts {
		dist[v] = pot[v]
	}
	for round := 0; ; round++ {
		changed := false
		for _, s := range verts {
			for _, e := range g.SuccEdges(s) {
				if nd := dist[s] + e.Wt; nd < dist[e.Vert] {
					dist[e.Vert] = nd
					changed = true
				}
			}
		}
		if !changed {
			break
		}
		if round > len(verts) {
			return false
		}
	}
	for _, v := range verts {
		pot[v] = dist[v]
	}
	return true
}

// repairPotential restores potential feasibility after edge src→dst was
// inserted or tightened, relaxing only vertices reachable from dst. It
// reports false when the new edge closes a negative cycle; pot is left
// untouched in that case.
func repairPotential(g *Graph[Wt], pot []Wt, src, dst VertID) bool {
	w, ok := g.Lookup(src, dst)
	if !ok {
		panic(fmt.Sprintf("zones: repairPotential on missing edge %d->%d", src, dst))
	}
	if pot[src]+w >= pot[dst] {
		return true
	}
	next := map[VertID]Wt{dst: pot[src] + w}
	get := func(v VertID) Wt {
		if n, ok := next[v]; ok {
			return n
		}
		return pot[v]
	}
	queue := []VertID{dst}
	queued := map[VertID]bool{dst: true}
	relaxed := map[VertID]int{}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		queued[v] = false
		if relaxed[v]++; relaxed[v] > g.Size()+1 {
			return false
		}
		dv := get(v)
		for _, e := range g.SuccEdges(v) {
			if dv+e.Wt < get(e.Vert) {
				next[e.Vert] = dv + e.Wt
				if !queued[e.Vert] {
					queue = append(queue, e.Vert)
					queued[e.Vert] = true
				}
			}
		}
	}
	for v, n := range next {
		pot[v] = n
	}
	return true
}

// closeAfterAssign restores closure of the edges adjacent to v, in both
// directions, after v's constraints changed. Paths through the skip vertex
// are ignored.
func closeAfterAssign(g *Graph[Wt], v, skip VertID) {
	for d, w := range shortestFrom(g, v, skip) {
		g.UpdateEdge(v, w, d)
	}
	for s, w := range shortestTo(g, v, skip) {
		g.UpdateEdge(s, w, v)
	}
}

// closeAfterWiden re-closes the successor rows of every unstable vertex in
// g∖{0}. Widening only drops edges, so restoring the rows of vertices that
// lost one is enough to recover transitive tightness.
func closeAfterWiden(g *Graph[Wt], unstable *intsets.Sparse) {
	for _, v := range unstable.AppendTo(nil) {
		if v == 0 || !g.IsVert(v) {
			continue
		}
		for d, w := range shortestFrom(g, v, 0) {
			if d != 0 {
				g.UpdateEdge(v, w, d)
			}
		}
	}
}

// closeAfterMeet fully re-closes g∖{0}: every path between non-zero vertices
// is materialized as a direct edge.
func closeAfterMeet(g *Graph[Wt]) {
	for _, v := range g.Verts() {
		if v == 0 {
			continue
		}
		for d, w := range shortestFrom(g, v, 0) {
			if d != 0 {
				g.UpdateEdge(v, w, d)
			}
		}
	}
}

// makeGraph allocates a graph with vertices 0..size-1 live and no edges.
func makeGraph(size int) *Graph[Wt] {
	g := NewGraph[Wt]()
	for i := 0; i < size; i++ {
		g.NewVertex()
	}
	return g
}

// permuteGraph builds the graph over vertices 0..size-1 in which edge i→j
// carries the weight of perm[i]→perm[j] in g. Entries with perm[i] < 0 have
// no counterpart and end up isolated.
func permuteGraph(perm []VertID, g *Graph[Wt], size int) *Graph[Wt] {
	out := makeGraph(size)
	inv := make(map[VertID]VertID, size)
	for i := 0; i < size; i++ {
		if perm[i] >= 0 {
			inv[perm[i]] = i
		}
	}
	for i := 0; i < size; i++ {
		if perm[i] < 0 {
			continue
		}
		for _, e := range g.SuccEdges(perm[i]) {
			if j, ok := inv[e.Vert]; ok {
				out.SetEdge(i, e.Wt, j)
			}
		}
	}
	return out
}

// meetGraphs takes the pointwise minimum of two graphs over the same vertex
// range: the union of their edges, tightest weight wins.
func meetGraphs(a, b *Graph[Wt]) *Graph[Wt] {
	out := a.Clone()
	for _, s := range b.Verts() {
		for _, e := range b.SuccEdges(s) {
			out.UpdateEdge(s, e.Wt, e.Vert)
		}
	}
	return out
}

// joinGraphs takes the pointwise maximum over the edges present in both
// graphs; an edge missing on either side is dropped.
func joinGraphs(a, b *Graph[Wt]) *Graph[Wt] {
	out := makeGraph(a.Size())
	for _, s := range a.Verts() {
		for _, e := range a.SuccEdges(s) {
			if wb, ok := b.Lookup(s, e.Vert); ok {
				w := e.Wt
				if wb > w {
					w = wb
				}
				out.SetEdge(s, w, e.Vert)
			}
		}
	}
	return out
}

// widenGraphs keeps an edge of a only when b confirms it with an equal or
// tighter weight; sources of dropped edges are reported as destabilized.
func widenGraphs(a, b *Graph[Wt]) (*Graph[Wt], []VertID) {
	out := makeGraph(a.Size())
	var destabilized []VertID
	for _, s := range a.Verts() {
		lost := false
		for _, e := range a.SuccEdges(s) {
			if wb, ok := b.Lookup(s, e.Vert); ok && wb <= e.Wt {
				out.SetEdge(s, e.Wt, e.Vert)
			} else {
				lost = true
			}
		}
		if lost {
			destabilized = append(destabilized, s)
		}
	}
	return out, destabilized
}

// isClosed reports whether every two-edge path of g∖{0} is weakly dominated
// by a direct edge. Paths touching the zero vertex stay implicit in a split
// graph and are not required. Quadratic in edges; meant for assertions.
func isClosed(g *Graph[Wt]) bool {
	for _, i := range g.Verts() {
		if i == 0 {
			continue
		}
		for _, e1 := range g.SuccEdges(i) {
			if e1.Vert == 0 {
				continue
			}
			for _, e2 := range g.SuccEdges(e1.Vert) {
				if e2.Vert == i || e2.Vert == 0 {
					continue
				}
				w, ok := g.Lookup(i, e2.Vert)
				if !ok || w > e1.Wt+e2.Wt {
					return false
				}
			}
		}
	}
	return true
}
