// Package fixpoint drives a forward abstract interpretation of a
// control-flow graph to a fixed point.
//
// The iterator walks the graph in weak topological order and interleaves an
// increasing sequence, widened at cycle heads after a configurable delay,
// with a decreasing sequence refined by narrowing. It is generic over the
// abstract domain; the per-instruction semantics come from a caller-provided
// transformer that mutates one state in place and never fails on well-formed
// instructions.
package fixpoint

import (
	"github.com/bpfverify/verifier/analysis/wto"
	"github.com/bpfverify/verifier/cfg"
	"github.com/bpfverify/verifier/stats"
)

// Domain is the lattice interface the iterator needs from an abstract
// domain. All binary operations return fresh values; LessOrEqual is the
// lattice order ⊑.
type Domain[T any] interface {
	IsBottom() bool
	LessOrEqual(T) bool
	Join(T) T
	Meet(T) T
	Widen(T) T
	Narrow(T) T
	Copy() T
}

// A TransferFunc applies the abstract semantics of a single instruction,
// mutating the state in place.
type TransferFunc[T any] func(T, cfg.Instruction)

// Options tunes the iteration strategy.
type Options struct {
	// WideningDelay is the number of iterations of a cycle that join before
	// widening starts.
	WideningDelay uint
}

// DefaultOptions matches the iteration strategy the verifier ships with.
func DefaultOptions() Options {
	return Options{WideningDelay: 1}
}

// Run analyzes c forward from its entry and returns, for every label, the
// invariant holding before and after the block. The bottom constructor
// seeds the tables, entry is the abstract state at the program's entry, and
// transfer supplies the instruction semantics. The CFG is not mutated.
func Run[T Domain[T]](c *cfg.CFG, bottom func() T, entry T, transfer TransferFunc[T], opts Options) (pre, post map[cfg.Label]T) {
	stats.Start("fixpoint")
	defer stats.Stop("fixpoint")

	it := &iterator[T]{
		cfg:      c,
		wto:      wto.New(c),
		pre:      map[cfg.Label]T{},
		post:     map[cfg.Label]T{},
		bottom:   bottom,
		transfer: transfer,
		delay:    opts.WideningDelay,
		skip:     true,
	}
	for _, l := range c.SortedLabels() {
		it.pre[l] = bottom()
		it.post[l] = bottom()
	}
	it.pre[c.Entry()] = entry

	for _, comp := range it.wto.Components() {
		it.visit(comp)
	}
	return it.pre, it.post
}

type iterator[T Domain[T]] struct {
	cfg      *cfg.CFG
	wto      *wto.WTO
	pre      map[cfg.Label]T
	post     map[cfg.Label]T
	bottom   func() T
	transfer TransferFunc[T]
	delay    uint
	// skip is set until the walk reaches the entry label; components before
	// it are left untouched.
	skip bool
}

func (it *iterator[T]) visit(comp wto.Component) {
	switch comp := comp.(type) {
	case wto.Vertex:
		it.visitVertex(comp)
	case wto.Cycle:
		it.visitCycle(comp)
	}
}

// transformToPost runs the transformer over every instruction of the block
// on a copy of pre and records the result as the block's post-state.
func (it *iterator[T]) transformToPost(l cfg.Label, pre T) {
	state := pre.Copy()
	for _, ins := range it.cfg.Get(l).Instructions() {
		it.transfer(state, ins)
	}
	it.post[l] = state
}

func (it *iterator[T]) joinAllPrevs(l cfg.Label) T {
	res := it.bottom()
	for _, p := range it.cfg.Prev(l) {
		res = res.Join(it.post[p])
	}
	return res
}

func (it *iterator[T]) extrapolate(iteration uint, before, after T) T {
	if iteration <= it.delay {
		return before.Join(after)
	}
	return before.Widen(after)
}

func (it *iterator[T]) refine(iteration uint, before, after T) T {
	if iteration == 1 {
		return before.Meet(after)
	}
	return before.Narrow(after)
}

// inCycle reports whether l belongs to the cycle headed by head, at any
// nesting depth.
func (it *iterator[T]) inCycle(c wto.Cycle, l cfg.Label) bool {
	if l == c.Head {
		return true
	}
	for _, h := range it.wto.Nesting(l) {
		if h == c.Head {
			return true
		}
	}
	return false
}

func (it *iterator[T]) visitVertex(v wto.Vertex) {
	node := v.Node
	if it.skip && node == it.cfg.Entry() {
		it.skip = false
	}
	if it.skip {
		return
	}

	var pre T
	if node == it.cfg.Entry() {
		pre = it.pre[node]
	} else {
		pre = it.joinAllPrevs(node)
	}
	it.pre[node] = pre
	it.transformToPost(node, pre)
}

func (it *iterator[T]) visitCycle(c wto.Cycle) {
	head := c.Head

	entryInCycle := false
	if it.skip {
		entryInCycle = it.inCycle(c, it.cfg.Entry())
		it.skip = !entryInCycle
		if it.skip {
			return
		}
	}

	var pre T
	if entryInCycle {
		pre = it.pre[it.cfg.Entry()]
	} else {
		pre = it.bottom()
		cycleNesting := it.wto.Nesting(head)
		for _, p := range it.cfg.Prev(head) {
			// Back edges from inside the cycle contribute nothing yet.
			if !it.wto.Nesting(p).DeeperThan(cycleNesting) {
				pre = pre.Join(it.post[p])
			}
		}
	}

	// Increasing sequence with widening.
	for iteration := uint(1); ; iteration++ {
		stats.Count("fixpoint.cycle_visits")
		it.pre[head] = pre
		it.transformToPost(head, pre)
		for _, x := range c.Body {
			it.visit(x)
		}
		newPre := it.joinAllPrevs(head)
		if newPre.LessOrEqual(pre) {
			// Post-fixpoint reached.
			it.pre[head] = newPre
			pre = newPre
			break
		}
		pre = it.extrapolate(iteration, pre, newPre)
	}

	// Decreasing sequence with narrowing.
	for iteration := uint(1); ; iteration++ {
		it.transformToPost(head, pre)
		for _, x := range c.Body {
			it.visit(x)
		}
		newPre := it.joinAllPrevs(head)
		if pre.LessOrEqual(newPre) {
			// No more refinement possible.
			break
		}
		pre = it.refine(iteration, pre, newPre)
		it.pre[head] = pre
	}
}
