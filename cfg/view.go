package cfg

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// A View is the read-side capability the traversal and ordering algorithms
// need: a designated entry and exit plus neighbour lookups. It is
// implemented by a CFG and by its reverse.
type View interface {
	Entry() Label
	Exit() Label
	Next(Label) []Label
	Prev(Label) []Label
}

// DFS visits every block reachable from entry exactly once, in pre-order,
// following successors in label order.
func (c *CFG) DFS(f func(*BasicBlock)) {
	visited := mapset.NewThreadUnsafeSet[Label]()
	var rec func(l Label)
	rec = func(l Label) {
		if !visited.Add(l) {
			return
		}
		b := c.Get(l)
		f(b)
		for _, n := range b.next {
			rec(n)
		}
	}
	rec(c.entry)
}

// A Reversed is a read-only view of a CFG with every edge flipped, entry and
// exit swapped, and block statements in reverse order. It is the graph a
// backward analysis runs forward over.
type Reversed struct {
	cfg *CFG
}

func Reverse(c *CFG) Reversed { return Reversed{cfg: c} }

func (r Reversed) Entry() Label { return r.cfg.exit }
func (r Reversed) Exit() Label  { return r.cfg.entry }

func (r Reversed) Next(l Label) []Label { return r.cfg.Prev(l) }
func (r Reversed) Prev(l Label) []Label { return r.cfg.Next(l) }

// Get returns the reversed rendition of l's block.
func (r Reversed) Get(l Label) ReversedBlock {
	return ReversedBlock{bb: r.cfg.Get(l)}
}

// DFS visits every block reachable from the reversed entry exactly once, in
// pre-order over reversed edges.
func (r Reversed) DFS(f func(ReversedBlock)) {
	visited := mapset.NewThreadUnsafeSet[Label]()
	var rec func(l Label)
	rec = func(l Label) {
		if !visited.Add(l) {
			return
		}
		f(r.Get(l))
		for _, n := range r.Next(l) {
			rec(n)
		}
	}
	rec(r.Entry())
}

// A ReversedBlock presents a basic block with its statement order flipped.
// It is a view: the underlying block is not modified.
type ReversedBlock struct {
	bb *BasicBlock
}

func (b ReversedBlock) Label() Label { return b.bb.label }

// Instructions returns the block's statements in reverse execution order.
func (b ReversedBlock) Instructions() []Instruction {
	n := len(b.bb.insns)
	out := make([]Instruction, n)
	for i, ins := range b.bb.insns {
		out[n-1-i] = ins
	}
	return out
}

func (b ReversedBlock) Succs() []Label { return b.bb.prev }
func (b ReversedBlock) Preds() []Label { return b.bb.next }
