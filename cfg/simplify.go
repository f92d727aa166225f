package cfg

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// markAlive collects every label reachable from `from` by following Next
// edges of v.
func markAlive(v View, from Label) mapset.Set[Label] {
	alive := mapset.NewThreadUnsafeSet[Label]()
	var rec func(l Label)
	rec = func(l Label) {
		if !alive.Add(l) {
			return
		}
		for _, n := range v.Next(l) {
			rec(n)
		}
	}
	rec(from)
	return alive
}

// removeUnreachableBlocks drops every block that entry cannot reach. An
// unreachable exit is a malformed graph and panics.
func (c *CFG) removeUnreachableBlocks() {
	alive := markAlive(c, c.entry)
	if !alive.Contains(c.exit) {
		panic("cfg: exit block must be reachable")
	}
	for _, l := range c.SortedLabels() {
		if !alive.Contains(l) {
			c.Remove(l)
		}
	}
}

// removeUselessBlocks drops every block that cannot reach exit, computed on
// the reversed graph.
func (c *CFG) removeUselessBlocks() {
	useful := markAlive(Reverse(c), c.exit)
	if !useful.Contains(c.exit) {
		panic("cfg: exit block must be reachable")
	}
	for _, l := range c.SortedLabels() {
		if !useful.Contains(l) {
			c.Remove(l)
		}
	}
}

// mergeChains splices maximal straight-line chains into single blocks: while
// a block has exactly one successor whose only predecessor it is, the
// successor's statements move to the end of the block, its successors are
// rewired, and it is deleted. Merging into exit moves the exit designation.
func (c *CFG) mergeChains() {
	worklist := mapset.NewThreadUnsafeSet[Label](c.SortedLabels()...)
	for worklist.Cardinality() > 0 {
		label, _ := worklist.Pop()

		bb := c.Get(label)
		if bb.InDegree() == 1 {
			// This block will be merged into its sole parent instead.
			if parent := c.Get(bb.prev[0]); parent.OutDegree() == 1 {
				continue
			}
		}
		for bb.OutDegree() == 1 {
			nextLabel := bb.next[0]
			if nextLabel == label {
				break
			}
			nb := c.Get(nextLabel)
			if nb.InDegree() != 1 {
				break
			}
			worklist.Remove(nextLabel)

			if nextLabel == c.exit {
				c.exit = label
			}
			bb.insns = append(bb.insns, nb.insns...)
			nb.insns = nil
			c.Disconnect(label, nextLabel)
			for _, nn := range append([]Label(nil), nb.next...) {
				c.Connect(label, nn)
			}
			c.Remove(nextLabel)
		}
	}
}

// Simplify prunes blocks that are unreachable from entry or cannot reach
// exit, then merges maximal straight-line chains. The pass is idempotent.
func (c *CFG) Simplify() {
	c.removeUnreachableBlocks()
	c.removeUselessBlocks()
	c.mergeChains()
}
