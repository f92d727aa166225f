package cfg

import "sort"

// A Kinder is an instruction that reports a kind name for statistics
// collection. Instructions without one are counted only in the totals.
type Kinder interface {
	Kind() string
}

// StatsHeaders returns the structural counters CollectStats always emits,
// in output order. Per-kind counters come after these.
func StatsHeaders() []string {
	return []string{"basic_blocks", "edges", "instructions", "joins"}
}

// CollectStats counts blocks, edges, instructions and join points of the
// graph, plus one counter per instruction kind for instructions that
// implement Kinder.
func CollectStats(c *CFG) map[string]int {
	out := map[string]int{
		"basic_blocks": 0,
		"edges":        0,
		"instructions": 0,
		"joins":        0,
	}
	for _, l := range c.SortedLabels() {
		b := c.Get(l)
		out["basic_blocks"]++
		out["edges"] += b.OutDegree()
		out["instructions"] += len(b.Instructions())
		if b.InDegree() > 1 {
			out["joins"]++
		}
		for _, ins := range b.Instructions() {
			if k, ok := ins.(Kinder); ok {
				out[k.Kind()]++
			}
		}
	}
	return out
}

// StatsKeys returns the keys of a collected stats map with the structural
// counters first and kind counters sorted after them.
func StatsKeys(m map[string]int) []string {
	headers := StatsHeaders()
	isHeader := map[string]bool{}
	for _, h := range headers {
		isHeader[h] = true
	}
	var kinds []string
	for k := range m {
		if !isHeader[k] {
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return append(headers, kinds...)
}
