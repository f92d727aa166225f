package cfg

import (
	"fmt"
	"io"
	"strings"
)

// WriteDot renders the graph in Graphviz format: one record-shaped node per
// basic block listing its instructions, one edge per CFG edge.
func WriteDot(w io.Writer, c *CFG) error {
	var sb strings.Builder
	sb.WriteString("digraph program {\n")
	sb.WriteString("\tnode [shape=record, fontname=\"monospace\"];\n")
	for _, l := range c.SortedLabels() {
		b := c.Get(l)
		var lines []string
		lines = append(lines, l.String()+":")
		for _, ins := range b.Instructions() {
			lines = append(lines, escapeDot(ins.String()))
		}
		fmt.Fprintf(&sb, "\t%q [label=%q];\n", l.String(), strings.Join(lines, "\\l")+"\\l")
	}
	for _, l := range c.SortedLabels() {
		for _, n := range c.Get(l).Succs() {
			fmt.Fprintf(&sb, "\t%q -> %q;\n", l.String(), n.String())
		}
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeDot(s string) string {
	r := strings.NewReplacer("{", "\\{", "}", "\\}", "<", "\\<", ">", "\\>", "|", "\\|")
	return r.Replace(s)
}
