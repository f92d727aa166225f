// Package wto computes weak topological orderings of control-flow graphs.
//
// A weak topological ordering, due to Bourdoncle ("Efficient chaotic
// iteration strategies with widenings"), is a hierarchical decomposition of
// the graph into a sequence of components, each either a single vertex or a
// cycle: a head followed by a nested sequence containing the tails of its
// back edges. Fixpoint iterators use it to apply widening only at cycle
// heads while visiting every other edge in topological order.
package wto

import (
	"fmt"
	"math"
	"strings"

	"github.com/bpfverify/verifier/cfg"
)

// A Component is one element of a weak topological ordering: either a
// Vertex or a Cycle.
type Component interface {
	fmt.Stringer
	component()
}

// A Vertex is a component holding a single label.
type Vertex struct {
	Node cfg.Label
}

func (Vertex) component() {}

func (v Vertex) String() string { return v.Node.String() }

// A Cycle is a head label followed by the nested ordering of the subgraph
// its back edges close over.
type Cycle struct {
	Head cfg.Label
	Body []Component
}

func (Cycle) component() {}

func (c Cycle) String() string {
	parts := []string{c.Head.String()}
	for _, x := range c.Body {
		parts = append(parts, x.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// A Nesting is the chain of cycle heads enclosing a label, outermost first.
// The head of a cycle is enclosed by the cycles around it, not by its own.
type Nesting []cfg.Label

// DeeperThan reports whether n is strictly deeper than o, i.e. o is a
// strict prefix of n.
func (n Nesting) DeeperThan(o Nesting) bool {
	if len(n) <= len(o) {
		return false
	}
	for i, l := range o {
		if n[i] != l {
			return false
		}
	}
	return true
}

// A WTO is a weak topological ordering of one graph. Every label of the
// graph reachable from its entry appears in exactly one component.
type WTO struct {
	components []Component
	nesting    map[cfg.Label]Nesting
}

// New computes the weak topological ordering of v from its entry, using
// Bourdoncle's recursive strongly-connected-component construction.
func New(v cfg.View) *WTO {
	b := &builder{
		view: v,
		dfn:  map[cfg.Label]int{},
	}
	var components []Component
	b.visit(v.Entry(), &components)

	w := &WTO{components: components, nesting: map[cfg.Label]Nesting{}}
	w.assignNesting(components, nil)
	return w
}

// Components returns the top-level component sequence.
func (w *WTO) Components() []Component { return w.components }

// Nesting returns the enclosing cycle heads of l, outermost first.
func (w *WTO) Nesting(l cfg.Label) Nesting { return w.nesting[l] }

func (w *WTO) String() string {
	parts := make([]string, len(w.components))
	for i, c := range w.components {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func (w *WTO) assignNesting(comps []Component, chain Nesting) {
	for _, c := range comps {
		switch c := c.(type) {
		case Vertex:
			w.nesting[c.Node] = chain
		case Cycle:
			w.nesting[c.Head] = chain
			inner := make(Nesting, len(chain)+1)
			copy(inner, chain)
			inner[len(chain)] = c.Head
			w.assignNesting(c.Body, inner)
		default:
			panic(fmt.Sprintf("wto: unhandled component %T", c))
		}
	}
}

type builder struct {
	view  cfg.View
	dfn   map[cfg.Label]int
	num   int
	stack []cfg.Label
}

func (b *builder) push(l cfg.Label) {
	b.stack = append(b.stack, l)
}

func (b *builder) pop() cfg.Label {
	l := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return l
}

func prepend(c Component, partition []Component) []Component {
	return append([]Component{c}, partition...)
}

func (b *builder) visit(v cfg.Label, partition *[]Component) int {
	b.push(v)
	b.num++
	b.dfn[v] = b.num
	head := b.dfn[v]
	loop := false
	for _, succ := range b.view.Next(v) {
		var min int
		if b.dfn[succ] == 0 {
			min = b.visit(succ, partition)
		} else {
			min = b.dfn[succ]
		}
		if min <= head {
			head = min
			loop = true
		}
	}
	if head == b.dfn[v] {
		b.dfn[v] = math.MaxInt
		element := b.pop()
		if loop {
			for element != v {
				b.dfn[element] = 0
				element = b.pop()
			}
			*partition = prepend(b.component(v), *partition)
		} else {
			*partition = prepend(Vertex{Node: v}, *partition)
		}
	}
	return head
}

func (b *builder) component(v cfg.Label) Component {
	var body []Component
	for _, succ := range b.view.Next(v) {
		if b.dfn[succ] == 0 {
			b.visit(succ, &body)
		}
	}
	return Cycle{Head: v, Body: body}
}
