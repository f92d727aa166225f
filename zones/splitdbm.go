// Package zones implements a relational numerical abstract domain for
// difference constraints, known as split difference-bound matrices.
//
// We implement the representation described in the paper "Exploiting Sparsity
// in Difference-Bound Matrices" by Gange et al. A state is a weighted directed
// graph over variable vertices: an edge x→y with weight k encodes the
// constraint value(y) − value(x) ≤ k. A distinguished vertex 0 stands for the
// constant zero, so unary bounds are edges touching it, and relations implied
// only by unary bounds stay implicit until an operation needs them. Each
// non-bottom state carries a per-vertex potential whose existence witnesses
// satisfiability, in the manner of Johnson's reweighting.
package zones

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"

	"github.com/bpfverify/verifier/stats"
)

const debugging = false

// A SplitDBM is a conjunction of difference and unary bound constraints, or
// the infeasible state bottom. The zero value is not meaningful; use Top and
// Bottom.
//
// Lattice and transfer operations keep two invariants on non-bottom states:
// whenever the unstable set is empty the graph is transitively tight
// (closed), and the stored potential has no negative reduced edge weight.
type SplitDBM struct {
	bottom    bool
	vertMap   map[Variable]VertID
	revMap    map[VertID]Variable
	g         *Graph[Wt]
	potential []Wt
	unstable  intsets.Sparse
}

// Top returns the unconstrained state.
func Top() *SplitDBM {
	g := NewGraph[Wt]()
	g.NewVertex() // the zero vertex
	return &SplitDBM{
		vertMap:   map[Variable]VertID{},
		revMap:    map[VertID]Variable{},
		g:         g,
		potential: []Wt{0},
	}
}

// Bottom returns the infeasible state.
func Bottom() *SplitDBM {
	return &SplitDBM{bottom: true}
}

func (d *SplitDBM) IsBottom() bool { return d.bottom }

func (d *SplitDBM) IsTop() bool {
	return !d.bottom && d.g.IsEmpty()
}

func (d *SplitDBM) setToBottom() { *d = *Bottom() }

// Copy returns a deep copy of d.
func (d *SplitDBM) Copy() *SplitDBM {
	if d.bottom {
		return Bottom()
	}
	out := &SplitDBM{
		vertMap:   make(map[Variable]VertID, len(d.vertMap)),
		revMap:    make(map[VertID]Variable, len(d.revMap)),
		g:         d.g.Clone(),
		potential: append([]Wt(nil), d.potential...),
	}
	for v, id := range d.vertMap {
		out.vertMap[v] = id
	}
	for id, v := range d.revMap {
		out.revMap[id] = v
	}
	out.unstable.Copy(&d.unstable)
	return out
}

func (d *SplitDBM) ensureSlot(v VertID) {
	for len(d.potential) <= v {
		d.potential = append(d.potential, 0)
	}
}

// getVert returns the vertex bound to x, allocating one if needed. The
// result is never the zero vertex.
func (d *SplitDBM) getVert(x Variable) VertID {
	if v, ok := d.vertMap[x]; ok {
		return v
	}
	v := d.g.NewVertex()
	if v == 0 {
		panic("zones: variable bound to the zero vertex")
	}
	d.ensureSlot(v)
	d.potential[v] = 0
	d.revMap[v] = x
	d.vertMap[x] = v
	return v
}

// potValue is the feasible concrete value the stored potential assigns to x,
// allocating a vertex for it if needed so that later edge insertions agree
// with the value used here.
func (d *SplitDBM) potValue(x Variable) Wt {
	v := d.getVert(x)
	return d.potential[v] - d.potential[0]
}

// Normalize re-establishes closure after widening deferred it. Outside the
// post-widening window this is a no-op.
func (d *SplitDBM) Normalize() {
	stats.Count("zones.normalize")
	if d.bottom || d.unstable.IsEmpty() {
		return
	}
	closeAfterWiden(d.g, &d.unstable)
	d.unstable.Clear()
}

// Forget projects x out of the state: its vertex and every incident edge are
// removed. Absent variables are ignored.
func (d *SplitDBM) Forget(x Variable) {
	if d.bottom {
		return
	}
	d.Normalize()
	if v, ok := d.vertMap[x]; ok {
		d.g.Forget(v)
		delete(d.revMap, v)
		delete(d.vertMap, x)
	}
}

// ForgetAll projects out every variable in vs.
func (d *SplitDBM) ForgetAll(vs ...Variable) {
	if d.bottom || d.IsTop() {
		return
	}
	for _, v := range vs {
		d.Forget(v)
	}
}

// intervalOf derives x's unary bounds from the graph without materializing
// them: bounds the split keeps implicit are recovered by relaying once
// through the closed relational part, so forgetting a supporting variable
// genuinely drops them.
func (d *SplitDBM) intervalOf(x Variable) Interval {
	if d.bottom {
		return IntervalBottom()
	}
	v, ok := d.vertMap[x]
	if !ok {
		return IntervalTop()
	}
	lb, ub := MinusInf(), PlusInf()
	if w, ok := d.g.Lookup(v, 0); ok {
		lb = FiniteInt64(-w)
	}
	if w, ok := d.g.Lookup(0, v); ok {
		ub = FiniteInt64(w)
	}
	// One relay step is as good as any path while g∖{0} stays closed.
	for _, e := range d.g.PredEdges(v) {
		if e.Vert == 0 {
			continue
		}
		if w, ok := d.g.Lookup(0, e.Vert); ok {
			ub = minBound(ub, FiniteInt64(w+e.Wt))
		}
	}
	for _, e := range d.g.SuccEdges(v) {
		if e.Vert == 0 {
			continue
		}
		if w, ok := d.g.Lookup(e.Vert, 0); ok {
			lb = maxBound(lb, FiniteInt64(-(w + e.Wt)))
		}
	}
	return NewInterval(lb, ub)
}

// Interval projects x onto its unary bounds.
func (d *SplitDBM) Interval(x Variable) Interval {
	d.Normalize()
	return d.intervalOf(x)
}

func (d *SplitDBM) evalInterval(e Expression) Interval {
	res := ConstInterval(e.Constant())
	for _, t := range e.Terms() {
		res = res.Add(ConstInterval(t.Coeff).Mul(d.intervalOf(t.Var)))
	}
	return res
}

// evalExpression computes a feasible concrete value of e from the stored
// potential.
func (d *SplitDBM) evalExpression(e Expression) (Wt, bool) {
	v, ok := convertToWt(e.Constant())
	if !ok {
		return 0, false
	}
	for _, t := range e.Terms() {
		c, ok := convertToWt(t.Coeff)
		if !ok {
			return 0, false
		}
		m, ok := mulWt(c, d.potValue(t.Var))
		if !ok {
			return 0, false
		}
		v, ok = addWt(v, m)
		if !ok {
			return 0, false
		}
	}
	return v, true
}

// Set binds x to exactly the given interval, dropping anything previously
// known about it. An upper bound that does not fit the weight type leaves x
// unconstrained; a lower bound that does not fit is dropped on its own.
func (d *SplitDBM) Set(x Variable, intv Interval) {
	stats.Count("zones.set")
	if d.bottom {
		return
	}
	if intv.IsBottom() {
		d.setToBottom()
		return
	}
	d.Forget(x)
	if intv.IsTop() {
		return
	}
	v := d.getVert(x)
	if intv.Ub().IsFinite() {
		ub, ok := convertToWt(intv.Ub().Number())
		if !ok {
			return
		}
		d.potential[v] = d.potential[0] + ub
		d.g.SetEdge(0, ub, v)
	}
	if intv.Lb().IsFinite() {
		lb, ok := convertToWt(intv.Lb().Number())
		if !ok {
			return
		}
		d.potential[v] = d.potential[0] + lb
		d.g.SetEdge(v, -lb, 0)
	}
}

type varWt struct {
	v Variable
	w Wt
}

// diffCst is the difference constraint x − y ≤ k.
type diffCst struct {
	x, y Variable
	k    Wt
}

// diffcstsOfAssign derives, for the assignment x := e, pairs (y, k) that
// bound x − y from above (upper, x − y ≤ k) or from below (lower,
// x − y ≥ k). Any overflow while accumulating the residual, and an unbounded
// variable with a non-unit coefficient, abandons the derivation.
func (d *SplitDBM) diffcstsOfAssign(e Expression, upper bool) []varWt {
	residual, ok := convertToWt(e.Constant())
	if !ok {
		return nil
	}
	var unbounded *Variable
	var terms []varWt
	for _, t := range e.Terms() {
		coeff, ok := convertToWt(t.Coeff)
		if !ok {
			return nil
		}
		y := t.Var
		if coeff < 0 {
			// Negative coefficients consume the opposite bound.
			var b Bound
			if upper {
				b = d.intervalOf(y).Lb()
			} else {
				b = d.intervalOf(y).Ub()
			}
			if !b.IsFinite() {
				return nil
			}
			yv, ok := convertToWt(b.Number())
			if !ok {
				return nil
			}
			p, ok := mulWt(yv, coeff)
			if !ok {
				return nil
			}
			if residual, ok = addWt(residual, p); !ok {
				return nil
			}
		} else {
			var b Bound
			if upper {
				b = d.intervalOf(y).Ub()
			} else {
				b = d.intervalOf(y).Lb()
			}
			if !b.IsFinite() {
				if unbounded != nil || coeff != 1 {
					return nil
				}
				y := y
				unbounded = &y
			} else {
				ymax, ok := convertToWt(b.Number())
				if !ok {
					return nil
				}
				p, ok := mulWt(ymax, coeff)
				if !ok {
					return nil
				}
				if residual, ok = addWt(residual, p); !ok {
					return nil
				}
				terms = append(terms, varWt{y, ymax})
			}
		}
	}
	if unbounded != nil {
		// Exactly one unbounded variable with unit coefficient.
		return []varWt{{*unbounded, residual}}
	}
	var out []varWt
	for _, t := range terms {
		if k, ok := addWt(residual, -t.w); ok {
			out = append(out, varWt{t.v, k})
		}
	}
	return out
}

// diffcstsOfLinLeq decomposes e ≤ 0 into difference constraints and unary
// bounds. With a single unbounded variable, a unary entry is emitted only
// when the constraint itself is unary; a bound owed to another variable's
// current bounds is left to the difference constraints. It reports ok=false
// when no sound decomposition exists, in which case the constraint is
// dropped altogether.
func (d *SplitDBM) diffcstsOfLinLeq(e Expression) (csts []diffCst, lbs, ubs []varWt, ok bool) {
	expUb0, ok := convertToWt(e.Constant())
	if !ok {
		return nil, nil, nil, false
	}
	expUb := -expUb0
	// Refuse constants next to the bottom of the range: later negations of
	// derived weights would silently wrap.
	if _, fits := convertToWt(new(big.Int).Sub(e.Constant(), big.NewInt(1))); !fits {
		return nil, nil, nil, false
	}

	type boundedTerm struct {
		coeff Wt
		v     Variable
		bound Wt
	}
	var unboundedLb, unboundedUb *Variable
	var unboundedLbCoeff, unboundedUbCoeff Wt
	var posTerms, negTerms []boundedTerm
	for _, t := range e.Terms() {
		coeff, cok := convertToWt(t.Coeff)
		if !cok {
			return nil, nil, nil, false
		}
		y := t.Var
		if coeff > 0 {
			yLb := d.intervalOf(y).Lb()
			if !yLb.IsFinite() {
				if unboundedLb != nil {
					return nil, nil, nil, false
				}
				y := y
				unboundedLb, unboundedLbCoeff = &y, coeff
			} else {
				ymin, cok := convertToWt(yLb.Number())
				if !cok {
					return nil, nil, nil, false
				}
				p, cok := mulWt(ymin, coeff)
				if !cok {
					return nil, nil, nil, false
				}
				if expUb, cok = addWt(expUb, -p); !cok {
					return nil, nil, nil, false
				}
				posTerms = append(posTerms, boundedTerm{coeff, y, ymin})
			}
		} else {
			yUb := d.intervalOf(y).Ub()
			if !yUb.IsFinite() {
				if unboundedUb != nil {
					return nil, nil, nil, false
				}
				y := y
				unboundedUb, unboundedUbCoeff = &y, -coeff
			} else {
				ymax, cok := convertToWt(yUb.Number())
				if !cok {
					return nil, nil, nil, false
				}
				p, cok := mulWt(ymax, coeff)
				if !cok {
					return nil, nil, nil, false
				}
				if expUb, cok = addWt(expUb, -p); !cok {
					return nil, nil, nil, false
				}
				negTerms = append(negTerms, boundedTerm{-coeff, y, ymax})
			}
		}
	}

	switch {
	case unboundedLb != nil && unboundedUb != nil:
		if unboundedLbCoeff != 1 || unboundedUbCoeff != 1 {
			return nil, nil, nil, false
		}
		csts = append(csts, diffCst{*unboundedLb, *unboundedUb, expUb})
	case unboundedLb != nil:
		x := *unboundedLb
		if unboundedLbCoeff == 1 {
			for _, nt := range negTerms {
				csts = append(csts, diffCst{x, nt.v, expUb - nt.bound})
			}
		}
		// A direct bound on x is genuinely unary only when no other term
		// contributed to it. A bound routed through another variable stays
		// implicit so that forgetting the supporting variable drops it.
		if len(posTerms) == 0 && len(negTerms) == 0 {
			ubs = append(ubs, varWt{x, expUb / unboundedLbCoeff})
		}
	case unboundedUb != nil:
		y := *unboundedUb
		if unboundedUbCoeff == 1 {
			for _, pt := range posTerms {
				csts = append(csts, diffCst{pt.v, y, expUb + pt.bound})
			}
		}
		if len(posTerms) == 0 && len(negTerms) == 0 {
			lbs = append(lbs, varWt{y, -expUb / unboundedUbCoeff})
		}
	default:
		for _, nt := range negTerms {
			for _, pt := range posTerms {
				csts = append(csts, diffCst{pt.v, nt.v, expUb - nt.bound + pt.bound})
			}
		}
		for _, nt := range negTerms {
			lbs = append(lbs, varWt{nt.v, -expUb/nt.coeff + nt.bound})
		}
		for _, pt := range posTerms {
			ubs = append(ubs, varWt{pt.v, expUb/pt.coeff + pt.bound})
		}
	}
	return csts, lbs, ubs, true
}

// closeOverEdge restores closure around the freshly tightened edge ii→jj,
// propagating through predecessors of ii and successors of jj in g∖{0}.
// Bounds relayed through the zero vertex are recovered separately.
func (d *SplitDBM) closeOverEdge(ii, jj VertID) {
	if ii == 0 || jj == 0 {
		panic("zones: closeOverEdge touches the zero vertex")
	}
	c, ok := d.g.Lookup(ii, jj)
	if !ok {
		panic(fmt.Sprintf("zones: closeOverEdge on missing edge %d->%d", ii, jj))
	}
	var srcDec, destDec []GraphEdge[Wt]
	for _, e := range d.g.PredEdges(ii) {
		se := e.Vert
		if se == 0 || se == jj {
			continue
		}
		wtSij := e.Wt + c
		if w, ok := d.g.Lookup(se, jj); ok {
			if w <= wtSij {
				continue
			}
			d.g.SetEdge(se, wtSij, jj)
		} else {
			d.g.AddEdge(se, wtSij, jj)
		}
		srcDec = append(srcDec, GraphEdge[Wt]{Vert: se, Wt: e.Wt})
	}
	for _, e := range d.g.SuccEdges(jj) {
		de := e.Vert
		if de == 0 || de == ii {
			continue
		}
		wtIjd := c + e.Wt
		if w, ok := d.g.Lookup(ii, de); ok {
			if w <= wtIjd {
				continue
			}
			d.g.SetEdge(ii, wtIjd, de)
		} else {
			d.g.AddEdge(ii, wtIjd, de)
		}
		destDec = append(destDec, GraphEdge[Wt]{Vert: de, Wt: e.Wt})
	}
	for _, s := range srcDec {
		for _, t := range destDec {
			d.g.UpdateEdge(s.Vert, s.Wt+c+t.Wt, t.Vert)
		}
	}
}

// addLinearLeq conjoins e ≤ 0. It reports false when the constraint is
// infeasible against the current state.
func (d *SplitDBM) addLinearLeq(e Expression) bool {
	csts, lbs, ubs, ok := d.diffcstsOfLinLeq(e)
	if !ok {
		log.Warnf("zones: constraint %s<=0 out of range, dropped", e)
		return true
	}
	for _, b := range lbs {
		if b.w == math.MinInt64 {
			// The negation below would wrap.
			continue
		}
		vert := d.getVert(b.v)
		if w, ok := d.g.Lookup(vert, 0); ok && w <= -b.w {
			continue
		}
		d.g.SetEdge(vert, -b.w, 0)
		if !repairPotential(d.g, d.potential, vert, 0) {
			return false
		}
	}
	for _, b := range ubs {
		vert := d.getVert(b.v)
		if w, ok := d.g.Lookup(0, vert); ok && w <= b.w {
			continue
		}
		d.g.SetEdge(0, b.w, vert)
		if !repairPotential(d.g, d.potential, 0, vert) {
			return false
		}
	}
	for _, c := range csts {
		src := d.getVert(c.y)
		dst := d.getVert(c.x)
		d.g.UpdateEdge(src, c.k, dst)
		if !repairPotential(d.g, d.potential, src, dst) {
			return false
		}
		d.closeOverEdge(src, dst)
	}
	// No re-closure from the zero vertex here: unary bounds implied by the
	// new edges stay implicit and are relayed through the closed relational
	// part when projected.
	return true
}

// addUnivarDisequation conjoins x ≠ n by excising n from x's interval when
// it sits on one of the ends, then strengthens the adjacent edges.
func (d *SplitDBM) addUnivarDisequation(x Variable, n *big.Int) {
	i := d.intervalOf(x)
	ni := i.Trim(n)
	if ni.IsBottom() {
		d.setToBottom()
		return
	}
	if ni.IsTop() || !ni.LessOrEqual(i) {
		return
	}
	v := d.getVert(x)
	if ni.Lb().IsFinite() {
		lbVal, ok := convertToWt(new(big.Int).Neg(ni.Lb().Number()))
		if !ok {
			return
		}
		if w, ok := d.g.Lookup(v, 0); ok && lbVal < w {
			d.g.SetEdge(v, lbVal, 0)
			if !repairPotential(d.g, d.potential, v, 0) {
				d.setToBottom()
				return
			}
			for _, e := range d.g.PredEdges(v) {
				if e.Vert == 0 {
					continue
				}
				d.g.UpdateEdge(e.Vert, e.Wt+lbVal, 0)
				if !repairPotential(d.g, d.potential, e.Vert, 0) {
					d.setToBottom()
					return
				}
			}
		}
	}
	if ni.Ub().IsFinite() {
		ubVal, ok := convertToWt(ni.Ub().Number())
		if !ok {
			return
		}
		if w, ok := d.g.Lookup(0, v); ok && ubVal < w {
			d.g.SetEdge(0, ubVal, v)
			if !repairPotential(d.g, d.potential, 0, v) {
				d.setToBottom()
				return
			}
			for _, e := range d.g.SuccEdges(v) {
				if e.Vert == 0 {
					continue
				}
				d.g.UpdateEdge(0, e.Wt+ubVal, e.Vert)
				if !repairPotential(d.g, d.potential, 0, e.Vert) {
					d.setToBottom()
					return
				}
			}
		}
	}
}

// AddConstraint conjoins a linear constraint onto the state. Tautologies are
// no-ops, contradictions and infeasible conjunctions turn the state into
// bottom, and shapes the domain cannot express are dropped with a warning.
func (d *SplitDBM) AddConstraint(c Constraint) {
	stats.Count("zones.add_constraint")
	if c.Kind == Inequality && c.Unsigned {
		log.Warnf("zones: unsigned inequality %s skipped", c)
		return
	}
	if d.bottom {
		return
	}
	d.Normalize()
	if c.IsTautology() {
		return
	}
	if c.IsContradiction() {
		d.setToBottom()
		return
	}
	switch c.Kind {
	case Inequality:
		if !d.addLinearLeq(c.E) {
			d.setToBottom()
		}
	case StrictInequality:
		// e < 0 on integers is e + 1 ≤ 0.
		if !d.addLinearLeq(c.E.AddConst(big.NewInt(1))) {
			d.setToBottom()
		}
	case Equality:
		if !d.addLinearLeq(c.E) || (!d.bottom && !d.addLinearLeq(c.E.Neg())) {
			d.setToBottom()
		}
	case Disequation:
		terms := c.E.Terms()
		if len(terms) != 1 {
			return
		}
		t := terms[0]
		one := big.NewInt(1)
		switch {
		case t.Coeff.Cmp(one) == 0:
			// x + k ≠ 0, so x ≠ −k.
			d.addUnivarDisequation(t.Var, new(big.Int).Neg(c.E.Constant()))
		case t.Coeff.Cmp(new(big.Int).Neg(one)) == 0:
			d.addUnivarDisequation(t.Var, c.E.Constant())
		}
	default:
		log.Warnf("zones: unhandled constraint %s", c)
	}
}

// Assign installs x := e. When e is relational, a fresh vertex is allocated
// so derived edges settle before the old binding of x is dropped.
func (d *SplitDBM) Assign(x Variable, e Expression) {
	stats.Count("zones.assign")
	if d.bottom {
		return
	}
	d.Normalize()

	xInt := d.evalInterval(e)
	var lbW, ubW *Wt
	if xInt.IsBottom() {
		d.setToBottom()
		return
	}
	if xInt.Lb().IsFinite() {
		w, ok := convertToWt(new(big.Int).Neg(xInt.Lb().Number()))
		if !ok {
			d.Forget(x)
			return
		}
		lbW = &w
	}
	if xInt.Ub().IsFinite() {
		w, ok := convertToWt(xInt.Ub().Number())
		if !ok {
			d.Forget(x)
			return
		}
		ubW = &w
	}

	if n := xInt.Singleton(); n != nil {
		d.Set(x, ConstInterval(n))
		return
	}

	diffsLb := d.diffcstsOfAssign(e, false)
	diffsUb := d.diffcstsOfAssign(e, true)
	if len(diffsLb) == 0 && len(diffsUb) == 0 {
		d.Set(x, xInt)
		return
	}

	eVal, ok := d.evalExpression(e)
	if !ok {
		d.Forget(x)
		return
	}
	vert := d.g.NewVertex()
	d.ensureSlot(vert)
	d.potential[vert] = d.potential[0] + eVal
	d.revMap[vert] = x

	for _, p := range diffsLb {
		d.g.UpdateEdge(vert, -p.w, d.getVert(p.v))
	}
	for _, p := range diffsUb {
		d.g.UpdateEdge(d.getVert(p.v), p.w, vert)
	}
	closeAfterAssign(d.g, vert, 0)
	if lbW != nil {
		d.g.UpdateEdge(vert, *lbW, 0)
	}
	if ubW != nil {
		d.g.UpdateEdge(0, *ubW, vert)
	}
	d.Forget(x)
	d.vertMap[x] = vert
	d.revMap[vert] = x
}

func sortedVars(m map[Variable]VertID) []Variable {
	out := make([]Variable, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LessOrEqual reports whether d entails o, i.e. d ⊑ o. The check is
// syntactic over o's edges and may under-approximate entailment.
func (d *SplitDBM) LessOrEqual(o *SplitDBM) bool {
	stats.Count("zones.leq")
	switch {
	case d.bottom:
		return true
	case o.bottom:
		return false
	case o.IsTop():
		return true
	case d.IsTop():
		return false
	}
	d.Normalize()

	if len(d.vertMap) < len(o.vertMap) {
		return false
	}

	renaming := make([]VertID, o.g.Size())
	for i := range renaming {
		renaming[i] = -1
	}
	renaming[0] = 0
	for v, n := range o.vertMap {
		if len(o.g.Succs(n)) == 0 && len(o.g.Preds(n)) == 0 {
			continue
		}
		id, ok := d.vertMap[v]
		if !ok {
			// d can't entail o while missing one of its vertices.
			return false
		}
		renaming[n] = id
	}

	for _, ox := range o.g.Verts() {
		edges := o.g.SuccEdges(ox)
		if len(edges) == 0 {
			continue
		}
		x := renaming[ox]
		for _, e := range edges {
			y := renaming[e.Vert]
			ow := e.Wt
			if w, ok := d.g.Lookup(x, y); ok && w <= ow {
				continue
			}
			wx, okx := d.g.Lookup(x, 0)
			wy, oky := d.g.Lookup(0, y)
			if !okx || !oky || wx+wy > ow {
				return false
			}
		}
	}
	return true
}

// Join computes the least upper bound of d and o. Relations that one operand
// keeps implicit in unary bounds are reintroduced before edges are joined,
// so joint information survives the per-operand closure.
func (d *SplitDBM) Join(o *SplitDBM) *SplitDBM {
	stats.Count("zones.join")
	switch {
	case d.bottom || o.IsTop():
		return o.Copy()
	case o.bottom || d.IsTop():
		return d.Copy()
	}
	d.Normalize()
	oc := o.Copy()
	oc.Normalize()

	permX := []VertID{0}
	permY := []VertID{0}
	outVmap := map[Variable]VertID{}
	outRev := map[VertID]Variable{}
	potRx := []Wt{0}
	for _, v := range sortedVars(d.vertMap) {
		m, ok := oc.vertMap[v]
		if !ok {
			continue
		}
		n := d.vertMap[v]
		idx := len(permX)
		outVmap[v] = idx
		outRev[idx] = v
		potRx = append(potRx, d.potential[n]-d.potential[0])
		permX = append(permX, n)
		permY = append(permY, m)
	}
	sz := len(permX)
	gx := permuteGraph(permX, d.g, sz)
	gy := permuteGraph(permY, oc.g, sz)

	// Relations of y that x keeps only as unary bounds.
	gIxRy := makeGraph(sz)
	for s := 1; s < sz; s++ {
		for _, e := range gy.SuccEdges(s) {
			if e.Vert == 0 {
				continue
			}
			ws, ok1 := gx.Lookup(s, 0)
			wd, ok2 := gx.Lookup(0, e.Vert)
			if ok1 && ok2 {
				gIxRy.AddEdge(s, ws+wd, e.Vert)
			}
		}
	}
	gRx := meetGraphs(gx, gIxRy)
	closeAfterMeet(gRx)

	gRxIy := makeGraph(sz)
	for s := 1; s < sz; s++ {
		for _, e := range gx.SuccEdges(s) {
			if e.Vert == 0 {
				continue
			}
			ws, ok1 := gy.Lookup(s, 0)
			wd, ok2 := gy.Lookup(0, e.Vert)
			if ok1 && ok2 {
				gRxIy.AddEdge(s, ws+wd, e.Vert)
			}
		}
	}
	gRy := meetGraphs(gy, gRxIy)
	closeAfterMeet(gRy)

	// Both sides closed, so the pointwise join is closed as well.
	joinG := joinGraphs(gRx, gRy)

	// Reapply relations whose unary bounds disagree between the operands.
	var lbUp, lbDown, ubUp, ubDown []VertID
	for v := 1; v < sz; v++ {
		if wx, ok := gx.Lookup(0, v); ok {
			if wy, ok := gy.Lookup(0, v); ok {
				if wx < wy {
					ubUp = append(ubUp, v)
				}
				if wy < wx {
					ubDown = append(ubDown, v)
				}
			}
		}
		if wx, ok := gx.Lookup(v, 0); ok {
			if wy, ok := gy.Lookup(v, 0); ok {
				if wx < wy {
					lbDown = append(lbDown, v)
				}
				if wy < wx {
					lbUp = append(lbUp, v)
				}
			}
		}
	}
	reapply := func(srcs, dsts []VertID) {
		for _, s := range srcs {
			dxS, _ := gx.Lookup(s, 0)
			dyS, _ := gy.Lookup(s, 0)
			for _, t := range dsts {
				if s == t {
					continue
				}
				wx, _ := gx.Lookup(0, t)
				wy, _ := gy.Lookup(0, t)
				w := dxS + wx
				if dyS+wy > w {
					w = dyS + wy
				}
				joinG.UpdateEdge(s, w, t)
			}
		}
	}
	reapply(lbUp, ubUp)
	reapply(lbDown, ubDown)

	// Garbage-collect vertices the join left unconstrained.
	for _, v := range joinG.Verts() {
		if v == 0 {
			continue
		}
		if len(joinG.Succs(v)) == 0 && len(joinG.Preds(v)) == 0 {
			joinG.Forget(v)
			if x, ok := outRev[v]; ok {
				delete(outVmap, x)
				delete(outRev, v)
			}
		}
	}

	res := &SplitDBM{
		vertMap:   outVmap,
		revMap:    outRev,
		g:         joinG,
		potential: potRx,
	}
	if debugging && !isClosed(joinG) {
		panic("zones: join result is not closed")
	}
	return res
}

// Meet computes the greatest lower bound of d and o.
func (d *SplitDBM) Meet(o *SplitDBM) *SplitDBM {
	stats.Count("zones.meet")
	switch {
	case d.bottom || o.bottom:
		return Bottom()
	case d.IsTop():
		return o.Copy()
	case o.IsTop():
		return d.Copy()
	}
	d.Normalize()
	oc := o.Copy()
	oc.Normalize()

	meetVerts := map[Variable]VertID{}
	meetRev := map[VertID]Variable{}
	permX := []VertID{0}
	permY := []VertID{0}
	meetPi := []Wt{0}
	for _, v := range sortedVars(d.vertMap) {
		n := d.vertMap[v]
		vv := len(permX)
		meetVerts[v] = vv
		meetRev[vv] = v
		permX = append(permX, n)
		permY = append(permY, -1)
		meetPi = append(meetPi, d.potential[n]-d.potential[0])
	}
	for _, v := range sortedVars(oc.vertMap) {
		m := oc.vertMap[v]
		if vv, ok := meetVerts[v]; ok {
			permY[vv] = m
			continue
		}
		vv := len(permY)
		meetVerts[v] = vv
		meetRev[vv] = v
		permY = append(permY, m)
		permX = append(permX, -1)
		meetPi = append(meetPi, oc.potential[m]-oc.potential[0])
	}
	sz := len(permX)
	gx := permuteGraph(permX, d.g, sz)
	gy := permuteGraph(permY, oc.g, sz)

	meetG := meetGraphs(gx, gy)
	if !selectPotentials(meetG, meetPi) {
		// No feasible potential: the conjunction is unsatisfiable.
		return Bottom()
	}
	closeAfterMeet(meetG)

	res := &SplitDBM{
		vertMap:   meetVerts,
		revMap:    meetRev,
		g:         meetG,
		potential: meetPi,
	}
	return res
}

// Widen extrapolates d by its newer iterate o: only constraints o confirms
// survive. Re-closure of the result is deferred through the unstable set
// until the next Normalize.
func (d *SplitDBM) Widen(o *SplitDBM) *SplitDBM {
	stats.Count("zones.widen")
	switch {
	case d.bottom:
		return o.Copy()
	case o.bottom:
		return d.Copy()
	}
	// Deliberately leave d unnormalized; widening chains must not resurrect
	// dropped edges through re-closure.
	oc := o.Copy()
	oc.Normalize()

	permX := []VertID{0}
	permY := []VertID{0}
	outVmap := map[Variable]VertID{}
	outRev := map[VertID]Variable{}
	widenPot := []Wt{0}
	for _, v := range sortedVars(d.vertMap) {
		m, ok := oc.vertMap[v]
		if !ok {
			continue
		}
		n := d.vertMap[v]
		idx := len(permX)
		outVmap[v] = idx
		outRev[idx] = v
		widenPot = append(widenPot, d.potential[n]-d.potential[0])
		permX = append(permX, n)
		permY = append(permY, m)
	}
	sz := len(permX)
	gx := permuteGraph(permX, d.g, sz)
	gy := permuteGraph(permY, oc.g, sz)

	widenG, destabilized := widenGraphs(gx, gy)

	res := &SplitDBM{
		vertMap:   outVmap,
		revMap:    outRev,
		g:         widenG,
		potential: widenPot,
	}
	for idx := 1; idx < sz; idx++ {
		if d.unstable.Has(permX[idx]) {
			res.unstable.Insert(idx)
		}
	}
	if d.unstable.Has(0) {
		res.unstable.Insert(0)
	}
	for _, v := range destabilized {
		res.unstable.Insert(v)
	}
	return res
}

// Narrow refines d by o during the decreasing sequence. Returning a
// normalized copy of d is sound; a tighter narrowing is a permitted
// extension.
func (d *SplitDBM) Narrow(o *SplitDBM) *SplitDBM {
	stats.Count("zones.narrow")
	switch {
	case d.bottom || o.bottom:
		return Bottom()
	case d.IsTop():
		return o.Copy()
	}
	d.Normalize()
	return d.Copy()
}

// Rename rewrites every variable from[i] to to[i]. The vectors must be
// parallel and collision-free against the current state; that contract is
// the caller's to enforce.
func (d *SplitDBM) Rename(from, to []Variable) {
	stats.Count("zones.rename")
	if len(from) != len(to) {
		panic("zones: Rename with unaligned variable vectors")
	}
	if d.bottom || d.IsTop() {
		return
	}
	newVertMap := make(map[Variable]VertID, len(d.vertMap))
	for v, id := range d.vertMap {
		renamed := v
		for i, f := range from {
			if f == v {
				renamed = to[i]
				break
			}
		}
		newVertMap[renamed] = id
		d.revMap[id] = renamed
	}
	d.vertMap = newVertMap
}

// ArithOp enumerates the arithmetic operations Apply understands. Addition
// and subtraction, and in ApplyConst also multiplication by the constant,
// stay relational; the rest are computed on intervals.
type ArithOp uint8

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithSDiv
	ArithUDiv
	ArithSRem
	ArithURem
)

// BitwiseOp enumerates the bitwise operations, all of which are computed on
// the interval view.
type BitwiseOp uint8

const (
	BitAnd BitwiseOp = iota
	BitOr
	BitXor
	BitShl
	BitLShr
	BitAShr
)

// Apply installs x := y op z.
func (d *SplitDBM) Apply(op ArithOp, x, y, z Variable) {
	stats.Count("zones.apply")
	if d.bottom {
		return
	}
	d.Normalize()
	switch op {
	case ArithAdd:
		d.Assign(x, VarExpr(y).AddTerm(z, big.NewInt(1)))
	case ArithSub:
		d.Assign(x, VarExpr(y).AddTerm(z, big.NewInt(-1)))
	case ArithMul:
		d.Set(x, d.intervalOf(y).Mul(d.intervalOf(z)))
	case ArithSDiv:
		d.Set(x, d.intervalOf(y).SDiv(d.intervalOf(z)))
	case ArithUDiv:
		d.Set(x, d.intervalOf(y).UDiv(d.intervalOf(z)))
	case ArithSRem:
		d.Set(x, d.intervalOf(y).SRem(d.intervalOf(z)))
	case ArithURem:
		d.Set(x, d.intervalOf(y).URem(d.intervalOf(z)))
	default:
		panic(fmt.Sprintf("zones: unhandled arithmetic op %d", op))
	}
}

// ApplyConst installs x := y op k.
func (d *SplitDBM) ApplyConst(op ArithOp, x, y Variable, k *big.Int) {
	stats.Count("zones.apply")
	if d.bottom {
		return
	}
	d.Normalize()
	switch op {
	case ArithAdd:
		d.Assign(x, VarExpr(y).AddConst(k))
	case ArithSub:
		d.Assign(x, VarExpr(y).AddConst(new(big.Int).Neg(k)))
	case ArithMul:
		d.Assign(x, NewExpression().AddTerm(y, k))
	case ArithSDiv:
		d.Set(x, d.intervalOf(y).SDiv(ConstInterval(k)))
	case ArithUDiv:
		d.Set(x, d.intervalOf(y).UDiv(ConstInterval(k)))
	case ArithSRem:
		d.Set(x, d.intervalOf(y).SRem(ConstInterval(k)))
	case ArithURem:
		d.Set(x, d.intervalOf(y).URem(ConstInterval(k)))
	default:
		panic(fmt.Sprintf("zones: unhandled arithmetic op %d", op))
	}
}

// ApplyBitwise installs x := y op z on the interval view.
func (d *SplitDBM) ApplyBitwise(op BitwiseOp, x, y, z Variable) {
	stats.Count("zones.apply")
	if d.bottom {
		return
	}
	d.Normalize()
	d.Forget(x)
	yi := d.intervalOf(y)
	zi := d.intervalOf(z)
	d.Set(x, applyBitwise(op, yi, zi))
}

// ApplyBitwiseConst installs x := y op k on the interval view.
func (d *SplitDBM) ApplyBitwiseConst(op BitwiseOp, x, y Variable, k *big.Int) {
	stats.Count("zones.apply")
	if d.bottom {
		return
	}
	d.Normalize()
	yi := d.intervalOf(y)
	d.Set(x, applyBitwise(op, yi, ConstInterval(k)))
}

func applyBitwise(op BitwiseOp, yi, zi Interval) Interval {
	switch op {
	case BitAnd:
		return yi.And(zi)
	case BitOr:
		return yi.Or(zi)
	case BitXor:
		return yi.Xor(zi)
	case BitShl:
		return yi.Shl(zi)
	case BitLShr:
		return yi.LShr(zi)
	case BitAShr:
		return yi.AShr(zi)
	default:
		panic(fmt.Sprintf("zones: unhandled bitwise op %d", op))
	}
}

func (d *SplitDBM) String() string {
	d.Normalize()
	if d.bottom {
		return "_|_"
	}
	if d.IsTop() {
		return "{}"
	}
	var parts []string
	for _, x := range sortedVars(d.vertMap) {
		v := d.vertMap[x]
		if !d.g.Elem(0, v) && !d.g.Elem(v, 0) {
			continue
		}
		i := d.intervalOf(x)
		if n := i.Singleton(); n != nil {
			parts = append(parts, fmt.Sprintf("%s -> [%s]", x, n))
		} else {
			parts = append(parts, fmt.Sprintf("%s -> %s", x, i))
		}
	}
	for _, xs := range sortedVars(d.vertMap) {
		s := d.vertMap[xs]
		for _, e := range d.g.SuccEdges(s) {
			if e.Vert == 0 {
				continue
			}
			xd, ok := d.revMap[e.Vert]
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s-%s<=%d", xd, xs, e.Wt))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
