package zones

import (
	"math/big"
	"strings"
	"testing"
)

var (
	vx = Variable{ID: 1, Name: "x"}
	vy = Variable{ID: 2, Name: "y"}
	vz = Variable{ID: 3, Name: "z"}
)

// leq builds the constraint e ≤ k as e − k ≤ 0.
func leq(e Expression, k int64) Constraint {
	return LeqZero(e.AddConst(big.NewInt(-k)))
}

// geq builds the constraint e ≥ k as k − e ≤ 0.
func geq(e Expression, k int64) Constraint {
	return LeqZero(e.Neg().AddConst(big.NewInt(k)))
}

func checkInvariants(t *testing.T, d *SplitDBM) {
	t.Helper()
	if d.bottom {
		return
	}
	d.Normalize()
	if !isClosed(d.g) {
		t.Errorf("graph not closed: %s", d.g)
	}
	for _, i := range d.g.Verts() {
		for _, e := range d.g.SuccEdges(i) {
			if d.potential[i]+e.Wt-d.potential[e.Vert] < 0 {
				t.Errorf("negative reduced weight on edge %d->%d (%d)", i, e.Vert, e.Wt)
			}
		}
	}
}

func equalStates(a, b *SplitDBM) bool {
	return a.LessOrEqual(b) && b.LessOrEqual(a)
}

func TestBounds(t *testing.T) {
	d := Top()
	d.AddConstraint(leq(VarExpr(vx), 5))
	d.AddConstraint(geq(VarExpr(vx), 2))
	d.AddConstraint(leq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 3))
	checkInvariants(t, d)

	if got := d.Interval(vx); !got.Equal(iv(2, 5)) {
		t.Errorf("x = %s, want [2, 5]", got)
	}
	yi := d.Interval(vy)
	if !yi.Lb().IsMinusInf() {
		t.Errorf("lb(y) = %s, want -oo", yi.Lb())
	}
	if !yi.Ub().IsFinite() || yi.Ub().Number().Int64() != 8 {
		t.Errorf("ub(y) = %s, want 8", yi.Ub())
	}

	d.Forget(vx)
	checkInvariants(t, d)
	if got := d.Interval(vy); !got.Ub().IsPlusInf() {
		t.Errorf("ub(y) after forget(x) = %s, want +oo", got.Ub())
	}
	if got := d.Interval(vx); !got.IsTop() {
		t.Errorf("x after forget = %s, want top", got)
	}
	d.Forget(vx)
	if got := d.Interval(vx); !got.IsTop() {
		t.Errorf("x after double forget = %s, want top", got)
	}
}

func TestJoinRecoversDeferredBounds(t *testing.T) {
	a := Top()
	a.Set(vx, iv(0, 10))
	a.Set(vy, iv(0, 10))

	b := Top()
	b.Set(vx, iv(20, 30))
	b.Set(vy, iv(20, 30))
	b.AddConstraint(leq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 0))

	j := a.Join(b)
	checkInvariants(t, j)

	if got := j.Interval(vx); !got.Equal(iv(0, 30)) {
		t.Errorf("x = %s, want [0, 30]", got)
	}
	if got := j.Interval(vy); !got.Equal(iv(0, 30)) {
		t.Errorf("y = %s, want [0, 30]", got)
	}
	// The join must entail y − x ≤ 30: conjoining y − x ≥ 31 is infeasible.
	probe := j.Copy()
	probe.AddConstraint(geq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 31))
	if !probe.IsBottom() {
		t.Errorf("join does not entail y-x<=30: %s", j)
	}
}

func TestLatticeLaws(t *testing.T) {
	mk := func(xi, yi Interval) *SplitDBM {
		d := Top()
		d.Set(vx, xi)
		d.Set(vy, yi)
		return d
	}
	a := mk(iv(0, 1), iv(5, 9))
	b := mk(iv(0, 5), iv(0, 9))
	c := mk(iv(10, 20), iv(7, 8))

	if !a.LessOrEqual(a.Join(b)) || !b.LessOrEqual(a.Join(b)) {
		t.Error("a ⊑ a⊔b or b ⊑ a⊔b violated")
	}
	if !a.Meet(b).LessOrEqual(a) || !a.Meet(b).LessOrEqual(b) {
		t.Error("a⊓b ⊑ a or a⊓b ⊑ b violated")
	}
	if !equalStates(a.Join(b), b.Join(a)) {
		t.Error("join not commutative")
	}
	if !equalStates(a.Meet(b), b.Meet(a)) {
		t.Error("meet not commutative")
	}
	if !equalStates(a.Join(b).Join(c), a.Join(b.Join(c))) {
		t.Error("join not associative")
	}
	if !equalStates(a.Meet(b).Meet(c), a.Meet(b.Meet(c))) {
		t.Error("meet not associative")
	}

	// Monotonicity: a ⊑ b implies a⊔c ⊑ b⊔c and a⊓c ⊑ b⊓c.
	if !a.LessOrEqual(b) {
		t.Fatal("test states are not ordered")
	}
	if !a.Join(c).LessOrEqual(b.Join(c)) {
		t.Error("join not monotone")
	}
	if !a.Meet(c).LessOrEqual(b.Meet(c)) {
		t.Error("meet not monotone")
	}

	top, bot := Top(), Bottom()
	if !equalStates(a.Join(bot), a) || !equalStates(a.Meet(top), a) {
		t.Error("bottom/top are not join/meet identities")
	}
	if !a.Join(top).IsTop() || !a.Meet(bot).IsBottom() {
		t.Error("top/bottom do not absorb")
	}
	for _, d := range []*SplitDBM{a.Join(b), a.Meet(b), a.Join(c), a.Meet(c)} {
		checkInvariants(t, d)
	}
}

func TestMeetInfeasible(t *testing.T) {
	a := Top()
	a.AddConstraint(leq(VarExpr(vx), 0))
	b := Top()
	b.AddConstraint(geq(VarExpr(vx), 1))
	if got := a.Meet(b); !got.IsBottom() {
		t.Errorf("meet of x<=0 and x>=1 = %s, want bottom", got)
	}
}

func TestMeetCombinesRelations(t *testing.T) {
	a := Top()
	a.AddConstraint(leq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 1))
	b := Top()
	b.Set(vx, iv(0, 4))
	m := a.Meet(b)
	checkInvariants(t, m)
	if got := m.Interval(vy); !got.Ub().IsFinite() || got.Ub().Number().Int64() != 5 {
		t.Errorf("ub(y) in meet = %s, want 5", got.Ub())
	}
}

func TestConstraintEdgeCases(t *testing.T) {
	d := Top()
	d.AddConstraint(LeqZero(ConstExprInt64(-1))) // tautology
	if !d.IsTop() {
		t.Error("tautology changed the state")
	}
	d.AddConstraint(LeqZero(ConstExprInt64(1))) // contradiction
	if !d.IsBottom() {
		t.Error("contradiction did not produce bottom")
	}
	// Operations on bottom stay bottom.
	d.AddConstraint(leq(VarExpr(vx), 3))
	d.Assign(vx, ConstExprInt64(1))
	if !d.IsBottom() {
		t.Error("bottom is not absorbing")
	}
}

func TestStrictInequality(t *testing.T) {
	d := Top()
	d.AddConstraint(LtZero(VarExpr(vx).AddConst(big.NewInt(-5))))
	if got := d.Interval(vx); !got.Ub().IsFinite() || got.Ub().Number().Int64() != 4 {
		t.Errorf("x < 5 gave ub %s, want 4", got.Ub())
	}
}

func TestEquality(t *testing.T) {
	d := Top()
	d.AddConstraint(EqZero(VarExpr(vx).AddConst(big.NewInt(-7))))
	checkInvariants(t, d)
	if got := d.Interval(vx); !got.Equal(iv(7, 7)) {
		t.Errorf("x = %s, want [7, 7]", got)
	}
}

func TestDisequation(t *testing.T) {
	d := Top()
	d.Set(vx, iv(0, 5))
	d.AddConstraint(NeqZero(VarExpr(vx)))
	if got := d.Interval(vx); !got.Equal(iv(1, 5)) {
		t.Errorf("x after x!=0 = %s, want [1, 5]", got)
	}

	d.AddConstraint(NeqZero(VarExpr(vx).AddConst(big.NewInt(-3)))) // interior, unrepresentable
	if got := d.Interval(vx); !got.Equal(iv(1, 5)) {
		t.Errorf("x after interior disequation = %s, want [1, 5]", got)
	}

	e := Top()
	e.Set(vx, iv(4, 4))
	e.AddConstraint(NeqZero(VarExpr(vx).AddConst(big.NewInt(-4))))
	if !e.IsBottom() {
		t.Error("x=4 with x!=4 did not produce bottom")
	}
}

func TestUnsignedInequalityDropped(t *testing.T) {
	d := Top()
	d.AddConstraint(UnsignedLeqZero(VarExpr(vx).AddConst(big.NewInt(-5))))
	if !d.IsTop() {
		t.Errorf("unsigned inequality changed the state: %s", d)
	}
}

func TestAssignRelational(t *testing.T) {
	d := Top()
	d.Set(vx, iv(0, 10))
	d.Assign(vy, VarExpr(vx).AddConst(big.NewInt(1)))
	checkInvariants(t, d)

	if got := d.Interval(vy); !got.Equal(iv(1, 11)) {
		t.Errorf("y = %s, want [1, 11]", got)
	}
	// y − x = 1 must be relational: conjoining y − x ≥ 2 is infeasible.
	probe := d.Copy()
	probe.AddConstraint(geq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 2))
	if !probe.IsBottom() {
		t.Error("assignment lost the relation y-x<=1")
	}
	probe = d.Copy()
	probe.AddConstraint(leq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 0))
	if !probe.IsBottom() {
		t.Error("assignment lost the relation y-x>=1")
	}

	// Tightening x later must tighten y through the relation.
	d.AddConstraint(leq(VarExpr(vx), 4))
	if got := d.Interval(vy); !got.Ub().IsFinite() || got.Ub().Number().Int64() != 5 {
		t.Errorf("ub(y) after x<=4 = %s, want 5", got.Ub())
	}
}

func TestAssignConstant(t *testing.T) {
	d := Top()
	d.Assign(vx, ConstExprInt64(42))
	if got := d.Interval(vx); !got.Equal(iv(42, 42)) {
		t.Errorf("x = %s, want [42, 42]", got)
	}
	d.Assign(vx, VarExpr(vx).AddConst(big.NewInt(1)))
	if got := d.Interval(vx); !got.Equal(iv(43, 43)) {
		t.Errorf("x after x:=x+1 = %s, want [43, 43]", got)
	}
}

func TestApply(t *testing.T) {
	d := Top()
	d.Set(vy, iv(1, 2))
	d.Set(vz, iv(10, 20))

	d.Apply(ArithAdd, vx, vy, vz)
	if got := d.Interval(vx); !got.Equal(iv(11, 22)) {
		t.Errorf("y+z = %s, want [11, 22]", got)
	}
	d.Apply(ArithSub, vx, vz, vy)
	if got := d.Interval(vx); !got.Equal(iv(8, 19)) {
		t.Errorf("z-y = %s, want [8, 19]", got)
	}
	d.ApplyConst(ArithMul, vx, vy, big.NewInt(3))
	if got := d.Interval(vx); !got.Equal(iv(3, 6)) {
		t.Errorf("3*y = %s, want [3, 6]", got)
	}
	d.Apply(ArithMul, vx, vy, vz)
	if got := d.Interval(vx); !got.Equal(iv(10, 40)) {
		t.Errorf("y*z = %s, want [10, 40]", got)
	}
	d.ApplyConst(ArithSDiv, vx, vz, big.NewInt(2))
	if got := d.Interval(vx); !got.Equal(iv(5, 10)) {
		t.Errorf("z/2 = %s, want [5, 10]", got)
	}
	d.ApplyBitwiseConst(BitShl, vx, vy, big.NewInt(2))
	if got := d.Interval(vx); !got.Equal(iv(4, 8)) {
		t.Errorf("y<<2 = %s, want [4, 8]", got)
	}
	d.ApplyBitwise(BitAnd, vx, vy, vz)
	if got := d.Interval(vx); !got.Equal(iv(0, 2)) {
		t.Errorf("y&z = %s, want [0, 2]", got)
	}
	checkInvariants(t, d)
}

func TestWideningStabilizes(t *testing.T) {
	s := Top()
	s.Set(vx, iv(0, 0))
	for k := int64(1); k <= 10; k++ {
		next := Top()
		next.Set(vx, iv(0, k))
		s = s.Widen(next)
	}
	checkInvariants(t, s)
	got := s.Interval(vx)
	if !got.Ub().IsPlusInf() {
		t.Errorf("widened ub(x) = %s, want +oo", got.Ub())
	}
	if !got.Lb().IsFinite() || got.Lb().Number().Int64() != 0 {
		t.Errorf("widened lb(x) = %s, want 0", got.Lb())
	}

	// Once stable, further widening must be a fixpoint.
	next := Top()
	next.Set(vx, iv(0, 1000))
	w := s.Widen(next)
	if !equalStates(w, s) {
		t.Errorf("widening chain did not stabilize: %s vs %s", w, s)
	}
}

func TestWideningDropsUnconfirmed(t *testing.T) {
	a := Top()
	a.Set(vx, iv(0, 1))
	b := Top()
	b.Set(vx, iv(0, 2))
	w := a.Widen(b)
	got := w.Interval(vx)
	if !got.Ub().IsPlusInf() || !got.Lb().IsFinite() || got.Lb().Number().Int64() != 0 {
		t.Errorf("widen([0,1], [0,2]) on x = %s, want [0, +oo]", got)
	}
	w.Normalize()
	w.Normalize()
	if got := w.Interval(vx); !got.Lb().IsFinite() || got.Lb().Number().Int64() != 0 {
		t.Errorf("normalize lost the stable bound: x = %s", got)
	}
}

func TestNarrow(t *testing.T) {
	a := Top()
	a.Set(vx, NewInterval(FiniteInt64(0), PlusInf()))
	b := Top()
	b.Set(vx, iv(0, 10))
	n := a.Narrow(b)
	// No-op narrowing keeps a; it must stay between a⊓b and a.
	if !a.Meet(b).LessOrEqual(n) || !n.LessOrEqual(a) {
		t.Errorf("narrowing out of bounds: %s", n)
	}
	if got := Bottom().Narrow(b); !got.IsBottom() {
		t.Error("bottom △ b is not bottom")
	}
	if got := Top().Narrow(b); !equalStates(got, b) {
		t.Error("top △ b is not b")
	}
}

func TestRename(t *testing.T) {
	d := Top()
	d.Set(vx, iv(1, 2))
	d.AddConstraint(leq(VarExpr(vy).AddTerm(vx, big.NewInt(-1)), 0))
	d.Rename([]Variable{vx, vy}, []Variable{vz, vx})
	if got := d.Interval(vz); !got.Equal(iv(1, 2)) {
		t.Errorf("z after rename = %s, want [1, 2]", got)
	}
	probe := d.Copy()
	probe.AddConstraint(geq(VarExpr(vx).AddTerm(vz, big.NewInt(-1)), 1))
	if !probe.IsBottom() {
		t.Error("rename lost the relational constraint")
	}
}

func TestOverflowConservative(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 80)

	d := Top()
	d.AddConstraint(LeqZero(VarExpr(vx).AddConst(new(big.Int).Neg(huge))))
	if got := d.Interval(vx); !got.IsTop() {
		t.Errorf("x after out-of-range constraint = %s, want top", got)
	}

	d.Set(vx, NewInterval(FiniteInt64(0), Finite(huge)))
	if got := d.Interval(vx); !got.Ub().IsPlusInf() {
		t.Errorf("out-of-range ub was not dropped: %s", got)
	}

	e := Top()
	e.AddConstraint(LeqZero(NewExpression().AddTerm(vx, huge).AddTerm(vy, big.NewInt(1))))
	if !e.IsTop() {
		t.Errorf("out-of-range coefficient changed the state: %s", e)
	}
}

func TestCopyIndependence(t *testing.T) {
	d := Top()
	d.Set(vx, iv(0, 5))
	c := d.Copy()
	c.AddConstraint(geq(VarExpr(vx), 3))
	if got := d.Interval(vx); !got.Equal(iv(0, 5)) {
		t.Errorf("mutating a copy changed the original: %s", got)
	}
}

func TestString(t *testing.T) {
	if got := Bottom().String(); got != "_|_" {
		t.Errorf("bottom = %q", got)
	}
	if got := Top().String(); got != "{}" {
		t.Errorf("top = %q", got)
	}
	d := Top()
	d.Set(vx, iv(2, 2))
	if got := d.String(); !strings.Contains(got, "x -> [2]") {
		t.Errorf("singleton rendering = %q", got)
	}
}
