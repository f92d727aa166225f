package zones

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// An Expression is a linear expression Σ cᵢ·xᵢ + k with arbitrary-precision
// coefficients. The zero value is the constant 0.
type Expression struct {
	terms map[Variable]*big.Int
	k     *big.Int
}

// A Term is one coefficient–variable pair of an expression.
type Term struct {
	Var   Variable
	Coeff *big.Int
}

func NewExpression() Expression {
	return Expression{terms: map[Variable]*big.Int{}, k: new(big.Int)}
}

func VarExpr(x Variable) Expression {
	e := NewExpression()
	e.terms[x] = big.NewInt(1)
	return e
}

func ConstExpr(k *big.Int) Expression {
	e := NewExpression()
	e.k.Set(k)
	return e
}

func ConstExprInt64(k int64) Expression { return ConstExpr(big.NewInt(k)) }

// AddTerm returns e + c·x.
func (e Expression) AddTerm(x Variable, c *big.Int) Expression {
	out := e.clone()
	n, ok := out.terms[x]
	if !ok {
		n = new(big.Int)
		out.terms[x] = n
	}
	n.Add(n, c)
	if n.Sign() == 0 {
		delete(out.terms, x)
	}
	return out
}

// AddConst returns e + k.
func (e Expression) AddConst(k *big.Int) Expression {
	out := e.clone()
	out.k.Add(out.k, k)
	return out
}

func (e Expression) Neg() Expression {
	out := NewExpression()
	for v, c := range e.terms {
		out.terms[v] = new(big.Int).Neg(c)
	}
	if e.k != nil {
		out.k.Neg(e.k)
	}
	return out
}

func (e Expression) Constant() *big.Int {
	if e.k == nil {
		return new(big.Int)
	}
	return e.k
}

// Terms returns the non-zero terms of e in variable order.
func (e Expression) Terms() []Term {
	out := make([]Term, 0, len(e.terms))
	for v, c := range e.terms {
		out = append(out, Term{Var: v, Coeff: c})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Var, out[j].Var
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})
	return out
}

func (e Expression) IsConstant() bool { return len(e.terms) == 0 }

func (e Expression) clone() Expression {
	out := NewExpression()
	for v, c := range e.terms {
		out.terms[v] = new(big.Int).Set(c)
	}
	if e.k != nil {
		out.k.Set(e.k)
	}
	return out
}

func (e Expression) String() string {
	var sb strings.Builder
	for i, t := range e.Terms() {
		if i > 0 {
			sb.WriteString("+")
		}
		if t.Coeff.Cmp(big.NewInt(1)) == 0 {
			sb.WriteString(t.Var.Name)
		} else {
			fmt.Fprintf(&sb, "%s*%s", t.Coeff, t.Var.Name)
		}
	}
	k := e.Constant()
	if k.Sign() != 0 || len(e.terms) == 0 {
		if len(e.terms) > 0 && k.Sign() > 0 {
			sb.WriteString("+")
		}
		fmt.Fprint(&sb, k)
	}
	return sb.String()
}

// ConstraintKind discriminates the relations a Constraint can express over
// its expression e: e ≤ 0, e < 0, e = 0 or e ≠ 0.
type ConstraintKind uint8

const (
	Inequality ConstraintKind = iota
	StrictInequality
	Equality
	Disequation
)

func (k ConstraintKind) String() string {
	switch k {
	case Inequality:
		return "<=0"
	case StrictInequality:
		return "<0"
	case Equality:
		return "=0"
	case Disequation:
		return "!=0"
	default:
		panic(fmt.Sprintf("unhandled constraint kind %d", k))
	}
}

// A Constraint relates a linear expression to zero. Inequalities additionally
// carry a signedness flag; the zones domain only interprets signed ones.
type Constraint struct {
	E        Expression
	Kind     ConstraintKind
	Unsigned bool
}

func LeqZero(e Expression) Constraint { return Constraint{E: e, Kind: Inequality} }
func LtZero(e Expression) Constraint  { return Constraint{E: e, Kind: StrictInequality} }
func EqZero(e Expression) Constraint  { return Constraint{E: e, Kind: Equality} }
func NeqZero(e Expression) Constraint { return Constraint{E: e, Kind: Disequation} }
func UnsignedLeqZero(e Expression) Constraint {
	return Constraint{E: e, Kind: Inequality, Unsigned: true}
}

// IsTautology reports whether the constraint holds for every assignment.
// Only constant expressions can be decided.
func (c Constraint) IsTautology() bool {
	if !c.E.IsConstant() {
		return false
	}
	k := c.E.Constant()
	switch c.Kind {
	case Inequality:
		return k.Sign() <= 0
	case StrictInequality:
		return k.Sign() < 0
	case Equality:
		return k.Sign() == 0
	case Disequation:
		return k.Sign() != 0
	default:
		panic(fmt.Sprintf("unhandled constraint kind %d", c.Kind))
	}
}

// IsContradiction reports whether the constraint holds for no assignment.
func (c Constraint) IsContradiction() bool {
	if !c.E.IsConstant() {
		return false
	}
	return !c.IsTautology()
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s%s", c.E, c.Kind)
}
