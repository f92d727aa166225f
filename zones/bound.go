package zones

import (
	"fmt"
	"math/big"
)

// A Bound is an element of ℤ ∪ {−∞, +∞}.
type Bound struct {
	inf int8 // −1 or +1 when infinite, 0 otherwise
	n   *big.Int
}

func MinusInf() Bound { return Bound{inf: -1} }
func PlusInf() Bound  { return Bound{inf: 1} }

func Finite(n *big.Int) Bound {
	if n == nil {
		panic("zones: Finite called with nil")
	}
	return Bound{n: new(big.Int).Set(n)}
}

func FiniteInt64(n int64) Bound { return Bound{n: big.NewInt(n)} }

func (b Bound) IsFinite() bool   { return b.inf == 0 }
func (b Bound) IsMinusInf() bool { return b.inf < 0 }
func (b Bound) IsPlusInf() bool  { return b.inf > 0 }

// Number returns the finite value of b. It panics if b is infinite.
func (b Bound) Number() *big.Int {
	if b.inf != 0 {
		panic("zones: Number called on an infinite bound")
	}
	return b.n
}

func (b Bound) Cmp(o Bound) int {
	switch {
	case b.inf != 0 || o.inf != 0:
		bi, oi := int(b.inf), int(o.inf)
		if bi < oi {
			return -1
		} else if bi > oi {
			return 1
		}
		return 0
	default:
		return b.n.Cmp(o.n)
	}
}

// Add returns b + o. The combination −∞ + +∞ has no meaning and panics.
func (b Bound) Add(o Bound) Bound {
	switch {
	case b.inf != 0 && o.inf != 0:
		if b.inf != o.inf {
			panic("zones: adding bounds of opposite infinities")
		}
		return b
	case b.inf != 0:
		return b
	case o.inf != 0:
		return o
	default:
		return Bound{n: new(big.Int).Add(b.n, o.n)}
	}
}

func (b Bound) Neg() Bound {
	if b.inf != 0 {
		return Bound{inf: -b.inf}
	}
	return Bound{n: new(big.Int).Neg(b.n)}
}

// Mul returns b · o, with the convention 0 · ±∞ = 0.
func (b Bound) Mul(o Bound) Bound {
	sign := func(x Bound) int {
		if x.inf != 0 {
			return int(x.inf)
		}
		return x.n.Sign()
	}
	if b.inf != 0 || o.inf != 0 {
		s := sign(b) * sign(o)
		if s == 0 {
			return Bound{n: new(big.Int)}
		}
		return Bound{inf: int8(s)}
	}
	return Bound{n: new(big.Int).Mul(b.n, o.n)}
}

func (b Bound) String() string {
	switch {
	case b.inf < 0:
		return "-oo"
	case b.inf > 0:
		return "+oo"
	default:
		return fmt.Sprint(b.n)
	}
}

func minBound(a, b Bound) Bound {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func maxBound(a, b Bound) Bound {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
