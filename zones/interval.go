package zones

import (
	"fmt"
	"math/big"
)

// An Interval is a contiguous, possibly unbounded range of integers, or the
// empty range.
type Interval struct {
	lb, ub Bound
	empty  bool
}

func IntervalTop() Interval    { return Interval{lb: MinusInf(), ub: PlusInf()} }
func IntervalBottom() Interval { return Interval{empty: true} }

// NewInterval returns [lb, ub], collapsing to bottom when lb > ub.
func NewInterval(lb, ub Bound) Interval {
	if lb.IsPlusInf() || ub.IsMinusInf() || lb.Cmp(ub) > 0 {
		return IntervalBottom()
	}
	return Interval{lb: lb, ub: ub}
}

func ConstInterval(n *big.Int) Interval {
	return Interval{lb: Finite(n), ub: Finite(n)}
}

func ConstIntervalInt64(n int64) Interval {
	return ConstInterval(big.NewInt(n))
}

func (i Interval) IsBottom() bool { return i.empty }

func (i Interval) IsTop() bool {
	return !i.empty && i.lb.IsMinusInf() && i.ub.IsPlusInf()
}

func (i Interval) Lb() Bound {
	if i.empty {
		panic("zones: Lb of bottom interval")
	}
	return i.lb
}

func (i Interval) Ub() Bound {
	if i.empty {
		panic("zones: Ub of bottom interval")
	}
	return i.ub
}

// Singleton returns the sole member of i, or nil if i is empty or has more
// than one member.
func (i Interval) Singleton() *big.Int {
	if i.empty || !i.lb.IsFinite() || !i.ub.IsFinite() || i.lb.Cmp(i.ub) != 0 {
		return nil
	}
	return i.lb.Number()
}

func (i Interval) Contains(n *big.Int) bool {
	if i.empty {
		return false
	}
	b := Finite(n)
	return i.lb.Cmp(b) <= 0 && b.Cmp(i.ub) <= 0
}

func (i Interval) LessOrEqual(o Interval) bool {
	switch {
	case i.empty:
		return true
	case o.empty:
		return false
	default:
		return o.lb.Cmp(i.lb) <= 0 && i.ub.Cmp(o.ub) <= 0
	}
}

func (i Interval) Equal(o Interval) bool {
	return i.LessOrEqual(o) && o.LessOrEqual(i)
}

func (i Interval) Join(o Interval) Interval {
	switch {
	case i.empty:
		return o
	case o.empty:
		return i
	default:
		return Interval{lb: minBound(i.lb, o.lb), ub: maxBound(i.ub, o.ub)}
	}
}

func (i Interval) Meet(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	return NewInterval(maxBound(i.lb, o.lb), minBound(i.ub, o.ub))
}

func (i Interval) Neg() Interval {
	if i.empty {
		return i
	}
	return Interval{lb: i.ub.Neg(), ub: i.lb.Neg()}
}

func (i Interval) Add(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	return Interval{lb: i.lb.Add(o.lb), ub: i.ub.Add(o.ub)}
}

func (i Interval) Sub(o Interval) Interval {
	return i.Add(o.Neg())
}

func (i Interval) Mul(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	c := []Bound{
		i.lb.Mul(o.lb), i.lb.Mul(o.ub),
		i.ub.Mul(o.lb), i.ub.Mul(o.ub),
	}
	lo, hi := c[0], c[0]
	for _, b := range c[1:] {
		lo = minBound(lo, b)
		hi = maxBound(hi, b)
	}
	return Interval{lb: lo, ub: hi}
}

// boundQuo computes the truncated quotient of two bounds. The divisor must
// not be zero.
func boundQuo(x, y Bound) Bound {
	ysign := 1
	if y.IsMinusInf() || (y.IsFinite() && y.Number().Sign() < 0) {
		ysign = -1
	}
	switch {
	case !x.IsFinite():
		s := int8(ysign)
		if x.IsMinusInf() {
			s = -s
		}
		return Bound{inf: s}
	case !y.IsFinite():
		// Truncation drives any finite dividend to zero.
		return Bound{n: new(big.Int)}
	default:
		return Bound{n: new(big.Int).Quo(x.Number(), y.Number())}
	}
}

// SDiv implements truncated signed division. A divisor interval containing
// zero is split around it; the exact divisor [0, 0] yields bottom.
func (i Interval) SDiv(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	zero := FiniteInt64(0)
	if o.lb.Cmp(zero) <= 0 && zero.Cmp(o.ub) <= 0 {
		neg := o.Meet(NewInterval(MinusInf(), FiniteInt64(-1)))
		pos := o.Meet(NewInterval(FiniteInt64(1), PlusInf()))
		res := IntervalBottom()
		if !neg.IsBottom() {
			res = res.Join(i.SDiv(neg))
		}
		if !pos.IsBottom() {
			res = res.Join(i.SDiv(pos))
		}
		return res
	}
	c := []Bound{
		boundQuo(i.lb, o.lb), boundQuo(i.lb, o.ub),
		boundQuo(i.ub, o.lb), boundQuo(i.ub, o.ub),
	}
	lo, hi := c[0], c[0]
	for _, b := range c[1:] {
		lo = minBound(lo, b)
		hi = maxBound(hi, b)
	}
	return Interval{lb: lo, ub: hi}
}

// UDiv treats both operands as unsigned. Precise only when both intervals
// are already non-negative; anything else degrades to top.
func (i Interval) UDiv(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if i.isNonNegative() && o.isNonNegative() {
		return i.SDiv(o)
	}
	return IntervalTop()
}

// SRem bounds the remainder by the divisor's magnitude; the sign follows the
// dividend when it is known.
func (i Interval) SRem(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	m := maxBound(o.ub, o.lb.Neg())
	if !m.IsFinite() {
		return IntervalTop()
	}
	if m.Number().Sign() == 0 {
		return IntervalBottom()
	}
	hi := Finite(new(big.Int).Sub(m.Number(), big.NewInt(1)))
	res := Interval{lb: hi.Neg(), ub: hi}
	if i.isNonNegative() {
		res = res.Meet(NewInterval(FiniteInt64(0), PlusInf()))
	}
	if i.isNonPositive() {
		res = res.Meet(NewInterval(MinusInf(), FiniteInt64(0)))
	}
	return res
}

func (i Interval) URem(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if !o.isStrictlyPositive() || !o.ub.IsFinite() {
		return IntervalTop()
	}
	hi := Finite(new(big.Int).Sub(o.ub.Number(), big.NewInt(1)))
	res := NewInterval(FiniteInt64(0), hi)
	if i.isNonNegative() {
		// The remainder cannot exceed the dividend.
		res = res.Meet(NewInterval(FiniteInt64(0), i.ub))
	}
	return res
}

func (i Interval) And(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if x, y := i.Singleton(), o.Singleton(); x != nil && y != nil {
		return ConstInterval(new(big.Int).And(x, y))
	}
	if i.isNonNegative() && o.isNonNegative() {
		return NewInterval(FiniteInt64(0), minBound(i.ub, o.ub))
	}
	if i.isNonNegative() {
		return NewInterval(FiniteInt64(0), i.ub)
	}
	if o.isNonNegative() {
		return NewInterval(FiniteInt64(0), o.ub)
	}
	return IntervalTop()
}

func (i Interval) Or(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if x, y := i.Singleton(), o.Singleton(); x != nil && y != nil {
		return ConstInterval(new(big.Int).Or(x, y))
	}
	if i.isNonNegative() && o.isNonNegative() {
		// x | y <= x + y for non-negative operands.
		return NewInterval(FiniteInt64(0), i.ub.Add(o.ub))
	}
	return IntervalTop()
}

func (i Interval) Xor(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if x, y := i.Singleton(), o.Singleton(); x != nil && y != nil {
		return ConstInterval(new(big.Int).Xor(x, y))
	}
	if i.isNonNegative() && o.isNonNegative() {
		return NewInterval(FiniteInt64(0), i.ub.Add(o.ub))
	}
	return IntervalTop()
}

func (i Interval) Shl(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if k := o.Singleton(); k != nil && k.Sign() >= 0 && k.IsUint64() && k.Uint64() < 1<<16 {
		f := new(big.Int).Lsh(big.NewInt(1), uint(k.Uint64()))
		return i.Mul(ConstInterval(f))
	}
	if i.isNonNegative() && o.isNonNegative() {
		return NewInterval(FiniteInt64(0), PlusInf())
	}
	return IntervalTop()
}

func (i Interval) LShr(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if i.isNonNegative() && o.isNonNegative() {
		if k := o.Singleton(); k != nil && k.IsUint64() && k.Uint64() < 1<<16 {
			f := new(big.Int).Lsh(big.NewInt(1), uint(k.Uint64()))
			return i.SDiv(ConstInterval(f))
		}
		return NewInterval(FiniteInt64(0), i.ub)
	}
	return IntervalTop()
}

func (i Interval) AShr(o Interval) Interval {
	if i.empty || o.empty {
		return IntervalBottom()
	}
	if k := o.Singleton(); k != nil && k.Sign() >= 0 && k.IsUint64() && k.Uint64() < 1<<16 {
		f := new(big.Int).Lsh(big.NewInt(1), uint(k.Uint64()))
		res := i.SDiv(ConstInterval(f))
		// Arithmetic shift rounds towards −∞, division towards zero.
		if !i.isNonNegative() && !res.IsBottom() && res.lb.IsFinite() {
			res.lb = res.lb.Add(FiniteInt64(-1))
		}
		return res
	}
	return IntervalTop()
}

// Trim excises n from i when n sits on one of its ends. An interior n cannot
// be represented and leaves i unchanged.
func (i Interval) Trim(n *big.Int) Interval {
	if i.empty || !i.Contains(n) {
		return i
	}
	b := Finite(n)
	if i.lb.Cmp(i.ub) == 0 {
		return IntervalBottom()
	}
	if i.lb.Cmp(b) == 0 {
		return NewInterval(b.Add(FiniteInt64(1)), i.ub)
	}
	if i.ub.Cmp(b) == 0 {
		return NewInterval(i.lb, b.Add(FiniteInt64(-1)))
	}
	return i
}

func (i Interval) isNonNegative() bool {
	return !i.empty && i.lb.Cmp(FiniteInt64(0)) >= 0
}

func (i Interval) isNonPositive() bool {
	return !i.empty && i.ub.Cmp(FiniteInt64(0)) <= 0
}

func (i Interval) isStrictlyPositive() bool {
	return !i.empty && i.lb.Cmp(FiniteInt64(0)) > 0
}

func (i Interval) String() string {
	if i.empty {
		return "_|_"
	}
	return fmt.Sprintf("[%s, %s]", i.lb, i.ub)
}
