package sat

import (
	"fmt"

	"github.com/benbjohnson/tsmc"
	"github.com/go-air/gini/z"
)

// blast returns the bits of expr, least significant first.
func (s *Solver) blast(expr tsmc.Expr) ([]z.Lit, error) {
	if bits, ok := s.cache[expr]; ok {
		return bits, nil
	}
	bits, err := s.blastExpr(expr)
	if err != nil {
		return nil, err
	}
	s.cache[expr] = bits
	return bits, nil
}

func (s *Solver) blastExpr(expr tsmc.Expr) ([]z.Lit, error) {
	switch expr := expr.(type) {
	case *tsmc.ConstantExpr:
		bits := make([]z.Lit, expr.Width)
		for i := range bits {
			bits[i] = s.constant(expr.Bit(uint(i)))
		}
		return bits, nil

	case *tsmc.Symbol:
		if !expr.Sort.IsBitVec() {
			return nil, fmt.Errorf("%w: %s: %s", tsmc.ErrUnsupportedSort, expr.Name, expr.Sort)
		}
		bits, ok := s.bits[expr]
		if !ok {
			bits = make([]z.Lit, expr.Sort.Width)
			for i := range bits {
				bits[i] = s.c.Lit()
			}
			s.bits[expr] = bits
		}
		return bits, nil

	case *tsmc.NotExpr:
		src, err := s.blast(expr.Expr)
		if err != nil {
			return nil, err
		}
		return s.not(src), nil

	case *tsmc.IteExpr:
		cond, err := s.blast(expr.Cond)
		if err != nil {
			return nil, err
		}
		then, err := s.blast(expr.Then)
		if err != nil {
			return nil, err
		}
		els, err := s.blast(expr.Else)
		if err != nil {
			return nil, err
		}
		return s.mux(cond[0], then, els), nil

	case *tsmc.ConcatExpr:
		msb, err := s.blast(expr.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := s.blast(expr.LSB)
		if err != nil {
			return nil, err
		}
		return append(append(make([]z.Lit, 0, len(lsb)+len(msb)), lsb...), msb...), nil

	case *tsmc.ExtractExpr:
		src, err := s.blast(expr.Expr)
		if err != nil {
			return nil, err
		}
		return src[expr.Offset : expr.Offset+expr.Width], nil

	case *tsmc.CastExpr:
		src, err := s.blast(expr.Src)
		if err != nil {
			return nil, err
		}
		fill := s.c.F
		if expr.Signed {
			fill = src[len(src)-1]
		}
		bits := append(make([]z.Lit, 0, expr.Width), src...)
		for uint(len(bits)) < expr.Width {
			bits = append(bits, fill)
		}
		return bits[:expr.Width], nil

	case *tsmc.BinaryExpr:
		lhs, err := s.blast(expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := s.blast(expr.RHS)
		if err != nil {
			return nil, err
		}
		return s.binary(expr.Op, lhs, rhs)

	case *tsmc.SelectExpr, *tsmc.StoreExpr, *tsmc.ConstArrayExpr, *tsmc.ApplyExpr,
		*tsmc.IntExpr, *tsmc.ToIntExpr, *tsmc.ToBVExpr:
		return nil, fmt.Errorf("%w: %T", tsmc.ErrUnsupportedSort, expr)
	default:
		return nil, fmt.Errorf("%w: %T", tsmc.ErrUnsupportedOp, expr)
	}
}

func (s *Solver) binary(op tsmc.BinaryOp, a, b []z.Lit) ([]z.Lit, error) {
	switch op {
	case tsmc.ADD:
		sum, _ := s.add(a, b, s.c.F)
		return sum, nil
	case tsmc.SUB:
		return s.sub(a, b), nil
	case tsmc.MUL:
		return s.mul(a, b), nil
	case tsmc.UDIV:
		q, _ := s.udivrem(a, b)
		return q, nil
	case tsmc.UREM:
		_, r := s.udivrem(a, b)
		return r, nil
	case tsmc.SDIV:
		return s.sdiv(a, b), nil
	case tsmc.SREM:
		return s.srem(a, b), nil
	case tsmc.AND:
		return s.bitwise(a, b, s.c.And), nil
	case tsmc.OR:
		return s.bitwise(a, b, s.c.Or), nil
	case tsmc.XOR:
		return s.bitwise(a, b, s.c.Xor), nil
	case tsmc.SHL, tsmc.LSHR, tsmc.ASHR:
		return s.shift(op, a, b), nil
	case tsmc.EQ:
		return []z.Lit{s.eq(a, b)}, nil
	case tsmc.NE:
		return []z.Lit{s.eq(a, b).Not()}, nil
	case tsmc.ULT:
		return []z.Lit{s.ult(a, b)}, nil
	case tsmc.ULE:
		return []z.Lit{s.ult(b, a).Not()}, nil
	case tsmc.UGT:
		return []z.Lit{s.ult(b, a)}, nil
	case tsmc.UGE:
		return []z.Lit{s.ult(a, b).Not()}, nil
	case tsmc.SLT:
		return []z.Lit{s.slt(a, b)}, nil
	case tsmc.SLE:
		return []z.Lit{s.slt(b, a).Not()}, nil
	case tsmc.SGT:
		return []z.Lit{s.slt(b, a)}, nil
	case tsmc.SGE:
		return []z.Lit{s.slt(a, b).Not()}, nil
	default:
		return nil, fmt.Errorf("%w: %s", tsmc.ErrUnsupportedOp, op)
	}
}

func (s *Solver) constant(v bool) z.Lit {
	if v {
		return s.c.T
	}
	return s.c.F
}

func (s *Solver) not(a []z.Lit) []z.Lit {
	bits := make([]z.Lit, len(a))
	for i, m := range a {
		bits[i] = m.Not()
	}
	return bits
}

func (s *Solver) bitwise(a, b []z.Lit, fn func(x, y z.Lit) z.Lit) []z.Lit {
	bits := make([]z.Lit, len(a))
	for i := range a {
		bits[i] = fn(a[i], b[i])
	}
	return bits
}

func (s *Solver) mux(cond z.Lit, then, els []z.Lit) []z.Lit {
	bits := make([]z.Lit, len(then))
	for i := range then {
		bits[i] = s.c.Choice(cond, then[i], els[i])
	}
	return bits
}

// add returns a+b+cin and the carry out.
func (s *Solver) add(a, b []z.Lit, cin z.Lit) ([]z.Lit, z.Lit) {
	sum := make([]z.Lit, len(a))
	carry := cin
	for i := range a {
		x := s.c.Xor(a[i], b[i])
		sum[i] = s.c.Xor(x, carry)
		carry = s.c.Or(s.c.And(a[i], b[i]), s.c.And(carry, x))
	}
	return sum, carry
}

func (s *Solver) sub(a, b []z.Lit) []z.Lit {
	diff, _ := s.add(a, s.not(b), s.c.T)
	return diff
}

func (s *Solver) neg(a []z.Lit) []z.Lit {
	return s.sub(s.zero(len(a)), a)
}

func (s *Solver) zero(n int) []z.Lit {
	bits := make([]z.Lit, n)
	for i := range bits {
		bits[i] = s.c.F
	}
	return bits
}

// mul returns the low bits of a*b by shift and add.
func (s *Solver) mul(a, b []z.Lit) []z.Lit {
	n := len(a)
	acc := s.zero(n)
	for i := 0; i < n; i++ {
		partial := s.zero(n)
		for j := 0; j+i < n; j++ {
			partial[j+i] = s.c.And(a[j], b[i])
		}
		acc, _ = s.add(acc, partial, s.c.F)
	}
	return acc
}

// udivrem returns the quotient and remainder of restoring division. Division
// by zero gives an all-ones quotient and a remainder of a.
func (s *Solver) udivrem(a, b []z.Lit) (q, r []z.Lit) {
	n := len(a)
	q = make([]z.Lit, n)
	rem := s.zero(n + 1)
	divisor := append(append(make([]z.Lit, 0, n+1), b...), s.c.F)

	for i := n - 1; i >= 0; i-- {
		shifted := append([]z.Lit{a[i]}, rem[:n]...)
		ge := s.ult(shifted, divisor).Not()
		rem = s.mux(ge, s.sub(shifted, divisor), shifted)
		q[i] = ge
	}
	return q, rem[:n]
}

func (s *Solver) abs(a []z.Lit) []z.Lit {
	return s.mux(a[len(a)-1], s.neg(a), a)
}

func (s *Solver) sdiv(a, b []z.Lit) []z.Lit {
	sa, sb := a[len(a)-1], b[len(b)-1]
	q, _ := s.udivrem(s.abs(a), s.abs(b))
	return s.mux(s.c.Xor(sa, sb), s.neg(q), q)
}

func (s *Solver) srem(a, b []z.Lit) []z.Lit {
	_, r := s.udivrem(s.abs(a), s.abs(b))
	return s.mux(a[len(a)-1], s.neg(r), r)
}

// shift implements a barrel shifter. Shift amounts of at least the width
// fill the result with zeros, or with the sign bit for ASHR.
func (s *Solver) shift(op tsmc.BinaryOp, a, b []z.Lit) []z.Lit {
	n := len(a)
	fill := s.c.F
	if op == tsmc.ASHR {
		fill = a[n-1]
	}

	res := a
	overflow := s.c.F
	for j := range b {
		if j >= 64 || uint64(1)<<uint(j) >= uint64(n) {
			overflow = s.c.Or(overflow, b[j])
			continue
		}
		k := 1 << uint(j)
		shifted := make([]z.Lit, n)
		for i := 0; i < n; i++ {
			var src int
			if op == tsmc.SHL {
				src = i - k
			} else {
				src = i + k
			}
			if src >= 0 && src < n {
				shifted[i] = res[src]
			} else {
				shifted[i] = fill
			}
		}
		res = s.mux(b[j], shifted, res)
	}

	fills := make([]z.Lit, n)
	for i := range fills {
		fills[i] = fill
	}
	return s.mux(overflow, fills, res)
}

func (s *Solver) eq(a, b []z.Lit) z.Lit {
	m := s.c.T
	for i := range a {
		m = s.c.And(m, s.c.Xor(a[i], b[i]).Not())
	}
	return m
}

// ult compares from the least significant bit up.
func (s *Solver) ult(a, b []z.Lit) z.Lit {
	lt := s.c.F
	for i := range a {
		diff := s.c.Xor(a[i], b[i])
		lt = s.c.Or(s.c.And(a[i].Not(), b[i]), s.c.And(diff.Not(), lt))
	}
	return lt
}

func (s *Solver) slt(a, b []z.Lit) z.Lit {
	n := len(a)
	fa := append(append(make([]z.Lit, 0, n), a[:n-1]...), a[n-1].Not())
	fb := append(append(make([]z.Lit, 0, n), b[:n-1]...), b[n-1].Not())
	return s.ult(fa, fb)
}
