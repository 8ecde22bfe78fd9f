package sat_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/benbjohnson/tsmc/sat"
	"github.com/google/go-cmp/cmp"
)

func TestSolver_Check(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			s := sat.NewSolver()
			defer MustCloseSolver(s)
			if ok, err := s.Check(tsmc.True()); err != nil {
				t.Fatal(err)
			} else if !ok {
				t.Fatal("expected satisfiable")
			}
		})
		t.Run("False", func(t *testing.T) {
			s := sat.NewSolver()
			defer MustCloseSolver(s)
			MustAssert(t, s, tsmc.False())
			if ok, err := s.Check(); err != nil {
				t.Fatal(err)
			} else if ok {
				t.Fatal("expected unsatisfiable")
			}
		})
	})

	t.Run("Value", func(t *testing.T) {
		s := sat.NewSolver()
		defer MustCloseSolver(s)

		x := tsmc.NewSymbol("x", tsmc.BitVecSort(8))
		y := tsmc.NewSymbol("y", tsmc.BitVecSort(8))
		MustAssert(t, s, tsmc.NewEqExpr(tsmc.NewBinaryExpr(tsmc.ADD, x, y), tsmc.NewConstantExpr(10, 8)))
		MustAssert(t, s, tsmc.NewEqExpr(x, tsmc.NewConstantExpr(3, 8)))
		if ok, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected satisfiable")
		}

		if v, err := s.Value(y); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(7, 8)), v); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("NoModel", func(t *testing.T) {
		s := sat.NewSolver()
		defer MustCloseSolver(s)

		x := tsmc.NewSymbol("x", tsmc.BoolSort())
		if _, err := s.Value(x); !errors.Is(err, tsmc.ErrNoModel) {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := s.Check(); err != nil {
			t.Fatal(err)
		}
		MustAssert(t, s, x)
		if _, err := s.Value(x); !errors.Is(err, tsmc.ErrNoModel) {
			t.Fatalf("unexpected error after assert: %v", err)
		}
	})

	t.Run("UnsupportedSort", func(t *testing.T) {
		s := sat.NewSolver()
		defer MustCloseSolver(s)

		n := tsmc.NewSymbol("n", tsmc.IntSort())
		if err := s.Assert(tsmc.NewEqExpr(n, tsmc.NewIntExpr(1))); !errors.Is(err, tsmc.ErrUnsupportedSort) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSolver_PushPop(t *testing.T) {
	s := sat.NewSolver()
	defer MustCloseSolver(s)

	x := tsmc.NewSymbol("x", tsmc.BoolSort())
	MustAssert(t, s, x)

	if err := s.Push(); err != nil {
		t.Fatal(err)
	}
	MustAssert(t, s, tsmc.NewNotExpr(x))
	if ok, err := s.Check(); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected unsatisfiable inside scope")
	}
	if err := s.Pop(); err != nil {
		t.Fatal(err)
	}

	if ok, err := s.Check(); err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("expected satisfiable after pop")
	}
	if err := s.Pop(); !errors.Is(err, sat.ErrNoScope) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSolver_UnsatCore(t *testing.T) {
	s := sat.NewSolver()
	defer MustCloseSolver(s)

	a := tsmc.NewSymbol("a", tsmc.BoolSort())
	b := tsmc.NewSymbol("b", tsmc.BoolSort())
	c := tsmc.NewSymbol("c", tsmc.BoolSort())
	MustAssert(t, s, tsmc.NewImpliesExpr(a, tsmc.NewNotExpr(b)))

	if _, err := s.UnsatCore(); !errors.Is(err, tsmc.ErrNoCore) {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok, err := s.Check(a, b, c); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected unsatisfiable")
	}

	core, err := s.UnsatCore()
	if err != nil {
		t.Fatal(err)
	}
	for _, expr := range core {
		if expr == c {
			t.Fatalf("unexpected assumption in core: %s", expr)
		}
	}
	if len(core) == 0 {
		t.Fatal("expected non-empty core")
	}
}

// TestSolver_Blast checks every bit-vector operation against constant folding.
func TestSolver_Blast(t *testing.T) {
	ops := []tsmc.BinaryOp{
		tsmc.ADD, tsmc.SUB, tsmc.MUL,
		tsmc.UDIV, tsmc.SDIV, tsmc.UREM, tsmc.SREM,
		tsmc.AND, tsmc.OR, tsmc.XOR,
		tsmc.SHL, tsmc.LSHR, tsmc.ASHR,
		tsmc.EQ, tsmc.NE, tsmc.ULT, tsmc.ULE, tsmc.UGT, tsmc.UGE,
		tsmc.SLT, tsmc.SLE, tsmc.SGT, tsmc.SGE,
	}
	pairs := [][2]uint64{{0, 0}, {7, 3}, {3, 7}, {200, 13}, {0x80, 0xff}, {0xf3, 0x05}, {9, 0}, {0xfe, 9}}

	for _, op := range ops {
		for _, pair := range pairs {
			t.Run(fmt.Sprintf("%s/%d_%d", op, pair[0], pair[1]), func(t *testing.T) {
				s := sat.NewSolver()
				defer MustCloseSolver(s)

				lhs, rhs := tsmc.NewConstantExpr(pair[0], 8), tsmc.NewConstantExpr(pair[1], 8)
				x := tsmc.NewSymbol("x", tsmc.BitVecSort(8))
				y := tsmc.NewSymbol("y", tsmc.BitVecSort(8))

				expr := &tsmc.BinaryExpr{Op: op, LHS: x, RHS: y}
				want := tsmc.NewBinaryExpr(op, lhs, rhs)
				z := tsmc.NewSymbol("z", tsmc.ExprSort(want))

				MustAssert(t, s, tsmc.NewEqExpr(x, lhs))
				MustAssert(t, s, tsmc.NewEqExpr(y, rhs))
				MustAssert(t, s, tsmc.NewEqExpr(z, expr))
				if ok, err := s.Check(); err != nil {
					t.Fatal(err)
				} else if !ok {
					t.Fatal("expected satisfiable")
				}

				if v, err := s.Value(z); err != nil {
					t.Fatal(err)
				} else if diff := cmp.Diff(want, v); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	}
}

func TestSolver_BlastExtractConcat(t *testing.T) {
	s := sat.NewSolver()
	defer MustCloseSolver(s)

	x := tsmc.NewSymbol("x", tsmc.BitVecSort(8))
	hi := tsmc.NewSymbol("hi", tsmc.BitVecSort(4))
	lo := tsmc.NewSymbol("lo", tsmc.BitVecSort(4))
	w := tsmc.NewSymbol("w", tsmc.BitVecSort(16))

	MustAssert(t, s, tsmc.NewEqExpr(x, tsmc.NewConstantExpr(0xa5, 8)))
	MustAssert(t, s, tsmc.NewEqExpr(hi, tsmc.NewExtractExpr(x, 4, 4)))
	MustAssert(t, s, tsmc.NewEqExpr(lo, tsmc.NewExtractExpr(x, 0, 4)))
	MustAssert(t, s, tsmc.NewEqExpr(w, tsmc.NewCastExpr(tsmc.NewConcatExpr(lo, hi), 16, true)))
	if ok, err := s.Check(); err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("expected satisfiable")
	}

	for _, tt := range []struct {
		sym  *tsmc.Symbol
		want uint64
	}{
		{hi, 0xa},
		{lo, 0x5},
		{w, 0x005a},
	} {
		if v, err := s.Value(tt.sym); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(tt.want, tt.sym.Sort.Width)), v); diff != "" {
			t.Fatalf("%s: %s", tt.sym.Name, diff)
		}
	}
}

func MustAssert(tb testing.TB, s *sat.Solver, expr tsmc.Expr) {
	tb.Helper()
	if err := s.Assert(expr); err != nil {
		tb.Fatal(err)
	}
}

func MustCloseSolver(s *sat.Solver) {
	if err := s.Close(); err != nil {
		panic(err)
	}
}
