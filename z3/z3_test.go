package z3_test

import (
	"errors"
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/benbjohnson/tsmc/z3"
	"github.com/google/go-cmp/cmp"
)

func TestSolver_Check(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			if ok, err := s.Check(tsmc.True()); err != nil {
				t.Fatal(err)
			} else if !ok {
				t.Fatal("expected satisfiable")
			}
		})
		t.Run("False", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			if ok, err := s.Check(tsmc.False()); err != nil {
				t.Fatal(err)
			} else if ok {
				t.Fatal("expected unsatisfiable")
			}
		})
	})

	t.Run("BitVec", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		x := tsmc.NewSymbol("x", tsmc.BitVecSort(16))
		y := tsmc.NewSymbol("y", tsmc.BitVecSort(16))
		MustAssert(t, s, tsmc.NewEqExpr(tsmc.NewBinaryExpr(tsmc.MUL, x, tsmc.NewConstantExpr(3, 16)), tsmc.NewConstantExpr(0x1234*3, 16)))
		MustAssert(t, s, tsmc.NewEqExpr(y, tsmc.NewConcatExpr(tsmc.NewExtractExpr(x, 0, 8), tsmc.NewExtractExpr(x, 8, 8))))
		MustAssert(t, s, tsmc.NewBinaryExpr(tsmc.ULT, x, tsmc.NewConstantExpr(0x8000, 16)))
		MustCheck(t, s, true)

		if v, err := s.Value(y); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(0x3412, 16)), v); diff != "" {
			t.Fatal(diff)
		}
	})

	// Arithmetic on booleans is lifted to one bit vectors.
	t.Run("BoolArithmetic", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		a := tsmc.NewSymbol("a", tsmc.BoolSort())
		b := tsmc.NewSymbol("b", tsmc.BoolSort())
		MustAssert(t, s, a)
		MustAssert(t, s, &tsmc.BinaryExpr{Op: tsmc.ADD, LHS: a, RHS: b})
		MustCheck(t, s, true)

		if v, err := tsmc.ValueBool(s, b); err != nil {
			t.Fatal(err)
		} else if v {
			t.Fatal("expected b to be false")
		}
	})

	t.Run("Int", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		x := tsmc.NewSymbol("x", tsmc.BitVecSort(4))
		n := tsmc.NewSymbol("n", tsmc.IntSort())
		MustAssert(t, s, tsmc.NewEqExpr(n, tsmc.NewBinaryExpr(tsmc.ADD, tsmc.NewToIntExpr(x), tsmc.NewIntExpr(20))))
		MustAssert(t, s, tsmc.NewBinaryExpr(tsmc.SLE, tsmc.NewIntExpr(35), n))
		MustCheck(t, s, true)

		if v, err := s.Value(n); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(tsmc.Expr(tsmc.NewIntExpr(35)), v); diff != "" {
			t.Fatal(diff)
		}
		if v, err := s.Value(tsmc.NewToBVExpr(n, 8)); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(35, 8)), v); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Array", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		sort := tsmc.ArraySort(tsmc.BitVecSort(4), tsmc.BitVecSort(8))
		a := tsmc.NewSymbol("a", sort)
		b := tsmc.NewSymbol("b", sort)
		i := tsmc.NewSymbol("i", tsmc.BitVecSort(4))

		MustAssert(t, s, tsmc.NewEqExpr(a, tsmc.NewConstArrayExpr(sort, tsmc.NewConstantExpr(7, 8))))
		MustAssert(t, s, tsmc.NewEqExpr(b, tsmc.NewStoreExpr(a, i, tsmc.NewConstantExpr(9, 8))))
		MustAssert(t, s, tsmc.NewEqExpr(i, tsmc.NewConstantExpr(3, 4)))
		MustCheck(t, s, true)

		for _, tt := range []struct {
			index uint64
			want  uint64
		}{{3, 9}, {4, 7}} {
			if v, err := s.Value(tsmc.NewSelectExpr(b, tsmc.NewConstantExpr(tt.index, 4))); err != nil {
				t.Fatal(err)
			} else if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(tt.want, 8)), v); diff != "" {
				t.Fatal(diff)
			}
		}

		// Array values have no structure in the term language.
		if v, err := s.Value(b); err != nil {
			t.Fatal(err)
		} else if _, ok := v.(*tsmc.OpaqueExpr); !ok {
			t.Fatalf("unexpected value type: %T", v)
		}
	})

	t.Run("Uninterpreted", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		u := tsmc.UninterpretedSort("U")
		f := tsmc.NewFuncDecl("f", []tsmc.Sort{u}, tsmc.BitVecSort(8))
		x := tsmc.NewSymbol("x", u)
		y := tsmc.NewSymbol("y", u)

		MustAssert(t, s, tsmc.NewEqExpr(x, y))
		MustAssert(t, s, tsmc.NewBinaryExpr(tsmc.NE, tsmc.NewApplyExpr(f, x), tsmc.NewApplyExpr(f, y)))
		MustCheck(t, s, false)
	})
}

func TestSolver_PushPop(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)

	x := tsmc.NewSymbol("x", tsmc.BitVecSort(8))
	MustAssert(t, s, tsmc.NewBinaryExpr(tsmc.ULT, x, tsmc.NewConstantExpr(10, 8)))

	if err := s.Push(); err != nil {
		t.Fatal(err)
	}
	MustAssert(t, s, tsmc.NewBinaryExpr(tsmc.UGT, x, tsmc.NewConstantExpr(20, 8)))
	MustCheck(t, s, false)
	if err := s.Pop(); err != nil {
		t.Fatal(err)
	}

	MustCheck(t, s, true)
	if err := s.Pop(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSolver_UnsatCore(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)

	x := tsmc.NewSymbol("x", tsmc.BitVecSort(8))
	a := tsmc.NewSymbol("a", tsmc.BoolSort())
	lt := tsmc.NewBinaryExpr(tsmc.ULT, x, tsmc.NewConstantExpr(5, 8))
	gt := tsmc.NewBinaryExpr(tsmc.UGT, x, tsmc.NewConstantExpr(9, 8))

	if _, err := s.UnsatCore(); !errors.Is(err, tsmc.ErrNoCore) {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, err := s.Check(lt, a, gt); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected unsatisfiable")
	}

	core, err := s.UnsatCore()
	if err != nil {
		t.Fatal(err)
	}
	for _, expr := range core {
		if expr == a {
			t.Fatal("unexpected symbol in core")
		}
	}
	if len(core) != 2 {
		t.Fatalf("unexpected core: %v", core)
	}

	// Indicator literals do not constrain later checks.
	if ok, err := s.Check(gt); err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("expected satisfiable")
	}
	if _, err := s.Value(x); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UnsatCore(); !errors.Is(err, tsmc.ErrNoCore) {
		t.Fatalf("unexpected error after sat: %v", err)
	}
}

func MustAssert(tb testing.TB, s *z3.Solver, expr tsmc.Expr) {
	tb.Helper()
	if err := s.Assert(expr); err != nil {
		tb.Fatal(err)
	}
}

func MustCheck(tb testing.TB, s *z3.Solver, want bool) {
	tb.Helper()
	if ok, err := s.Check(); err != nil {
		tb.Fatal(err)
	} else if ok != want {
		tb.Fatalf("check=%v, want %v", ok, want)
	}
}

func MustCloseSolver(s *z3.Solver) {
	if err := s.Close(); err != nil {
		panic(err)
	}
}
