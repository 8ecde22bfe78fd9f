package tsmc_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/google/go-cmp/cmp"
)

var generalizeModes = []tsmc.GeneralizeMode{tsmc.GeneralizeDrop, tsmc.GeneralizeCore}

func TestIC3(t *testing.T) {
	t.Run("Toggle", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				ic := NewIC3(t, NewToggleProperty(t), mode)
				MustProve(t, ic, 5, tsmc.ResultFalse)

				want := tsmc.Witness{
					{"s": tsmc.False()},
					{"s": tsmc.True()},
				}
				if diff := cmp.Diff(want, MustWitness(t, ic)); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	})

	t.Run("LatchSet", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				p, _, _ := NewLatchProperty(t, tsmc.True())
				ic := NewIC3(t, p, mode)
				MustProve(t, ic, 5, tsmc.ResultFalse)

				want := tsmc.Witness{
					{"s1": tsmc.False(), "s2": tsmc.True()},
					{"s1": tsmc.True(), "s2": tsmc.True()},
				}
				if diff := cmp.Diff(want, MustWitness(t, ic)); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	})

	t.Run("LatchClear", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				p, s1, s2 := NewLatchProperty(t, tsmc.False())
				ic := NewIC3(t, p, mode)
				MustProve(t, ic, 5, tsmc.ResultTrue)

				inv := MustInvariant(t, ic)
				MustEquivalent(t, inv, tsmc.NewAndExpr(tsmc.NewNotExpr(s1), tsmc.NewNotExpr(s2)))
				MustInductiveInvariant(t, p, inv)
			})
		}
	})

	// s1 becomes true one step after s2 is true. s2 is free initially.
	t.Run("Latch", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				ts := tsmc.NewTransitionSystem()
				s1 := MustStateVar(t, ts, "s1", tsmc.BoolSort())
				s2 := MustStateVar(t, ts, "s2", tsmc.BoolSort())
				MustAddInit(t, ts, tsmc.NewNotExpr(s1))
				MustAssignNext(t, ts, s1, tsmc.NewOrExpr(s1, s2))
				MustAssignNext(t, ts, s2, s2)
				p := MustNewProperty(t, "p", ts, tsmc.NewNotExpr(s1))

				ic := NewIC3(t, p, mode)
				MustProve(t, ic, 5, tsmc.ResultFalse)

				want := tsmc.Witness{
					{"s1": tsmc.False(), "s2": tsmc.True()},
					{"s1": tsmc.True(), "s2": tsmc.True()},
				}
				if diff := cmp.Diff(want, MustWitness(t, ic)); diff != "" {
					t.Fatal(diff)
				} else if _, err := ic.Invariant(); !errors.Is(err, tsmc.ErrNoInvariant) {
					t.Fatalf("unexpected error: %v", err)
				}
			})
		}
	})

	// Constraining s2 to false makes s1 unreachable.
	t.Run("LatchConstrained", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				ts := tsmc.NewTransitionSystem()
				s1 := MustStateVar(t, ts, "s1", tsmc.BoolSort())
				s2 := MustStateVar(t, ts, "s2", tsmc.BoolSort())
				MustAddInit(t, ts, tsmc.NewNotExpr(s1))
				MustAssignNext(t, ts, s1, tsmc.NewOrExpr(s1, s2))
				MustAssignNext(t, ts, s2, s2)
				MustConstrain(t, ts, tsmc.NewNotExpr(s2))
				p := MustNewProperty(t, "p", ts, tsmc.NewNotExpr(s1))

				ic := NewIC3(t, p, mode)
				MustProve(t, ic, 5, tsmc.ResultTrue)

				inv := MustInvariant(t, ic)
				MustEquivalent(t, inv, tsmc.NewAndExpr(tsmc.NewNotExpr(s1), tsmc.NewNotExpr(s2)))
				MustInductiveInvariant(t, p, inv)
				if _, err := ic.Witness(); !errors.Is(err, tsmc.ErrNoWitness) {
					t.Fatalf("unexpected error: %v", err)
				}
			})
		}
	})

	// The initial state violates the property and has no successor that
	// satisfies the constraint.
	t.Run("ConstraintDeadlock", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				ts := tsmc.NewTransitionSystem()
				s := MustStateVar(t, ts, "s", tsmc.BoolSort())
				MustAddInit(t, ts, tsmc.NewNotExpr(s))
				MustAssignNext(t, ts, s, tsmc.True())
				MustConstrain(t, ts, tsmc.NewNotExpr(s))
				p := MustNewProperty(t, "p", ts, s)

				ic := NewIC3(t, p, mode)
				MustProve(t, ic, 5, tsmc.ResultFalse)
				if diff := cmp.Diff(tsmc.Witness{{"s": tsmc.False()}}, MustWitness(t, ic)); diff != "" {
					t.Fatal(diff)
				} else if _, err := ic.Invariant(); !errors.Is(err, tsmc.ErrNoInvariant) {
					t.Fatalf("unexpected error: %v", err)
				}
			})
		}
	})

	// The bad state 1 is reachable but its successor 2 is excluded by the
	// constraint.
	t.Run("ConstraintDeadlockBad", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				ts := tsmc.NewTransitionSystem()
				c := MustStateVar(t, ts, "c", tsmc.BitVecSort(2))
				MustAddInit(t, ts, tsmc.NewEqExpr(c, tsmc.NewConstantExpr(0, 2)))
				MustAssignNext(t, ts, c, tsmc.NewBinaryExpr(tsmc.ADD, c, tsmc.NewConstantExpr(1, 2)))
				MustConstrain(t, ts, tsmc.NewBinaryExpr(tsmc.NE, c, tsmc.NewConstantExpr(2, 2)))
				p := MustNewProperty(t, "p", ts, tsmc.NewBinaryExpr(tsmc.NE, c, tsmc.NewConstantExpr(1, 2)))

				ic := NewIC3(t, p, mode)
				MustProve(t, ic, 5, tsmc.ResultFalse)

				want := tsmc.Witness{
					{"c": tsmc.NewConstantExpr(0, 2)},
					{"c": tsmc.NewConstantExpr(1, 2)},
				}
				if diff := cmp.Diff(want, MustWitness(t, ic)); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	})

	t.Run("WrappingCounter", func(t *testing.T) {
		for _, mode := range generalizeModes {
			t.Run(mode.String(), func(t *testing.T) {
				p := NewWrappingCounterProperty(t)
				opts := tsmc.DefaultOptions()
				opts.GeneralizeMode = mode
				opts.CheckInvariants = true
				ic := tsmc.NewIC3(p, NewSolver(t), tsmc.ModelBasedStrategy(mode), opts)

				// The unreachable chain 3 -> 4 -> 5 must be blocked.
				MustProve(t, ic, 10, tsmc.ResultTrue)
				MustInductiveInvariant(t, p, MustInvariant(t, ic))
			})
		}
	})

	t.Run("Counter", func(t *testing.T) {
		ic := NewIC3(t, NewCounterProperty(t, 8), tsmc.GeneralizeCore)
		MustProve(t, ic, 10, tsmc.ResultFalse)

		w := MustWitness(t, ic)
		if len(w) != 9 {
			t.Fatalf("unexpected witness length: %d", len(w))
		}
		for k, step := range w {
			if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(uint64(k), 8)), step["x"]); diff != "" {
				t.Fatalf("step %d: %s", k, diff)
			}
		}
	})

	t.Run("InitialBad", func(t *testing.T) {
		ts := tsmc.NewTransitionSystem()
		s := MustStateVar(t, ts, "s", tsmc.BoolSort())
		MustAddInit(t, ts, s)
		p := MustNewProperty(t, "p", ts, tsmc.NewNotExpr(s))

		ic := NewIC3(t, p, tsmc.GeneralizeDrop)
		MustProve(t, ic, 0, tsmc.ResultFalse)
		if w := MustWitness(t, ic); len(w) != 1 {
			t.Fatalf("unexpected witness length: %d", len(w))
		}
	})

	t.Run("Frames", func(t *testing.T) {
		ic := NewIC3(t, NewCounterProperty(t, 8), tsmc.GeneralizeDrop)
		MustProve(t, ic, 1, tsmc.ResultUnknown)
		if frames := ic.Frames(); len(frames) != 3 {
			t.Fatalf("unexpected frame count: %d", len(frames))
		} else if frames[0].Len() != 0 {
			t.Fatalf("unexpected initial frame: %s", frames[0])
		}
	})

	t.Run("Reinitialize", func(t *testing.T) {
		ic := NewIC3(t, NewWrappingCounterProperty(t), tsmc.GeneralizeCore)
		MustProve(t, ic, 10, tsmc.ResultTrue)
		MustProve(t, ic, 10, tsmc.ResultTrue)
	})

	t.Run("ErrNotInitialized", func(t *testing.T) {
		ic := NewIC3(t, NewToggleProperty(t), tsmc.GeneralizeDrop)
		if _, err := ic.CheckUntil(1); !errors.Is(err, tsmc.ErrNotInitialized) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		opts := tsmc.DefaultOptions()
		opts.Context = ctx
		ic := tsmc.NewIC3(NewCounterProperty(t, 8), NewSolver(t), tsmc.ModelBasedStrategy(tsmc.GeneralizeDrop), opts)
		if _, err := tsmc.Prove(ic, 10); !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrUnsupportedSystem", func(t *testing.T) {
		ts := tsmc.NewTransitionSystem()
		MustStateVar(t, ts, "mem", tsmc.ArraySort(bv8, bv8))
		s := MustStateVar(t, ts, "s", tsmc.BoolSort())
		p := MustNewProperty(t, "p", ts, s)

		if err := NewIC3(t, p, tsmc.GeneralizeDrop).Initialize(); !errors.Is(err, tsmc.ErrUnsupportedSystem) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrUnsupportedClocking", func(t *testing.T) {
		ts := tsmc.NewTransitionSystem()
		clk := MustStateVar(t, ts, "clk", tsmc.BoolSort())
		if err := ts.MarkClock(clk, true); err != nil {
			t.Fatal(err)
		}
		p := MustNewProperty(t, "p", ts, clk)

		if err := NewIC3(t, p, tsmc.GeneralizeDrop).Initialize(); !errors.Is(err, tsmc.ErrUnsupportedClocking) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

// IC3 and BMC must agree on small constrained counters. Every system has
// four states so a BMC bound of 4 finds any counterexample.
func TestIC3_Constrained(t *testing.T) {
	two := func(v uint64) tsmc.Expr { return tsmc.NewConstantExpr(v, 2) }

	nexts := []struct {
		name string
		fn   func(c, i tsmc.Expr) tsmc.Expr
	}{
		{"inc", func(c, i tsmc.Expr) tsmc.Expr { return tsmc.NewBinaryExpr(tsmc.ADD, c, two(1)) }},
		{"inc2", func(c, i tsmc.Expr) tsmc.Expr { return tsmc.NewBinaryExpr(tsmc.ADD, c, two(2)) }},
		{"wrap", func(c, i tsmc.Expr) tsmc.Expr {
			return tsmc.NewIteExpr(tsmc.NewEqExpr(c, two(2)), two(0), tsmc.NewBinaryExpr(tsmc.ADD, c, two(1)))
		}},
		{"step", func(c, i tsmc.Expr) tsmc.Expr { return tsmc.NewIteExpr(i, tsmc.NewBinaryExpr(tsmc.ADD, c, two(1)), c) }},
	}

	// excluded is the value forbidden by the constraint, or 4 for none.
	newProperty := func(tb testing.TB, next func(c, i tsmc.Expr) tsmc.Expr, excluded, bad uint64) *tsmc.Property {
		ts := tsmc.NewTransitionSystem()
		c := MustStateVar(tb, ts, "c", tsmc.BitVecSort(2))
		i := MustInputVar(tb, ts, "i", tsmc.BoolSort())
		MustAddInit(tb, ts, tsmc.NewEqExpr(c, two(0)))
		MustAssignNext(tb, ts, c, next(c, i))
		if excluded < 4 {
			MustConstrain(tb, ts, tsmc.NewBinaryExpr(tsmc.NE, c, two(excluded)))
		}
		return MustNewProperty(tb, "p", ts, tsmc.NewBinaryExpr(tsmc.NE, c, two(bad)))
	}

	for _, next := range nexts {
		for excluded := uint64(0); excluded <= 4; excluded++ {
			for bad := uint64(1); bad < 4; bad++ {
				for _, mode := range generalizeModes {
					t.Run(fmt.Sprintf("%s/%d/%d/%s", next.name, excluded, bad, mode), func(t *testing.T) {
						b := tsmc.NewBMC(newProperty(t, next.fn, excluded, bad), NewSolver(t), tsmc.DefaultOptions())
						want, err := tsmc.Prove(b, 4)
						if err != nil {
							t.Fatal(err)
						} else if want == tsmc.ResultUnknown {
							want = tsmc.ResultTrue
						}

						p := newProperty(t, next.fn, excluded, bad)
						ic := NewIC3(t, p, mode)
						MustProve(t, ic, 10, want)

						if want == tsmc.ResultFalse {
							if n, m := len(MustWitness(t, ic)), len(MustWitness(t, b)); n != m {
								t.Fatalf("witness length %d, want %d", n, m)
							}
							return
						}
						MustInductiveInvariant(t, p, MustInvariant(t, ic))
					})
				}
			}
		}
	}
}

func TestIC3Formula(t *testing.T) {
	a := tsmc.NewSymbol("a", tsmc.BoolSort())
	b := tsmc.NewSymbol("b", tsmc.BoolSort())

	cube := tsmc.NewCube(a, tsmc.NewNotExpr(b))
	if diff := cmp.Diff("(and a (not b))", cube.String()); diff != "" {
		t.Fatal(diff)
	}
	clause := cube.Negate()
	if diff := cmp.Diff("(or (not a) b)", clause.String()); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(cube.Term(), clause.Negate().Term()); diff != "" {
		t.Fatal(diff)
	}
}

// NewIC3 returns a model-based IC3 engine for p with a solver of its own.
func NewIC3(tb testing.TB, p *tsmc.Property, mode tsmc.GeneralizeMode) *tsmc.IC3 {
	tb.Helper()
	opts := tsmc.DefaultOptions()
	opts.GeneralizeMode = mode
	return tsmc.NewIC3(p, NewSolver(tb), tsmc.ModelBasedStrategy(mode), opts)
}

// NewWrappingCounterProperty returns a 3-bit counter that wraps from 2 back
// to 0, and the property that it never reaches 5. The property is not
// inductive on its own since 4 steps to 5.
func NewWrappingCounterProperty(tb testing.TB) *tsmc.Property {
	tb.Helper()
	ts := tsmc.NewTransitionSystem()
	c := MustStateVar(tb, ts, "c", tsmc.BitVecSort(3))
	zero := tsmc.NewConstantExpr(0, 3)
	MustAddInit(tb, ts, tsmc.NewEqExpr(c, zero))
	MustAssignNext(tb, ts, c, tsmc.NewIteExpr(
		tsmc.NewEqExpr(c, tsmc.NewConstantExpr(2, 3)),
		zero,
		tsmc.NewBinaryExpr(tsmc.ADD, c, tsmc.NewConstantExpr(1, 3)),
	))
	return MustNewProperty(tb, "wraps", ts, tsmc.NewBinaryExpr(tsmc.NE, c, tsmc.NewConstantExpr(5, 3)))
}

// NewLatchProperty returns a system where s1 becomes true one step after s2
// is true and s2 keeps its initial value s2Init. The property is that s1
// stays false.
func NewLatchProperty(tb testing.TB, s2Init tsmc.Expr) (p *tsmc.Property, s1, s2 *tsmc.Symbol) {
	tb.Helper()
	ts := tsmc.NewTransitionSystem()
	s1 = MustStateVar(tb, ts, "s1", tsmc.BoolSort())
	s2 = MustStateVar(tb, ts, "s2", tsmc.BoolSort())
	MustAddInit(tb, ts, tsmc.NewNotExpr(s1))
	MustAddInit(tb, ts, tsmc.NewEqExpr(s2, s2Init))
	MustAssignNext(tb, ts, s1, tsmc.NewOrExpr(s1, s2))
	MustAssignNext(tb, ts, s2, s2)
	return MustNewProperty(tb, "p", ts, tsmc.NewNotExpr(s1)), s1, s2
}

// MustEquivalent fatals unless a and b hold under the same assignments.
func MustEquivalent(tb testing.TB, a, b tsmc.Expr) {
	tb.Helper()
	MustValid(tb, tsmc.NewImpliesExpr(a, b))
	MustValid(tb, tsmc.NewImpliesExpr(b, a))
}

// MustInvariant returns the invariant of p. Fatal on error.
func MustInvariant(tb testing.TB, p tsmc.Prover) tsmc.Expr {
	tb.Helper()
	inv, err := p.Invariant()
	if err != nil {
		tb.Fatal(err)
	}
	return inv
}

// MustInductiveInvariant fatals unless inv contains the initial states, is
// closed under the transition relation and implies the property.
func MustInductiveInvariant(tb testing.TB, p *tsmc.Property, inv tsmc.Expr) {
	tb.Helper()
	ts := p.System

	next, err := ts.ToNext(inv)
	if err != nil {
		tb.Fatal(err)
	}
	MustValid(tb, tsmc.NewImpliesExpr(ts.Init(), inv))
	MustValid(tb, tsmc.NewImpliesExpr(tsmc.NewAndExpr(inv, ts.Trans()), next))
	MustValid(tb, tsmc.NewImpliesExpr(inv, p.Expr))
}
