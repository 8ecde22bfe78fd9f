package tsmc_test

import (
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/google/go-cmp/cmp"
)

func TestInspect(t *testing.T) {
	x := tsmc.NewSymbol("x", bv8)
	y := tsmc.NewSymbol("y", bv8)
	sum := tsmc.NewBinaryExpr(tsmc.ADD, x, y)
	expr := tsmc.NewBinaryExpr(tsmc.MUL, sum, sum)

	t.Run("Occurrences", func(t *testing.T) {
		var a []string
		tsmc.Inspect(expr, func(e tsmc.Expr) bool {
			a = append(a, e.String())
			return true
		})
		want := []string{"(mul (add x y) (add x y))", "(add x y)", "x", "y", "(add x y)", "x", "y"}
		if diff := cmp.Diff(want, a); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Once", func(t *testing.T) {
		var a []string
		tsmc.InspectOnce(expr, func(e tsmc.Expr) bool {
			a = append(a, e.String())
			return true
		})
		want := []string{"(mul (add x y) (add x y))", "(add x y)", "x", "y"}
		if diff := cmp.Diff(want, a); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("SkipChildren", func(t *testing.T) {
		var n int
		tsmc.Inspect(expr, func(e tsmc.Expr) bool {
			n++
			return e == expr
		})
		if n != 3 {
			t.Fatalf("unexpected visit count: %d", n)
		}
	})
}

func TestSubstitute(t *testing.T) {
	x := tsmc.NewSymbol("x", bv8)
	y := tsmc.NewSymbol("y", bv8)
	expr := tsmc.NewBinaryExpr(tsmc.ADD, x, y)

	t.Run("Symbol", func(t *testing.T) {
		z := tsmc.NewSymbol("z", bv8)
		got := tsmc.Substitute(expr, map[*tsmc.Symbol]tsmc.Expr{y: z})
		if diff := cmp.Diff("(add x z)", got.String()); diff != "" {
			t.Fatal(diff)
		}
	})

	// Substituted constants are folded by the rebuilt parent.
	t.Run("Fold", func(t *testing.T) {
		got := tsmc.Substitute(expr, map[*tsmc.Symbol]tsmc.Expr{
			x: tsmc.NewConstantExpr(2, 8),
			y: tsmc.NewConstantExpr(3, 8),
		})
		if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(5, 8)), got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Unchanged", func(t *testing.T) {
		if got := tsmc.Substitute(expr, nil); got != expr {
			t.Fatal("expected identical term")
		}
		z := tsmc.NewSymbol("z", bv8)
		if got := tsmc.Substitute(expr, map[*tsmc.Symbol]tsmc.Expr{z: x}); got != expr {
			t.Fatal("expected identical term")
		}
	})
}

func TestFreeSymbols(t *testing.T) {
	a := tsmc.NewSymbol("a", bv8)
	b := tsmc.NewSymbol("b", bv8)
	c := tsmc.NewSymbol("c", tsmc.BoolSort())

	got := tsmc.FreeSymbols(
		tsmc.NewIteExpr(c, b, a),
		tsmc.NewBinaryExpr(tsmc.ADD, b, tsmc.NewConstantExpr(1, 8)),
	)
	if diff := cmp.Diff([]*tsmc.Symbol{a, b, c}, got); diff != "" {
		t.Fatal(diff)
	}
	if got := tsmc.FreeSymbols(tsmc.True()); len(got) != 0 {
		t.Fatalf("unexpected symbols: %v", got)
	}
}

func TestContainsSymbol(t *testing.T) {
	x := tsmc.NewSymbol("x", bv8)
	y := tsmc.NewSymbol("y", bv8)
	expr := tsmc.NewBinaryExpr(tsmc.ULT, x, tsmc.NewBinaryExpr(tsmc.ADD, y, tsmc.NewConstantExpr(1, 8)))

	isY := func(sym *tsmc.Symbol) bool { return sym == y }
	if !tsmc.ContainsSymbol(expr, isY) {
		t.Fatal("expected y")
	} else if tsmc.ContainsSymbol(x, isY) {
		t.Fatal("unexpected y")
	}
}

func TestRewriter(t *testing.T) {
	x := tsmc.NewSymbol("x", bv8)
	sum := tsmc.NewBinaryExpr(tsmc.ADD, x, tsmc.NewConstantExpr(1, 8))
	expr := tsmc.NewBinaryExpr(tsmc.XOR, sum, x)

	// Replace every increment with its operand.
	var calls int
	r := tsmc.NewRewriter(func(e tsmc.Expr) (tsmc.Expr, bool) {
		calls++
		if e, ok := e.(*tsmc.BinaryExpr); ok && e.Op == tsmc.ADD {
			return e.RHS, true
		}
		return nil, false
	})

	// x ^ x folds to zero.
	if diff := cmp.Diff(tsmc.Expr(tsmc.NewConstantExpr(0, 8)), r.Rewrite(expr)); diff != "" {
		t.Fatal(diff)
	}

	// Memoized results are not recomputed.
	n := calls
	if got := r.Rewrite(sum); got != tsmc.Expr(x) {
		t.Fatalf("unexpected result: %s", got)
	} else if calls != n {
		t.Fatalf("unexpected calls: %d != %d", calls, n)
	}
}
