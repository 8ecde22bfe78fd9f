package tsmc_test

import (
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/google/go-cmp/cmp"
)

func TestExprEvaluator_Evaluate(t *testing.T) {
	x := tsmc.NewSymbol("x", bv8)
	y := tsmc.NewSymbol("y", bv8)
	n := tsmc.NewSymbol("n", tsmc.IntSort())
	memSort := tsmc.ArraySort(bv8, bv8)
	mem := tsmc.NewSymbol("mem", memSort)

	zeroes := tsmc.NewConstArrayExpr(memSort, tsmc.NewConstantExpr(0, 8))
	ee := tsmc.NewExprEvaluator(map[*tsmc.Symbol]tsmc.Expr{
		x:   tsmc.NewConstantExpr(5, 8),
		y:   tsmc.NewConstantExpr(3, 8),
		n:   tsmc.NewIntExpr(7),
		mem: tsmc.NewStoreExpr(zeroes, tsmc.NewConstantExpr(3, 8), tsmc.NewConstantExpr(1, 8)),
	})

	for _, tt := range []struct {
		name string
		expr tsmc.Expr
		want tsmc.Expr
	}{
		{"Add", tsmc.NewBinaryExpr(tsmc.ADD, x, y), tsmc.NewConstantExpr(8, 8)},
		{"Sub", tsmc.NewBinaryExpr(tsmc.SUB, y, x), tsmc.NewConstantExpr(0xFE, 8)},
		{"Ite", tsmc.NewIteExpr(tsmc.NewBinaryExpr(tsmc.ULT, x, y), x, y), tsmc.NewConstantExpr(3, 8)},
		{"Concat", tsmc.NewConcatExpr(tsmc.NewExtractExpr(x, 0, 4), tsmc.NewExtractExpr(y, 0, 4)), tsmc.NewConstantExpr(0x53, 8)},
		{"Cast", tsmc.NewCastExpr(tsmc.NewNotExpr(x), 16, true), tsmc.NewConstantExpr(0xFFFA, 16)},
		{"Int", tsmc.NewBinaryExpr(tsmc.MUL, n, tsmc.NewIntExpr(3)), tsmc.NewIntExpr(21)},
		{"IntCompare", tsmc.NewBinaryExpr(tsmc.SLT, tsmc.NewToIntExpr(x), n), tsmc.True()},
		{"ToBV", tsmc.NewToBVExpr(n, 8), tsmc.NewConstantExpr(7, 8)},
		{"SelectStored", tsmc.NewSelectExpr(mem, y), tsmc.NewConstantExpr(1, 8)},
		{"SelectDefault", tsmc.NewSelectExpr(mem, x), tsmc.NewConstantExpr(0, 8)},
		{"StoreDefault", tsmc.NewStoreExpr(mem, y, tsmc.NewConstantExpr(0, 8)), zeroes},
		{"ArrayEq", tsmc.NewEqExpr(mem, tsmc.NewStoreExpr(tsmc.NewStoreExpr(zeroes, x, tsmc.NewConstantExpr(0, 8)), y, tsmc.NewConstantExpr(1, 8))), tsmc.True()},
		{"ArrayNe", tsmc.NewBinaryExpr(tsmc.NE, mem, zeroes), tsmc.True()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ee.Evaluate(tt.expr)
			if err != nil {
				t.Fatal(err)
			} else if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}

	t.Run("ShortCircuit", func(t *testing.T) {
		b := tsmc.NewSymbol("b", tsmc.BoolSort())
		unbound := tsmc.NewSymbol("z", tsmc.BoolSort())
		ee := tsmc.NewExprEvaluator(map[*tsmc.Symbol]tsmc.Expr{b: tsmc.False()})

		if ok, err := ee.EvaluateBool(tsmc.NewAndExpr(b, unbound)); err != nil {
			t.Fatal(err)
		} else if ok {
			t.Fatal("expected false")
		}
		if ok, err := ee.EvaluateBool(tsmc.NewOrExpr(tsmc.NewNotExpr(b), unbound)); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected true")
		}
	})

	t.Run("ErrUnbound", func(t *testing.T) {
		z := tsmc.NewSymbol("z", bv8)
		if _, err := ee.Evaluate(tsmc.NewBinaryExpr(tsmc.ADD, x, z)); err == nil || err.Error() != "symbol not bound: z" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrApply", func(t *testing.T) {
		f := tsmc.NewFuncDecl("f", []tsmc.Sort{bv8}, bv8)
		if _, err := ee.Evaluate(tsmc.NewApplyExpr(f, x)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("ErrNotBool", func(t *testing.T) {
		if _, err := ee.EvaluateBool(x); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestExprEvaluator_Complete(t *testing.T) {
	x := tsmc.NewSymbol("x", bv8)
	n := tsmc.NewSymbol("n", tsmc.IntSort())
	mem := tsmc.NewSymbol("mem", tsmc.ArraySort(bv8, bv16))

	ee := tsmc.NewExprEvaluator(nil)
	ee.Complete = true

	for _, tt := range []struct {
		expr tsmc.Expr
		want tsmc.Expr
	}{
		{tsmc.NewBinaryExpr(tsmc.ADD, x, tsmc.NewConstantExpr(2, 8)), tsmc.NewConstantExpr(2, 8)},
		{n, tsmc.NewIntExpr(0)},
		{tsmc.NewSelectExpr(mem, x), tsmc.NewConstantExpr(0, 16)},
	} {
		if got, err := ee.Evaluate(tt.expr); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestZeroValue(t *testing.T) {
	if diff := cmp.Diff("S!val!0", tsmc.ZeroValue(tsmc.UninterpretedSort("S")).String()); diff != "" {
		t.Fatal(diff)
	} else if diff := cmp.Diff("(constarr (array bv8 bool) false)", tsmc.ZeroValue(tsmc.ArraySort(bv8, tsmc.BoolSort())).String()); diff != "" {
		t.Fatal(diff)
	}
}
