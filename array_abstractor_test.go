package tsmc_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/google/go-cmp/cmp"
)

func TestAxiomClass(t *testing.T) {
	for _, tt := range []struct {
		class   tsmc.AxiomClass
		name    string
		indexed bool
	}{
		{tsmc.CONSTARR, "CONSTARR", true},
		{tsmc.CONSTARR_LAMBDA, "CONSTARR_LAMBDA", false},
		{tsmc.STORE_WRITE, "STORE_WRITE", false},
		{tsmc.STORE_READ, "STORE_READ", true},
		{tsmc.STORE_READ_LAMBDA, "STORE_READ_LAMBDA", false},
		{tsmc.ARRAYEQ_WITNESS, "ARRAYEQ_WITNESS", true},
		{tsmc.ARRAYEQ_READ, "ARRAYEQ_READ", true},
		{tsmc.ARRAYEQ_READ_LAMBDA, "ARRAYEQ_READ_LAMBDA", false},
		{tsmc.AxiomClass(0), "AxiomClass<0>", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.class.String(); got != tt.name {
				t.Fatalf("String()=%q, want %q", got, tt.name)
			} else if got := tt.class.IsIndexed(); got != tt.indexed {
				t.Fatalf("IsIndexed()=%v, want %v", got, tt.indexed)
			}
		})
	}
}

func TestArrayAbstractor(t *testing.T) {
	p := NewMemoryProperty(t, 1)
	ts := p.System
	mem, _ := ts.Lookup("mem")

	aa, err := tsmc.NewArrayAbstractor(p)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Sorts", func(t *testing.T) {
		abs := aa.AbstractSystem()
		v, ok := abs.Lookup("mem")
		if !ok {
			t.Fatal("expected abstract state variable")
		} else if diff := cmp.Diff(tsmc.UninterpretedSort("Array_0_array_bv8_bv8"), v.Sort); diff != "" {
			t.Fatal(diff)
		}
		if i, ok := abs.Lookup("i"); !ok || !i.Sort.Equal(bv8) {
			t.Fatal("expected index input to keep its sort")
		}
	})

	t.Run("Abstract", func(t *testing.T) {
		update, _ := ts.Update(mem)
		for _, tt := range []struct {
			expr tsmc.Expr
			want string
		}{
			{tsmc.NewSelectExpr(mem, tsmc.NewConstantExpr(3, 8)), "(read_0 mem 3)"},
			{update, "(write_0 mem (to_int i) (const 1 8))"},
			{ts.Init(), "(arrayeq_0 mem (constarr_0 (const 0 8)))"},
		} {
			got, err := aa.Abstract(tt.expr)
			if err != nil {
				t.Fatal(err)
			} else if diff := cmp.Diff(tt.want, got.String()); diff != "" {
				t.Fatal(diff)
			}
		}
	})

	t.Run("Concretize", func(t *testing.T) {
		update, _ := ts.Update(mem)
		for _, expr := range []tsmc.Expr{ts.Init(), update, p.Expr} {
			abs, err := aa.Abstract(expr)
			if err != nil {
				t.Fatal(err)
			} else if diff := cmp.Diff(expr, aa.Concretize(abs)); diff != "" {
				t.Fatal(diff)
			}
		}
	})

	t.Run("Property", func(t *testing.T) {
		if diff := cmp.Diff("(not (eq (const 1 8) (read_0 mem 3)))", aa.AbstractProperty().Expr.String()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ErrUnsupportedSort", func(t *testing.T) {
		ts := tsmc.NewTransitionSystem()
		nested := MustStateVar(t, ts, "nested", tsmc.ArraySort(tsmc.ArraySort(bv8, bv8), bv8))
		p := MustNewProperty(t, "p", ts, tsmc.NewEqExpr(nested, nested))
		if _, err := tsmc.NewArrayAbstractor(p); !errors.Is(err, tsmc.ErrUnsupportedSort) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestNewArrayAxiomEnumerator(t *testing.T) {
	p := NewMemoryProperty(t, 1)
	aa, err := tsmc.NewArrayAbstractor(p)
	if err != nil {
		t.Fatal(err)
	}
	e, err := tsmc.NewArrayAxiomEnumerator(aa, p, NewSolver(t), tsmc.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Index", func(t *testing.T) {
		idx := e.Index()
		if diff := cmp.Diff([]string{"(constarr_0 (const 0 8))"}, exprStrings(idx.ConstArrays())); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]string{"(write_0 mem (to_int i) (const 1 8))"}, exprStrings(idx.Stores())); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]string{"(arrayeq_0 mem (constarr_0 (const 0 8)))"}, exprStrings(idx.ArrayEqs())); diff != "" {
			t.Fatal(diff)
		}

		if diff := cmp.Diff([]string{"3"}, exprStrings(idx.Indices(bv8, true))); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]string{"(to_int i)", "3"}, exprStrings(idx.Indices(bv8, false))); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Vars", func(t *testing.T) {
		abs := aa.AbstractSystem()
		if w, ok := abs.Lookup("witness_0"); !ok || !abs.IsInput(w) || !w.Sort.Equal(bv8) {
			t.Fatal("expected index-sorted witness input")
		}
		lambda, ok := abs.Lookup("lambda_0")
		if !ok || !abs.IsCurr(lambda) || !lambda.Sort.IsInt() {
			t.Fatal("expected integer lambda state variable")
		} else if update, ok := abs.Update(lambda); !ok || update != tsmc.Expr(lambda) {
			t.Fatal("expected frozen lambda")
		}
	})

	t.Run("LambdaConstraints", func(t *testing.T) {
		a := e.LambdaConstraints()
		if len(a) != 1 {
			t.Fatalf("unexpected constraint count: %d", len(a))
		}
		names := symbolNames(a[0])
		if diff := cmp.Diff([]string{"lambda_0"}, names); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("NoAxioms", func(t *testing.T) {
		if len(e.ConsecutiveAxioms()) != 0 || len(e.NonConsecutiveAxioms()) != 0 {
			t.Fatal("expected no axioms before enumeration")
		}
	})
}

// NewMemoryProperty returns a system with an 8-bit memory that starts zeroed
// and has 1 written at an input index every step, and the property that
// address 3 never holds value.
func NewMemoryProperty(tb testing.TB, value uint64) *tsmc.Property {
	tb.Helper()
	ts := tsmc.NewTransitionSystem()
	memSort := tsmc.ArraySort(bv8, bv8)
	mem := MustStateVar(tb, ts, "mem", memSort)
	i := MustInputVar(tb, ts, "i", bv8)
	MustAddInit(tb, ts, tsmc.NewEqExpr(mem, tsmc.NewConstArrayExpr(memSort, tsmc.NewConstantExpr(0, 8))))
	MustAssignNext(tb, ts, mem, tsmc.NewStoreExpr(mem, i, tsmc.NewConstantExpr(1, 8)))
	return MustNewProperty(tb, "memory", ts, tsmc.NewBinaryExpr(tsmc.NE,
		tsmc.NewSelectExpr(mem, tsmc.NewConstantExpr(3, 8)),
		tsmc.NewConstantExpr(value, 8),
	))
}

// exprStrings returns the sorted string forms of exprs.
func exprStrings(exprs []tsmc.Expr) []string {
	var a []string
	for _, expr := range exprs {
		a = append(a, expr.String())
	}
	sort.Strings(a)
	return a
}

// symbolNames returns the sorted names of the free symbols of expr.
func symbolNames(expr tsmc.Expr) []string {
	var a []string
	for _, sym := range tsmc.FreeSymbols(expr) {
		a = append(a, sym.Name)
	}
	sort.Strings(a)
	return a
}
