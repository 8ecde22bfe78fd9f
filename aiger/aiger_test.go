package aiger_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/benbjohnson/tsmc"
	"github.com/benbjohnson/tsmc/aiger"
	"github.com/benbjohnson/tsmc/sat"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

func TestReadFile(t *testing.T) {
	t.Run("Toggle", func(t *testing.T) {
		m, err := aiger.ReadFile("testdata/toggle.aag")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"toggle"}, symbolNames(m.Latches)); diff != "" {
			t.Fatal(diff)
		}
		prop := MustProperty(t, m, 0)
		if prop.Name != "on" {
			t.Fatalf("unexpected property name: %s", prop.Name)
		}

		// The latch starts low and flips every step.
		b := tsmc.NewBMC(prop, sat.NewSolver(), tsmc.DefaultOptions())
		if result, err := tsmc.Prove(b, 3); err != nil {
			t.Fatal(err)
		} else if result != tsmc.ResultFalse {
			t.Fatalf("unexpected result: %s", result)
		}

		w, err := b.Witness()
		if err != nil {
			t.Fatal(err)
		}
		want := tsmc.Witness{
			{"toggle": tsmc.False()},
			{"toggle": tsmc.True()},
		}
		if diff := cmp.Diff(want, w); diff != "" {
			t.Fatalf("%s\n%s", diff, spew.Sdump(w))
		}
	})
}

func TestRead(t *testing.T) {
	t.Run("AndGate", func(t *testing.T) {
		// seen' = seen | req, bad = seen
		m, err := aiger.Read(strings.NewReader("aag 3 1 1 1 1\n2\n4 7\n4\n6 5 3\ni0 req\nl0 seen\n"))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"req"}, symbolNames(m.Inputs)); diff != "" {
			t.Fatal(diff)
		}

		b := tsmc.NewBMC(MustProperty(t, m, 0), sat.NewSolver(), tsmc.DefaultOptions())
		if result, err := tsmc.Prove(b, 2); err != nil {
			t.Fatal(err)
		} else if result != tsmc.ResultFalse {
			t.Fatalf("unexpected result: %s", result)
		}

		w, err := b.Witness()
		if err != nil {
			t.Fatal(err)
		} else if len(w) != 2 {
			t.Fatalf("unexpected witness length: %s", spew.Sdump(w))
		}
		if diff := cmp.Diff(tsmc.Expr(tsmc.True()), w[0]["req"]); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(tsmc.Expr(tsmc.True()), w[1]["seen"]); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("DefaultNames", func(t *testing.T) {
		m, err := aiger.Read(strings.NewReader("aag 2 1 1 0 0\n2\n4 2\n"))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"i0"}, symbolNames(m.Inputs)); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff([]string{"l0"}, symbolNames(m.Latches)); diff != "" {
			t.Fatal(diff)
		}
		if _, err := m.Property(0); !errors.Is(err, aiger.ErrNoProperty) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("PropertyOutOfRange", func(t *testing.T) {
		m, err := aiger.ReadFile("testdata/toggle.aag")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Property(1); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("ErrUnknownHeader", func(t *testing.T) {
		if _, err := aiger.Read(strings.NewReader("p cnf 1 1\n")); err == nil {
			t.Fatal("expected error")
		}
	})
}

func MustProperty(tb testing.TB, m *aiger.Model, n int) *tsmc.Property {
	tb.Helper()
	prop, err := m.Property(n)
	if err != nil {
		tb.Fatal(err)
	}
	return prop
}

func symbolNames(syms []*tsmc.Symbol) []string {
	a := make([]string, len(syms))
	for i, sym := range syms {
		a[i] = sym.Name
	}
	return a
}
