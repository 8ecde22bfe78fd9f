// Package aiger reads and-inverter graphs in the AIGER format into
// transition systems.
package aiger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/tsmc"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/logic/aiger"
	"github.com/go-air/gini/z"
)

// ErrNoProperty is returned when the file has no bad-state or output literals.
var ErrNoProperty = errors.New("aiger: no property")

// Model is an AIGER circuit translated into a transition system.
type Model struct {
	System *tsmc.TransitionSystem

	Inputs  []*tsmc.Symbol
	Latches []*tsmc.Symbol

	// One property per bad-state literal. Files without bad-state literals
	// use their outputs instead.
	Properties []*tsmc.Property
}

// Property returns the nth property.
func (m *Model) Property(n int) (*tsmc.Property, error) {
	if len(m.Properties) == 0 {
		return nil, ErrNoProperty
	} else if n < 0 || n >= len(m.Properties) {
		return nil, fmt.Errorf("aiger: property index %d out of range [0,%d)", n, len(m.Properties))
	}
	return m.Properties[n], nil
}

// ReadFile reads an AIGER file from path.
func ReadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Read reads an ascii ("aag") or binary ("aig") AIGER file.
func Read(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)
	hdr, err := br.Peek(3)
	if err != nil {
		return nil, fmt.Errorf("aiger: read header: %w", err)
	}

	var a *aiger.T
	switch string(hdr) {
	case "aag":
		a, err = aiger.ReadAscii(br)
	case "aig":
		a, err = aiger.ReadBinary(br)
	default:
		return nil, fmt.Errorf("aiger: unknown header %q", hdr)
	}
	if err != nil {
		return nil, fmt.Errorf("aiger: %w", err)
	}
	return translate(a)
}

// translator maps circuit literals to terms.
type translator struct {
	a     *aiger.T
	syms  map[z.Var]*tsmc.Symbol
	gates map[z.Var]tsmc.Expr
}

func translate(a *aiger.T) (*Model, error) {
	tr := &translator{
		a:     a,
		syms:  make(map[z.Var]*tsmc.Symbol),
		gates: make(map[z.Var]tsmc.Expr),
	}
	ts := tsmc.NewTransitionSystem()
	m := &Model{System: ts}

	for i, in := range a.Inputs {
		name, ok := a.InputName(i)
		if !ok {
			name = fmt.Sprintf("i%d", i)
		}
		v, err := ts.NewInputVar(name, tsmc.BoolSort())
		if err != nil {
			return nil, err
		}
		tr.syms[in.Var()] = v
		m.Inputs = append(m.Inputs, v)
	}

	for i, latch := range a.Latches {
		name, ok := a.LatchName(i)
		if !ok {
			name = fmt.Sprintf("l%d", i)
		}
		v, err := ts.NewStateVar(name, tsmc.BoolSort())
		if err != nil {
			return nil, err
		}
		tr.syms[latch.Var()] = v
		m.Latches = append(m.Latches, v)
	}

	for i, latch := range a.Latches {
		v := m.Latches[i]
		switch a.Init(latch) {
		case a.F:
			if err := ts.AddInit(tsmc.NewNotExpr(v)); err != nil {
				return nil, err
			}
		case a.T:
			if err := ts.AddInit(v); err != nil {
				return nil, err
			}
		}

		next, err := tr.expr(a.Next(latch))
		if err != nil {
			return nil, err
		}
		if err := ts.AssignNext(v, next); err != nil {
			return nil, err
		}
	}

	for _, c := range a.Constraints {
		expr, err := tr.expr(c)
		if err != nil {
			return nil, err
		}
		if err := ts.Constrain(expr); err != nil {
			return nil, err
		}
	}

	bad, names := a.Bad, a.BadName
	if len(bad) == 0 {
		bad, names = a.Outputs, a.OutputName
	}
	for i, b := range bad {
		expr, err := tr.expr(b)
		if err != nil {
			return nil, err
		}
		name, ok := names(i)
		if !ok {
			name = fmt.Sprintf("p%d", i)
		}
		prop, err := tsmc.NewProperty(name, ts, tsmc.NewNotExpr(expr))
		if err != nil {
			return nil, err
		}
		m.Properties = append(m.Properties, prop)
	}
	return m, nil
}

// expr returns the term for literal m. Gates are translated once.
func (tr *translator) expr(m z.Lit) (tsmc.Expr, error) {
	expr, err := tr.node(m.Var())
	if err != nil {
		return nil, err
	}
	if !m.IsPos() {
		return tsmc.NewNotExpr(expr), nil
	}
	return expr, nil
}

func (tr *translator) node(v z.Var) (tsmc.Expr, error) {
	if sym, ok := tr.syms[v]; ok {
		return sym, nil
	} else if expr, ok := tr.gates[v]; ok {
		return expr, nil
	}

	m := v.Pos()
	switch tr.a.Type(m) {
	case logic.SConst:
		if m == tr.a.T {
			return tsmc.True(), nil
		}
		return tsmc.False(), nil
	case logic.SAnd:
		x, y := tr.a.Ins(m)
		lhs, err := tr.expr(x)
		if err != nil {
			return nil, err
		}
		rhs, err := tr.expr(y)
		if err != nil {
			return nil, err
		}
		expr := tsmc.NewBinaryExpr(tsmc.AND, lhs, rhs)
		tr.gates[v] = expr
		return expr, nil
	default:
		return nil, fmt.Errorf("aiger: undefined literal %s", m)
	}
}
