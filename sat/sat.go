package sat

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/tsmc"
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// Ensure solver implements interface.
var _ tsmc.Solver = (*Solver)(nil)

// ErrNoScope is returned by Pop when no scope is open.
var ErrNoScope = errors.New("sat: no scope to pop")

// Solver represents a bit-blasting solver backed by gini. Terms are built as
// an and-inverter graph and added to gini as clauses. Scopes are implemented
// with activation literals.
//
// Only bit-vector and boolean terms are supported.
type Solver struct {
	c    *logic.C
	g    *gini.Gini
	mark []int8

	bits   map[*tsmc.Symbol][]z.Lit
	cache  map[tsmc.Expr][]z.Lit
	scopes []z.Lit

	assumptions []assumption
	model       bool
	core        bool

	// Limits a single check. Zero means no limit.
	Timeout time.Duration

	stats Stats
}

type assumption struct {
	expr tsmc.Expr
	lit  z.Lit
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	return &Solver{
		c:     logic.NewC(),
		g:     gini.New(),
		bits:  make(map[*tsmc.Symbol][]z.Lit),
		cache: make(map[tsmc.Expr][]z.Lit),
	}
}

// Close releases the solver. Gini holds no external resources.
func (s *Solver) Close() error { return nil }

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats { return s.stats }

// Assert adds expr to the current scope.
func (s *Solver) Assert(expr tsmc.Expr) error {
	s.invalidate()
	root, err := s.lit(expr)
	if err != nil {
		return err
	}
	s.emit(root)

	if n := len(s.scopes); n > 0 {
		s.g.Add(s.scopes[n-1].Not())
	}
	s.g.Add(root)
	s.g.Add(0)
	return nil
}

// Push opens a new scope.
func (s *Solver) Push() error {
	s.invalidate()
	s.scopes = append(s.scopes, s.c.Lit())
	return nil
}

// Pop closes the innermost scope. Its assertions are disabled permanently.
func (s *Solver) Pop() error {
	s.invalidate()
	n := len(s.scopes)
	if n == 0 {
		return ErrNoScope
	}
	act := s.scopes[n-1]
	s.scopes = s.scopes[:n-1]
	s.g.Add(act.Not())
	s.g.Add(0)
	return nil
}

// Check solves the asserted constraints under the assumptions.
func (s *Solver) Check(assumptions ...tsmc.Expr) (bool, error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()
	s.invalidate()

	s.assumptions = s.assumptions[:0]
	lits := make([]z.Lit, 0, len(s.scopes)+len(assumptions))
	for _, expr := range assumptions {
		m, err := s.lit(expr)
		if err != nil {
			return false, err
		}
		s.emit(m)
		s.assumptions = append(s.assumptions, assumption{expr: expr, lit: m})
		lits = append(lits, m)
	}
	// Scope literals must be known to gini before they are assumed.
	s.emit(s.scopes...)
	lits = append(lits, s.scopes...)

	s.g.Assume(lits...)
	var ret int
	if s.Timeout > 0 {
		ret = s.g.Try(s.Timeout)
	} else {
		ret = s.g.Solve()
	}

	switch ret {
	case 1:
		s.model = true
		return true, nil
	case -1:
		s.core = true
		return false, nil
	default:
		if s.Timeout > 0 {
			return false, tsmc.ErrSolverTimeout
		}
		return false, tsmc.ErrSolverCanceled
	}
}

// Value evaluates expr under the current model. Variables that the solver
// has not seen evaluate to zero.
func (s *Solver) Value(expr tsmc.Expr) (tsmc.Expr, error) {
	if !s.model {
		return nil, tsmc.ErrNoModel
	}

	values := make(map[*tsmc.Symbol]tsmc.Expr)
	for _, sym := range tsmc.FreeSymbols(expr) {
		bits, ok := s.bits[sym]
		if !ok {
			values[sym] = tsmc.ZeroValue(sym.Sort)
			continue
		}
		var v uint64
		for i, m := range bits {
			if s.value(m) {
				v |= 1 << uint(i)
			}
		}
		values[sym] = tsmc.NewConstantExpr(v, sym.Sort.Width)
	}
	return tsmc.NewExprEvaluator(values).Evaluate(expr)
}

func (s *Solver) value(m z.Lit) bool {
	if m.Var() > s.g.MaxVar() {
		return false
	}
	return s.g.Value(m)
}

// UnsatCore returns the assumptions of the last check that gini reported as
// the reason for unsatisfiability.
func (s *Solver) UnsatCore() ([]tsmc.Expr, error) {
	if !s.core {
		return nil, tsmc.ErrNoCore
	}

	failed := make(map[z.Lit]struct{})
	for _, m := range s.g.Why(nil) {
		failed[m] = struct{}{}
	}
	var exprs []tsmc.Expr
	for _, a := range s.assumptions {
		if _, ok := failed[a.lit]; ok {
			exprs = append(exprs, a.expr)
		}
	}
	return exprs, nil
}

// invalidate discards the model and core of the last check.
func (s *Solver) invalidate() {
	s.model, s.core = false, false
}

// emit adds the clauses for every gate reachable from roots that gini has
// not seen yet.
func (s *Solver) emit(roots ...z.Lit) {
	s.mark, _ = s.c.CnfSince(s.g, s.mark, roots...)
}

// lit returns the literal of a boolean term.
func (s *Solver) lit(expr tsmc.Expr) (z.Lit, error) {
	if !tsmc.IsBoolExpr(expr) {
		return z.LitNull, fmt.Errorf("sat: expected boolean term: %s", tsmc.ExprSort(expr))
	}
	bits, err := s.blast(expr)
	if err != nil {
		return z.LitNull, err
	}
	return bits[0], nil
}

// Stats holds solver statistics.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
