package tsmc

import (
	"fmt"
)

// Solver represents an incremental logical constraint solver.
//
// Assertions are scoped by Push and Pop. A model is available after a
// satisfiable Check until the next call that changes the solver state. An
// unsat core is available after an unsatisfiable Check with assumptions.
type Solver interface {
	// Adds a boolean constraint to the current scope.
	Assert(expr Expr) error

	// Opens and closes an assertion scope.
	Push() error
	Pop() error

	// Returns the satisfiability of the asserted constraints together with
	// the assumptions. Assumptions do not persist past the call.
	Check(assumptions ...Expr) (sat bool, err error)

	// Returns the value of expr in the current model.
	// Returns ErrNoModel if no model is available.
	Value(expr Expr) (Expr, error)

	// Returns the subset of the last assumptions that is unsatisfiable.
	// Returns ErrNoCore if the last check was not unsatisfiable.
	UnsatCore() ([]Expr, error)

	Close() error
}

// ValueBool returns the boolean value of expr in the solver's model.
func ValueBool(s Solver, expr Expr) (bool, error) {
	v, err := s.Value(expr)
	if err != nil {
		return false, err
	}
	c, ok := v.(*ConstantExpr)
	if !ok || c.Width != WidthBool {
		return false, fmt.Errorf("not a boolean value: %s", v)
	}
	return c.IsTrue(), nil
}

// scoped runs fn inside a Push/Pop scope on s.
func scoped(s Solver, fn func() error) (err error) {
	if err := s.Push(); err != nil {
		return err
	}
	defer func() {
		if e := s.Pop(); e != nil && err == nil {
			err = e
		}
	}()
	return fn()
}
