package tsmc

import (
	"errors"
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// Solver errors.
var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")

	// ErrNoModel is returned when a value is requested without a model from
	// a satisfiable check, or after the solver state changed since then.
	ErrNoModel = errors.New("tsmc: no model available")

	// ErrNoCore is returned when an unsat core is requested but the last
	// check was not unsatisfiable.
	ErrNoCore = errors.New("tsmc: no unsat core available")

	ErrUnsupportedSort = errors.New("tsmc: unsupported sort")
	ErrUnsupportedOp   = errors.New("tsmc: unsupported operation")
)

// Transition system and engine errors.
var (
	ErrDuplicateName       = errors.New("tsmc: duplicate variable name")
	ErrSortMismatch        = errors.New("tsmc: sort mismatch")
	ErrUnknownVar          = errors.New("tsmc: unknown variable")
	ErrNotFunctional       = errors.New("tsmc: transition system is not functional")
	ErrUnsupportedSystem   = errors.New("tsmc: unsupported transition system")
	ErrUnsupportedClocking = errors.New("tsmc: unsupported clocking")
	ErrNotInitialized      = errors.New("tsmc: prover not initialized")
	ErrNoWitness           = errors.New("tsmc: no witness available")
	ErrNoInvariant         = errors.New("tsmc: no invariant available")
)

// InvalidTermError is returned when a term uses a variable that is not
// permitted at the call site, such as a next-state variable passed to a
// functional unroller.
type InvalidTermError struct {
	Term   Expr
	Var    *Symbol
	Reason string
}

// Error returns the error as a string.
func (e *InvalidTermError) Error() string {
	if e.Var != nil {
		return fmt.Sprintf("tsmc: invalid term: %s: %s in %s", e.Reason, e.Var.Name, e.Term)
	}
	return fmt.Sprintf("tsmc: invalid term: %s: %s", e.Reason, e.Term)
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
