package tsmc

import (
	"fmt"
)

var _ Prover = (*BMC)(nil)

// BMC is a bounded model checker. It unrolls the transition relation one
// step at a time and checks whether a bad state is reachable at that step.
type BMC struct {
	prover

	unroller    *Unroller
	witness     Witness
	initialized bool
}

// NewBMC returns a new bounded model checker for prop.
func NewBMC(prop *Property, s Solver, opts Options) *BMC {
	return &BMC{prover: newProver(EngineBMC, prop, s, opts)}
}

// Initialize resets the unrolling and asserts the initial states.
func (b *BMC) Initialize() error {
	if b.initialized {
		if err := b.solver.Pop(); err != nil {
			return err
		}
		b.initialized = false
	}
	b.reset()
	b.witness = nil

	u, err := newSystemUnroller(b.ts, b.opts.UnrollInterval)
	if err != nil {
		return err
	}
	u.Logger = b.logger
	b.unroller = u

	if err := b.solver.Push(); err != nil {
		return err
	}
	b.initialized = true

	init, err := u.AtTime(b.ts.Init(), 0)
	if err != nil {
		return fmt.Errorf("unroll init: %w", err)
	} else if err := b.solver.Assert(init); err != nil {
		return err
	}
	return nil
}

// CheckUntil checks every bound from the last reached bound up to k.
func (b *BMC) CheckUntil(k int) (Result, error) {
	if !b.initialized {
		return ResultUnknown, ErrNotInitialized
	}
	return b.check(k, func() (Result, error) {
		for i := b.reachedK + 1; i <= k; i++ {
			if err := b.canceled(); err != nil {
				return ResultUnknown, err
			}

			if i > 0 {
				exprs, err := transitionTo(b.unroller, i)
				if err != nil {
					return ResultUnknown, err
				}
				for _, expr := range exprs {
					if err := b.solver.Assert(expr); err != nil {
						return ResultUnknown, err
					}
				}
			}

			bad, err := b.unroller.AtTime(b.bad, i)
			if err != nil {
				return ResultUnknown, fmt.Errorf("unroll bad: %w", err)
			}

			b.logger.Debug("checking bound", "bound", i)
			sat, err := b.solver.Check(bad)
			if err != nil {
				return ResultUnknown, fmt.Errorf("check bound %d: %w", i, err)
			} else if sat {
				w, err := extractWitness(b.solver, b.unroller, i)
				if err != nil {
					return ResultUnknown, err
				}
				b.witness, b.reachedK = w, i
				b.logger.Info("counterexample found", "bound", i)
				return ResultFalse, nil
			}
			b.reachedK = i
		}
		return ResultUnknown, nil
	})
}

// Witness returns the counterexample found by the last CheckUntil.
func (b *BMC) Witness() (Witness, error) {
	if b.witness == nil {
		return nil, ErrNoWitness
	}
	return b.witness, nil
}

// Invariant always returns ErrNoInvariant. BMC cannot prove properties.
func (b *BMC) Invariant() (Expr, error) {
	return nil, ErrNoInvariant
}

// newSystemUnroller returns a functional unroller for functional systems and
// a baseline unroller otherwise.
func newSystemUnroller(ts *TransitionSystem, interval int) (*Unroller, error) {
	if ts.IsFunctional() {
		return NewFunctionalUnroller(ts, interval)
	}
	return NewUnroller(ts), nil
}

// transitionTo returns the constraints that extend an unrolling from step
// i-1 to step i.
func transitionTo(u *Unroller, i int) ([]Expr, error) {
	assert(i > 0, "transition to step %d", i)
	ts := u.System()

	var exprs []Expr
	if u.functional {
		exprs = append(exprs, u.extraConstraintsStep(i)...)
	} else {
		trans, err := u.AtTime(ts.Trans(), i-1)
		if err != nil {
			return nil, fmt.Errorf("unroll trans: %w", err)
		}
		exprs = append(exprs, trans)
	}

	for _, c := range ts.Constraints() {
		expr, err := u.AtTime(c, i)
		if err != nil {
			return nil, fmt.Errorf("unroll constraint: %w", err)
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// unrollPath returns the constraints of every path of length k from an
// initial state.
func unrollPath(u *Unroller, k int) ([]Expr, error) {
	init, err := u.AtTime(u.System().Init(), 0)
	if err != nil {
		return nil, err
	}
	exprs := []Expr{init}
	for i := 1; i <= k; i++ {
		a, err := transitionTo(u, i)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, a...)
	}
	return exprs, nil
}
