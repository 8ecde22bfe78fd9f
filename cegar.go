package tsmc

import (
	"fmt"
)

var _ Prover = (*CegarArrays)(nil)

// CegarArrays is a bounded model checker for systems with arrays. It checks
// an abstraction without array theory and refines it with array axioms until
// a counterexample survives every axiom.
//
// It never proves a property. CheckUntil returns ResultFalse or
// ResultUnknown, and Invariant always fails.
type CegarArrays struct {
	prover

	aa          *ArrayAbstractor
	enumerator  *ArrayAxiomEnumerator
	unroller    *Unroller
	ncAxioms    []Expr
	refinements int

	witness     Witness
	initialized bool
}

// NewCegarArrays returns a new array abstraction refinement prover for prop.
func NewCegarArrays(prop *Property, s Solver, opts Options) *CegarArrays {
	return &CegarArrays{prover: newProver(EngineCegarArrays, prop, s, opts)}
}

// Initialize builds a fresh abstraction of the system.
func (c *CegarArrays) Initialize() error {
	c.reset()
	c.initialized = false
	c.witness, c.ncAxioms, c.refinements = nil, nil, 0

	aa, err := NewArrayAbstractor(c.prop)
	if err != nil {
		return fmt.Errorf("abstract arrays: %w", err)
	}
	enumerator, err := NewArrayAxiomEnumerator(aa, c.prop, c.solver, c.opts)
	if err != nil {
		return fmt.Errorf("collect arrays: %w", err)
	}
	for _, expr := range enumerator.LambdaConstraints() {
		if err := aa.AbstractSystem().Constrain(expr); err != nil {
			return err
		}
	}

	c.aa, c.enumerator, c.unroller = aa, enumerator, enumerator.Unroller()
	c.unroller.Logger = c.logger
	c.bad = aa.AbstractProperty().Bad()
	c.initialized = true
	return nil
}

// Abstractor returns the array abstraction of the current attempt.
func (c *CegarArrays) Abstractor() *ArrayAbstractor { return c.aa }

// CheckUntil checks every bound up to k. A satisfiable bound is refined until
// the abstract counterexample is consistent with array theory.
func (c *CegarArrays) CheckUntil(k int) (Result, error) {
	if !c.initialized {
		return ResultUnknown, ErrNotInitialized
	}
	return c.check(k, func() (Result, error) {
		for i := c.reachedK + 1; i <= k; i++ {
			for {
				if err := c.canceled(); err != nil {
					return ResultUnknown, err
				}

				refined, found, err := c.checkBound(i)
				if err != nil {
					return ResultUnknown, err
				} else if found {
					c.reachedK = i
					c.logger.Info("counterexample found", "bound", i, "refinements", c.refinements)
					return ResultFalse, nil
				} else if !refined {
					break
				}

				c.refinements++
				if limit := c.opts.MaxRefinements; limit > 0 && c.refinements >= limit {
					c.logger.Info("refinement limit reached", "bound", i, "refinements", c.refinements)
					return ResultUnknown, nil
				}
			}
			c.reachedK = i
		}
		return ResultUnknown, nil
	})
}

// checkBound checks the abstraction at bound i in a fresh solver scope.
// Returns refined if axioms were added and found if the counterexample is
// genuine.
func (c *CegarArrays) checkBound(i int) (refined, found bool, err error) {
	err = scoped(c.solver, func() error {
		exprs, err := unrollPath(c.unroller, i)
		if err != nil {
			return err
		}
		exprs = append(exprs, c.ncAxioms...)
		for _, expr := range exprs {
			if err := c.solver.Assert(expr); err != nil {
				return err
			}
		}

		bad, err := c.unroller.AtTime(c.bad, i)
		if err != nil {
			return fmt.Errorf("unroll bad: %w", err)
		}
		c.logger.Debug("checking bound", "bound", i)
		sat, err := c.solver.Check(bad)
		if err != nil {
			return fmt.Errorf("check bound %d: %w", i, err)
		} else if !sat {
			return nil
		}

		trace := NewAndExpr(append(exprs, bad)...)
		if refined, err = c.enumerator.EnumerateAxioms(trace, i); err != nil {
			return err
		} else if !refined {
			w, err := c.concreteWitness(i)
			if err != nil {
				return err
			}
			c.witness, found = w, true
			return nil
		}
		return c.refine()
	})
	return refined, found, err
}

// refine adds the consecutive axioms to the abstract system and keeps the
// non-consecutive axioms for later bounds.
func (c *CegarArrays) refine() error {
	ts := c.aa.AbstractSystem()
	for _, ax := range c.enumerator.ConsecutiveAxioms() {
		c.logger.Debug("consecutive axiom", "class", ax.Class.String(), "axiom", ax.Untimed.String())
		if err := ts.Constrain(ax.Untimed); err != nil {
			return fmt.Errorf("add axiom: %w", err)
		}
	}
	for _, ax := range c.enumerator.NonConsecutiveAxioms() {
		c.logger.Debug("non-consecutive axiom",
			"class", ax.Class.String(),
			"array_time", ax.ArrayTime,
			"index_time", ax.IndexTime,
		)
		c.ncAxioms = append(c.ncAxioms, ax.Axiom)
	}
	return nil
}

// concreteWitness reads the witness from the model and keeps only the
// variables of the concrete system.
func (c *CegarArrays) concreteWitness(k int) (Witness, error) {
	w, err := extractWitness(c.solver, c.unroller, k)
	if err != nil {
		return nil, err
	}
	ts := c.aa.ConcreteSystem()
	for _, step := range w {
		for name := range step {
			if _, ok := ts.Lookup(name); !ok {
				delete(step, name)
			}
		}
	}
	return w, nil
}

// Witness returns the counterexample found by the last CheckUntil. Array
// values are opaque elements of the abstract array sorts.
func (c *CegarArrays) Witness() (Witness, error) {
	if c.witness == nil {
		return nil, ErrNoWitness
	}
	return c.witness, nil
}

// Invariant always returns ErrNoInvariant.
func (c *CegarArrays) Invariant() (Expr, error) {
	return nil, ErrNoInvariant
}
