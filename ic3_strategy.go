package tsmc

import (
	"fmt"
)

// ModelBasedStrategy returns an IC3 strategy that builds cubes from model
// values. Bit-vector variables contribute one literal per bit.
func ModelBasedStrategy(mode GeneralizeMode) IC3Strategy {
	return IC3Strategy{
		GetFormula:              mbGetFormula,
		CheckValid:              mbCheckValid,
		InductiveGeneralization: func(ic *IC3, i int, c IC3Formula) ([]IC3Formula, error) { return mbInductiveGeneralization(ic, i, c, mode) },
		GeneralizePredecessor:   mbGeneralizePredecessor,
		CheckTS:                 mbCheckTS,
		IntersectsBad:           mbIntersectsBad,
		Initialize:              func(ic *IC3) error { return nil },
	}
}

// valueLiterals returns literals that fix each variable to its model value.
func valueLiterals(s Solver, vars []*Symbol) ([]Expr, error) {
	var lits []Expr
	for _, v := range vars {
		value, err := s.Value(v)
		if err != nil {
			return nil, err
		}

		switch {
		case v.Sort.IsBool():
			if IsConstantTrue(value) {
				lits = append(lits, v)
			} else {
				lits = append(lits, NewNotExpr(v))
			}
		case v.Sort.IsBitVec():
			c, ok := value.(*ConstantExpr)
			if !ok {
				return nil, fmt.Errorf("unexpected bit-vector value: %s = %s", v.Name, value)
			}
			for b := uint(0); b < v.Sort.Width; b++ {
				bit := NewExtractExpr(v, b, 1)
				if c.Bit(b) {
					lits = append(lits, bit)
				} else {
					lits = append(lits, NewNotExpr(bit))
				}
			}
		case v.Sort.IsInt():
			lits = append(lits, NewEqExpr(v, value))
		default:
			return nil, fmt.Errorf("%w: %s: %s", ErrUnsupportedSort, v.Name, v.Sort)
		}
	}
	return lits, nil
}

func mbGetFormula(ic *IC3) (IC3Formula, error) {
	lits, err := valueLiterals(ic.solver, ic.ts.StateVars())
	if err != nil {
		return IC3Formula{}, err
	}
	inputs, err := valueLiterals(ic.solver, ic.ts.InputVars())
	if err != nil {
		return IC3Formula{}, err
	}
	return IC3Formula{Literals: lits, Inputs: inputs}, nil
}

func mbCheckValid(ic *IC3, f IC3Formula) bool {
	if len(f.Inputs) > 0 || len(f.Nexts) > 0 {
		return false
	}
	for _, lit := range f.Literals {
		if !ic.ts.OnlyCurr(lit) {
			return false
		}
	}
	return true
}

func mbCheckTS(ts *TransitionSystem) error {
	for _, v := range ts.Vars() {
		if k := v.Sort.Kind; k != KindBitVec && k != KindInt {
			return fmt.Errorf("%w: %s has sort %s and needs an abstraction", ErrUnsupportedSystem, v.Name, v.Sort)
		}
	}
	for v, async := range ts.Clocks() {
		if async {
			return fmt.Errorf("%w: clock %s has an asynchronous reset", ErrUnsupportedClocking, v.Name)
		}
	}
	return nil
}

// shrinkCube returns the literals of cube p that the unsat core of
// p & inputs & extra contains. Returns p unchanged if the query is
// satisfiable.
func shrinkCube(s Solver, p IC3Formula, extra ...Expr) (IC3Formula, error) {
	assumptions := append(append(append([]Expr{}, p.Literals...), p.Inputs...), extra...)
	sat, err := s.Check(assumptions...)
	if err != nil {
		return IC3Formula{}, err
	} else if sat {
		return IC3Formula{Literals: p.Literals}, nil
	}

	core, err := s.UnsatCore()
	if err != nil {
		return IC3Formula{}, err
	}
	inCore := NewExprSet(core...)

	var lits []Expr
	for _, lit := range p.Literals {
		if inCore.Has(lit) {
			lits = append(lits, lit)
		}
	}
	if len(lits) == 0 && len(p.Literals) > 0 {
		lits = p.Literals[:1]
	}
	return IC3Formula{Literals: lits}, nil
}

func mbIntersectsBad(ic *IC3) (IC3Formula, bool, error) {
	sat, err := ic.solver.Check(append(ic.FrameAssumptions(ic.top()), ic.bad)...)
	if err != nil || !sat {
		return IC3Formula{}, false, err
	}

	p, err := ic.strategy.GetFormula(ic)
	if err != nil {
		return IC3Formula{}, false, err
	}
	cube, err := shrinkCube(ic.solver, p, NewNotExpr(ic.bad))
	if err != nil {
		return IC3Formula{}, false, err
	}
	ic.logger.Debug("bad cube", "frame", ic.top(), "cube", cube.String())
	return cube, true, nil
}

func mbGeneralizePredecessor(ic *IC3, i int, c IC3Formula) (IC3Formula, error) {
	p, err := ic.strategy.GetFormula(ic)
	if err != nil {
		return IC3Formula{}, err
	}
	next, err := ic.ts.ToNext(c.Term())
	if err != nil {
		return IC3Formula{}, err
	}
	return shrinkCube(ic.solver, p, ic.transLabel, NewNotExpr(next))
}

func mbInductiveGeneralization(ic *IC3, i int, c IC3Formula, mode GeneralizeMode) ([]IC3Formula, error) {
	lits := c.Literals

	if mode == GeneralizeCore {
		sat, core, err := ic.relInd(i, IC3Formula{Literals: lits})
		if err != nil {
			return nil, err
		} else if !sat && len(core) > 0 && len(core) < len(lits) {
			if ok, err := ic.intersectsInit(NewCube(core...)); err != nil {
				return nil, err
			} else if !ok {
				lits = core
			}
		}
	}

	// Drop literals while the cube stays disjoint from the initial states
	// and relatively inductive.
	for j := 0; j < len(lits) && len(lits) > 1; {
		cand := make([]Expr, 0, len(lits)-1)
		cand = append(cand, lits[:j]...)
		cand = append(cand, lits[j+1:]...)

		if ok, err := ic.intersectsInit(NewCube(cand...)); err != nil {
			return nil, err
		} else if ok {
			j++
			continue
		}

		sat, _, err := ic.relInd(i, NewCube(cand...))
		if err != nil {
			return nil, err
		} else if sat {
			j++
			continue
		}
		lits = cand
	}

	return []IC3Formula{NewCube(lits...).Negate()}, nil
}
