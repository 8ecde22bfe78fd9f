package tsmc

import (
	"container/heap"
	"fmt"
	"strconv"
)

var _ Prover = (*IC3)(nil)

// IC3Formula is a cube (conjunction) or clause (disjunction) of literals over
// current-state variables. Inputs and Nexts carry literals over input and
// next-state variables that were observed alongside the formula. They are
// only used during generalization and are dropped before the formula is
// stored in a frame.
type IC3Formula struct {
	Literals    []Expr
	Disjunction bool

	Inputs []Expr
	Nexts  []Expr
}

// NewCube returns a cube of the given literals.
func NewCube(lits ...Expr) IC3Formula {
	return IC3Formula{Literals: lits}
}

// Term returns the formula as a single boolean term.
func (f IC3Formula) Term() Expr {
	if f.Disjunction {
		return NewOrExpr(f.Literals...)
	}
	return NewAndExpr(f.Literals...)
}

// Negate returns the negation of the formula. A cube becomes a clause and a
// clause becomes a cube. Provenance is not carried over.
func (f IC3Formula) Negate() IC3Formula {
	lits := make([]Expr, len(f.Literals))
	for i, lit := range f.Literals {
		lits[i] = NewNotExpr(lit)
	}
	return IC3Formula{Literals: lits, Disjunction: !f.Disjunction}
}

// String returns the string representation of the formula.
func (f IC3Formula) String() string { return f.Term().String() }

// IC3Strategy is the table of operations that specializes the IC3 engine.
type IC3Strategy struct {
	// Returns a cube over the state variables from the current model, with
	// input and next-state provenance.
	GetFormula func(ic *IC3) (IC3Formula, error)

	// Reports whether a formula can be stored in a frame.
	CheckValid func(ic *IC3, f IC3Formula) bool

	// Returns clauses that block cube c at frame i. Called only when c is
	// relatively inductive to frame i-1.
	InductiveGeneralization func(ic *IC3, i int, c IC3Formula) ([]IC3Formula, error)

	// Returns a cube of predecessor states of cube c from the current model
	// of a satisfiable relative induction query at frame i.
	GeneralizePredecessor func(ic *IC3, i int, c IC3Formula) (IC3Formula, error)

	// Rejects transition systems the strategy cannot handle.
	CheckTS func(ts *TransitionSystem) error

	// Checks whether the top frame intersects the bad states. Returns a
	// generalized bad cube if it does.
	IntersectsBad func(ic *IC3) (IC3Formula, bool, error)

	// Called at the end of engine initialization.
	Initialize func(ic *IC3) error
}

// IC3 is a property directed reachability engine. Frames are stored as
// deltas: frame i holds only the clauses that do not also hold in frame i+1.
type IC3 struct {
	prover

	strategy IC3Strategy

	initLabel   *Symbol
	transLabel  *Symbol
	labels      []*Symbol // frame activation labels, index 0 unused
	frames      []ExprSet // delta clauses per frame, index 0 unused
	obligations obligationQueue
	seq         int

	invariant   Expr
	witness     Witness
	initialized bool
}

// NewIC3 returns a new IC3 engine for prop using the given strategy.
func NewIC3(prop *Property, s Solver, strategy IC3Strategy, opts Options) *IC3 {
	return &IC3{
		prover:   newProver(EngineIC3, prop, s, opts),
		strategy: strategy,
	}
}

// Solver returns the solver used by the engine.
func (ic *IC3) Solver() Solver { return ic.solver }

// System returns the transition system being checked.
func (ic *IC3) System() *TransitionSystem { return ic.ts }

// Frames returns the delta clause sets of each frame. Index 0 is the initial
// state frame and is always empty.
func (ic *IC3) Frames() []ExprSet {
	return append([]ExprSet{}, ic.frames...)
}

// top returns the index of the highest frame.
func (ic *IC3) top() int { return len(ic.frames) - 1 }

// Initialize checks the system, asserts the state constraints, the labeled
// transition relation and initial states, and creates the initial frame.
func (ic *IC3) Initialize() error {
	if err := ic.strategy.CheckTS(ic.ts); err != nil {
		return err
	}

	if ic.initialized {
		if err := ic.solver.Pop(); err != nil {
			return err
		}
		ic.initialized = false
	}
	ic.reset()
	ic.labels, ic.frames = nil, nil
	ic.obligations, ic.seq = nil, 0
	ic.invariant, ic.witness = nil, nil

	if err := ic.solver.Push(); err != nil {
		return err
	}
	ic.initialized = true

	// States outside the state constraints do not exist. The transition
	// relation is only assumed by queries about successors so that states
	// without a successor are still checked against the property.
	for _, c := range ic.ts.Constraints() {
		if !ic.ts.OnlyCurr(c) {
			continue
		} else if err := ic.solver.Assert(c); err != nil {
			return fmt.Errorf("assert constraint: %w", err)
		}
	}
	ic.transLabel = NewSymbol("__ic3_trans_"+ic.attempt, BoolSort())
	if err := ic.solver.Assert(NewImpliesExpr(ic.transLabel, ic.ts.Trans())); err != nil {
		return fmt.Errorf("assert trans: %w", err)
	}

	ic.initLabel = NewSymbol("__ic3_init_"+ic.attempt, BoolSort())
	if err := ic.solver.Assert(NewImpliesExpr(ic.initLabel, ic.ts.Init())); err != nil {
		return fmt.Errorf("assert init: %w", err)
	}

	ic.labels = []*Symbol{nil}
	ic.frames = []ExprSet{NewExprSet()}

	if ic.strategy.Initialize != nil {
		return ic.strategy.Initialize(ic)
	}
	return nil
}

// CheckUntil runs IC3 steps up to k.
func (ic *IC3) CheckUntil(k int) (Result, error) {
	if !ic.initialized {
		return ResultUnknown, ErrNotInitialized
	}
	return ic.check(k, func() (Result, error) {
		for i := ic.reachedK + 1; i <= k; i++ {
			if err := ic.canceled(); err != nil {
				return ResultUnknown, err
			}

			result, err := ic.step(i)
			if err != nil || result != ResultUnknown {
				return result, err
			}
			ic.reachedK = i
		}
		return ResultUnknown, nil
	})
}

// step checks for counterexamples of length i and then propagates.
func (ic *IC3) step(i int) (Result, error) {
	if i == 0 {
		sat, err := ic.solver.Check(ic.initLabel, ic.bad)
		if err != nil {
			return ResultUnknown, err
		} else if sat {
			return ic.disproved(0)
		}
		ic.pushFrame()
		return ResultUnknown, nil
	}

	assert(ic.top() == i, "ic3: frame mismatch: top=%d step=%d", ic.top(), i)

	// Block every bad cube at the top frame.
	for {
		cube, ok, err := ic.strategy.IntersectsBad(ic)
		if err != nil {
			return ResultUnknown, err
		} else if !ok {
			break
		}

		depth, err := ic.block(cube, ic.top())
		if err != nil {
			return ResultUnknown, err
		} else if depth >= 0 {
			return ic.disproved(depth)
		}
	}

	ic.pushFrame()
	fixpoint, err := ic.propagate()
	if err != nil {
		return ResultUnknown, err
	} else if fixpoint {
		ic.logger.Info("property proved", "frames", len(ic.frames))
		return ResultTrue, nil
	}
	return ResultUnknown, nil
}

// pushFrame adds a new empty frame at the top.
func (ic *IC3) pushFrame() {
	n := len(ic.frames)
	ic.labels = append(ic.labels, NewSymbol("__ic3_frame_"+strconv.Itoa(n)+"_"+ic.attempt, BoolSort()))
	ic.frames = append(ic.frames, NewExprSet())
	ic3Frames.Set(float64(len(ic.frames)))
	ic.logger.Debug("frame added", "frame", n)
}

// FrameAssumptions returns the activation labels that select frame i.
func (ic *IC3) FrameAssumptions(i int) []Expr {
	if i == 0 {
		return []Expr{ic.initLabel}
	}
	a := make([]Expr, 0, len(ic.labels)-i)
	for j := i; j < len(ic.labels); j++ {
		a = append(a, ic.labels[j])
	}
	return a
}

// TransAssumptions returns the activation labels that select frame i and the
// transition relation.
func (ic *IC3) TransAssumptions(i int) []Expr {
	return append(ic.FrameAssumptions(i), ic.transLabel)
}

// addClause stores clause c in frame i.
func (ic *IC3) addClause(i int, c IC3Formula) error {
	assert(i > 0 && i <= ic.top(), "ic3: add clause to invalid frame %d", i)
	assert(ic.strategy.CheckValid(ic, c), "ic3: invalid frame clause: %s", c)

	term := c.Term()
	if ic.frames[i].Has(term) {
		return nil
	}
	if err := ic.solver.Assert(NewImpliesExpr(ic.labels[i], term)); err != nil {
		return err
	}
	ic.frames[i] = ic.frames[i].Add(term)
	ic3Clauses.Inc()
	ic.logger.Debug("clause added", "frame", i, "clause", term.String())
	return nil
}

// intersectsInit returns true if cube c contains an initial state.
func (ic *IC3) intersectsInit(c IC3Formula) (bool, error) {
	return ic.solver.Check(append([]Expr{ic.initLabel}, c.Literals...)...)
}

// relInd checks F[i-1] & !c & T & c'. If unsatisfiable, the returned core is
// the subset of c's literals whose next-state forms were in the unsat core.
// If satisfiable, the model is still available when relInd returns.
func (ic *IC3) relInd(i int, c IC3Formula) (sat bool, core []Expr, err error) {
	assert(i > 0, "ic3: relative induction at frame %d", i)

	nexts := make([]Expr, len(c.Literals))
	for j, lit := range c.Literals {
		if nexts[j], err = ic.ts.ToNext(lit); err != nil {
			return false, nil, err
		}
	}

	assumptions := append(ic.TransAssumptions(i-1), NewNotExpr(c.Term()))
	assumptions = append(assumptions, nexts...)
	if sat, err = ic.solver.Check(assumptions...); err != nil || sat {
		return sat, nil, err
	}

	coreExprs, err := ic.solver.UnsatCore()
	if err != nil {
		return false, nil, err
	}
	inCore := NewExprSet(coreExprs...)
	for j, next := range nexts {
		if inCore.Has(next) {
			core = append(core, c.Literals[j])
		}
	}
	return false, core, nil
}

// block blocks cube c at frame i by recursively blocking its predecessors,
// lowest frame first. Returns the length of a counterexample if one is
// found, or -1 if c was blocked.
func (ic *IC3) block(c IC3Formula, i int) (int, error) {
	ic.obligations = ic.obligations[:0]
	ic.addObligation(&proofObligation{cube: c, frame: i})

	for ic.obligations.Len() > 0 {
		ob := ic.selectObligation()

		if ok, err := ic.intersectsInit(ob.cube); err != nil {
			return -1, err
		} else if ok {
			return ob.depth, nil
		}

		// Skip obligations already blocked by a clause added since they
		// were queued.
		if sat, err := ic.solver.Check(append(ic.FrameAssumptions(ob.frame), ob.cube.Literals...)...); err != nil {
			return -1, err
		} else if !sat {
			continue
		}

		sat, _, err := ic.relInd(ob.frame, ob.cube)
		if err != nil {
			return -1, err
		} else if sat {
			// A predecessor in the initial states is a counterexample.
			if ob.frame == 1 {
				return ob.depth + 1, nil
			}

			pred, err := ic.strategy.GeneralizePredecessor(ic, ob.frame, ob.cube)
			if err != nil {
				return -1, err
			}
			ic.addObligation(ob)
			ic.addObligation(&proofObligation{cube: pred, frame: ob.frame - 1, depth: ob.depth + 1, next: ob})
			continue
		}

		clauses, err := ic.strategy.InductiveGeneralization(ic, ob.frame, ob.cube)
		if err != nil {
			return -1, err
		}
		for _, clause := range clauses {
			j, err := ic.pushForward(ob.frame, clause)
			if err != nil {
				return -1, err
			} else if err := ic.addClause(j, clause); err != nil {
				return -1, err
			}
		}
	}
	return -1, nil
}

// pushForward returns the highest frame, starting at i, at which the cube
// blocked by clause is still relatively inductive.
func (ic *IC3) pushForward(i int, clause IC3Formula) (int, error) {
	cube := clause.Negate()
	for i < ic.top() {
		sat, _, err := ic.relInd(i+1, cube)
		if err != nil {
			return i, err
		} else if sat {
			break
		}
		i++
	}
	return i, nil
}

// propagate moves clauses forward while they remain inductive relative to
// their frame. Returns true if a frame becomes empty, which means the frame
// equals its successor and the property is proved.
func (ic *IC3) propagate() (bool, error) {
	for i := 1; i < ic.top(); i++ {
		for _, term := range ic.frames[i].Slice() {
			next, err := ic.ts.ToNext(term)
			if err != nil {
				return false, err
			}
			sat, err := ic.solver.Check(append(ic.TransAssumptions(i), NewNotExpr(next))...)
			if err != nil {
				return false, err
			} else if sat {
				continue
			}

			if err := ic.solver.Assert(NewImpliesExpr(ic.labels[i+1], term)); err != nil {
				return false, err
			}
			ic.frames[i] = ic.frames[i].Remove(term)
			ic.frames[i+1] = ic.frames[i+1].Add(term)
		}

		if ic.frames[i].Len() == 0 {
			if err := ic.setInvariant(i + 1); err != nil {
				return false, err
			}
			return true, ic.checkInvariants()
		}
	}
	return false, ic.checkInvariants()
}

// setInvariant records the conjunction of the clauses in frames i and above
// together with the state-only system constraints. The frame must exclude
// every bad state.
func (ic *IC3) setInvariant(i int) error {
	sat, err := ic.solver.Check(append(ic.FrameAssumptions(i), ic.bad)...)
	if err != nil {
		return err
	}
	assert(!sat, "ic3: invariant frame %d intersects bad states", i)

	var a []Expr
	for j := i; j < len(ic.frames); j++ {
		a = append(a, ic.frames[j].Slice()...)
	}
	for _, c := range ic.ts.Constraints() {
		if ic.ts.OnlyCurr(c) {
			a = append(a, c)
		}
	}
	ic.invariant = NewAndExpr(a...)
	return nil
}

// checkInvariants verifies that every frame contains the initial states and
// that every clause is inductive relative to the previous frame.
func (ic *IC3) checkInvariants() error {
	if !ic.opts.CheckInvariants {
		return nil
	}
	for i := 1; i < len(ic.frames); i++ {
		for _, term := range ic.frames[i].Slice() {
			sat, err := ic.solver.Check(ic.initLabel, NewNotExpr(term))
			if err != nil {
				return err
			}
			assert(!sat, "ic3: frame %d clause excludes initial state: %s", i, term)

			next, err := ic.ts.ToNext(term)
			if err != nil {
				return err
			}
			sat, err = ic.solver.Check(append(ic.TransAssumptions(i-1), NewNotExpr(next))...)
			if err != nil {
				return err
			}
			assert(!sat, "ic3: frame %d clause not relatively inductive: %s", i, term)
		}
	}
	return nil
}

// disproved records a counterexample of the given length.
func (ic *IC3) disproved(depth int) (Result, error) {
	ic.logger.Info("counterexample found", "depth", depth)
	if err := ic.buildWitness(depth); err != nil {
		return ResultUnknown, fmt.Errorf("build witness: %w", err)
	}
	return ResultFalse, nil
}

// buildWitness reconstructs a concrete counterexample of the given length
// with a bounded unrolling on the engine's solver.
func (ic *IC3) buildWitness(depth int) error {
	u, err := newSystemUnroller(ic.ts, ic.opts.UnrollInterval)
	if err != nil {
		return err
	}
	exprs, err := unrollPath(u, depth)
	if err != nil {
		return err
	}
	bad, err := u.AtTime(ic.bad, depth)
	if err != nil {
		return err
	}

	return scoped(ic.solver, func() error {
		for _, expr := range exprs {
			if err := ic.solver.Assert(expr); err != nil {
				return err
			}
		}
		sat, err := ic.solver.Check(bad)
		if err != nil {
			return err
		}
		assert(sat, "ic3: counterexample of length %d not reproducible", depth)

		w, err := extractWitness(ic.solver, u, depth)
		if err != nil {
			return err
		}
		ic.witness, ic.reachedK = w, depth
		return nil
	})
}

// Witness returns the counterexample found by the last CheckUntil.
func (ic *IC3) Witness() (Witness, error) {
	if ic.witness == nil {
		return nil, ErrNoWitness
	}
	return ic.witness, nil
}

// Invariant returns the inductive invariant found by the last CheckUntil.
func (ic *IC3) Invariant() (Expr, error) {
	if ic.invariant == nil {
		return nil, ErrNoInvariant
	}
	return ic.invariant, nil
}

// proofObligation is a cube that must be blocked at a frame. depth is the
// number of transitions from the cube to a bad state.
type proofObligation struct {
	cube  IC3Formula
	frame int
	depth int
	seq   int
	next  *proofObligation
}

// obligationQueue orders obligations by frame, lowest first. Among equal
// frames the most recent obligation is selected first.
type obligationQueue []*proofObligation

func (q obligationQueue) Len() int { return len(q) }

func (q obligationQueue) Less(i, j int) bool {
	if q[i].frame != q[j].frame {
		return q[i].frame < q[j].frame
	}
	return q[i].seq > q[j].seq
}

func (q obligationQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *obligationQueue) Push(x interface{}) { *q = append(*q, x.(*proofObligation)) }

func (q *obligationQueue) Pop() interface{} {
	old := *q
	ob := old[len(old)-1]
	*q = old[:len(old)-1]
	return ob
}

// addObligation adds an obligation to the queue.
func (ic *IC3) addObligation(ob *proofObligation) {
	ic.seq++
	ob.seq = ic.seq
	heap.Push(&ic.obligations, ob)
}

// selectObligation returns the next obligation to process.
func (ic *IC3) selectObligation() *proofObligation {
	return heap.Pop(&ic.obligations).(*proofObligation)
}
