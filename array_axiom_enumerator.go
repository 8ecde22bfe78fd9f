package tsmc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
)

// AxiomClass identifies an array axiom schema.
type AxiomClass int

const (
	CONSTARR AxiomClass = iota + 1
	CONSTARR_LAMBDA
	STORE_WRITE
	STORE_READ
	STORE_READ_LAMBDA
	ARRAYEQ_WITNESS
	ARRAYEQ_READ
	ARRAYEQ_READ_LAMBDA
)

var axiomClassNames = [...]string{
	CONSTARR:            "CONSTARR",
	CONSTARR_LAMBDA:     "CONSTARR_LAMBDA",
	STORE_WRITE:         "STORE_WRITE",
	STORE_READ:          "STORE_READ",
	STORE_READ_LAMBDA:   "STORE_READ_LAMBDA",
	ARRAYEQ_WITNESS:     "ARRAYEQ_WITNESS",
	ARRAYEQ_READ:        "ARRAYEQ_READ",
	ARRAYEQ_READ_LAMBDA: "ARRAYEQ_READ_LAMBDA",
}

// String returns the name of the class.
func (c AxiomClass) String() string {
	if c > 0 && int(c) < len(axiomClassNames) {
		return axiomClassNames[c]
	}
	return "AxiomClass<" + strconv.Itoa(int(c)) + ">"
}

// IsIndexed returns true if the class is instantiated with an index term.
func (c AxiomClass) IsIndexed() bool {
	switch c {
	case CONSTARR, STORE_READ, ARRAYEQ_WITNESS, ARRAYEQ_READ:
		return true
	default:
		return false
	}
}

// AxiomRecord is a violated axiom that holds at every step.
type AxiomRecord struct {
	Class AxiomClass

	// Unrolled instance that the model violated.
	Axiom Expr

	// Axiom over the variables of the abstract system.
	Untimed Expr
}

// NCAxiom is a violated axiom that relates an array at one step to an index
// at another step.
type NCAxiom struct {
	Class     AxiomClass
	Axiom     Expr
	ArrayTime int
	IndexTime int
}

// ArrayAxiomEnumerator checks array axioms against the model of an abstract
// trace and collects the violated ones.
type ArrayAxiomEnumerator struct {
	aa     *ArrayAbstractor
	ts     *TransitionSystem
	u      *Unroller
	solver Solver
	opts   Options
	logger *slog.Logger

	index *ArrayIndex

	witnesses  map[Expr]Expr // arrayeq term to witness index
	lambdas    map[*abstractArraySort]*Symbol
	guards     map[*abstractArraySort]Expr
	curIndices map[string]ExprSet
	allIndices map[string]ExprSet

	consecutive    []AxiomRecord
	nonConsecutive []NCAxiom
	emitted        ExprSet
	found          int
}

// NewArrayAxiomEnumerator runs the collection pass over the concrete system
// of aa, declares the witness and lambda variables on the abstract system and
// returns an enumerator with a baseline unroller over the abstract system.
func NewArrayAxiomEnumerator(aa *ArrayAbstractor, prop *Property, s Solver, opts Options) (*ArrayAxiomEnumerator, error) {
	opts = opts.normalize()
	index, err := findArrays(aa, prop)
	if err != nil {
		return nil, err
	}

	e := &ArrayAxiomEnumerator{
		aa:         aa,
		ts:         aa.AbstractSystem(),
		solver:     s,
		opts:       opts,
		logger:     opts.Logger,
		index:      index,
		witnesses:  make(map[Expr]Expr),
		lambdas:    make(map[*abstractArraySort]*Symbol),
		guards:     make(map[*abstractArraySort]Expr),
		curIndices: make(map[string]ExprSet),
		allIndices: make(map[string]ExprSet),
	}
	for k, set := range index.curIndices {
		e.curIndices[k] = set
	}
	for k, set := range index.allIndices {
		e.allIndices[k] = set
	}

	for _, w := range index.witnesses {
		sym, err := e.ts.NewInputVar(e.freshName("witness"), w.index)
		if err != nil {
			return nil, err
		}
		wi := IndexSurrogate(sym)
		e.witnesses[w.eq] = wi
		key := w.index.String()
		e.allIndices[key] = e.allIndices[key].Add(wi)
	}

	for _, as := range index.lambdas {
		lambda, err := e.ts.NewStateVar(e.freshName("lambda"), IntSort())
		if err != nil {
			return nil, err
		} else if err := e.ts.AssignNext(lambda, lambda); err != nil {
			return nil, err
		}
		e.lambdas[as] = lambda
		e.guards[as] = e.lambdaGuard(lambda, *as.conc.Index)
	}

	// The unroller snapshots the variables of each step, so it is created
	// after every variable is declared.
	e.u = NewUnroller(e.ts)
	e.u.Logger = e.logger
	return e, nil
}

// freshName returns the first unused name of the form prefix_<n>.
func (e *ArrayAxiomEnumerator) freshName(prefix string) string {
	for n := 0; ; n++ {
		name := prefix + "_" + strconv.Itoa(n)
		if _, ok := e.ts.Lookup(name); !ok {
			return name
		}
	}
}

// lambdaBound returns the upper bound of the lambda guard for an index sort.
// Returns false if the lambda is unguarded.
func (e *ArrayAxiomEnumerator) lambdaBound(index Sort) (int64, bool) {
	bound := e.opts.LambdaBound
	if index.IsBitVec() {
		limit := uint64(math.MaxUint64)
		if index.Width < 64 {
			limit = 1<<index.Width - 1
		}
		if bound == 0 || bound > limit {
			bound = limit
		}
	} else if bound == 0 {
		return 0, false
	}
	if bound > math.MaxInt64 {
		bound = math.MaxInt64
	}
	return int64(bound), true
}

func (e *ArrayAxiomEnumerator) lambdaGuard(lambda *Symbol, index Sort) Expr {
	bound, ok := e.lambdaBound(index)
	if !ok {
		return True()
	}
	return NewAndExpr(
		NewBinaryExpr(SLE, NewIntExpr(0), lambda),
		NewBinaryExpr(SLE, lambda, NewIntExpr(bound)),
	)
}

// Unroller returns the unroller over the abstract system.
func (e *ArrayAxiomEnumerator) Unroller() *Unroller { return e.u }

// Index returns the result of the collection pass.
func (e *ArrayAxiomEnumerator) Index() *ArrayIndex { return e.index }

// LambdaConstraints returns, for every lambda, the constraints that keep it
// distinct from each current-state index of its sort while it is in range.
func (e *ArrayAxiomEnumerator) LambdaConstraints() []Expr {
	var a []Expr
	for _, s := range e.index.lambdas {
		lambda := e.lambdas[s]
		for _, i := range e.curIndices[s.conc.Index.String()].Slice() {
			a = append(a, NewImpliesExpr(e.guards[s], NewBinaryExpr(NE, lambda, i)))
		}
	}
	return a
}

// ConsecutiveAxioms returns the consecutive axioms found by the last call
// to EnumerateAxioms.
func (e *ArrayAxiomEnumerator) ConsecutiveAxioms() []AxiomRecord { return e.consecutive }

// NonConsecutiveAxioms returns the non-consecutive axioms found by the last
// call to EnumerateAxioms.
func (e *ArrayAxiomEnumerator) NonConsecutiveAxioms() []NCAxiom { return e.nonConsecutive }

// EnumerateAxioms checks the array axioms against the current model, which
// must satisfy trace. Returns true if any axiom is violated. Must be called
// right after a satisfiable check.
func (e *ArrayAxiomEnumerator) EnumerateAxioms(trace Expr, bound int) (bool, error) {
	e.consecutive, e.nonConsecutive = nil, nil
	e.emitted, e.found = ExprSet{}, 0

	ok, err := e.value(trace)
	if err != nil {
		return false, err
	}
	assert(ok, "trace is false under the model")

	phases := []struct {
		name string
		fn   func(bound int) error
	}{
		{"current indices", func(bound int) error { return e.enumerateIndexed(bound, true) }},
		{"all indices", func(bound int) error { return e.enumerateIndexed(bound, false) }},
		{"lambda", e.enumerateLambda},
		{"non-consecutive", e.enumerateNonConsecutive},
	}
	for _, phase := range phases {
		if err := phase.fn(bound); err != nil {
			return false, err
		}
		if e.found > 0 {
			e.logger.Debug("array axioms violated",
				"phase", phase.name,
				"bound", bound,
				"consecutive", len(e.consecutive),
				"nonconsecutive", len(e.nonConsecutive),
			)
			return true, nil
		}
	}
	return false, nil
}

// full returns true once the per-call axiom limit is reached.
func (e *ArrayAxiomEnumerator) full() bool {
	return e.opts.AxiomLimit > 0 && e.found >= e.opts.AxiomLimit
}

func (e *ArrayAxiomEnumerator) value(expr Expr) (bool, error) {
	ok, err := ValueBool(e.solver, expr)
	assert(!errors.Is(err, ErrNoModel), "axiom check without a model: %s", expr)
	return ok, err
}

// enumerateIndexed checks the index-parameterized classes. Store writes and
// array equality witnesses are checked with the current-state indices.
func (e *ArrayAxiomEnumerator) enumerateIndexed(bound int, curOnly bool) error {
	indices := func(sort Sort) []Expr {
		key := sort.String()
		if curOnly {
			return e.curIndices[key].Slice()
		}
		var a []Expr
		for _, i := range e.allIndices[key].Slice() {
			if !e.curIndices[key].Has(i) {
				a = append(a, i)
			}
		}
		return a
	}

	for _, c := range e.index.ConstArrays() {
		s := e.sortOf(c)
		for _, i := range indices(*s.conc.Index) {
			if err := e.checkConsecutive(CONSTARR, e.constArrayAxiom(c, i), bound); err != nil || e.full() {
				return err
			}
		}
	}

	for _, st := range e.index.Stores() {
		if curOnly {
			if err := e.checkConsecutive(STORE_WRITE, e.storeWriteAxiom(st), bound); err != nil || e.full() {
				return err
			}
		}
		s := e.sortOf(st)
		for _, i := range indices(*s.conc.Index) {
			if err := e.checkConsecutive(STORE_READ, e.storeReadAxiom(st, i), bound); err != nil || e.full() {
				return err
			}
		}
	}

	for _, eq := range e.index.ArrayEqs() {
		if curOnly {
			ax := e.arrayEqWitnessAxiom(eq, e.witnesses[eq])
			if err := e.checkConsecutive(ARRAYEQ_WITNESS, ax, bound); err != nil || e.full() {
				return err
			}
		}
		s := e.sortOf(eq.(*ApplyExpr).Args[0])
		for _, i := range indices(*s.conc.Index) {
			if err := e.checkConsecutive(ARRAYEQ_READ, e.arrayEqReadAxiom(eq, i), bound); err != nil || e.full() {
				return err
			}
		}
	}
	return nil
}

func (e *ArrayAxiomEnumerator) enumerateLambda(bound int) error {
	for _, c := range e.index.ConstArrays() {
		s := e.sortOf(c)
		ax := NewImpliesExpr(e.guards[s], e.constArrayAxiom(c, e.lambdas[s]))
		if err := e.checkConsecutive(CONSTARR_LAMBDA, ax, bound); err != nil || e.full() {
			return err
		}
	}
	for _, st := range e.index.Stores() {
		s := e.sortOf(st)
		ax := NewImpliesExpr(e.guards[s], e.storeReadAxiom(st, e.lambdas[s]))
		if err := e.checkConsecutive(STORE_READ_LAMBDA, ax, bound); err != nil || e.full() {
			return err
		}
	}
	for _, eq := range e.index.ArrayEqs() {
		s := e.sortOf(eq.(*ApplyExpr).Args[0])
		ax := NewImpliesExpr(e.guards[s], e.arrayEqReadAxiom(eq, e.lambdas[s]))
		if err := e.checkConsecutive(ARRAYEQ_READ_LAMBDA, ax, bound); err != nil || e.full() {
			return err
		}
	}
	return nil
}

// enumerateNonConsecutive checks the index-parameterized classes with the
// array term and the index term unrolled at different steps.
func (e *ArrayAxiomEnumerator) enumerateNonConsecutive(bound int) error {
	type instance struct {
		class AxiomClass
		term  Expr
		build func(arr, i Expr) Expr
	}
	var instances []instance
	for _, c := range e.index.ConstArrays() {
		instances = append(instances, instance{CONSTARR, c, e.constArrayAxiom})
	}
	for _, st := range e.index.Stores() {
		instances = append(instances, instance{STORE_READ, st, e.storeReadAxiom})
	}
	for _, eq := range e.index.ArrayEqs() {
		instances = append(instances, instance{ARRAYEQ_READ, eq, e.arrayEqReadAxiom})
	}

	for _, inst := range instances {
		var s *abstractArraySort
		if inst.class == ARRAYEQ_READ {
			s = e.sortOf(inst.term.(*ApplyExpr).Args[0])
		} else {
			s = e.sortOf(inst.term)
		}
		indices := e.allIndices[s.conc.Index.String()].Slice()

		for k1 := 0; k1 <= e.maxTime(inst.term, bound); k1++ {
			arr := e.u.mustAtTime(inst.term, k1)
			for _, i := range indices {
				for k2 := 0; k2 <= e.maxTime(i, bound); k2++ {
					if k1 == k2 {
						continue
					}
					ax := inst.build(arr, e.u.mustAtTime(i, k2))
					if e.emitted.Has(ax) {
						continue
					}
					ok, err := e.value(ax)
					if err != nil {
						return err
					} else if ok {
						continue
					}

					e.emitted = e.emitted.Add(ax)
					e.nonConsecutive = append(e.nonConsecutive, NCAxiom{Class: inst.class, Axiom: ax, ArrayTime: k1, IndexTime: k2})
					e.found++
					arrayAxioms.WithLabelValues(inst.class.String(), "nonconsecutive").Inc()
					if e.full() {
						return nil
					}
				}
			}
		}
	}
	return nil
}

// maxTime returns the last step at which expr can be unrolled within bound.
func (e *ArrayAxiomEnumerator) maxTime(expr Expr, bound int) int {
	if e.ts.NoNext(expr) {
		return bound
	}
	return bound - 1
}

// checkConsecutive unrolls ax at every step up to bound and records it at
// the first step where the model violates it.
func (e *ArrayAxiomEnumerator) checkConsecutive(class AxiomClass, ax Expr, bound int) error {
	if IsConstantTrue(ax) || e.emitted.Has(ax) {
		return nil
	}
	for k := 0; k <= e.maxTime(ax, bound); k++ {
		uax := e.u.mustAtTime(ax, k)
		ok, err := e.value(uax)
		if err != nil {
			return fmt.Errorf("check %s axiom: %w", class, err)
		} else if ok {
			continue
		}

		e.emitted = e.emitted.Add(ax)
		e.consecutive = append(e.consecutive, AxiomRecord{Class: class, Axiom: uax, Untimed: ax})
		e.found++
		arrayAxioms.WithLabelValues(class.String(), "consecutive").Inc()
		return nil
	}
	return nil
}

// sortOf returns the array sort of an abstract array term.
func (e *ArrayAxiomEnumerator) sortOf(arr Expr) *abstractArraySort {
	s, ok := e.aa.arraySortOf(ExprSort(arr))
	assert(ok, "not an abstract array: %s", arr)
	return s
}

func (e *ArrayAxiomEnumerator) read(arr, i Expr) Expr {
	return NewApplyExpr(e.sortOf(arr).read, arr, i)
}

// constArrayAxiom returns read(constarr(v), i) = v.
func (e *ArrayAxiomEnumerator) constArrayAxiom(c, i Expr) Expr {
	return NewEqExpr(e.read(c, i), c.(*ApplyExpr).Args[0])
}

// storeWriteAxiom returns read(write(a, j, v), j) = v.
func (e *ArrayAxiomEnumerator) storeWriteAxiom(st Expr) Expr {
	args := st.(*ApplyExpr).Args
	return NewEqExpr(e.read(st, args[1]), args[2])
}

// storeReadAxiom returns i != j => read(write(a, j, v), i) = read(a, i).
func (e *ArrayAxiomEnumerator) storeReadAxiom(st, i Expr) Expr {
	args := st.(*ApplyExpr).Args
	return NewImpliesExpr(
		NewBinaryExpr(NE, i, args[1]),
		NewEqExpr(e.read(st, i), e.read(args[0], i)),
	)
}

// arrayEqWitnessAxiom returns read(a, w) = read(b, w) => arrayeq(a, b).
func (e *ArrayAxiomEnumerator) arrayEqWitnessAxiom(eq, w Expr) Expr {
	args := eq.(*ApplyExpr).Args
	return NewImpliesExpr(NewEqExpr(e.read(args[0], w), e.read(args[1], w)), eq)
}

// arrayEqReadAxiom returns arrayeq(a, b) => read(a, i) = read(b, i).
func (e *ArrayAxiomEnumerator) arrayEqReadAxiom(eq, i Expr) Expr {
	args := eq.(*ApplyExpr).Args
	return NewImpliesExpr(eq, NewEqExpr(e.read(args[0], i), e.read(args[1], i)))
}
