package tsmc

import (
	"fmt"
	"sort"
)

// NextSuffix is appended to a state variable name to form its next-state name.
const NextSuffix = ".next"

// TransitionSystem represents a symbolic transition system over state and
// input variables.
type TransitionSystem struct {
	stateVars []*Symbol
	inputVars []*Symbol
	names     map[string]*Symbol

	next   map[*Symbol]*Symbol // current -> next
	curr   map[*Symbol]*Symbol // next -> current
	inputs map[*Symbol]struct{}

	updates     map[*Symbol]Expr
	init        []Expr
	trans       []Expr // relational transition constraints
	constraints []Expr // invariant constraints, no next-state variables
	clocks      map[*Symbol]bool

	functional bool
}

// NewTransitionSystem returns a new, empty functional transition system.
func NewTransitionSystem() *TransitionSystem {
	return &TransitionSystem{
		names:      make(map[string]*Symbol),
		next:       make(map[*Symbol]*Symbol),
		curr:       make(map[*Symbol]*Symbol),
		inputs:     make(map[*Symbol]struct{}),
		updates:    make(map[*Symbol]Expr),
		clocks:     make(map[*Symbol]bool),
		functional: true,
	}
}

// NewStateVar declares a state variable and its next-state companion.
func (ts *TransitionSystem) NewStateVar(name string, sort Sort) (*Symbol, error) {
	if err := ts.checkName(name); err != nil {
		return nil, err
	} else if err := ts.checkName(name + NextSuffix); err != nil {
		return nil, err
	}

	v := NewSymbol(name, sort)
	n := NewSymbol(name+NextSuffix, sort)
	ts.names[v.Name], ts.names[n.Name] = v, n
	ts.next[v], ts.curr[n] = n, v
	ts.stateVars = append(ts.stateVars, v)
	return v, nil
}

// NewInputVar declares an input variable.
func (ts *TransitionSystem) NewInputVar(name string, sort Sort) (*Symbol, error) {
	if err := ts.checkName(name); err != nil {
		return nil, err
	}

	v := NewSymbol(name, sort)
	ts.names[name] = v
	ts.inputs[v] = struct{}{}
	ts.inputVars = append(ts.inputVars, v)
	return v, nil
}

func (ts *TransitionSystem) checkName(name string) error {
	if name == "" {
		return fmt.Errorf("variable name required")
	} else if _, ok := ts.names[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

// AssignNext sets the functional update of state variable v. The update may
// only reference current-state and input variables.
func (ts *TransitionSystem) AssignNext(v *Symbol, update Expr) error {
	if !ts.IsCurr(v) {
		return fmt.Errorf("%w: not a state variable: %s", ErrUnknownVar, v)
	} else if _, ok := ts.updates[v]; ok {
		return fmt.Errorf("state variable already assigned: %s", v)
	} else if err := ts.checkExpr(update, v.Sort); err != nil {
		return err
	} else if !ts.NoNext(update) {
		return &InvalidTermError{Term: update, Var: v, Reason: "next-state variable in state update"}
	}
	ts.updates[v] = update
	return nil
}

// AddInit adds a constraint on the initial states.
func (ts *TransitionSystem) AddInit(expr Expr) error {
	if err := ts.checkExpr(expr, BoolSort()); err != nil {
		return err
	}
	for _, sym := range FreeSymbols(expr) {
		if !ts.IsCurr(sym) {
			return &InvalidTermError{Term: expr, Var: sym, Reason: "initial state constraint must only use state variables"}
		}
	}
	ts.init = append(ts.init, expr)
	return nil
}

// AddTrans adds a relational transition constraint. The system is no longer
// functional afterwards.
func (ts *TransitionSystem) AddTrans(expr Expr) error {
	if err := ts.checkExpr(expr, BoolSort()); err != nil {
		return err
	}
	ts.trans = append(ts.trans, expr)
	ts.functional = false
	return nil
}

// Constrain adds a constraint that holds at every step. A constraint that
// references next-state variables becomes part of the transition relation.
func (ts *TransitionSystem) Constrain(expr Expr) error {
	if err := ts.checkExpr(expr, BoolSort()); err != nil {
		return err
	} else if !ts.NoNext(expr) {
		return ts.AddTrans(expr)
	}
	ts.constraints = append(ts.constraints, expr)
	return nil
}

// MarkClock marks state variable v as a clock. An async clock has an
// asynchronous reset.
func (ts *TransitionSystem) MarkClock(v *Symbol, async bool) error {
	if !ts.IsCurr(v) {
		return fmt.Errorf("%w: not a state variable: %s", ErrUnknownVar, v)
	} else if !v.Sort.IsBool() {
		return fmt.Errorf("%w: clock must be boolean: %s", ErrSortMismatch, v)
	}
	ts.clocks[v] = async
	return nil
}

// checkExpr verifies that expr has the given sort and only references
// variables declared on this system.
func (ts *TransitionSystem) checkExpr(expr Expr, sort Sort) error {
	if s := ExprSort(expr); !s.Equal(sort) {
		return fmt.Errorf("%w: expected %s, got %s: %s", ErrSortMismatch, sort, s, expr)
	}
	for _, sym := range FreeSymbols(expr) {
		if ts.names[sym.Name] != sym {
			return fmt.Errorf("%w: %s", ErrUnknownVar, sym.Name)
		}
	}
	return nil
}

// StateVars returns the state variables in declaration order.
func (ts *TransitionSystem) StateVars() []*Symbol { return ts.stateVars }

// InputVars returns the input variables in declaration order.
func (ts *TransitionSystem) InputVars() []*Symbol { return ts.inputVars }

// Lookup returns the variable with the given name.
func (ts *TransitionSystem) Lookup(name string) (*Symbol, bool) {
	sym, ok := ts.names[name]
	return sym, ok
}

// Next returns the next-state companion of state variable v.
func (ts *TransitionSystem) Next(v *Symbol) *Symbol { return ts.next[v] }

// Curr returns the state variable for next-state variable n.
func (ts *TransitionSystem) Curr(n *Symbol) *Symbol { return ts.curr[n] }

// Update returns the functional update for v, if assigned.
func (ts *TransitionSystem) Update(v *Symbol) (Expr, bool) {
	expr, ok := ts.updates[v]
	return expr, ok
}

// Clocks returns the clock variables and whether each has an asynchronous reset.
func (ts *TransitionSystem) Clocks() map[*Symbol]bool { return ts.clocks }

// IsFunctional returns true if the transition relation is defined only by
// state updates.
func (ts *TransitionSystem) IsFunctional() bool { return ts.functional }

// IsCurr returns true if sym is a current-state variable.
func (ts *TransitionSystem) IsCurr(sym *Symbol) bool {
	_, ok := ts.next[sym]
	return ok
}

// IsNext returns true if sym is a next-state variable.
func (ts *TransitionSystem) IsNext(sym *Symbol) bool {
	_, ok := ts.curr[sym]
	return ok
}

// IsInput returns true if sym is an input variable.
func (ts *TransitionSystem) IsInput(sym *Symbol) bool {
	_, ok := ts.inputs[sym]
	return ok
}

// OnlyCurr returns true if expr only references current-state variables.
func (ts *TransitionSystem) OnlyCurr(expr Expr) bool {
	return !ContainsSymbol(expr, func(sym *Symbol) bool { return !ts.IsCurr(sym) })
}

// NoNext returns true if expr does not reference next-state variables.
func (ts *TransitionSystem) NoNext(expr Expr) bool {
	return !ContainsSymbol(expr, ts.IsNext)
}

// ToNext replaces current-state variables with their next-state companions.
func (ts *TransitionSystem) ToNext(expr Expr) (Expr, error) {
	m := make(map[*Symbol]Expr)
	for _, sym := range FreeSymbols(expr) {
		switch {
		case ts.IsCurr(sym):
			m[sym] = ts.next[sym]
		case ts.IsInput(sym):
			return nil, &InvalidTermError{Term: expr, Var: sym, Reason: "input variable has no next-state form"}
		case ts.IsNext(sym):
			return nil, &InvalidTermError{Term: expr, Var: sym, Reason: "term already contains next-state variables"}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownVar, sym.Name)
		}
	}
	return Substitute(expr, m), nil
}

// ToCurr replaces next-state variables with their current-state companions.
func (ts *TransitionSystem) ToCurr(expr Expr) Expr {
	m := make(map[*Symbol]Expr)
	for _, sym := range FreeSymbols(expr) {
		if v, ok := ts.curr[sym]; ok {
			m[sym] = v
		}
	}
	return Substitute(expr, m)
}

// Init returns the initial state predicate, including invariant constraints.
func (ts *TransitionSystem) Init() Expr {
	return NewAndExpr(append(append([]Expr{}, ts.init...), ts.constraints...)...)
}

// Trans returns the transition relation over current, input and next-state
// variables. It includes state updates, relational constraints and the
// invariant constraints. State-only constraints are also required in the
// next state.
func (ts *TransitionSystem) Trans() Expr {
	var a []Expr
	for _, v := range ts.stateVars {
		if update, ok := ts.updates[v]; ok {
			a = append(a, NewEqExpr(ts.next[v], update))
		}
	}
	a = append(a, ts.trans...)
	for _, c := range ts.constraints {
		a = append(a, c)
		if ts.OnlyCurr(c) {
			next, err := ts.ToNext(c)
			assert(err == nil, "constraint next-state form: %v", err)
			a = append(a, next)
		}
	}
	return NewAndExpr(a...)
}

// Constraints returns the invariant constraints.
func (ts *TransitionSystem) Constraints() []Expr { return ts.constraints }

// Clone returns a copy of the system that can be extended independently.
func (ts *TransitionSystem) Clone() *TransitionSystem {
	other := &TransitionSystem{
		stateVars:   append([]*Symbol{}, ts.stateVars...),
		inputVars:   append([]*Symbol{}, ts.inputVars...),
		names:       make(map[string]*Symbol, len(ts.names)),
		next:        make(map[*Symbol]*Symbol, len(ts.next)),
		curr:        make(map[*Symbol]*Symbol, len(ts.curr)),
		inputs:      make(map[*Symbol]struct{}, len(ts.inputs)),
		updates:     make(map[*Symbol]Expr, len(ts.updates)),
		init:        append([]Expr{}, ts.init...),
		trans:       append([]Expr{}, ts.trans...),
		constraints: append([]Expr{}, ts.constraints...),
		clocks:      make(map[*Symbol]bool, len(ts.clocks)),
		functional:  ts.functional,
	}
	for k, v := range ts.names {
		other.names[k] = v
	}
	for k, v := range ts.next {
		other.next[k] = v
	}
	for k, v := range ts.curr {
		other.curr[k] = v
	}
	for k := range ts.inputs {
		other.inputs[k] = struct{}{}
	}
	for k, v := range ts.updates {
		other.updates[k] = v
	}
	for k, v := range ts.clocks {
		other.clocks[k] = v
	}
	return other
}

// Vars returns all state and input variables sorted by name.
func (ts *TransitionSystem) Vars() []*Symbol {
	a := append(append([]*Symbol{}, ts.stateVars...), ts.inputVars...)
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	return a
}

// Property represents a safety property of a transition system.
type Property struct {
	Name   string
	System *TransitionSystem
	Expr   Expr
}

// NewProperty returns a new property that expr holds in every reachable state.
func NewProperty(name string, ts *TransitionSystem, expr Expr) (*Property, error) {
	if err := ts.checkExpr(expr, BoolSort()); err != nil {
		return nil, err
	} else if !ts.NoNext(expr) {
		return nil, &InvalidTermError{Term: expr, Reason: "property must not use next-state variables"}
	}
	return &Property{Name: name, System: ts, Expr: expr}, nil
}

// Bad returns the negation of the property.
func (p *Property) Bad() Expr { return NewNotExpr(p.Expr) }
