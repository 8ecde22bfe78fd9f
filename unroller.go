package tsmc

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// DefaultUnrollInterval is the interval at which a functional unroller
// introduces fresh state symbols unless configured otherwise.
const DefaultUnrollInterval = 1

// Unroller maps terms over the variables of a transition system to copies
// indexed by time step.
//
// The baseline unroller gives every variable a fresh symbol at every step.
// A functional unroller substitutes state updates instead, and only
// introduces fresh state symbols every interval steps.
type Unroller struct {
	ts         *TransitionSystem
	functional bool
	interval   int

	symbols   map[timedKey]*Symbol
	untimed   map[*Symbol]timedKey
	caches    []map[*Symbol]Expr // var cache per step
	rewriters []*Rewriter        // term memo per step
	extras    [][]Expr           // defining equalities per step

	Logger *slog.Logger
}

type timedKey struct {
	v *Symbol
	k int
}

// NewUnroller returns a baseline unroller for ts.
func NewUnroller(ts *TransitionSystem) *Unroller {
	return &Unroller{
		ts:      ts,
		symbols: make(map[timedKey]*Symbol),
		untimed: make(map[*Symbol]timedKey),
		Logger:  slog.New(slog.DiscardHandler),
	}
}

// NewFunctionalUnroller returns an unroller that substitutes state updates.
// An interval of 0 never introduces fresh state symbols after step 0, an
// interval of 1 behaves like the baseline unroller and an interval of N
// introduces fresh state symbols every N steps.
func NewFunctionalUnroller(ts *TransitionSystem, interval int) (*Unroller, error) {
	if !ts.IsFunctional() {
		return nil, ErrNotFunctional
	} else if interval < 0 {
		return nil, fmt.Errorf("invalid unroll interval: %d", interval)
	}
	u := NewUnroller(ts)
	u.functional, u.interval = true, interval
	return u, nil
}

// System returns the transition system being unrolled.
func (u *Unroller) System() *TransitionSystem { return u.ts }

// AtTime returns expr with each variable replaced by its copy at step k.
// Next-state variables map to step k+1. A functional unroller rejects terms
// with next-state variables. Symbols that do not belong to the system are
// left unchanged.
//
// Calling AtTime twice with the same term and step returns the identical term.
func (u *Unroller) AtTime(expr Expr, k int) (Expr, error) {
	assert(k >= 0, "negative unroll step: %d", k)
	if u.functional {
		var bad *Symbol
		ContainsSymbol(expr, func(sym *Symbol) bool {
			if u.ts.IsNext(sym) {
				bad = sym
			}
			return bad != nil
		})
		if bad != nil {
			return nil, &InvalidTermError{Term: expr, Var: bad, Reason: "next-state variable in functional unrolling"}
		}
	}
	u.populate(k)
	return u.rewriters[k].Rewrite(expr), nil
}

// mustAtTime is like AtTime but panics on error. Only used for terms that are
// already known to be valid for the unroller.
func (u *Unroller) mustAtTime(expr Expr, k int) Expr {
	other, err := u.AtTime(expr, k)
	assert(err == nil, "unroll: %v", err)
	return other
}

// ExtraConstraintsAt returns the conjunction of the defining equalities for
// fresh state symbols introduced at steps up to and including k.
func (u *Unroller) ExtraConstraintsAt(k int) Expr {
	u.populate(k)
	var a []Expr
	for i := 0; i <= k; i++ {
		a = append(a, u.extras[i]...)
	}
	return NewAndExpr(a...)
}

// extraConstraintsStep returns only the equalities introduced at step k.
func (u *Unroller) extraConstraintsStep(k int) []Expr {
	u.populate(k)
	return u.extras[k]
}

// Untime replaces timed symbols with the system variables they copy.
func (u *Unroller) Untime(expr Expr) Expr {
	return NewRewriter(func(e Expr) (Expr, bool) {
		if sym, ok := e.(*Symbol); ok {
			if key, ok := u.untimed[sym]; ok {
				return key.v, true
			}
			return sym, true
		}
		return nil, false
	}).Rewrite(expr)
}

// TimeOf returns the system variable and step of a timed symbol.
func (u *Unroller) TimeOf(sym *Symbol) (v *Symbol, k int, ok bool) {
	key, ok := u.untimed[sym]
	return key.v, key.k, ok
}

// MaxTime returns the latest step of any timed symbol in expr, or -1 if
// expr contains none.
func (u *Unroller) MaxTime(expr Expr) int {
	max := -1
	for _, sym := range FreeSymbols(expr) {
		if key, ok := u.untimed[sym]; ok && key.k > max {
			max = key.k
		}
	}
	return max
}

// timedSymbol returns the unique copy of v at step k.
func (u *Unroller) timedSymbol(v *Symbol, k int) *Symbol {
	key := timedKey{v: v, k: k}
	if sym, ok := u.symbols[key]; ok {
		return sym
	}
	sym := NewSymbol(v.Name+"@"+strconv.Itoa(k), v.Sort)
	u.symbols[key], u.untimed[sym] = sym, key
	return sym
}

// populate builds the variable caches for every step up to k.
func (u *Unroller) populate(k int) {
	for i := len(u.caches); i <= k; i++ {
		cache := u.varCacheAtTime(i)
		u.caches = append(u.caches, cache)
		u.rewriters = append(u.rewriters, NewRewriter(func(e Expr) (Expr, bool) {
			if sym, ok := e.(*Symbol); ok {
				if other, ok := cache[sym]; ok {
					return other, true
				}
				return sym, true
			}
			return nil, false
		}))
	}
}

func (u *Unroller) varCacheAtTime(k int) map[*Symbol]Expr {
	cache := make(map[*Symbol]Expr)
	for _, v := range u.ts.InputVars() {
		cache[v] = u.timedSymbol(v, k)
	}

	if !u.functional {
		for _, v := range u.ts.StateVars() {
			cache[v] = u.timedSymbol(v, k)
			cache[u.ts.Next(v)] = u.timedSymbol(v, k+1)
		}
		u.extras = append(u.extras, nil)
		return cache
	}

	var extras []Expr
	var fresh []string
	for _, v := range u.ts.StateVars() {
		update, ok := u.ts.Update(v)
		switch {
		case k == 0 || !ok:
			cache[v] = u.timedSymbol(v, k)
		case u.interval > 0 && k%u.interval == 0:
			sym := u.timedSymbol(v, k)
			cache[v] = sym
			extras = append(extras, NewEqExpr(sym, u.mustAtTime(update, k-1)))
			fresh = append(fresh, sym.Name)
		default:
			cache[v] = u.mustAtTime(update, k-1)
		}
	}
	u.extras = append(u.extras, extras)

	if len(fresh) > 0 {
		u.Logger.Debug("fresh state symbols", "component", "unroller", "step", k, "symbols", strings.Join(fresh, ","))
	}
	return cache
}
