package tsmc

import (
	"fmt"
	"sort"
)

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Return nil to skip the node's children.
	Visit(expr Expr) ExprVisitor
}

// WalkExpr traverses expr in depth-first order. Shared subterms are visited
// once per occurrence.
func WalkExpr(v ExprVisitor, expr Expr) {
	if v = v.Visit(expr); v == nil {
		return
	}
	for _, child := range ExprChildren(expr) {
		WalkExpr(v, child)
	}
}

type inspector func(Expr) bool

func (f inspector) Visit(expr Expr) ExprVisitor {
	if f(expr) {
		return f
	}
	return nil
}

// Inspect traverses expr and calls fn on each node. If fn returns false then
// the node's children are skipped.
func Inspect(expr Expr, fn func(Expr) bool) {
	WalkExpr(inspector(fn), expr)
}

// InspectOnce is like Inspect but visits each distinct node of the term DAG
// exactly once.
func InspectOnce(expr Expr, fn func(Expr) bool) {
	seen := make(map[Expr]struct{})
	var walk func(Expr)
	walk = func(e Expr) {
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		if !fn(e) {
			return
		}
		for _, child := range ExprChildren(e) {
			walk(child)
		}
	}
	walk(expr)
}

// ExprChildren returns the direct operands of expr.
func ExprChildren(expr Expr) []Expr {
	switch expr := expr.(type) {
	case *Symbol, *ConstantExpr, *IntExpr, *OpaqueExpr:
		return nil
	case *NotExpr:
		return []Expr{expr.Expr}
	case *BinaryExpr:
		return []Expr{expr.LHS, expr.RHS}
	case *IteExpr:
		return []Expr{expr.Cond, expr.Then, expr.Else}
	case *ConcatExpr:
		return []Expr{expr.MSB, expr.LSB}
	case *ExtractExpr:
		return []Expr{expr.Expr}
	case *CastExpr:
		return []Expr{expr.Src}
	case *ToIntExpr:
		return []Expr{expr.Src}
	case *ToBVExpr:
		return []Expr{expr.Src}
	case *SelectExpr:
		return []Expr{expr.Array, expr.Index}
	case *StoreExpr:
		return []Expr{expr.Array, expr.Index, expr.Value}
	case *ConstArrayExpr:
		return []Expr{expr.Value}
	case *ApplyExpr:
		return expr.Args
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}

// rebuildExpr returns a copy of expr with its operands replaced by children.
// The folding constructors are used so the result stays normalized.
func rebuildExpr(expr Expr, children []Expr) Expr {
	switch expr := expr.(type) {
	case *Symbol, *ConstantExpr, *IntExpr, *OpaqueExpr:
		return expr
	case *NotExpr:
		return NewNotExpr(children[0])
	case *BinaryExpr:
		return NewBinaryExpr(expr.Op, children[0], children[1])
	case *IteExpr:
		return NewIteExpr(children[0], children[1], children[2])
	case *ConcatExpr:
		return NewConcatExpr(children[0], children[1])
	case *ExtractExpr:
		return NewExtractExpr(children[0], expr.Offset, expr.Width)
	case *CastExpr:
		return NewCastExpr(children[0], expr.Width, expr.Signed)
	case *ToIntExpr:
		return NewToIntExpr(children[0])
	case *ToBVExpr:
		return NewToBVExpr(children[0], expr.Width)
	case *SelectExpr:
		return NewSelectExpr(children[0], children[1])
	case *StoreExpr:
		return NewStoreExpr(children[0], children[1], children[2])
	case *ConstArrayExpr:
		return NewConstArrayExpr(expr.Sort, children[0])
	case *ApplyExpr:
		return NewApplyExpr(expr.Func, children...)
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}

// Rewriter rebuilds terms bottom-up. Results are memoized by node identity so
// a rewriter can be reused across many terms that share structure.
type Rewriter struct {
	fn   func(Expr) (Expr, bool)
	memo map[Expr]Expr
}

// NewRewriter returns a rewriter that calls fn on each node before its
// children. If fn returns true then its result replaces the node and the
// children are not visited.
func NewRewriter(fn func(Expr) (Expr, bool)) *Rewriter {
	return &Rewriter{fn: fn, memo: make(map[Expr]Expr)}
}

// Rewrite returns the rewritten form of expr.
func (r *Rewriter) Rewrite(expr Expr) Expr {
	if other, ok := r.memo[expr]; ok {
		return other
	}

	other, ok := r.fn(expr)
	if !ok {
		children := ExprChildren(expr)
		newChildren := make([]Expr, len(children))
		changed := false
		for i, child := range children {
			newChildren[i] = r.Rewrite(child)
			changed = changed || newChildren[i] != child
		}
		if changed {
			other = rebuildExpr(expr, newChildren)
		} else {
			other = expr
		}
	}
	r.memo[expr] = other
	return other
}

// Substitute replaces symbols in expr according to m.
func Substitute(expr Expr, m map[*Symbol]Expr) Expr {
	if len(m) == 0 {
		return expr
	}
	return NewRewriter(func(e Expr) (Expr, bool) {
		if sym, ok := e.(*Symbol); ok {
			if other, ok := m[sym]; ok {
				return other, true
			}
			return sym, true
		}
		return nil, false
	}).Rewrite(expr)
}

// FreeSymbols returns the distinct symbols in exprs, sorted by name.
func FreeSymbols(exprs ...Expr) []*Symbol {
	m := make(map[*Symbol]struct{})
	for _, expr := range exprs {
		InspectOnce(expr, func(e Expr) bool {
			if sym, ok := e.(*Symbol); ok {
				m[sym] = struct{}{}
			}
			return true
		})
	}

	a := make([]*Symbol, 0, len(m))
	for sym := range m {
		a = append(a, sym)
	}
	sort.Slice(a, func(i, j int) bool { return CompareExpr(a[i], a[j]) == -1 })
	return a
}

// ContainsSymbol returns true if any node of expr satisfies fn.
func ContainsSymbol(expr Expr, fn func(*Symbol) bool) bool {
	found := false
	InspectOnce(expr, func(e Expr) bool {
		if found {
			return false
		}
		if sym, ok := e.(*Symbol); ok && fn(sym) {
			found = true
		}
		return !found
	})
	return found
}
