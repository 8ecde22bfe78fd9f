package tsmc

import (
	"strings"

	"github.com/benbjohnson/immutable"
)

// ExprSet is a persistent set of terms ordered by CompareExpr. Structurally
// equal terms are stored once. Add and Remove return a new set and leave the
// receiver unchanged.
type ExprSet struct {
	m *immutable.SortedMap
}

// NewExprSet returns a set holding exprs.
func NewExprSet(exprs ...Expr) ExprSet {
	s := ExprSet{m: immutable.NewSortedMap(&exprComparer{})}
	for _, expr := range exprs {
		s = s.Add(expr)
	}
	return s
}

func (s ExprSet) sortedMap() *immutable.SortedMap {
	if s.m == nil {
		return immutable.NewSortedMap(&exprComparer{})
	}
	return s.m
}

// Len returns the number of terms in the set.
func (s ExprSet) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Add returns a set that also contains expr.
func (s ExprSet) Add(expr Expr) ExprSet {
	if s.Has(expr) {
		return s
	}
	return ExprSet{m: s.sortedMap().Set(expr, expr)}
}

// Remove returns a set without expr.
func (s ExprSet) Remove(expr Expr) ExprSet {
	if !s.Has(expr) {
		return s
	}
	return ExprSet{m: s.m.Delete(expr)}
}

// Has returns true if a term structurally equal to expr is in the set.
func (s ExprSet) Has(expr Expr) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m.Get(expr)
	return ok
}

// Get returns the stored term structurally equal to expr, if any.
func (s ExprSet) Get(expr Expr) (Expr, bool) {
	if s.m == nil {
		return nil, false
	}
	v, ok := s.m.Get(expr)
	if !ok {
		return nil, false
	}
	return v.(Expr), true
}

// Union returns a set containing the terms of s and other.
func (s ExprSet) Union(other ExprSet) ExprSet {
	for _, expr := range other.Slice() {
		s = s.Add(expr)
	}
	return s
}

// Slice returns the terms of the set in order.
func (s ExprSet) Slice() []Expr {
	if s.m == nil {
		return nil
	}
	a := make([]Expr, 0, s.m.Len())
	itr := s.m.Iterator()
	for {
		k, _ := itr.Next()
		if k == nil {
			return a
		}
		a = append(a, k.(Expr))
	}
}

// String returns the string representation of the set.
func (s ExprSet) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, expr := range s.Slice() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(expr.String())
	}
	sb.WriteString("}")
	return sb.String()
}

// exprComparer compares two terms structurally. Implements immutable.Comparer.
type exprComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not an Expr.
func (c *exprComparer) Compare(a, b interface{}) int {
	return CompareExpr(a.(Expr), b.(Expr))
}
