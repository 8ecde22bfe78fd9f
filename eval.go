package tsmc

import (
	"fmt"
)

// ExprEvaluator evaluates expressions using known symbol values.
//
// Bit-vector symbols are bound to *ConstantExpr, integer symbols to *IntExpr
// and array symbols to a term built from ConstArrayExpr and StoreExpr over
// constants.
type ExprEvaluator struct {
	m    map[*Symbol]Expr
	memo map[Expr]Expr

	// If true, unbound symbols evaluate to the zero value of their sort
	// instead of returning an error.
	Complete bool
}

// NewExprEvaluator returns a new instance of ExprEvaluator with the given symbol/value mapping.
func NewExprEvaluator(values map[*Symbol]Expr) *ExprEvaluator {
	for sym, value := range values {
		assert(ExprSort(value).Equal(sym.Sort), "symbol/value sort mismatch: %s: %s != %s", sym.Name, sym.Sort, ExprSort(value))
	}
	return &ExprEvaluator{m: values, memo: make(map[Expr]Expr)}
}

// Evaluate evaluates expr to a value expression.
// Returns an error if an unbound symbol or an uninterpreted function is encountered.
func (ee *ExprEvaluator) Evaluate(expr Expr) (Expr, error) {
	if v, ok := ee.memo[expr]; ok {
		return v, nil
	}
	v, err := ee.evaluate(expr)
	if err != nil {
		return nil, err
	}
	ee.memo[expr] = v
	return v, nil
}

// EvaluateBool evaluates a boolean expression.
func (ee *ExprEvaluator) EvaluateBool(expr Expr) (bool, error) {
	v, err := ee.Evaluate(expr)
	if err != nil {
		return false, err
	}
	c, ok := v.(*ConstantExpr)
	if !ok || c.Width != WidthBool {
		return false, fmt.Errorf("not a boolean value: %s", v)
	}
	return c.IsTrue(), nil
}

func (ee *ExprEvaluator) evaluate(expr Expr) (Expr, error) {
	switch expr := expr.(type) {
	case *ConstantExpr, *IntExpr, *OpaqueExpr:
		return expr, nil
	case *Symbol:
		if v, ok := ee.m[expr]; ok {
			return v, nil
		} else if ee.Complete {
			return ZeroValue(expr.Sort), nil
		}
		return nil, fmt.Errorf("symbol not bound: %s", expr.Name)

	case *BinaryExpr:
		lhs, err := ee.Evaluate(expr.LHS)
		if err != nil {
			return nil, err
		}

		// Short circuit boolean connectives.
		if c, ok := lhs.(*ConstantExpr); ok && c.Width == WidthBool {
			if (expr.Op == AND && c.IsFalse()) || (expr.Op == OR && c.IsTrue()) {
				return c, nil
			}
		}

		rhs, err := ee.Evaluate(expr.RHS)
		if err != nil {
			return nil, err
		}
		if expr.Op == EQ && ExprSort(lhs).IsArray() {
			return evaluateArrayEq(lhs, rhs)
		}
		return NewBinaryExpr(expr.Op, lhs, rhs), nil

	case *IteExpr:
		cond, err := ee.EvaluateBool(expr.Cond)
		if err != nil {
			return nil, err
		} else if cond {
			return ee.Evaluate(expr.Then)
		}
		return ee.Evaluate(expr.Else)

	case *StoreExpr:
		array, err := ee.Evaluate(expr.Array)
		if err != nil {
			return nil, err
		}
		index, err := ee.Evaluate(expr.Index)
		if err != nil {
			return nil, err
		}
		value, err := ee.Evaluate(expr.Value)
		if err != nil {
			return nil, err
		}
		return normalizeArrayValue(NewStoreExpr(array, index, value)), nil

	case *ApplyExpr:
		return nil, fmt.Errorf("cannot evaluate uninterpreted function: %s", expr.Func.Name)
	}

	// Remaining node kinds fold completely once their operands are values.
	children := ExprChildren(expr)
	values := make([]Expr, len(children))
	for i, child := range children {
		v, err := ee.Evaluate(child)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return rebuildExpr(expr, values), nil
}

// ZeroValue returns the default value of a sort.
func ZeroValue(sort Sort) Expr {
	switch sort.Kind {
	case KindBitVec:
		return NewConstantExpr(0, sort.Width)
	case KindInt:
		return NewIntExpr(0)
	case KindArray:
		return NewConstArrayExpr(sort, ZeroValue(*sort.Elem))
	default:
		return &OpaqueExpr{Sort: sort, Text: fmt.Sprintf("%s!val!0", sort.Name)}
	}
}

// arrayValue is the decomposed form of a constant array term.
type arrayValue struct {
	def     Expr
	values  map[string]Expr // keyed by index
	indices []Expr
}

func decomposeArrayValue(expr Expr) (*arrayValue, error) {
	av := &arrayValue{values: make(map[string]Expr)}
	for {
		switch e := expr.(type) {
		case *ConstArrayExpr:
			av.def = e.Value
			return av, nil
		case *StoreExpr:
			key := e.Index.String()
			if _, ok := av.values[key]; !ok {
				av.values[key] = e.Value
				av.indices = append(av.indices, e.Index)
			}
			expr = e.Array
		default:
			return nil, fmt.Errorf("not an array value: %s", expr)
		}
	}
}

// normalizeArrayValue removes shadowed stores and stores of the default value.
func normalizeArrayValue(expr Expr) Expr {
	av, err := decomposeArrayValue(expr)
	if err != nil {
		return expr
	}

	set := NewExprSet(av.indices...)
	var result Expr = NewConstArrayExpr(ExprSort(expr), av.def)
	for _, index := range set.Slice() {
		value := av.values[index.String()]
		if CompareExpr(value, av.def) == 0 {
			continue
		}
		result = NewStoreExpr(result, index, value)
	}
	return result
}

func evaluateArrayEq(lhs, rhs Expr) (Expr, error) {
	return NewBoolConstantExpr(CompareExpr(normalizeArrayValue(lhs), normalizeArrayValue(rhs)) == 0), nil
}
