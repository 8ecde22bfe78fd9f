package z3

import (
	"fmt"
	"unsafe"

	"github.com/benbjohnson/tsmc"
)

/*
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// toAST returns a new instance of Z3_ast from an expression. The boolean
// sort maps to the Z3 boolean sort rather than a one bit vector.
func (ctx *Context) toAST(expr tsmc.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *tsmc.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *tsmc.IntExpr:
		t, err := ctx.toSort(tsmc.IntSort())
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_int64(ctx.raw, C.int64_t(expr.Value), t), ctx.err("Z3_mk_int64")
	case *tsmc.Symbol:
		return ctx.toSymbolAST(expr)
	case *tsmc.NotExpr:
		return ctx.toNotAST(expr)
	case *tsmc.IteExpr:
		return ctx.toIteAST(expr)
	case *tsmc.ConcatExpr:
		return ctx.toConcatAST(expr)
	case *tsmc.ExtractExpr:
		return ctx.toExtractAST(expr)
	case *tsmc.CastExpr:
		return ctx.toCastAST(expr)
	case *tsmc.BinaryExpr:
		return ctx.toBinaryAST(expr)
	case *tsmc.SelectExpr:
		return ctx.toSelectAST(expr)
	case *tsmc.StoreExpr:
		return ctx.toStoreAST(expr)
	case *tsmc.ConstArrayExpr:
		return ctx.toConstArrayAST(expr)
	case *tsmc.ApplyExpr:
		return ctx.toApplyAST(expr)
	case *tsmc.ToIntExpr:
		return ctx.toIntAST(expr)
	case *tsmc.ToBVExpr:
		return ctx.toBVAST(expr)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: %w: %T", tsmc.ErrUnsupportedOp, expr)
	}
}

// toSort returns the Z3 sort for sort. Sorts are cached by name.
func (ctx *Context) toSort(sort tsmc.Sort) (C.Z3_sort, error) {
	key := sort.String()
	if t, ok := ctx.sorts[key]; ok {
		return t, nil
	}

	var t C.Z3_sort
	switch sort.Kind {
	case tsmc.KindBitVec:
		if sort.IsBool() {
			t = C.Z3_mk_bool_sort(ctx.raw)
		} else {
			t = C.Z3_mk_bv_sort(ctx.raw, C.uint(sort.Width))
		}
	case tsmc.KindInt:
		t = C.Z3_mk_int_sort(ctx.raw)
	case tsmc.KindArray:
		index, err := ctx.toSort(*sort.Index)
		if err != nil {
			return nil, err
		}
		elem, err := ctx.toSort(*sort.Elem)
		if err != nil {
			return nil, err
		}
		t = C.Z3_mk_array_sort(ctx.raw, index, elem)
	case tsmc.KindUninterpreted:
		name := C.CString(sort.Name)
		defer C.free(unsafe.Pointer(name))
		t = C.Z3_mk_uninterpreted_sort(ctx.raw, C.Z3_mk_string_symbol(ctx.raw, name))
	default:
		return nil, fmt.Errorf("%w: %s", tsmc.ErrUnsupportedSort, sort)
	}
	if err := ctx.err("Z3_mk_sort"); err != nil {
		return nil, err
	}
	ctx.sorts[key] = t
	return t, nil
}

func (ctx *Context) toConstantAST(expr *tsmc.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == tsmc.WidthBool {
		if expr.IsTrue() {
			return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
		}
		return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
	}
	return ctx.makeUint64(expr.Width, expr.Value)
}

func (ctx *Context) toSymbolAST(expr *tsmc.Symbol) (C.Z3_ast, error) {
	if ast, ok := ctx.symbols[expr]; ok {
		return ast, nil
	}
	t, err := ctx.toSort(expr.Sort)
	if err != nil {
		return nil, err
	}

	name := C.CString(expr.Name)
	defer C.free(unsafe.Pointer(name))
	ast := C.Z3_mk_const(ctx.raw, C.Z3_mk_string_symbol(ctx.raw, name), t)
	if err := ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}
	ctx.symbols[expr] = ast
	return ast, nil
}

func (ctx *Context) toNotAST(expr *tsmc.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	if tsmc.IsBoolExpr(expr.Expr) {
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
}

func (ctx *Context) toIteAST(expr *tsmc.IteExpr) (C.Z3_ast, error) {
	cond, err := ctx.toAST(expr.Cond)
	if err != nil {
		return nil, err
	}
	then, err := ctx.toAST(expr.Then)
	if err != nil {
		return nil, err
	}
	els, err := ctx.toAST(expr.Else)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, then, els), ctx.err("Z3_mk_ite")
}

func (ctx *Context) toConcatAST(expr *tsmc.ConcatExpr) (C.Z3_ast, error) {
	msb, err := ctx.toBitVecAST(expr.MSB)
	if err != nil {
		return nil, err
	}
	lsb, err := ctx.toBitVecAST(expr.LSB)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_concat(ctx.raw, msb, lsb), ctx.err("Z3_mk_concat")
}

func (ctx *Context) toExtractAST(expr *tsmc.ExtractExpr) (C.Z3_ast, error) {
	src, err := ctx.toBitVecAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	ast := C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset+expr.Width-1), C.uint(expr.Offset), src)
	if err := ctx.err("Z3_mk_extract"); err != nil {
		return nil, err
	}
	if expr.Width == tsmc.WidthBool {
		return ctx.toBool(ast)
	}
	return ast, nil
}

func (ctx *Context) toCastAST(expr *tsmc.CastExpr) (C.Z3_ast, error) {
	src, err := ctx.toBitVecAST(expr.Src)
	if err != nil {
		return nil, err
	}
	n := C.uint(expr.Width - tsmc.ExprWidth(expr.Src))
	if expr.Signed {
		return C.Z3_mk_sign_ext(ctx.raw, n, src), ctx.err("Z3_mk_sign_ext")
	}
	return C.Z3_mk_zero_ext(ctx.raw, n, src), ctx.err("Z3_mk_zero_ext")
}

func (ctx *Context) toBinaryAST(expr *tsmc.BinaryExpr) (C.Z3_ast, error) {
	sort := tsmc.ExprSort(expr.LHS)
	switch {
	case sort.IsInt():
		return ctx.toIntBinaryAST(expr)
	case sort.IsBool():
		if ast, ok, err := ctx.toBoolBinaryAST(expr); err != nil || ok {
			return ast, err
		}
	case !sort.IsBitVec():
		return ctx.toEqAST(expr)
	}

	lhs, err := ctx.toBitVecAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toBitVecAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	var ast C.Z3_ast
	switch expr.Op {
	case tsmc.ADD:
		ast = C.Z3_mk_bvadd(ctx.raw, lhs, rhs)
	case tsmc.SUB:
		ast = C.Z3_mk_bvsub(ctx.raw, lhs, rhs)
	case tsmc.MUL:
		ast = C.Z3_mk_bvmul(ctx.raw, lhs, rhs)
	case tsmc.UDIV:
		ast = C.Z3_mk_bvudiv(ctx.raw, lhs, rhs)
	case tsmc.SDIV:
		ast = C.Z3_mk_bvsdiv(ctx.raw, lhs, rhs)
	case tsmc.UREM:
		ast = C.Z3_mk_bvurem(ctx.raw, lhs, rhs)
	case tsmc.SREM:
		ast = C.Z3_mk_bvsrem(ctx.raw, lhs, rhs)
	case tsmc.AND:
		ast = C.Z3_mk_bvand(ctx.raw, lhs, rhs)
	case tsmc.OR:
		ast = C.Z3_mk_bvor(ctx.raw, lhs, rhs)
	case tsmc.XOR:
		ast = C.Z3_mk_bvxor(ctx.raw, lhs, rhs)
	case tsmc.SHL:
		ast = C.Z3_mk_bvshl(ctx.raw, lhs, rhs)
	case tsmc.LSHR:
		ast = C.Z3_mk_bvlshr(ctx.raw, lhs, rhs)
	case tsmc.ASHR:
		ast = C.Z3_mk_bvashr(ctx.raw, lhs, rhs)
	case tsmc.EQ:
		ast = C.Z3_mk_eq(ctx.raw, lhs, rhs)
	case tsmc.NE:
		ast = C.Z3_mk_not(ctx.raw, C.Z3_mk_eq(ctx.raw, lhs, rhs))
	case tsmc.ULT:
		ast = C.Z3_mk_bvult(ctx.raw, lhs, rhs)
	case tsmc.ULE:
		ast = C.Z3_mk_bvule(ctx.raw, lhs, rhs)
	case tsmc.UGT:
		ast = C.Z3_mk_bvugt(ctx.raw, lhs, rhs)
	case tsmc.UGE:
		ast = C.Z3_mk_bvuge(ctx.raw, lhs, rhs)
	case tsmc.SLT:
		ast = C.Z3_mk_bvslt(ctx.raw, lhs, rhs)
	case tsmc.SLE:
		ast = C.Z3_mk_bvsle(ctx.raw, lhs, rhs)
	case tsmc.SGT:
		ast = C.Z3_mk_bvsgt(ctx.raw, lhs, rhs)
	case tsmc.SGE:
		ast = C.Z3_mk_bvsge(ctx.raw, lhs, rhs)
	default:
		return nil, fmt.Errorf("%w: %s", tsmc.ErrUnsupportedOp, expr.Op)
	}
	if err := ctx.err(fmt.Sprintf("Z3_mk_bv%s", expr.Op)); err != nil {
		return nil, err
	}

	// Arithmetic on booleans was lifted to one bit vectors.
	if expr.Op.IsArithmetic() && sort.IsBool() {
		return ctx.toBool(ast)
	}
	return ast, nil
}

// toBoolBinaryAST translates the logical operations on booleans. Returns
// false if the operation must be lifted to a one bit vector.
func (ctx *Context) toBoolBinaryAST(expr *tsmc.BinaryExpr) (C.Z3_ast, bool, error) {
	switch expr.Op {
	case tsmc.AND, tsmc.OR, tsmc.XOR, tsmc.EQ, tsmc.NE:
	default:
		return nil, false, nil
	}

	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, false, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, false, err
	}

	args := [2]C.Z3_ast{lhs, rhs}
	var ast C.Z3_ast
	switch expr.Op {
	case tsmc.AND:
		ast = C.Z3_mk_and(ctx.raw, 2, &args[0])
	case tsmc.OR:
		ast = C.Z3_mk_or(ctx.raw, 2, &args[0])
	case tsmc.XOR:
		ast = C.Z3_mk_xor(ctx.raw, lhs, rhs)
	case tsmc.EQ:
		ast = C.Z3_mk_iff(ctx.raw, lhs, rhs)
	case tsmc.NE:
		ast = C.Z3_mk_xor(ctx.raw, lhs, rhs)
	}
	return ast, true, ctx.err(fmt.Sprintf("Z3_mk_%s", expr.Op))
}

func (ctx *Context) toIntBinaryAST(expr *tsmc.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	args := [2]C.Z3_ast{lhs, rhs}
	var ast C.Z3_ast
	switch expr.Op {
	case tsmc.ADD:
		ast = C.Z3_mk_add(ctx.raw, 2, &args[0])
	case tsmc.SUB:
		ast = C.Z3_mk_sub(ctx.raw, 2, &args[0])
	case tsmc.MUL:
		ast = C.Z3_mk_mul(ctx.raw, 2, &args[0])
	case tsmc.EQ:
		ast = C.Z3_mk_eq(ctx.raw, lhs, rhs)
	case tsmc.NE:
		ast = C.Z3_mk_not(ctx.raw, C.Z3_mk_eq(ctx.raw, lhs, rhs))
	case tsmc.SLT:
		ast = C.Z3_mk_lt(ctx.raw, lhs, rhs)
	case tsmc.SLE:
		ast = C.Z3_mk_le(ctx.raw, lhs, rhs)
	case tsmc.SGT:
		ast = C.Z3_mk_gt(ctx.raw, lhs, rhs)
	case tsmc.SGE:
		ast = C.Z3_mk_ge(ctx.raw, lhs, rhs)
	default:
		return nil, fmt.Errorf("%w: integer %s", tsmc.ErrUnsupportedOp, expr.Op)
	}
	return ast, ctx.err(fmt.Sprintf("Z3_mk_int_%s", expr.Op))
}

// toEqAST translates equality on arrays and uninterpreted sorts.
func (ctx *Context) toEqAST(expr *tsmc.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case tsmc.EQ:
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case tsmc.NE:
		return C.Z3_mk_not(ctx.raw, C.Z3_mk_eq(ctx.raw, lhs, rhs)), ctx.err("Z3_mk_eq")
	default:
		return nil, fmt.Errorf("%w: %s on %s", tsmc.ErrUnsupportedOp, expr.Op, tsmc.ExprSort(expr.LHS))
	}
}

func (ctx *Context) toSelectAST(expr *tsmc.SelectExpr) (C.Z3_ast, error) {
	array, err := ctx.toAST(expr.Array)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(expr.Index)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(ctx.raw, array, index), ctx.err("Z3_mk_select")
}

func (ctx *Context) toStoreAST(expr *tsmc.StoreExpr) (C.Z3_ast, error) {
	array, err := ctx.toAST(expr.Array)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(expr.Index)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(expr.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(ctx.raw, array, index, value), ctx.err("Z3_mk_store")
}

func (ctx *Context) toConstArrayAST(expr *tsmc.ConstArrayExpr) (C.Z3_ast, error) {
	domain, err := ctx.toSort(*expr.Sort.Index)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(expr.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_const_array(ctx.raw, domain, value), ctx.err("Z3_mk_const_array")
}

func (ctx *Context) toApplyAST(expr *tsmc.ApplyExpr) (C.Z3_ast, error) {
	decl, err := ctx.toFuncDecl(expr.Func)
	if err != nil {
		return nil, err
	}

	args := make([]C.Z3_ast, len(expr.Args))
	for i, arg := range expr.Args {
		if args[i], err = ctx.toAST(arg); err != nil {
			return nil, err
		}
	}
	if len(args) == 0 {
		return C.Z3_mk_app(ctx.raw, decl, 0, nil), ctx.err("Z3_mk_app")
	}
	return C.Z3_mk_app(ctx.raw, decl, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_app")
}

func (ctx *Context) toFuncDecl(fn *tsmc.FuncDecl) (C.Z3_func_decl, error) {
	if decl, ok := ctx.funcs[fn]; ok {
		return decl, nil
	}

	domain := make([]C.Z3_sort, len(fn.Domain))
	for i, sort := range fn.Domain {
		t, err := ctx.toSort(sort)
		if err != nil {
			return nil, err
		}
		domain[i] = t
	}
	rng, err := ctx.toSort(fn.Range)
	if err != nil {
		return nil, err
	}

	name := C.CString(fn.Name)
	defer C.free(unsafe.Pointer(name))
	sym := C.Z3_mk_string_symbol(ctx.raw, name)

	var decl C.Z3_func_decl
	if len(domain) == 0 {
		decl = C.Z3_mk_func_decl(ctx.raw, sym, 0, nil, rng)
	} else {
		decl = C.Z3_mk_func_decl(ctx.raw, sym, C.uint(len(domain)), &domain[0], rng)
	}
	if err := ctx.err("Z3_mk_func_decl"); err != nil {
		return nil, err
	}
	ctx.funcs[fn] = decl
	return decl, nil
}

func (ctx *Context) toIntAST(expr *tsmc.ToIntExpr) (C.Z3_ast, error) {
	src, err := ctx.toBitVecAST(expr.Src)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_bv2int(ctx.raw, src, C.bool(false)), ctx.err("Z3_mk_bv2int")
}

func (ctx *Context) toBVAST(expr *tsmc.ToBVExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	ast := C.Z3_mk_int2bv(ctx.raw, C.uint(expr.Width), src)
	if err := ctx.err("Z3_mk_int2bv"); err != nil {
		return nil, err
	}
	if expr.Width == tsmc.WidthBool {
		return ctx.toBool(ast)
	}
	return ast, nil
}

// toBitVecAST translates a bit-vector term. Booleans become one bit vectors.
func (ctx *Context) toBitVecAST(expr tsmc.Expr) (C.Z3_ast, error) {
	ast, err := ctx.toAST(expr)
	if err != nil {
		return nil, err
	}
	if !tsmc.IsBoolExpr(expr) {
		return ast, nil
	}

	one, err := ctx.makeUint64(1, 1)
	if err != nil {
		return nil, err
	}
	zero, err := ctx.makeUint64(1, 0)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, ast, one, zero), ctx.err("Z3_mk_ite")
}

// toBool converts a one bit vector to a boolean.
func (ctx *Context) toBool(ast C.Z3_ast) (C.Z3_ast, error) {
	one, err := ctx.makeUint64(1, 1)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_eq(ctx.raw, ast, one), ctx.err("Z3_mk_eq")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t := C.Z3_mk_bv_sort(ctx.raw, C.uint(width))
	if err := ctx.err("Z3_mk_bv_sort"); err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// fromAST converts a model value of the given sort. Values with no structure
// in the term language are returned as opaque expressions.
func (ctx *Context) fromAST(ast C.Z3_ast, sort tsmc.Sort) (tsmc.Expr, error) {
	switch {
	case sort.IsBool():
		switch C.Z3_get_bool_value(ctx.raw, ast) {
		case C.Z3_L_TRUE:
			return tsmc.True(), nil
		case C.Z3_L_FALSE:
			return tsmc.False(), nil
		}
		return nil, fmt.Errorf("z3: non-constant boolean value: %s", ctx.astString(ast))

	case sort.IsBitVec():
		var v C.uint64_t
		if !C.Z3_get_numeral_uint64(ctx.raw, ast, &v) {
			return nil, fmt.Errorf("z3: non-constant bit-vector value: %s", ctx.astString(ast))
		}
		return tsmc.NewConstantExpr(uint64(v), sort.Width), ctx.err("Z3_get_numeral_uint64")

	case sort.IsInt():
		var v C.int64_t
		if !C.Z3_get_numeral_int64(ctx.raw, ast, &v) {
			return nil, fmt.Errorf("z3: integer value out of range: %s", ctx.astString(ast))
		}
		return tsmc.NewIntExpr(int64(v)), ctx.err("Z3_get_numeral_int64")
	}
	return &tsmc.OpaqueExpr{Sort: sort, Text: ctx.astString(ast)}, nil
}

func (ctx *Context) astString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}
