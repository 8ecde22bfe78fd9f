package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/tsmc"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ tsmc.Solver = (*Solver)(nil)

// Solver represents an incremental solver that uses an embedded Z3 solver.
type Solver struct {
	ctx *Context
	raw C.Z3_solver

	model C.Z3_model
	core  bool

	// Assumptions of the last check and the literal each one was checked as.
	assumptions []assumption

	// Indicator literals for non-atomic assumptions, one map per scope.
	indicators []map[C.Z3_ast]C.Z3_ast
	nextID     int

	stats Stats
}

type assumption struct {
	expr tsmc.Expr
	lit  C.Z3_ast
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	ctx := NewContext()
	raw := C.Z3_mk_solver(ctx.raw)
	C.Z3_solver_inc_ref(ctx.raw, raw)
	return &Solver{
		ctx:        ctx,
		raw:        raw,
		indicators: []map[C.Z3_ast]C.Z3_ast{make(map[C.Z3_ast]C.Z3_ast)},
	}
}

// SetTimeout limits each check to d. Zero removes the limit.
func (s *Solver) SetTimeout(d time.Duration) error {
	params := C.Z3_mk_params(s.ctx.raw)
	C.Z3_params_inc_ref(s.ctx.raw, params)
	defer C.Z3_params_dec_ref(s.ctx.raw, params)

	name := C.CString("timeout")
	defer C.free(unsafe.Pointer(name))
	C.Z3_params_set_uint(s.ctx.raw, params, C.Z3_mk_string_symbol(s.ctx.raw, name), C.uint(d/time.Millisecond))
	C.Z3_solver_set_params(s.ctx.raw, s.raw, params)
	return s.ctx.err("Z3_solver_set_params")
}

// Close deletes the underlying Z3 solver and context.
func (s *Solver) Close() error {
	s.invalidate()
	C.Z3_solver_dec_ref(s.ctx.raw, s.raw)
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Assert adds expr to the current scope.
func (s *Solver) Assert(expr tsmc.Expr) error {
	s.invalidate()
	ast, err := s.ctx.toAST(expr)
	if err != nil {
		return err
	}
	C.Z3_solver_assert(s.ctx.raw, s.raw, ast)
	return s.ctx.err("Z3_solver_assert")
}

// Push opens a new scope.
func (s *Solver) Push() error {
	s.invalidate()
	C.Z3_solver_push(s.ctx.raw, s.raw)
	if err := s.ctx.err("Z3_solver_push"); err != nil {
		return err
	}
	s.indicators = append(s.indicators, make(map[C.Z3_ast]C.Z3_ast))
	return nil
}

// Pop closes the innermost scope.
func (s *Solver) Pop() error {
	s.invalidate()
	if len(s.indicators) == 1 {
		return fmt.Errorf("z3: no scope to pop")
	}
	C.Z3_solver_pop(s.ctx.raw, s.raw, 1)
	if err := s.ctx.err("Z3_solver_pop"); err != nil {
		return err
	}
	s.indicators = s.indicators[:len(s.indicators)-1]
	return nil
}

// Check solves the asserted constraints under the assumptions.
func (s *Solver) Check(assumptions ...tsmc.Expr) (bool, error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()
	s.invalidate()

	s.assumptions = s.assumptions[:0]
	lits := make([]C.Z3_ast, 0, len(assumptions))
	for _, expr := range assumptions {
		lit, err := s.assumptionLit(expr)
		if err != nil {
			return false, err
		}
		s.assumptions = append(s.assumptions, assumption{expr: expr, lit: lit})
		lits = append(lits, lit)
	}

	var ret C.Z3_lbool
	if len(lits) == 0 {
		ret = C.Z3_solver_check(s.ctx.raw, s.raw)
	} else {
		ret = C.Z3_solver_check_assumptions(s.ctx.raw, s.raw, C.uint(len(lits)), &lits[0])
	}
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, err
	}

	switch ret {
	case C.Z3_L_FALSE:
		s.core = true
		return false, nil
	case C.Z3_L_TRUE:
		s.model = C.Z3_solver_get_model(s.ctx.raw, s.raw)
		if err := s.ctx.err("Z3_solver_get_model"); err != nil {
			s.model = nil
			return true, err
		}
		C.Z3_model_inc_ref(s.ctx.raw, s.model)
		return true, nil
	}

	reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, s.raw))
	switch {
	case strings.Contains(reason, "timeout"):
		return false, tsmc.ErrSolverTimeout
	case strings.Contains(reason, "canceled"):
		return false, tsmc.ErrSolverCanceled
	case strings.Contains(reason, "(resource limits reached)"):
		return false, tsmc.ErrSolverResourceLimit
	case strings.Contains(reason, "unknown"):
		return false, tsmc.ErrSolverUnknown
	default:
		return false, fmt.Errorf("z3: %s", reason)
	}
}

// assumptionLit returns a boolean constant that stands for expr. Symbols and
// their negations are used directly. Other terms get an indicator literal
// that implies the term in the current scope.
func (s *Solver) assumptionLit(expr tsmc.Expr) (C.Z3_ast, error) {
	ast, err := s.ctx.toAST(expr)
	if err != nil {
		return nil, err
	}
	switch expr := expr.(type) {
	case *tsmc.Symbol:
		return ast, nil
	case *tsmc.NotExpr:
		if _, ok := expr.Expr.(*tsmc.Symbol); ok {
			return ast, nil
		}
	}

	for _, m := range s.indicators {
		if lit, ok := m[ast]; ok {
			return lit, nil
		}
	}

	name := C.CString(fmt.Sprintf("__assume_%d", s.nextID))
	defer C.free(unsafe.Pointer(name))
	s.nextID++
	lit := C.Z3_mk_const(s.ctx.raw, C.Z3_mk_string_symbol(s.ctx.raw, name), C.Z3_mk_bool_sort(s.ctx.raw))
	if err := s.ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}
	C.Z3_solver_assert(s.ctx.raw, s.raw, C.Z3_mk_implies(s.ctx.raw, lit, ast))
	if err := s.ctx.err("Z3_solver_assert"); err != nil {
		return nil, err
	}
	s.indicators[len(s.indicators)-1][ast] = lit
	return lit, nil
}

// Value evaluates expr in the current model with model completion.
func (s *Solver) Value(expr tsmc.Expr) (tsmc.Expr, error) {
	if s.model == nil {
		return nil, tsmc.ErrNoModel
	}
	ast, err := s.ctx.toAST(expr)
	if err != nil {
		return nil, err
	}

	var result C.Z3_ast
	if !C.Z3_model_eval(s.ctx.raw, s.model, ast, C.bool(true), &result) {
		return nil, fmt.Errorf("z3: cannot evaluate %s", expr)
	} else if err := s.ctx.err("Z3_model_eval"); err != nil {
		return nil, err
	}
	return s.ctx.fromAST(result, tsmc.ExprSort(expr))
}

// UnsatCore returns the assumptions of the last check that Z3 reported in
// its unsat core.
func (s *Solver) UnsatCore() ([]tsmc.Expr, error) {
	if !s.core {
		return nil, tsmc.ErrNoCore
	}

	vec := C.Z3_solver_get_unsat_core(s.ctx.raw, s.raw)
	if err := s.ctx.err("Z3_solver_get_unsat_core"); err != nil {
		return nil, err
	}
	C.Z3_ast_vector_inc_ref(s.ctx.raw, vec)
	defer C.Z3_ast_vector_dec_ref(s.ctx.raw, vec)

	inCore := make(map[C.Z3_ast]struct{})
	n := uint(C.Z3_ast_vector_size(s.ctx.raw, vec))
	for i := uint(0); i < n; i++ {
		inCore[C.Z3_ast_vector_get(s.ctx.raw, vec, C.uint(i))] = struct{}{}
	}

	var exprs []tsmc.Expr
	for _, a := range s.assumptions {
		if _, ok := inCore[a.lit]; ok {
			exprs = append(exprs, a.expr)
		}
	}
	return exprs, nil
}

// invalidate releases the model and core of the last check.
func (s *Solver) invalidate() {
	if s.model != nil {
		C.Z3_model_dec_ref(s.ctx.raw, s.model)
		s.model = nil
	}
	s.core = false
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context

	symbols map[*tsmc.Symbol]C.Z3_ast
	funcs   map[*tsmc.FuncDecl]C.Z3_func_decl
	sorts   map[string]C.Z3_sort
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	cname, cvalue := C.CString("model"), C.CString("true")
	defer C.free(unsafe.Pointer(cname))
	defer C.free(unsafe.Pointer(cvalue))
	C.Z3_set_param_value(config, cname, cvalue)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{
		raw:     raw,
		symbols: make(map[*tsmc.Symbol]C.Z3_ast),
		funcs:   make(map[*tsmc.FuncDecl]C.Z3_func_decl),
		sorts:   make(map[string]C.Z3_sort),
	}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Stats holds solver statistics.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
