package tsmc

import (
	"fmt"
	"strconv"
)

// ArrayAbstractor replaces array theory terms with uninterpreted sorts and
// functions. Each concrete array sort gets an uninterpreted sort and the
// functions read, write, constarr and arrayeq. Array indices are replaced by
// an integer surrogate.
type ArrayAbstractor struct {
	conc *TransitionSystem
	abs  *TransitionSystem

	sorts    []*abstractArraySort
	byConc   map[string]*abstractArraySort // keyed by concrete sort string
	byAbs    map[string]*abstractArraySort // keyed by abstract sort name
	funcs    map[*FuncDecl]arrayFunc
	absVars  map[*Symbol]*Symbol
	concVars map[*Symbol]*Symbol

	abstracter   *Rewriter
	concretizer  *Rewriter
	abstractProp *Property
}

// abstractArraySort holds the abstraction of one concrete array sort.
type abstractArraySort struct {
	conc Sort
	abs  Sort

	read, write, constarr, arrayeq *FuncDecl
}

type arrayFuncKind int

const (
	arrayRead arrayFuncKind = iota + 1
	arrayWrite
	arrayConst
	arrayEq
)

type arrayFunc struct {
	kind arrayFuncKind
	sort *abstractArraySort
}

// NewArrayAbstractor builds the abstraction of ts and its property.
func NewArrayAbstractor(prop *Property) (*ArrayAbstractor, error) {
	aa := &ArrayAbstractor{
		conc:     prop.System,
		abs:      NewTransitionSystem(),
		byConc:   make(map[string]*abstractArraySort),
		byAbs:    make(map[string]*abstractArraySort),
		funcs:    make(map[*FuncDecl]arrayFunc),
		absVars:  make(map[*Symbol]*Symbol),
		concVars: make(map[*Symbol]*Symbol),
	}
	aa.abstracter = NewRewriter(aa.abstractNode)
	aa.concretizer = NewRewriter(aa.concretizeNode)

	if err := aa.abstractSystem(); err != nil {
		return nil, err
	}

	expr, err := aa.Abstract(prop.Expr)
	if err != nil {
		return nil, err
	}
	if aa.abstractProp, err = NewProperty(prop.Name, aa.abs, expr); err != nil {
		return nil, fmt.Errorf("abstract property: %w", err)
	}
	return aa, nil
}

// AbstractSystem returns the abstract transition system.
func (aa *ArrayAbstractor) AbstractSystem() *TransitionSystem { return aa.abs }

// AbstractProperty returns the abstract property.
func (aa *ArrayAbstractor) AbstractProperty() *Property { return aa.abstractProp }

// ConcreteSystem returns the concrete transition system.
func (aa *ArrayAbstractor) ConcreteSystem() *TransitionSystem { return aa.conc }

func (aa *ArrayAbstractor) abstractSystem() error {
	ts := aa.conc

	for _, v := range ts.StateVars() {
		sort, err := aa.abstractSort(v.Sort)
		if err != nil {
			return err
		}
		av, err := aa.abs.NewStateVar(v.Name, sort)
		if err != nil {
			return err
		}
		aa.mapVar(v, av)
		aa.mapVar(ts.Next(v), aa.abs.Next(av))
	}
	for _, v := range ts.InputVars() {
		sort, err := aa.abstractSort(v.Sort)
		if err != nil {
			return err
		}
		av, err := aa.abs.NewInputVar(v.Name, sort)
		if err != nil {
			return err
		}
		aa.mapVar(v, av)
	}

	for _, v := range ts.StateVars() {
		if update, ok := ts.Update(v); ok {
			expr, err := aa.Abstract(update)
			if err != nil {
				return err
			} else if err := aa.abs.AssignNext(aa.absVars[v], expr); err != nil {
				return err
			}
		}
	}
	for _, e := range ts.init {
		expr, err := aa.Abstract(e)
		if err != nil {
			return err
		} else if err := aa.abs.AddInit(expr); err != nil {
			return err
		}
	}
	for _, e := range ts.trans {
		expr, err := aa.Abstract(e)
		if err != nil {
			return err
		} else if err := aa.abs.AddTrans(expr); err != nil {
			return err
		}
	}
	for _, e := range ts.constraints {
		expr, err := aa.Abstract(e)
		if err != nil {
			return err
		} else if err := aa.abs.Constrain(expr); err != nil {
			return err
		}
	}
	for v, async := range ts.Clocks() {
		if err := aa.abs.MarkClock(aa.absVars[v], async); err != nil {
			return err
		}
	}
	return nil
}

func (aa *ArrayAbstractor) mapVar(conc, abs *Symbol) {
	aa.absVars[conc], aa.concVars[abs] = abs, conc
}

// abstractSort returns the abstract sort of a concrete sort. Array sorts are
// replaced by uninterpreted sorts. Other sorts are unchanged.
func (aa *ArrayAbstractor) abstractSort(sort Sort) (Sort, error) {
	if !sort.IsArray() {
		return sort, nil
	}
	if s, ok := aa.byConc[sort.String()]; ok {
		return s.abs, nil
	}

	switch sort.Index.Kind {
	case KindBitVec, KindInt:
	default:
		return Sort{}, fmt.Errorf("%w: array index sort %s", ErrUnsupportedSort, sort.Index)
	}
	elem, err := aa.abstractSort(*sort.Elem)
	if err != nil {
		return Sort{}, err
	}

	n := len(aa.sorts)
	abs := UninterpretedSort("Array_" + strconv.Itoa(n) + "_" + sort.Ident())
	s := &abstractArraySort{
		conc:     sort,
		abs:      abs,
		read:     NewFuncDecl("read_"+strconv.Itoa(n), []Sort{abs, IntSort()}, elem),
		write:    NewFuncDecl("write_"+strconv.Itoa(n), []Sort{abs, IntSort(), elem}, abs),
		constarr: NewFuncDecl("constarr_"+strconv.Itoa(n), []Sort{elem}, abs),
		arrayeq:  NewFuncDecl("arrayeq_"+strconv.Itoa(n), []Sort{abs, abs}, BoolSort()),
	}
	aa.sorts = append(aa.sorts, s)
	aa.byConc[sort.String()], aa.byAbs[abs.Name] = s, s
	aa.funcs[s.read] = arrayFunc{kind: arrayRead, sort: s}
	aa.funcs[s.write] = arrayFunc{kind: arrayWrite, sort: s}
	aa.funcs[s.constarr] = arrayFunc{kind: arrayConst, sort: s}
	aa.funcs[s.arrayeq] = arrayFunc{kind: arrayEq, sort: s}
	return abs, nil
}

// arraySortOf returns the abstraction record for an abstract array sort.
func (aa *ArrayAbstractor) arraySortOf(sort Sort) (*abstractArraySort, bool) {
	if sort.Kind != KindUninterpreted {
		return nil, false
	}
	s, ok := aa.byAbs[sort.Name]
	return s, ok
}

// IndexSurrogate returns the integer surrogate of an index term whose sort
// is the given concrete index sort.
func IndexSurrogate(index Expr) Expr {
	if ExprSort(index).IsInt() {
		return index
	}
	return NewToIntExpr(index)
}

// indexFromSurrogate converts an integer surrogate back to the concrete
// index sort.
func indexFromSurrogate(index Expr, sort Sort) Expr {
	if sort.IsInt() {
		return index
	}
	return NewToBVExpr(index, sort.Width)
}

// Abstract returns the abstraction of a concrete term.
func (aa *ArrayAbstractor) Abstract(expr Expr) (result Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(abstractionError); ok {
				result, err = nil, e.err
				return
			}
			panic(r)
		}
	}()
	return aa.abstracter.Rewrite(expr), nil
}

// abstractionError carries an error out of a rewrite callback.
type abstractionError struct{ err error }

func (aa *ArrayAbstractor) abstractNode(expr Expr) (Expr, bool) {
	switch expr := expr.(type) {
	case *Symbol:
		if v, ok := aa.absVars[expr]; ok {
			return v, true
		}
		return expr, true

	case *SelectExpr:
		s := aa.mustArraySort(ExprSort(expr.Array))
		return NewApplyExpr(s.read, aa.abstracter.Rewrite(expr.Array), IndexSurrogate(aa.abstracter.Rewrite(expr.Index))), true

	case *StoreExpr:
		s := aa.mustArraySort(ExprSort(expr.Array))
		return NewApplyExpr(s.write,
			aa.abstracter.Rewrite(expr.Array),
			IndexSurrogate(aa.abstracter.Rewrite(expr.Index)),
			aa.abstracter.Rewrite(expr.Value),
		), true

	case *ConstArrayExpr:
		s := aa.mustArraySort(expr.Sort)
		return NewApplyExpr(s.constarr, aa.abstracter.Rewrite(expr.Value)), true

	case *BinaryExpr:
		if expr.Op == EQ && ExprSort(expr.LHS).IsArray() {
			s := aa.mustArraySort(ExprSort(expr.LHS))
			return NewApplyExpr(s.arrayeq, aa.abstracter.Rewrite(expr.LHS), aa.abstracter.Rewrite(expr.RHS)), true
		}
	case *IteExpr:
		if ExprSort(expr.Then).IsArray() {
			aa.mustArraySort(ExprSort(expr.Then))
		}
	}
	return nil, false
}

func (aa *ArrayAbstractor) mustArraySort(sort Sort) *abstractArraySort {
	if _, err := aa.abstractSort(sort); err != nil {
		panic(abstractionError{err: err})
	}
	return aa.byConc[sort.String()]
}

// Concretize returns the concrete form of an abstract term. Integer index
// surrogates that are not the image of a bit-vector are converted back with
// ToBVExpr.
func (aa *ArrayAbstractor) Concretize(expr Expr) Expr {
	return aa.concretizer.Rewrite(expr)
}

func (aa *ArrayAbstractor) concretizeNode(expr Expr) (Expr, bool) {
	switch expr := expr.(type) {
	case *Symbol:
		if v, ok := aa.concVars[expr]; ok {
			return v, true
		}
		return expr, true

	case *ApplyExpr:
		f, ok := aa.funcs[expr.Func]
		if !ok {
			return nil, false
		}
		args := make([]Expr, len(expr.Args))
		for i, arg := range expr.Args {
			args[i] = aa.concretizer.Rewrite(arg)
		}
		switch f.kind {
		case arrayRead:
			return NewSelectExpr(args[0], indexFromSurrogate(args[1], *f.sort.conc.Index)), true
		case arrayWrite:
			return NewStoreExpr(args[0], indexFromSurrogate(args[1], *f.sort.conc.Index), args[2]), true
		case arrayConst:
			return NewConstArrayExpr(f.sort.conc, args[0]), true
		default:
			return NewEqExpr(args[0], args[1]), true
		}
	}
	return nil, false
}
