package tsmc

// ArrayIndex is the result of the collection pass over a concrete system.
// All terms are abstract. It is not modified after findArrays returns.
type ArrayIndex struct {
	constArrays ExprSet
	stores      ExprSet
	arrayEqs    ExprSet

	// Index terms keyed by the string of their concrete index sort.
	curIndices map[string]ExprSet
	allIndices map[string]ExprSet

	// Array equalities that need a witness, with the index sort of each.
	witnesses []witnessDecl

	// One lambda per array sort.
	lambdas []*abstractArraySort
}

type witnessDecl struct {
	eq    Expr
	index Sort
}

// ConstArrays returns the abstract constant array terms.
func (idx *ArrayIndex) ConstArrays() []Expr { return idx.constArrays.Slice() }

// Stores returns the abstract store terms.
func (idx *ArrayIndex) Stores() []Expr { return idx.stores.Slice() }

// ArrayEqs returns the abstract array equality terms.
func (idx *ArrayIndex) ArrayEqs() []Expr { return idx.arrayEqs.Slice() }

// Indices returns the index surrogates used with the given concrete index
// sort. If curOnly is true, only indices over current-state variables are
// returned.
func (idx *ArrayIndex) Indices(sort Sort, curOnly bool) []Expr {
	if curOnly {
		return idx.curIndices[sort.String()].Slice()
	}
	return idx.allIndices[sort.String()].Slice()
}

// findArrays walks every term of the concrete system and its property and
// collects the array terms and index terms in abstract form.
func findArrays(aa *ArrayAbstractor, prop *Property) (*ArrayIndex, error) {
	ts := aa.ConcreteSystem()
	idx := &ArrayIndex{
		curIndices: make(map[string]ExprSet),
		allIndices: make(map[string]ExprSet),
	}

	var exprs []Expr
	for _, v := range ts.StateVars() {
		if update, ok := ts.Update(v); ok {
			exprs = append(exprs, update)
		}
	}
	exprs = append(exprs, ts.init...)
	exprs = append(exprs, ts.trans...)
	exprs = append(exprs, ts.constraints...)
	exprs = append(exprs, prop.Expr)

	var err error
	addIndex := func(index Expr, sort Sort) {
		abs, e := aa.Abstract(index)
		if e != nil {
			err = e
			return
		}
		abs = IndexSurrogate(abs)
		key := sort.String()
		idx.allIndices[key] = idx.allIndices[key].Add(abs)
		if ts.OnlyCurr(index) {
			idx.curIndices[key] = idx.curIndices[key].Add(abs)
		}
	}
	addTerm := func(set *ExprSet, expr Expr) {
		abs, e := aa.Abstract(expr)
		if e != nil {
			err = e
			return
		}
		*set = set.Add(abs)
	}

	for _, expr := range exprs {
		InspectOnce(expr, func(e Expr) bool {
			if err != nil {
				return false
			}
			switch e := e.(type) {
			case *SelectExpr:
				addIndex(e.Index, *ExprSort(e.Array).Index)
			case *StoreExpr:
				addIndex(e.Index, *ExprSort(e.Array).Index)
				addTerm(&idx.stores, e)
			case *ConstArrayExpr:
				addTerm(&idx.constArrays, e)
			case *BinaryExpr:
				if e.Op == EQ && ExprSort(e.LHS).IsArray() {
					addTerm(&idx.arrayEqs, e)
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	for _, eq := range idx.arrayEqs.Slice() {
		s, ok := aa.arraySortOf(ExprSort(eq.(*ApplyExpr).Args[0]))
		assert(ok, "array equality over unknown sort: %s", eq)
		idx.witnesses = append(idx.witnesses, witnessDecl{eq: eq, index: *s.conc.Index})
	}
	idx.lambdas = append(idx.lambdas, aa.sorts...)
	return idx, nil
}
