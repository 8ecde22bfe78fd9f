package tsmc

import (
	"fmt"
	"math/bits"
	"strings"
)

// Expr represents a symbolic term.
type Expr interface {
	String() string
	expr()
}

func (*ApplyExpr) expr()      {}
func (*BinaryExpr) expr()     {}
func (*CastExpr) expr()       {}
func (*ConcatExpr) expr()     {}
func (*ConstArrayExpr) expr() {}
func (*ConstantExpr) expr()   {}
func (*ExtractExpr) expr()    {}
func (*IntExpr) expr()        {}
func (*IteExpr) expr()        {}
func (*NotExpr) expr()        {}
func (*OpaqueExpr) expr()     {}
func (*SelectExpr) expr()     {}
func (*StoreExpr) expr()      {}
func (*Symbol) expr()         {}
func (*ToBVExpr) expr()       {}
func (*ToIntExpr) expr()      {}

// ExprSort returns the sort of the expression.
func ExprSort(expr Expr) Sort {
	switch expr := expr.(type) {
	case *Symbol:
		return expr.Sort
	case *ConstantExpr:
		return BitVecSort(expr.Width)
	case *IntExpr:
		return IntSort()
	case *NotExpr:
		return ExprSort(expr.Expr)
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return BoolSort()
		}
		return ExprSort(expr.LHS)
	case *IteExpr:
		return ExprSort(expr.Then)
	case *ConcatExpr:
		return BitVecSort(ExprWidth(expr.MSB) + ExprWidth(expr.LSB))
	case *ExtractExpr:
		return BitVecSort(expr.Width)
	case *CastExpr:
		return BitVecSort(expr.Width)
	case *ToIntExpr:
		return IntSort()
	case *ToBVExpr:
		return BitVecSort(expr.Width)
	case *SelectExpr:
		return *ExprSort(expr.Array).Elem
	case *StoreExpr:
		return ExprSort(expr.Array)
	case *ConstArrayExpr:
		return expr.Sort
	case *ApplyExpr:
		return expr.Func.Range
	case *OpaqueExpr:
		return expr.Sort
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}

// ExprWidth returns the bit width of a bit-vector expression.
// Returns zero for expressions of other sorts.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *ExtractExpr:
		return expr.Width
	case *CastExpr:
		return expr.Width
	case *Symbol:
		return expr.Sort.Width
	}
	if s := ExprSort(expr); s.Kind == KindBitVec {
		return s.Width
	}
	return 0
}

// IsBoolExpr returns true if expr has the boolean sort.
func IsBoolExpr(expr Expr) bool {
	return ExprSort(expr).IsBool()
}

// Symbol represents a named variable of a fixed sort.
type Symbol struct {
	Name string
	Sort Sort
}

// NewSymbol returns a new instance of Symbol.
func NewSymbol(name string, sort Sort) *Symbol {
	return &Symbol{Name: name, Sort: sort}
}

// String returns the string representation of the expression.
func (e *Symbol) String() string { return e.Name }

// BinaryOp represents a binary expression operations.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:  "add",
	SUB:  "sub",
	MUL:  "mul",
	UDIV: "udiv",
	SDIV: "sdiv",
	UREM: "urem",
	SREM: "srem",
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	SHL:  "shl",
	LSHR: "lshr",
	ASHR: "ashr",
	EQ:   "eq",
	NE:   "ne",
	ULT:  "ult",
	ULE:  "ule",
	UGT:  "ugt",
	UGE:  "uge",
	SLT:  "slt",
	SLE:  "sle",
	SGT:  "sgt",
	SGE:  "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// BinaryExpr represents an operation on two expressions.
//
// On integer operands ADD, SUB and MUL are integer arithmetic and the signed
// comparisons are integer comparisons.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new binary expression, folding constants where possible.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(ExprSort(lhs).Equal(ExprSort(rhs)), "binary expr sort mismatch: op=%s %s != %s", op, ExprSort(lhs), ExprSort(rhs))

	if ExprSort(lhs).IsInt() {
		return newIntBinaryExpr(op, lhs, rhs)
	}

	switch op {
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case UDIV, SDIV, UREM, SREM:
		return newDivRemExpr(op, lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)
	case SHL, LSHR, ASHR:
		return newShiftExpr(op, lhs, rhs)

	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewNotExpr(newEqExpr(lhs, rhs))
	case ULT:
		return newUltExpr(lhs, rhs)
	case UGT:
		return newUltExpr(rhs, lhs) // reverse
	case ULE:
		return newUleExpr(lhs, rhs)
	case UGE:
		return newUleExpr(rhs, lhs) // reverse
	case SLT:
		return newSltExpr(lhs, rhs)
	case SGT:
		return newSltExpr(rhs, lhs) // reverse
	case SLE:
		return newSleExpr(lhs, rhs)
	case SGE:
		return newSleExpr(rhs, lhs) // reverse
	default:
		panic(fmt.Sprintf("unreachable: %s", op))
	}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// newAddExpr returns the expression representing the sum of lhs & rhs.
func newAddExpr(lhs, rhs Expr) Expr {
	// Move constant expression to left hand side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Refactor to XOR for boolean expressions.
	if ExprWidth(lhs) == WidthBool {
		return NewBinaryExpr(XOR, lhs, rhs)
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 0 {
			return rhs
		} else if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.Add(r)
		}

		// X + (Y+z) == (X+Y) + z
		if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == ADD && IsConstantExpr(rhs.LHS) {
			return NewBinaryExpr(ADD, lhs.Add(rhs.LHS.(*ConstantExpr)), rhs.RHS)
		}
	}
	return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs}
}

// newSubExpr returns an expression representing the difference of lhs & rhs.
func newSubExpr(lhs, rhs Expr) Expr {
	// Subtracting a value from itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sub(rhs)
		}
	}

	// Refactor to XOR for boolean expressions.
	if ExprWidth(lhs) == WidthBool {
		return NewBinaryExpr(XOR, lhs, rhs)
	}

	// x - k == (-k) + x
	if rhs, ok := rhs.(*ConstantExpr); ok {
		return NewBinaryExpr(ADD, NewConstantExpr(0, rhs.Width).Sub(rhs), lhs)
	}
	return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs}
}

// newMulExpr returns an expression that represents the product of lhs & rhs.
func newMulExpr(lhs, rhs Expr) Expr {
	if IsConstantExpr(rhs) && !IsConstantExpr(lhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.Mul(r)
		} else if lhs.Value == 1 {
			return rhs
		} else if lhs.Value == 0 {
			return lhs
		}
	}

	if ExprWidth(lhs) == WidthBool {
		return NewBinaryExpr(AND, lhs, rhs)
	}
	return &BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs}
}

// newDivRemExpr returns a division or remainder expression.
func newDivRemExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			switch op {
			case UDIV:
				return lhs.UDiv(rhs)
			case SDIV:
				return lhs.SDiv(rhs)
			case UREM:
				return lhs.URem(rhs)
			default:
				return lhs.SRem(rhs)
			}
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// newAndExpr returns an expression that represents the bitwise AND of lhs & rhs.
func newAndExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.And(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return lhs
		} else if rhs.Value == 0 {
			return rhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	} else if isComplement(lhs, rhs) {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

// newOrExpr returns an expression that represents the bitwise OR of lhs & rhs.
func newOrExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Or(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return rhs
		} else if rhs.Value == 0 {
			return lhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	} else if isComplement(lhs, rhs) {
		return NewConstantExpr(bitmask(ExprWidth(lhs)), ExprWidth(lhs))
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

// newXorExpr returns an expression that represents the bitwise XOR of lhs & rhs.
func newXorExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 0 {
			return rhs
		} else if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.Xor(r)
		} else if lhs.IsAllOnes() {
			return NewNotExpr(rhs)
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs}
}

// newShiftExpr returns a shift of lhs by rhs bits.
func newShiftExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			switch op {
			case SHL:
				return lhs.Shl(rhs)
			case LSHR:
				return lhs.LShr(rhs)
			default:
				return lhs.AShr(rhs)
			}
		}
	}
	if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Value == 0 {
		return lhs
	}
	if ExprWidth(lhs) == WidthBool {
		if op == ASHR {
			return lhs
		}
		return NewBinaryExpr(AND, lhs, NewNotExpr(rhs)) // l & !r
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// newEqExpr returns an expression that represents the equality of lhs and rhs.
func newEqExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !isValueExpr(lhs) && isValueExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eq(rhs)
		}
		if lhs.Width == WidthBool {
			if lhs.IsTrue() {
				return rhs // T == X => X
			}
			return NewNotExpr(rhs) // F == X => !X
		}
	}
	if lhs, ok := lhs.(*IntExpr); ok {
		if rhs, ok := rhs.(*IntExpr); ok {
			return NewBoolConstantExpr(lhs.Value == rhs.Value)
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	} else if isComplement(lhs, rhs) {
		return NewBoolConstantExpr(false)
	}
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}

// newUltExpr returns an expression that represents the if lhs is less than rhs (unsigned).
func newUltExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Ult(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(false)
	}
	if ExprWidth(lhs) == WidthBool { // !lhs && rhs
		return NewBinaryExpr(AND, NewNotExpr(lhs), rhs)
	}
	return &BinaryExpr{Op: ULT, LHS: lhs, RHS: rhs}
}

// newUleExpr returns an expression that represents the if lhs is less than or equal to rhs (unsigned).
func newUleExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Ule(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	}
	if ExprWidth(lhs) == WidthBool { // !lhs || rhs
		return NewBinaryExpr(OR, NewNotExpr(lhs), rhs)
	}
	return &BinaryExpr{Op: ULE, LHS: lhs, RHS: rhs}
}

// newSltExpr returns an expression that represents the if lhs is less than rhs (signed).
func newSltExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Slt(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(false)
	}
	if ExprWidth(lhs) == WidthBool { // lhs && !rhs
		return NewBinaryExpr(AND, lhs, NewNotExpr(rhs))
	}
	return &BinaryExpr{Op: SLT, LHS: lhs, RHS: rhs}
}

// newSleExpr returns an expression that represents the if lhs is less than or equal to rhs (signed).
func newSleExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sle(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	}
	if ExprWidth(lhs) == WidthBool { // lhs || !rhs
		return NewBinaryExpr(OR, lhs, NewNotExpr(rhs))
	}
	return &BinaryExpr{Op: SLE, LHS: lhs, RHS: rhs}
}

// newIntBinaryExpr returns an operation over integer operands.
func newIntBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	switch op {
	case ADD, SUB, MUL, EQ, SLT, SLE:
	case NE:
		return NewNotExpr(NewBinaryExpr(EQ, lhs, rhs))
	case SGT:
		return newIntBinaryExpr(SLT, rhs, lhs)
	case SGE:
		return newIntBinaryExpr(SLE, rhs, lhs)
	default:
		panic(fmt.Sprintf("invalid integer operation: %s", op))
	}

	if op == EQ {
		return newEqExpr(lhs, rhs)
	}

	l, lok := lhs.(*IntExpr)
	r, rok := rhs.(*IntExpr)
	if lok && rok {
		switch op {
		case ADD:
			return NewIntExpr(l.Value + r.Value)
		case SUB:
			return NewIntExpr(l.Value - r.Value)
		case MUL:
			return NewIntExpr(l.Value * r.Value)
		case SLT:
			return NewBoolConstantExpr(l.Value < r.Value)
		case SLE:
			return NewBoolConstantExpr(l.Value <= r.Value)
		}
	}
	if op == ADD && lok && l.Value == 0 {
		return rhs
	} else if (op == ADD || op == SUB) && rok && r.Value == 0 {
		return lhs
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// IteExpr represents an if-then-else expression.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewIteExpr returns a new if-then-else expression.
func NewIteExpr(cond, then, els Expr) Expr {
	assert(IsBoolExpr(cond), "ite condition must be boolean: %s", ExprSort(cond))
	assert(ExprSort(then).Equal(ExprSort(els)), "ite branch sort mismatch: %s != %s", ExprSort(then), ExprSort(els))

	if cond, ok := cond.(*ConstantExpr); ok {
		if cond.IsTrue() {
			return then
		}
		return els
	}
	if CompareExpr(then, els) == 0 {
		return then
	}

	// Reduce boolean branches to connectives.
	if IsBoolExpr(then) {
		switch {
		case IsConstantTrue(then) && IsConstantFalse(els):
			return cond
		case IsConstantFalse(then) && IsConstantTrue(els):
			return NewNotExpr(cond)
		case IsConstantTrue(then):
			return NewBinaryExpr(OR, cond, els)
		case IsConstantFalse(els):
			return NewBinaryExpr(AND, cond, then)
		}
	}

	// Normalize negated conditions.
	if not, ok := cond.(*NotExpr); ok {
		return NewIteExpr(not.Expr, els, then)
	}
	return &IteExpr{Cond: cond, Then: then, Else: els}
}

// String returns the string representation of the expression.
func (e *IteExpr) String() string {
	return fmt.Sprintf("(ite %s %s %s)", e.Cond, e.Then, e.Else)
}

// SelectExpr represents a read from an array at an index.
type SelectExpr struct {
	Array Expr
	Index Expr
}

// NewSelectExpr returns a new read of array at index.
func NewSelectExpr(array, index Expr) Expr {
	sort := ExprSort(array)
	assert(sort.IsArray(), "select from non-array: %s", sort)
	assert(sort.Index.Equal(ExprSort(index)), "select index sort mismatch: %s != %s", sort.Index, ExprSort(index))

	switch array := array.(type) {
	case *ConstArrayExpr:
		return array.Value
	case *StoreExpr:
		// Read through stores at distinct constant indices.
		if isValueExpr(array.Index) && isValueExpr(index) {
			if CompareExpr(array.Index, index) == 0 {
				return array.Value
			}
			return NewSelectExpr(array.Array, index)
		} else if CompareExpr(array.Index, index) == 0 {
			return array.Value
		}
	}
	return &SelectExpr{Array: array, Index: index}
}

// String returns the string representation of the expression.
func (e *SelectExpr) String() string {
	return fmt.Sprintf("(select %s %s)", e.Array, e.Index)
}

// StoreExpr represents an array with a single updated element.
type StoreExpr struct {
	Array Expr
	Index Expr
	Value Expr
}

// NewStoreExpr returns a new array equal to array except at index.
func NewStoreExpr(array, index, value Expr) Expr {
	sort := ExprSort(array)
	assert(sort.IsArray(), "store to non-array: %s", sort)
	assert(sort.Index.Equal(ExprSort(index)), "store index sort mismatch: %s != %s", sort.Index, ExprSort(index))
	assert(sort.Elem.Equal(ExprSort(value)), "store value sort mismatch: %s != %s", sort.Elem, ExprSort(value))
	return &StoreExpr{Array: array, Index: index, Value: value}
}

// String returns the string representation of the expression.
func (e *StoreExpr) String() string {
	return fmt.Sprintf("(store %s %s %s)", e.Array, e.Index, e.Value)
}

// ConstArrayExpr represents an array holding the same value at every index.
type ConstArrayExpr struct {
	Sort  Sort
	Value Expr
}

// NewConstArrayExpr returns a new constant array of the given array sort.
func NewConstArrayExpr(sort Sort, value Expr) Expr {
	assert(sort.IsArray(), "constant array of non-array sort: %s", sort)
	assert(sort.Elem.Equal(ExprSort(value)), "constant array value sort mismatch: %s != %s", sort.Elem, ExprSort(value))
	return &ConstArrayExpr{Sort: sort, Value: value}
}

// String returns the string representation of the expression.
func (e *ConstArrayExpr) String() string {
	return fmt.Sprintf("(constarr %s %s)", e.Sort, e.Value)
}

// FuncDecl represents an uninterpreted function.
type FuncDecl struct {
	Name   string
	Domain []Sort
	Range  Sort
}

// NewFuncDecl returns a new uninterpreted function declaration.
func NewFuncDecl(name string, domain []Sort, rng Sort) *FuncDecl {
	return &FuncDecl{Name: name, Domain: domain, Range: rng}
}

// ApplyExpr represents the application of an uninterpreted function.
type ApplyExpr struct {
	Func *FuncDecl
	Args []Expr
}

// NewApplyExpr returns the application of fn to args.
func NewApplyExpr(fn *FuncDecl, args ...Expr) Expr {
	assert(len(args) == len(fn.Domain), "%s: expected %d arguments, got %d", fn.Name, len(fn.Domain), len(args))
	for i, arg := range args {
		assert(fn.Domain[i].Equal(ExprSort(arg)), "%s: argument %d sort mismatch: %s != %s", fn.Name, i, fn.Domain[i], ExprSort(arg))
	}
	return &ApplyExpr{Func: fn, Args: args}
}

// String returns the string representation of the expression.
func (e *ApplyExpr) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(e.Func.Name)
	for _, arg := range e.Args {
		sb.WriteString(" ")
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// ConcatExpr represents a concatenation of two expressions.
type ConcatExpr struct {
	MSB Expr
	LSB Expr
}

// NewConcatExpr returns a new instance of ConcatExpr.
func NewConcatExpr(msb, lsb Expr) Expr {
	// Combine expressions if they are both constants.
	if msb, ok := msb.(*ConstantExpr); ok {
		if lsb, ok := lsb.(*ConstantExpr); ok {
			return msb.Concat(lsb)
		}
	}

	// Combine extract expressions if they are contiguous.
	if msb, ok := msb.(*ExtractExpr); ok {
		if lsb, ok := lsb.(*ExtractExpr); ok {
			if CompareExpr(msb.Expr, lsb.Expr) == 0 && lsb.Offset+lsb.Width == msb.Offset {
				return NewExtractExpr(msb.Expr, lsb.Offset, msb.Width+lsb.Width)
			}
		}
	}

	return &ConcatExpr{MSB: msb, LSB: lsb}
}

// String returns the string representation of the expression.
func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB)
}

// ExtractExpr represents the extraction of a set of bits at a given offset/width.
type ExtractExpr struct {
	Expr   Expr
	Offset uint
	Width  uint
}

// NewExtractExpr returns a new instance of ExtractExpr.
func NewExtractExpr(expr Expr, offset uint, width uint) Expr {
	kw := ExprWidth(expr)
	assert(width > 0, "extract width cannot be zero")
	assert(offset+width <= kw, "extract out of bounds: %d+%d > %d", width, offset, kw)

	if width == kw {
		return expr
	} else if expr, ok := expr.(*ConstantExpr); ok {
		return expr.Extract(offset, width)
	}

	switch expr := expr.(type) {
	case *ConcatExpr:
		lw := ExprWidth(expr.LSB)
		if offset >= lw {
			return NewExtractExpr(expr.MSB, offset-lw, width)
		} else if offset+width <= lw {
			return NewExtractExpr(expr.LSB, offset, width)
		}
		return NewConcatExpr(
			NewExtractExpr(expr.MSB, 0, offset+width-lw),
			NewExtractExpr(expr.LSB, offset, lw-offset),
		)
	case *ExtractExpr:
		return NewExtractExpr(expr.Expr, expr.Offset+offset, width)
	case *CastExpr:
		if sw := ExprWidth(expr.Src); offset+width <= sw {
			return NewExtractExpr(expr.Src, offset, width)
		}
	}

	return &ExtractExpr{Expr: expr, Offset: offset, Width: width}
}

// String returns the string representation of the expression.
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("(extract %s %d %d)", e.Expr, e.Offset, e.Width)
}

// NotExpr represents a bitwise not of an expression. On booleans it is
// logical negation.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Not()
	case *NotExpr:
		return expr.Expr
	}
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// CastExpr represents an expression that extends an expression to a new width.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns a new instance of CastExpr.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	sw := ExprWidth(src)
	if width == sw { // nop
		return src
	} else if width < sw { // truncate
		return NewExtractExpr(src, 0, width)
	} else if src, ok := src.(*ConstantExpr); ok {
		if signed {
			return src.SExt(width)
		}
		return src.ZExt(width)
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// ToIntExpr represents the unsigned integer value of a bit-vector.
type ToIntExpr struct {
	Src Expr
}

// NewToIntExpr returns the unsigned integer value of src.
func NewToIntExpr(src Expr) Expr {
	assert(ExprSort(src).IsBitVec(), "to_int of non-bit-vector: %s", ExprSort(src))
	if src, ok := src.(*ConstantExpr); ok {
		return NewIntExpr(int64(src.Value))
	}
	return &ToIntExpr{Src: src}
}

// String returns the string representation of the expression.
func (e *ToIntExpr) String() string {
	return fmt.Sprintf("(to_int %s)", e.Src)
}

// ToBVExpr represents an integer converted to a bit-vector modulo 2^Width.
type ToBVExpr struct {
	Src   Expr
	Width uint
}

// NewToBVExpr returns src modulo 2^width as a bit-vector.
func NewToBVExpr(src Expr, width uint) Expr {
	assert(ExprSort(src).IsInt(), "to_bv of non-integer: %s", ExprSort(src))
	switch src := src.(type) {
	case *IntExpr:
		return NewConstantExpr(uint64(src.Value), width)
	case *ToIntExpr:
		return NewCastExpr(src.Src, width, false)
	}
	return &ToBVExpr{Src: src, Width: width}
}

// String returns the string representation of the expression.
func (e *ToBVExpr) String() string {
	return fmt.Sprintf("(to_bv %s %d)", e.Src, e.Width)
}

// OpaqueExpr represents a model value that has no structure in this term
// language, such as an element of an uninterpreted sort.
type OpaqueExpr struct {
	Sort Sort
	Text string
}

// String returns the string representation of the expression.
func (e *OpaqueExpr) String() string { return e.Text }

// IntExpr represents an integer constant.
type IntExpr struct {
	Value int64
}

// NewIntExpr returns a new integer constant.
func NewIntExpr(value int64) *IntExpr {
	return &IntExpr{Value: value}
}

// String returns the string representation of the expression.
func (e *IntExpr) String() string {
	return fmt.Sprintf("%d", e.Value)
}

// ConstantExpr represents a bit-vector constant of up to 64 bits.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return &ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	if e.Width == WidthBool {
		if e.Value != 0 {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

// Int returns the value interpreted as a two's complement signed integer.
func (e *ConstantExpr) Int() int64 {
	shift := 64 - e.Width
	return int64(e.Value<<shift) >> shift
}

// Add returns the sum of e and other.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "add: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

// Sub returns the difference of e and other.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "sub: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

// Mul returns the product of e and other.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "mul: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

// UDiv returns the quotient of unsigned division of e and other.
// Division by zero yields all ones.
func (e *ConstantExpr) UDiv(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "udiv: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		return NewConstantExpr(bitmask(e.Width), e.Width)
	}
	return NewConstantExpr(e.Value/other.Value, e.Width)
}

// SDiv returns the quotient of signed division of e and other, truncated
// toward zero.
func (e *ConstantExpr) SDiv(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "sdiv: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		if e.Int() < 0 {
			return NewConstantExpr(1, e.Width)
		}
		return NewConstantExpr(bitmask(e.Width), e.Width)
	}
	a, b := e.Int(), other.Int()
	if b == -1 {
		return NewConstantExpr(uint64(-a), e.Width)
	}
	return NewConstantExpr(uint64(a/b), e.Width)
}

// URem returns the remainder of unsigned division of e and other.
// The remainder of division by zero is e.
func (e *ConstantExpr) URem(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "urem: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		return e
	}
	return NewConstantExpr(e.Value%other.Value, e.Width)
}

// SRem returns the remainder of signed division of e and other. The sign
// follows the dividend.
func (e *ConstantExpr) SRem(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "srem: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		return e
	}
	a, b := e.Int(), other.Int()
	if b == -1 {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(uint64(a%b), e.Width)
}

// And returns the bitwise AND of e and other.
func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "and: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

// Or returns the bitwise OR of e and other.
func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "or: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

// Xor returns the bitwise XOR of e and other.
func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "xor: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

// Shl returns the value of e shifted left by other number of bits.
func (e *ConstantExpr) Shl(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value<<other.Value, e.Width)
}

// LShr returns the value of e logically shifted right by other number of bits.
func (e *ConstantExpr) LShr(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value>>other.Value, e.Width)
}

// AShr returns the value of e arithmetically shifted right by other number of bits.
func (e *ConstantExpr) AShr(other *ConstantExpr) *ConstantExpr {
	n := other.Value
	if n >= uint64(e.Width) {
		n = uint64(e.Width) - 1
	}
	return NewConstantExpr(uint64(e.Int()>>n), e.Width)
}

// Eq returns the equality of e and other.
func (e *ConstantExpr) Eq(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "eq: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(e.Value == other.Value)
}

// Ult returns the unsigned less than comparison of e to other.
func (e *ConstantExpr) Ult(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value < other.Value)
}

// Ule returns the unsigned less than or equal to comparison of e to other.
func (e *ConstantExpr) Ule(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value <= other.Value)
}

// Slt returns the signed less than comparison of e to other.
func (e *ConstantExpr) Slt(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Int() < other.Int())
}

// Sle returns the signed less than or equal to comparison of e to other.
func (e *ConstantExpr) Sle(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Int() <= other.Int())
}

// ZExt returns the zero-extension of e to a new width.
func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExpr(e.Value, width)
}

// SExt returns the sign-extension of e to a new width.
func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExpr(uint64(e.Int()), width)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

// Extract returns width number of bits starting at offset.
func (e *ConstantExpr) Extract(offset, width uint) *ConstantExpr {
	return NewConstantExpr(e.Value>>offset, width)
}

// Concat returns the concatenation of e and lsb.
func (e *ConstantExpr) Concat(lsb *ConstantExpr) *ConstantExpr {
	assert(e.Width+lsb.Width <= Width64, "concat: constant wider than 64 bits")
	return NewConstantExpr((e.Value<<lsb.Width)|lsb.Value, e.Width+lsb.Width)
}

// Bit returns bit i of the value.
func (e *ConstantExpr) Bit(i uint) bool {
	return e.Value&(1<<i) != 0
}

// OnesCount returns the number of set bits.
func (e *ConstantExpr) OnesCount() int {
	return bits.OnesCount64(e.Value)
}

func bitmask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is an instance of ConstantExpr and is true.
func IsConstantTrue(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsTrue()
}

// IsConstantFalse returns true if expr is an instance of ConstantExpr and is false.
func IsConstantFalse(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsFalse()
}

// isValueExpr returns true for bit-vector and integer constants.
func isValueExpr(expr Expr) bool {
	switch expr.(type) {
	case *ConstantExpr, *IntExpr:
		return true
	}
	return false
}

// isComplement returns true if a is the bitwise negation of b or vice versa.
func isComplement(a, b Expr) bool {
	if not, ok := a.(*NotExpr); ok && CompareExpr(not.Expr, b) == 0 {
		return true
	} else if not, ok := b.(*NotExpr); ok && CompareExpr(not.Expr, a) == 0 {
		return true
	}
	return false
}

// True returns the boolean constant true.
func True() *ConstantExpr { return NewBoolConstantExpr(true) }

// False returns the boolean constant false.
func False() *ConstantExpr { return NewBoolConstantExpr(false) }

// NewAndExpr returns the conjunction of exprs. Returns true if exprs is empty.
func NewAndExpr(exprs ...Expr) Expr {
	var result Expr = True()
	for _, expr := range exprs {
		result = NewBinaryExpr(AND, result, expr)
	}
	return result
}

// NewOrExpr returns the disjunction of exprs. Returns false if exprs is empty.
func NewOrExpr(exprs ...Expr) Expr {
	var result Expr = False()
	for _, expr := range exprs {
		result = NewBinaryExpr(OR, result, expr)
	}
	return result
}

// NewImpliesExpr returns the implication lhs => rhs.
func NewImpliesExpr(lhs, rhs Expr) Expr {
	return NewBinaryExpr(OR, NewNotExpr(lhs), rhs)
}

// NewEqExpr returns the equality of lhs and rhs.
func NewEqExpr(lhs, rhs Expr) Expr {
	return NewBinaryExpr(EQ, lhs, rhs)
}

// Conjuncts splits a conjunction into its top-level operands.
func Conjuncts(expr Expr) []Expr {
	if IsConstantTrue(expr) {
		return nil
	}
	if bin, ok := expr.(*BinaryExpr); ok && bin.Op == AND && ExprWidth(bin.LHS) == WidthBool {
		return append(Conjuncts(bin.LHS), Conjuncts(bin.RHS)...)
	}
	return []Expr{expr}
}

// CompareExpr returns an integer comparing two expressions.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	} else if a == b {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *IntExpr:
		return compareInt64(a.Value, b.(*IntExpr).Value)
	case *Symbol:
		b := b.(*Symbol)
		if cmp := strings.Compare(a.Name, b.Name); cmp != 0 {
			return cmp
		}
		return CompareSort(a.Sort, b.Sort)
	case *OpaqueExpr:
		b := b.(*OpaqueExpr)
		if cmp := CompareSort(a.Sort, b.Sort); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.Text, b.Text)
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	case *IteExpr:
		return compareExprs([]Expr{a.Cond, a.Then, a.Else}, ExprChildren(b))
	case *ConcatExpr:
		return compareExprs([]Expr{a.MSB, a.LSB}, ExprChildren(b))
	case *ExtractExpr:
		return compareExtractExpr(a, b.(*ExtractExpr))
	case *CastExpr:
		return compareCastExpr(a, b.(*CastExpr))
	case *ToIntExpr:
		return CompareExpr(a.Src, b.(*ToIntExpr).Src)
	case *ToBVExpr:
		b := b.(*ToBVExpr)
		if cmp := compareInt(int(a.Width), int(b.Width)); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.Src, b.Src)
	case *SelectExpr:
		return compareExprs([]Expr{a.Array, a.Index}, ExprChildren(b))
	case *StoreExpr:
		return compareExprs([]Expr{a.Array, a.Index, a.Value}, ExprChildren(b))
	case *ConstArrayExpr:
		b := b.(*ConstArrayExpr)
		if cmp := CompareSort(a.Sort, b.Sort); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.Value, b.Value)
	case *ApplyExpr:
		b := b.(*ApplyExpr)
		if cmp := strings.Compare(a.Func.Name, b.Func.Name); cmp != 0 {
			return cmp
		}
		return compareExprs(a.Args, b.Args)
	default:
		panic(fmt.Sprintf("unreachable: %T", a))
	}
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}

	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

func compareExtractExpr(a, b *ExtractExpr) int {
	if a.Offset < b.Offset {
		return -1
	} else if a.Offset > b.Offset {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Expr, b.Expr)
}

func compareCastExpr(a, b *CastExpr) int {
	if a.Signed && !b.Signed {
		return -1
	} else if !a.Signed && b.Signed {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Src, b.Src)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

func compareExprs(a, b []Expr) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if cmp := CompareExpr(a[i], b[i]); cmp != 0 {
			return cmp
		}
	}
	return compareInt(len(a), len(b))
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *IntExpr:
		return 2
	case *Symbol:
		return 3
	case *OpaqueExpr:
		return 4
	case *NotExpr:
		return 5
	case *BinaryExpr:
		return 6
	case *IteExpr:
		return 7
	case *ConcatExpr:
		return 8
	case *ExtractExpr:
		return 9
	case *CastExpr:
		return 10
	case *ToIntExpr:
		return 11
	case *ToBVExpr:
		return 12
	case *SelectExpr:
		return 13
	case *StoreExpr:
		return 14
	case *ConstArrayExpr:
		return 15
	case *ApplyExpr:
		return 16
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}
