package tsmc

import (
	"fmt"
	"strings"
)

// SortKind identifies the family of a sort.
type SortKind int

const (
	// KindBitVec is a fixed-width bit-vector. Width 1 is the boolean sort.
	KindBitVec SortKind = iota + 1
	KindInt
	KindArray
	KindUninterpreted
)

// Sort describes the type of a term.
type Sort struct {
	Kind  SortKind
	Width uint  // bit-vector width
	Index *Sort // array index sort
	Elem  *Sort // array element sort
	Name  string
}

// BoolSort returns the boolean sort.
func BoolSort() Sort { return Sort{Kind: KindBitVec, Width: WidthBool} }

// BitVecSort returns a bit-vector sort of the given width.
func BitVecSort(width uint) Sort {
	assert(width > 0 && width <= Width64, "bit-vector width out of range: %d", width)
	return Sort{Kind: KindBitVec, Width: width}
}

// IntSort returns the mathematical integer sort.
func IntSort() Sort { return Sort{Kind: KindInt} }

// ArraySort returns an array sort from index to element.
func ArraySort(index, elem Sort) Sort {
	return Sort{Kind: KindArray, Index: &index, Elem: &elem}
}

// UninterpretedSort returns a named sort with no interpretation.
func UninterpretedSort(name string) Sort {
	return Sort{Kind: KindUninterpreted, Name: name}
}

// IsBool returns true if s is the boolean sort.
func (s Sort) IsBool() bool { return s.Kind == KindBitVec && s.Width == WidthBool }

// IsBitVec returns true for bit-vector sorts, including boolean.
func (s Sort) IsBitVec() bool { return s.Kind == KindBitVec }

// IsInt returns true for the integer sort.
func (s Sort) IsInt() bool { return s.Kind == KindInt }

// IsArray returns true for array sorts.
func (s Sort) IsArray() bool { return s.Kind == KindArray }

// Equal returns true if s and other describe the same sort.
func (s Sort) Equal(other Sort) bool { return CompareSort(s, other) == 0 }

// String returns the string representation of the sort.
func (s Sort) String() string {
	switch s.Kind {
	case KindBitVec:
		if s.Width == WidthBool {
			return "bool"
		}
		return fmt.Sprintf("bv%d", s.Width)
	case KindInt:
		return "int"
	case KindArray:
		return fmt.Sprintf("(array %s %s)", s.Index, s.Elem)
	case KindUninterpreted:
		return s.Name
	default:
		return fmt.Sprintf("Sort<%d>", s.Kind)
	}
}

// Ident returns a form of the sort name that is safe to embed in symbol names.
func (s Sort) Ident() string {
	r := strings.NewReplacer("(", "", ")", "", " ", "_")
	return r.Replace(s.String())
}

// CompareSort returns an integer comparing two sorts.
func CompareSort(a, b Sort) int {
	if a.Kind != b.Kind {
		return compareInt(int(a.Kind), int(b.Kind))
	}
	switch a.Kind {
	case KindBitVec:
		return compareInt(int(a.Width), int(b.Width))
	case KindArray:
		if cmp := CompareSort(*a.Index, *b.Index); cmp != 0 {
			return cmp
		}
		return CompareSort(*a.Elem, *b.Elem)
	case KindUninterpreted:
		return strings.Compare(a.Name, b.Name)
	}
	return 0
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
