package query

import "github.com/roach88/docql/internal/value"

// Family groups operators by the kind of predicate they express.
type Family string

const (
	FamilyComparison Family = "comparison"
	FamilyString     Family = "string"
	FamilyArray      Family = "array"
	FamilyExistence  Family = "existence"
)

// Operator is a per-field predicate carrying its operand(s).
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backends.
//
// Operator types:
//   - CompareOp: Eq, Ne, Gt, Gte, Lt, Lte against one value
//   - InOp, NotInOp: set membership
//   - MatchOp: Like, ILike, Contains, StartsWith, EndsWith
//   - AllOp, SizeOp, ElemMatchOp, IndexOp: array predicates
//   - ExistsOp: member presence
type Operator interface {
	// Name is the stable document-form name of the operator (e.g. "$eq").
	Name() string
	// Family reports the operator family.
	Family() Family

	operatorNode() // Marker method - seals interface to this package
}

// Comparator identifies a single-value comparison.
type Comparator string

const (
	CmpEq  Comparator = "$eq"
	CmpNe  Comparator = "$ne"
	CmpGt  Comparator = "$gt"
	CmpGte Comparator = "$gte"
	CmpLt  Comparator = "$lt"
	CmpLte Comparator = "$lte"
)

// IsValid reports whether c is one of the six comparators.
func (c Comparator) IsValid() bool {
	switch c {
	case CmpEq, CmpNe, CmpGt, CmpGte, CmpLt, CmpLte:
		return true
	}
	return false
}

// CompareOp is a single-value comparison: field <op> value.
type CompareOp struct {
	Op    Comparator
	Value value.Value
}

func (c CompareOp) Name() string { return string(c.Op) }
func (CompareOp) Family() Family { return FamilyComparison }
func (CompareOp) operatorNode()  {}

// InOp matches when the field equals any listed value.
// An empty list matches nothing.
type InOp struct {
	Values value.List
}

func (InOp) Name() string   { return "$in" }
func (InOp) Family() Family { return FamilyComparison }
func (InOp) operatorNode()  {}

// NotInOp matches when the field equals none of the listed values.
// An empty list matches everything.
type NotInOp struct {
	Values value.List
}

func (NotInOp) Name() string   { return "$nin" }
func (NotInOp) Family() Family { return FamilyComparison }
func (NotInOp) operatorNode()  {}

// Pattern identifies a string operator.
type Pattern string

const (
	PatLike       Pattern = "$like"
	PatILike      Pattern = "$ilike"
	PatContains   Pattern = "$contains"
	PatStartsWith Pattern = "$startsWith"
	PatEndsWith   Pattern = "$endsWith"
)

// IsValid reports whether p is one of the five string operators.
func (p Pattern) IsValid() bool {
	switch p {
	case PatLike, PatILike, PatContains, PatStartsWith, PatEndsWith:
		return true
	}
	return false
}

// MatchOp is a string predicate. For Like and ILike, Operand is a pattern
// with % and _ wildcards. For Contains, StartsWith and EndsWith it is a
// substring wrapped with %; wildcard characters inside it are not escaped.
type MatchOp struct {
	Op      Pattern
	Operand string
}

func (m MatchOp) Name() string { return string(m.Op) }
func (MatchOp) Family() Family { return FamilyString }
func (MatchOp) operatorNode()  {}

// LikePattern returns the LIKE pattern the operator compiles to.
func (m MatchOp) LikePattern() string {
	switch m.Op {
	case PatContains:
		return "%" + m.Operand + "%"
	case PatStartsWith:
		return m.Operand + "%"
	case PatEndsWith:
		return "%" + m.Operand
	default:
		return m.Operand
	}
}

// CaseInsensitive reports whether the operator folds case explicitly.
func (m MatchOp) CaseInsensitive() bool {
	return m.Op == PatILike
}

// AllOp matches arrays containing every listed value.
// An empty list matches everything.
type AllOp struct {
	Values value.List
}

func (AllOp) Name() string   { return "$all" }
func (AllOp) Family() Family { return FamilyArray }
func (AllOp) operatorNode()  {}

// SizeOp matches arrays with exactly Len elements.
type SizeOp struct {
	Len int64
}

func (SizeOp) Name() string   { return "$size" }
func (SizeOp) Family() Family { return FamilyArray }
func (SizeOp) operatorNode()  {}

// ElemMatchOp matches arrays with at least one element satisfying Query.
// Query is evaluated in element scope.
type ElemMatchOp struct {
	Query Query
}

func (ElemMatchOp) Name() string   { return "$elemMatch" }
func (ElemMatchOp) Family() Family { return FamilyArray }
func (ElemMatchOp) operatorNode()  {}

// IndexOp matches arrays whose element at Position satisfies Query.
// Positions are zero-based.
type IndexOp struct {
	Position int64
	Query    Query
}

func (IndexOp) Name() string   { return "$index" }
func (IndexOp) Family() Family { return FamilyArray }
func (IndexOp) operatorNode()  {}

// ExistsOp matches when the field is present (Present=true) or absent
// (Present=false). A member holding JSON null is present.
type ExistsOp struct {
	Present bool
}

func (ExistsOp) Name() string   { return "$exists" }
func (ExistsOp) Family() Family { return FamilyExistence }
func (ExistsOp) operatorNode()  {}

// Nested returns the nested query of ElemMatch and Index operators.
func Nested(op Operator) (Query, bool) {
	switch o := op.(type) {
	case ElemMatchOp:
		return o.Query, true
	case IndexOp:
		return o.Query, true
	}
	return nil, false
}
