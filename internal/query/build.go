package query

import "github.com/roach88/docql/internal/value"

// Where applies op to field.
func Where(field string, op Operator) FieldOp {
	return FieldOp{Field: field, Op: op}
}

func Eq(field string, v value.Value) FieldOp  { return compare(field, CmpEq, v) }
func Ne(field string, v value.Value) FieldOp  { return compare(field, CmpNe, v) }
func Gt(field string, v value.Value) FieldOp  { return compare(field, CmpGt, v) }
func Gte(field string, v value.Value) FieldOp { return compare(field, CmpGte, v) }
func Lt(field string, v value.Value) FieldOp  { return compare(field, CmpLt, v) }
func Lte(field string, v value.Value) FieldOp { return compare(field, CmpLte, v) }

func compare(field string, c Comparator, v value.Value) FieldOp {
	if v == nil {
		v = value.Null{}
	}
	return Where(field, CompareOp{Op: c, Value: v})
}

// In matches field against any of vals.
func In(field string, vals ...value.Value) FieldOp {
	return Where(field, InOp{Values: value.NewList(vals...)})
}

// NotIn matches field against none of vals.
func NotIn(field string, vals ...value.Value) FieldOp {
	return Where(field, NotInOp{Values: value.NewList(vals...)})
}

func Like(field, pattern string) FieldOp  { return match(field, PatLike, pattern) }
func ILike(field, pattern string) FieldOp { return match(field, PatILike, pattern) }
func Contains(field, s string) FieldOp    { return match(field, PatContains, s) }
func StartsWith(field, s string) FieldOp  { return match(field, PatStartsWith, s) }
func EndsWith(field, s string) FieldOp    { return match(field, PatEndsWith, s) }

func match(field string, p Pattern, operand string) FieldOp {
	return Where(field, MatchOp{Op: p, Operand: operand})
}

// All matches arrays at field containing every one of vals.
func All(field string, vals ...value.Value) FieldOp {
	return Where(field, AllOp{Values: value.NewList(vals...)})
}

// Size matches arrays at field with exactly n elements.
func Size(field string, n int64) FieldOp {
	return Where(field, SizeOp{Len: n})
}

// ElemMatch matches arrays at field with an element satisfying q.
func ElemMatch(field string, q Query) FieldOp {
	return Where(field, ElemMatchOp{Query: q})
}

// Index matches arrays at field whose element at pos satisfies q.
func Index(field string, pos int64, q Query) FieldOp {
	return Where(field, IndexOp{Position: pos, Query: q})
}

// Exists matches documents where field is present (or absent).
func Exists(field string, present bool) FieldOp {
	return Where(field, ExistsOp{Present: present})
}

// AllOf builds an And. The children slice is copied.
func AllOf(children ...Query) And {
	return And{Children: clone(children)}
}

// AnyOf builds an Or. The children slice is copied.
func AnyOf(children ...Query) Or {
	return Or{Children: clone(children)}
}

// NoneOf builds a Nor. The children slice is copied.
func NoneOf(children ...Query) Nor {
	return Nor{Children: clone(children)}
}

// Negate builds a Not.
func Negate(child Query) Not {
	return Not{Child: child}
}
