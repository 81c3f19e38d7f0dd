package query

// Query is a composable filter over documents.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - Empty: matches every document
//   - FieldOp: one operator applied to one field
//   - And: every child matches (empty And matches everything)
//   - Or: at least one child matches (empty Or matches nothing)
//   - Nor: no child matches
//   - Not: the child does not match
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Empty matches every document.
type Empty struct{}

func (Empty) queryNode() {}

// FieldOp applies Op to the document member named Field.
//
// Field is a dotted path ("profile.bio", "items.0.sku"). The empty name is
// only meaningful inside ElemMatch and Index, where it denotes the array
// element itself.
type FieldOp struct {
	Field string
	Op    Operator
}

func (FieldOp) queryNode() {}

// And matches when every child matches.
type And struct {
	Children []Query
}

func (And) queryNode() {}

// Or matches when at least one child matches.
type Or struct {
	Children []Query
}

func (Or) queryNode() {}

// Nor matches when no child matches.
type Nor struct {
	Children []Query
}

func (Nor) queryNode() {}

// Not inverts its child.
type Not struct {
	Child Query
}

func (Not) queryNode() {}

// Children returns the direct sub-queries of q, including the nested query
// of an ElemMatch or Index operator. The returned slice is a copy.
func Children(q Query) []Query {
	switch n := q.(type) {
	case And:
		return clone(n.Children)
	case Or:
		return clone(n.Children)
	case Nor:
		return clone(n.Children)
	case Not:
		return []Query{n.Child}
	case FieldOp:
		if nested, ok := Nested(n.Op); ok {
			return []Query{nested}
		}
	}
	return nil
}

// Depth returns the nesting depth of q. Leaves have depth 1.
func Depth(q Query) int {
	deepest := 0
	for _, c := range Children(q) {
		deepest = max(deepest, Depth(c))
	}
	return deepest + 1
}

func clone(qs []Query) []Query {
	if qs == nil {
		return nil
	}
	out := make([]Query, len(qs))
	copy(out, qs)
	return out
}
