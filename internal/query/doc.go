// Package query defines the typed document-query representation: the
// operator algebra, the recursive Query tree and the pagination options.
//
// The package knows nothing about SQL. Backends (internal/querysql for
// SQLite, internal/eval for the in-memory reference evaluator) consume the
// same values.
//
// ARCHITECTURE:
//
//	[caller / Parse] → [Query + Options] → [querysql: SQL + params]
//	                                     → [eval: in-memory match]
//
// OPERATORS:
//
// Operator is a sealed interface with four families:
//   - Comparison: CompareOp (Eq, Ne, Gt, Gte, Lt, Lte), InOp, NotInOp
//   - String: MatchOp (Like, ILike, Contains, StartsWith, EndsWith)
//   - Array: AllOp, SizeOp, ElemMatchOp, IndexOp
//   - Existence: ExistsOp
//
// Operands are value.Value, a closed enum, so no backend ever inspects
// boxed Go values.
//
// QUERIES:
//
// Query is a sealed interface over Empty, FieldOp, And, Or, Nor and Not.
// ElemMatch and Index embed a nested Query; both sum types live in this
// package so the recursion is declared in one place.
//
// Query values are immutable. The constructors in build.go copy their
// inputs and composition always builds new trees:
//
//	q := query.AllOf(
//	    query.Eq("status", value.Text("active")),
//	    query.AnyOf(query.Gte("age", value.Integer(18)), query.Exists("guardian", true)),
//	)
//
// Parse accepts the same trees in Mongo-style document form.
//
// SEALED INTERFACES:
//
// Only types in this package implement Operator or Query, which makes type
// switches in backends exhaustive:
//
//	switch n := q.(type) {
//	case query.Empty:
//	case query.FieldOp:
//	case query.And:
//	case query.Or:
//	case query.Nor:
//	case query.Not:
//	}
//
// ELEMENT SCOPE:
//
// Inside ElemMatch and Index the nested query is evaluated per array
// element. Field names there are relative to the element and the empty
// field name denotes the element itself:
//
//	query.ElemMatch("scores", query.Gt("", value.Integer(90)))
//	query.ElemMatch("items", query.Eq("sku", value.Text("A-1")))
package query
