// Package eval is a naive in-memory evaluator for query trees.
//
// It answers the same questions as the SQL produced by internal/querysql,
// without SQLite: does this document match, and in which order do matching
// documents come back for a given sort, page and cursor. It exists to check
// the translator; the differential tests run every query through both and
// compare the returned ids.
//
// SEMANTICS
//
// Evaluation follows SQLite rather than any "natural" document semantics:
//
//   - Predicates are three valued (True, False, Unknown). A WHERE clause keeps
//     a row only when the predicate is True, so NOT over Unknown stays Unknown.
//   - Field values are what json_extract returns: JSON true/false read as 1/0,
//     JSON null and missing members read as NULL, arrays and objects read as
//     their JSON text.
//   - Indexed fields are read through their generated column, so the column
//     affinity applies to the stored value and to the compared operand.
//   - Values order NULL < numbers < text. Text compares bytewise.
//   - LIKE folds ASCII case only.
//
// Object members are rendered with sorted keys when an object is read as
// text. SQLite keeps document order there, so queries comparing whole
// objects may disagree; nothing in the query language needs that.
package eval
