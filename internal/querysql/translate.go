// Package querysql compiles typed document queries to parameterized SQLite
// SQL.
//
// CRITICAL: values are never interpolated. Every operand is a ? placeholder
// and the placeholder count always equals len(Result.Params).
// CRITICAL: every statement built here carries an ORDER BY that ends in a
// unique key, so results are deterministic.
//
// Translation is pure. Each call creates its own translation context (alias
// counter, parameter accumulator), so one Translator may be used from any
// number of goroutines against the same frozen schema.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// Result is a boolean SQL expression suitable for a WHERE clause plus its
// positional parameters.
type Result struct {
	SQL    string
	Params []value.Value
}

// Args converts Params to database/sql arguments.
func (r Result) Args() ([]any, error) {
	return value.Args(r.Params)
}

// Translator compiles queries against one schema.
type Translator struct {
	schema *schema.Schema
}

// NewTranslator returns a Translator for s. A nil schema treats every field
// as undeclared.
func NewTranslator(s *schema.Schema) *Translator {
	if s == nil {
		s = schema.MustNew(nil, nil)
	}
	return &Translator{schema: s}
}

// Schema returns the schema the translator resolves fields against.
func (tr *Translator) Schema() *schema.Schema {
	return tr.schema
}

// Translate compiles q to a WHERE expression.
func (tr *Translator) Translate(q query.Query) (Result, error) {
	t := &translation{schema: tr.schema}
	frag, err := t.query(q, scope{}, 1)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: frag.sql, Params: frag.params}, nil
}

// Translate is shorthand for NewTranslator(s).Translate(q).
func Translate(s *schema.Schema, q query.Query) (Result, error) {
	return NewTranslator(s).Translate(q)
}

// class is the precedence class of a fragment.
type class int

const (
	// atom fragments are safe anywhere: comparisons, EXISTS (...), literals.
	atom class = iota
	// compound fragments are parenthesized when joined with siblings.
	compound
)

// fragment is a translated subtree. Parameters are in placeholder order.
type fragment struct {
	sql    string
	params []value.Value
	class  class
}

const (
	sqlTrue  = "1=1"
	sqlFalse = "0=1"
)

func literal(sql string) fragment {
	return fragment{sql: sql, class: atom}
}

// translation is the per-call context threaded through recursion.
type translation struct {
	schema  *schema.Schema
	aliases int
}

// nextAlias returns a fresh json_each alias: e1, e2, ...
func (t *translation) nextAlias() string {
	t.aliases++
	return fmt.Sprintf("e%d", t.aliases)
}

func (t *translation) query(q query.Query, sc scope, depth int) (fragment, error) {
	if depth > query.MaxDepth {
		return fragment{}, newError(InvalidQuery, "", "query nesting exceeds %d levels", query.MaxDepth)
	}
	if q == nil {
		return fragment{}, newError(InvalidQuery, "", "nil query node")
	}

	switch n := q.(type) {
	case query.Empty:
		return literal(sqlTrue), nil
	case query.FieldOp:
		return t.fieldOp(n, sc, depth)
	case query.And:
		if len(n.Children) == 0 {
			return literal(sqlTrue), nil
		}
		return t.join(n.Children, " AND ", sc, depth)
	case query.Or:
		if len(n.Children) == 0 {
			return literal(sqlFalse), nil
		}
		return t.join(n.Children, " OR ", sc, depth)
	case query.Nor:
		inner := literal(sqlFalse)
		if len(n.Children) > 0 {
			var err error
			inner, err = t.join(n.Children, " OR ", sc, depth)
			if err != nil {
				return fragment{}, err
			}
		}
		return fragment{sql: "NOT (" + inner.sql + ")", params: inner.params, class: compound}, nil
	case query.Not:
		child, err := t.query(n.Child, sc, depth+1)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: "NOT (" + child.sql + ")", params: child.params, class: compound}, nil
	default:
		return fragment{}, newError(InvalidQuery, "", "unsupported query type %T", q)
	}
}

// join translates children left to right and joins them with sep. A single
// child passes through unchanged; with several, compound children are
// parenthesized so precedence is never flattened.
func (t *translation) join(children []query.Query, sep string, sc scope, depth int) (fragment, error) {
	if len(children) == 1 {
		return t.query(children[0], sc, depth+1)
	}

	parts := make([]string, 0, len(children))
	var params []value.Value
	for _, c := range children {
		f, err := t.query(c, sc, depth+1)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, f.wrapped())
		params = append(params, f.params...)
	}
	return fragment{sql: strings.Join(parts, sep), params: params, class: compound}, nil
}

// wrapped returns the fragment's SQL, parenthesized unless it is an atom.
func (f fragment) wrapped() string {
	if f.class == atom {
		return f.sql
	}
	return "(" + f.sql + ")"
}
