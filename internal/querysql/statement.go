package querysql

import (
	"strings"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// Statement is a complete SELECT with its parameters.
type Statement struct {
	SQL    string
	Params []value.Value
	// Reversed rows must be reversed by the caller (Before cursors).
	Reversed      bool
	OffsetIgnored bool
	// SortKeys is the number of sort-key columns selected after id and body.
	SortKeys int
}

// Args converts Params to database/sql arguments.
func (s Statement) Args() ([]any, error) {
	return value.Args(s.Params)
}

// Select builds
//
//	SELECT id, body[, <sort keys>] FROM "<table>" WHERE <filter> [AND <cursor>]
//	ORDER BY ... [LIMIT ?] [OFFSET ?]
//
// Parameters are ordered filter, cursor, LIMIT, OFFSET. The sort-key
// columns let the caller build cursors from the values SQLite compared.
func (tr *Translator) Select(table string, q query.Query, opts query.Options) (Statement, error) {
	if err := schema.ValidateTableName(table); err != nil {
		return Statement{}, newError(InvalidQuery, "", "%v", err)
	}
	where, err := tr.Translate(q)
	if err != nil {
		return Statement{}, err
	}
	ord, err := tr.TranslateOptions(opts)
	if err != nil {
		return Statement{}, err
	}

	cols := append([]string{schema.IDColumn, schema.BodyColumn}, ord.SortKeys...)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(schema.QuoteIdent(table))
	b.WriteString(" WHERE ")
	params := make([]value.Value, 0, len(where.Params)+len(ord.WhereParams)+len(ord.LimitParams))
	if ord.Where != "" {
		b.WriteString("(" + where.SQL + ") AND (" + ord.Where + ")")
	} else {
		b.WriteString(where.SQL)
	}
	params = append(params, where.Params...)
	params = append(params, ord.WhereParams...)

	b.WriteString(" " + ord.OrderBy)
	if ord.Limit != "" {
		b.WriteString(" " + ord.Limit)
	}
	if ord.Offset != "" {
		b.WriteString(" " + ord.Offset)
	}
	params = append(params, ord.LimitParams...)

	return Statement{
		SQL:           b.String(),
		Params:        params,
		Reversed:      ord.Reversed,
		OffsetIgnored: ord.OffsetIgnored,
		SortKeys:      len(ord.SortKeys),
	}, nil
}

// Count builds SELECT COUNT(*) FROM "<table>" WHERE <filter>.
func (tr *Translator) Count(table string, q query.Query) (Statement, error) {
	if err := schema.ValidateTableName(table); err != nil {
		return Statement{}, newError(InvalidQuery, "", "%v", err)
	}
	where, err := tr.Translate(q)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:    "SELECT COUNT(*) FROM " + schema.QuoteIdent(table) + " WHERE " + where.SQL,
		Params: where.Params,
	}, nil
}
