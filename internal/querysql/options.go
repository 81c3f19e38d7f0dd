package querysql

import (
	"strings"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// OptionsResult is the translated form of query.Options.
//
// The caller splices the clauses into one statement and concatenates
// parameters in clause order: WHERE (filter), WhereParams (cursor), then
// LimitParams.
type OptionsResult struct {
	// OrderBy is "ORDER BY ..." and is never empty.
	OrderBy string
	// Limit is "LIMIT ?" or empty.
	Limit string
	// Offset is "OFFSET ?" or empty.
	Offset string
	// Where is the keyset predicate for a cursor, or empty.
	Where       string
	WhereParams []value.Value
	// LimitParams holds the LIMIT then OFFSET parameters.
	LimitParams []value.Value
	// Reversed is set for Before cursors: rows come back in reverse and the
	// caller must restore the requested order.
	Reversed bool
	// OffsetIgnored is set when both a cursor and Skip were given. The
	// cursor wins.
	OffsetIgnored bool
	// SortKeys are the value expressions of the requested sort fields, in
	// declaration order, without the implicit tiebreak.
	SortKeys []string
}

// sortKey is one ORDER BY term.
type sortKey struct {
	field string
	expr  string
	dir   query.Direction
	decl  *schema.FieldDef
}

// TranslateOptions compiles sort, pagination and cursor directives.
//
// The order always ends in a unique key: "id ASC" is appended unless the
// last sort field is id or an indexed, unique, non-nullable field. With no
// sort the order is "id ASC".
func (tr *Translator) TranslateOptions(opts query.Options) (OptionsResult, error) {
	t := &translation{schema: tr.schema}

	if opts.Limit < 0 {
		return OptionsResult{}, newError(InvalidOperand, "", "negative limit %d", opts.Limit)
	}
	if opts.Skip < 0 {
		return OptionsResult{}, newError(InvalidOperand, "", "negative skip %d", opts.Skip)
	}

	keys := make([]sortKey, 0, len(opts.Sort)+1)
	var res OptionsResult
	for _, sf := range opts.Sort {
		addr, err := t.resolve(sf.Field, scope{})
		if err != nil {
			return OptionsResult{}, err
		}
		dir := sf.Direction
		if dir != query.Desc {
			dir = query.Asc
		}
		keys = append(keys, sortKey{field: sf.Field, expr: addr.expr, dir: dir, decl: addr.decl})
		res.SortKeys = append(res.SortKeys, addr.expr)
	}
	tiebreak := len(keys) == 0 || !tr.schema.IsUniqueKey(keys[len(keys)-1].field)
	if tiebreak {
		keys = append(keys, sortKey{field: schema.IDColumn, expr: schema.IDColumn, dir: query.Asc})
	}

	cursor := opts.After
	if opts.Before != nil {
		if opts.After != nil {
			return OptionsResult{}, newError(InvalidCursor, "", "after and before are mutually exclusive")
		}
		cursor = opts.Before
		res.Reversed = true
	}

	if cursor != nil {
		if len(opts.Sort) == 0 {
			return OptionsResult{}, newError(EmptySortWithCursor, "", "cursor pagination requires a sort")
		}
		vals, err := cursorValues(keys, *cursor, tiebreak, len(opts.Sort))
		if err != nil {
			return OptionsResult{}, err
		}
		res.Where, res.WhereParams = keyset(keys, vals, res.Reversed)
		if opts.Skip > 0 {
			res.OffsetIgnored = true
		}
	}

	terms := make([]string, len(keys))
	for i, k := range keys {
		dir := k.dir
		if res.Reversed {
			dir = dir.Reverse()
		}
		terms[i] = k.expr + " " + dir.SQL()
	}
	res.OrderBy = "ORDER BY " + strings.Join(terms, ", ")

	skip := opts.Skip
	if cursor != nil {
		skip = 0
	}
	switch {
	case opts.Limit > 0:
		res.Limit = "LIMIT ?"
		res.LimitParams = append(res.LimitParams, value.Integer(opts.Limit))
	case skip > 0:
		// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
		res.Limit = "LIMIT ?"
		res.LimitParams = append(res.LimitParams, value.Integer(-1))
	}
	if skip > 0 {
		res.Offset = "OFFSET ?"
		res.LimitParams = append(res.LimitParams, value.Integer(skip))
	}
	return res, nil
}

// TranslateOptions is shorthand for NewTranslator(s).TranslateOptions(opts).
func TranslateOptions(s *schema.Schema, opts query.Options) (OptionsResult, error) {
	return NewTranslator(s).TranslateOptions(opts)
}

// cursorValues checks the cursor against the sort and returns one value per
// key (the id last when a tiebreak is present).
func cursorValues(keys []sortKey, c query.Cursor, tiebreak bool, sortLen int) ([]value.Value, error) {
	if len(c.Values) != sortLen {
		return nil, newError(InvalidCursor, "", "cursor has %d values, sort has %d fields", len(c.Values), sortLen)
	}
	if tiebreak && c.ID == "" {
		return nil, newError(InvalidCursor, "", "cursor has no id")
	}

	vals := make([]value.Value, 0, len(keys))
	for i, v := range c.Values {
		if v == nil {
			v = value.Null{}
		}
		if err := checkCursorValue(keys[i], v); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if tiebreak {
		vals = append(vals, value.Text(c.ID))
	}
	return vals, nil
}

// checkCursorValue rejects values whose kind cannot occur in the column.
func checkCursorValue(k sortKey, v value.Value) error {
	kind := value.KindOf(v)
	if kind == value.KindList {
		return newError(InvalidCursor, k.field, "cursor value is a list")
	}
	if k.field == schema.IDColumn {
		if kind != value.KindText {
			return newError(InvalidCursor, k.field, "cursor id value must be text, got %s", kind)
		}
		return nil
	}
	if k.decl == nil || !k.decl.Indexed {
		return nil
	}
	if kind == value.KindNull {
		if !k.decl.Nullable {
			return newError(InvalidCursor, k.field, "cursor value is null for a non-nullable field")
		}
		return nil
	}

	// Generated columns take whatever json_extract yields, converted by
	// the column affinity. Numeric affinities keep text that is not a
	// well-formed number, so text is a legitimate key there.
	ok := true
	switch k.decl.Type {
	case schema.Text:
		ok = kind == value.KindText
	case schema.Integer, schema.Real, schema.Numeric:
		ok = kind == value.KindInteger || kind == value.KindReal || kind == value.KindText
	case schema.Boolean:
		ok = kind == value.KindBool || kind == value.KindInteger || kind == value.KindReal || kind == value.KindText
	}
	if !ok {
		return newError(InvalidCursor, k.field, "cursor value of kind %s does not match declared type %s", kind, k.decl.Type)
	}
	return nil
}

// keyset builds the lexicographic "strictly after" predicate over keys:
//
//	(k1 > ?) OR (k1 = ? AND k2 > ?) OR ...
//
// Directions are reversed for Before cursors. SQLite orders NULL before
// every value, so NULL bounds become IS NULL / IS NOT NULL terms instead of
// comparisons that would drop rows.
func keyset(keys []sortKey, vals []value.Value, reversed bool) (string, []value.Value) {
	var disjuncts []string
	var params []value.Value

	for i := range keys {
		var terms []string
		var termParams []value.Value
		for j := 0; j < i; j++ {
			sql, p := equalTo(keys[j].expr, vals[j])
			terms = append(terms, sql)
			termParams = append(termParams, p...)
		}
		dir := keys[i].dir
		if reversed {
			dir = dir.Reverse()
		}
		sql, p, possible := after(keys[i].expr, vals[i], dir)
		if !possible {
			continue
		}
		terms = append(terms, sql)
		termParams = append(termParams, p...)

		disjuncts = append(disjuncts, "("+strings.Join(terms, " AND ")+")")
		params = append(params, termParams...)
	}

	if len(disjuncts) == 0 {
		return sqlFalse, nil
	}
	return strings.Join(disjuncts, " OR "), params
}

func equalTo(expr string, v value.Value) (string, []value.Value) {
	if value.IsNull(v) {
		return expr + " IS NULL", nil
	}
	return expr + " = ?", []value.Value{v}
}

// after returns the predicate for "strictly after v in dir order". possible
// is false when nothing can follow v (NULL in descending order).
func after(expr string, v value.Value, dir query.Direction) (string, []value.Value, bool) {
	null := value.IsNull(v)
	if dir == query.Desc {
		if null {
			return "", nil, false
		}
		return "(" + expr + " < ? OR " + expr + " IS NULL)", []value.Value{v}, true
	}
	if null {
		return expr + " IS NOT NULL", nil, true
	}
	return expr + " > ?", []value.Value{v}, true
}
