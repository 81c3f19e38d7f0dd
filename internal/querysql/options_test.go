package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/value"
)

func TestTranslateOptions_Order(t *testing.T) {
	tr := NewTranslator(testSchema(t))

	tests := []struct {
		name     string
		sort     []query.SortField
		orderBy  string
		sortKeys []string
	}{
		{"no sort orders by id", nil, "ORDER BY id ASC", nil},
		{
			"tiebreak appended",
			query.SortBy(query.Descending("createdAt")),
			"ORDER BY _createdAt DESC, id ASC",
			[]string{"_createdAt"},
		},
		{
			"undeclared field",
			query.SortBy(query.Ascending("name")),
			"ORDER BY json_extract(body,'$.name') ASC, id ASC",
			[]string{"json_extract(body,'$.name')"},
		},
		{
			"unique key suppresses tiebreak",
			query.SortBy(query.Ascending("email")),
			"ORDER BY _email ASC",
			[]string{"_email"},
		},
		{
			"id suppresses tiebreak",
			query.SortBy(query.Descending("id")),
			"ORDER BY id DESC",
			[]string{"id"},
		},
		{
			"unique key before the last position does not",
			query.SortBy(query.Ascending("email"), query.Descending("status")),
			"ORDER BY _email ASC, _status DESC, id ASC",
			[]string{"_email", "_status"},
		},
		{
			"empty direction is ascending",
			[]query.SortField{{Field: "status"}},
			"ORDER BY _status ASC, id ASC",
			[]string{"_status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.TranslateOptions(query.Options{Sort: tt.sort})
			require.NoError(t, err)
			assert.Equal(t, tt.orderBy, res.OrderBy)
			assert.Equal(t, tt.sortKeys, res.SortKeys)
			assert.Empty(t, res.Where)
			assert.Empty(t, res.Limit)
			assert.Empty(t, res.Offset)
		})
	}
}

func TestTranslateOptions_LimitAndSkip(t *testing.T) {
	tr := NewTranslator(testSchema(t))

	tests := []struct {
		name   string
		opts   query.Options
		limit  string
		offset string
		params []value.Value
	}{
		{"limit", query.Options{Limit: 10}, "LIMIT ?", "", []value.Value{value.Integer(10)}},
		{"skip without limit", query.Options{Skip: 5}, "LIMIT ?", "OFFSET ?", []value.Value{value.Integer(-1), value.Integer(5)}},
		{"limit and skip", query.Options{Limit: 10, Skip: 20}, "LIMIT ?", "OFFSET ?", []value.Value{value.Integer(10), value.Integer(20)}},
		{"zero means unset", query.Options{}, "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.TranslateOptions(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.limit, res.Limit)
			assert.Equal(t, tt.offset, res.Offset)
			assert.Equal(t, tt.params, res.LimitParams)
		})
	}
}

func TestTranslateOptions_Keyset(t *testing.T) {
	tr := NewTranslator(testSchema(t))

	tests := []struct {
		name    string
		opts    query.Options
		where   string
		params  []value.Value
		orderBy string
	}{
		{
			name: "after ascending",
			opts: query.Options{
				Sort:  query.SortBy(query.Ascending("createdAt")),
				After: &query.Cursor{Values: []value.Value{value.Text("2024-03-01")}, ID: "u1"},
			},
			where:   "(_createdAt > ?) OR (_createdAt = ? AND id > ?)",
			params:  []value.Value{value.Text("2024-03-01"), value.Text("2024-03-01"), value.Text("u1")},
			orderBy: "ORDER BY _createdAt ASC, id ASC",
		},
		{
			name: "after descending keeps nulls",
			opts: query.Options{
				Sort:  query.SortBy(query.Descending("createdAt")),
				After: &query.Cursor{Values: []value.Value{value.Text("2024-03-01")}, ID: "u1"},
			},
			where:   "((_createdAt < ? OR _createdAt IS NULL)) OR (_createdAt = ? AND id > ?)",
			params:  []value.Value{value.Text("2024-03-01"), value.Text("2024-03-01"), value.Text("u1")},
			orderBy: "ORDER BY _createdAt DESC, id ASC",
		},
		{
			name: "after a null ascending",
			opts: query.Options{
				Sort:  query.SortBy(query.Ascending("createdAt")),
				After: &query.Cursor{Values: []value.Value{value.Null{}}, ID: "u1"},
			},
			where:   "(_createdAt IS NOT NULL) OR (_createdAt IS NULL AND id > ?)",
			params:  []value.Value{value.Text("u1")},
			orderBy: "ORDER BY _createdAt ASC, id ASC",
		},
		{
			name: "after a null descending",
			opts: query.Options{
				Sort:  query.SortBy(query.Descending("createdAt")),
				After: &query.Cursor{Values: []value.Value{nil}, ID: "u1"},
			},
			where:   "(_createdAt IS NULL AND id > ?)",
			params:  []value.Value{value.Text("u1")},
			orderBy: "ORDER BY _createdAt DESC, id ASC",
		},
		{
			name: "before reverses every direction",
			opts: query.Options{
				Sort:   query.SortBy(query.Ascending("createdAt")),
				Before: &query.Cursor{Values: []value.Value{value.Text("2024-03-01")}, ID: "u1"},
			},
			where:   "((_createdAt < ? OR _createdAt IS NULL)) OR (_createdAt = ? AND (id < ? OR id IS NULL))",
			params:  []value.Value{value.Text("2024-03-01"), value.Text("2024-03-01"), value.Text("u1")},
			orderBy: "ORDER BY _createdAt DESC, id DESC",
		},
		{
			name: "unique key needs no id",
			opts: query.Options{
				Sort:  query.SortBy(query.Ascending("email")),
				After: &query.Cursor{Values: []value.Value{value.Text("b@example.com")}},
			},
			where:   "(_email > ?)",
			params:  []value.Value{value.Text("b@example.com")},
			orderBy: "ORDER BY _email ASC",
		},
		{
			name: "two sort fields",
			opts: query.Options{
				Sort:  query.SortBy(query.Ascending("status"), query.Descending("age")),
				After: &query.Cursor{Values: []value.Value{value.Text("active"), value.Integer(30)}, ID: "u9"},
			},
			where: "(_status > ?)" +
				" OR (_status = ? AND (json_extract(body,'$.age') < ? OR json_extract(body,'$.age') IS NULL))" +
				" OR (_status = ? AND json_extract(body,'$.age') = ? AND id > ?)",
			params: []value.Value{
				value.Text("active"),
				value.Text("active"), value.Integer(30),
				value.Text("active"), value.Integer(30), value.Text("u9"),
			},
			orderBy: "ORDER BY _status ASC, json_extract(body,'$.age') DESC, id ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.TranslateOptions(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.where, res.Where)
			assert.Equal(t, tt.params, res.WhereParams)
			assert.Equal(t, tt.orderBy, res.OrderBy)
			assert.Equal(t, tt.opts.Before != nil, res.Reversed)
		})
	}
}

func TestTranslateOptions_CursorOverridesSkip(t *testing.T) {
	res, err := TranslateOptions(testSchema(t), query.Options{
		Sort:  query.SortBy(query.Ascending("status")),
		Limit: 3,
		Skip:  5,
		After: &query.Cursor{Values: []value.Value{value.Text("a")}, ID: "u1"},
	})
	require.NoError(t, err)

	assert.True(t, res.OffsetIgnored)
	assert.Equal(t, "LIMIT ?", res.Limit)
	assert.Empty(t, res.Offset)
	assert.Equal(t, []value.Value{value.Integer(3)}, res.LimitParams)
}

func TestTranslateOptions_Errors(t *testing.T) {
	tr := NewTranslator(testSchema(t))
	byCreated := query.SortBy(query.Ascending("createdAt"))

	tests := []struct {
		name string
		opts query.Options
		kind ErrorKind
	}{
		{
			"cursor without sort",
			query.Options{After: &query.Cursor{ID: "u1"}},
			EmptySortWithCursor,
		},
		{
			"arity mismatch",
			query.Options{Sort: byCreated, After: &query.Cursor{Values: []value.Value{value.Text("a"), value.Text("b")}, ID: "u1"}},
			InvalidCursor,
		},
		{
			"missing id",
			query.Options{Sort: byCreated, After: &query.Cursor{Values: []value.Value{value.Text("a")}}},
			InvalidCursor,
		},
		{
			"kind does not match declared type",
			query.Options{Sort: byCreated, After: &query.Cursor{Values: []value.Value{value.Integer(1)}, ID: "u1"}},
			InvalidCursor,
		},
		{
			"null for non-nullable field",
			query.Options{Sort: query.SortBy(query.Ascending("status")), After: &query.Cursor{Values: []value.Value{value.Null{}}, ID: "u1"}},
			InvalidCursor,
		},
		{
			"list value",
			query.Options{Sort: query.SortBy(query.Ascending("name")), After: &query.Cursor{Values: []value.Value{value.List{}}, ID: "u1"}},
			InvalidCursor,
		},
		{
			"id value must be text",
			query.Options{Sort: query.SortBy(query.Ascending("id")), After: &query.Cursor{Values: []value.Value{value.Integer(1)}}},
			InvalidCursor,
		},
		{
			"after and before",
			query.Options{
				Sort:   byCreated,
				After:  &query.Cursor{Values: []value.Value{value.Text("a")}, ID: "u1"},
				Before: &query.Cursor{Values: []value.Value{value.Text("b")}, ID: "u2"},
			},
			InvalidCursor,
		},
		{"negative limit", query.Options{Limit: -1}, InvalidOperand},
		{"negative skip", query.Options{Skip: -1}, InvalidOperand},
		{"malformed sort field", query.Options{Sort: query.SortBy(query.Ascending("a b"))}, MalformedFieldPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.TranslateOptions(tt.opts)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "want %s, got %v", tt.kind, err)
		})
	}
}

func TestTranslateOptions_CursorValueClasses(t *testing.T) {
	tr := NewTranslator(testSchema(t))
	byA := query.SortBy(query.Descending("a"))

	// A numeric column keeps non-numeric text, so a cursor read back from
	// it may carry text.
	for _, v := range []value.Value{value.Integer(2), value.Real(2.5), value.Text("n/a"), value.Null{}} {
		_, err := tr.TranslateOptions(query.Options{Sort: byA, After: &query.Cursor{Values: []value.Value{v}, ID: "u1"}})
		assert.NoError(t, err, "%#v", v)
	}

	_, err := tr.TranslateOptions(query.Options{Sort: byA, After: &query.Cursor{Values: []value.Value{value.Bool(true)}, ID: "u1"}})
	assert.True(t, IsKind(err, InvalidCursor), "bool in an integer column: %v", err)
}
