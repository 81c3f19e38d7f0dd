package eval

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Doc.ID
	}
	return out
}

func pagingCollection(t *testing.T) *Collection {
	t.Helper()
	s := schema.MustNew([]schema.FieldDef{
		{Name: "createdAt", Type: schema.Text, Indexed: true, Nullable: true},
		{Name: "email", Type: schema.Text, Unique: true},
	}, nil)
	c := NewCollection(s)
	require.NoError(t, c.Insert(
		MustDocument("u1", map[string]any{"createdAt": "2024-01-01", "email": "e@x"}),
		MustDocument("u2", map[string]any{"createdAt": "2024-03-01", "email": "a@x"}),
		MustDocument("u3", map[string]any{"createdAt": "2024-03-01", "email": "c@x"}),
		MustDocument("u4", map[string]any{"email": "b@x"}),
		MustDocument("u5", map[string]any{"createdAt": "2024-02-01", "email": "d@x"}),
	))
	return c
}

func TestCollection_Insert(t *testing.T) {
	c := NewCollection(nil)
	require.NoError(t, c.Insert(MustDocument("a", map[string]any{"n": 1})))

	assert.Error(t, c.Insert(MustDocument("a", map[string]any{"n": 2})))
	assert.Error(t, c.Insert(Document{Body: map[string]any{}}))
	assert.Equal(t, 1, c.Len())

	d, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, value.Integer(1), d.Body["n"])
}

func TestCollection_Sort(t *testing.T) {
	c := pagingCollection(t)

	tests := []struct {
		name string
		opts query.Options
		want []string
	}{
		{"default order is id", query.Options{}, []string{"u1", "u2", "u3", "u4", "u5"}},
		{
			"desc puts nulls last and ties by id",
			query.Options{Sort: query.SortBy(query.Descending("createdAt"))},
			[]string{"u2", "u3", "u5", "u1", "u4"},
		},
		{
			"asc puts nulls first",
			query.Options{Sort: query.SortBy(query.Ascending("createdAt"))},
			[]string{"u4", "u1", "u5", "u2", "u3"},
		},
		{
			"unique key",
			query.Options{Sort: query.SortBy(query.Ascending("email"))},
			[]string{"u2", "u4", "u3", "u5", "u1"},
		},
		{
			"skip and limit",
			query.Options{Sort: query.SortBy(query.Descending("createdAt")), Skip: 1, Limit: 2},
			[]string{"u3", "u5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := c.Find(query.Empty{}, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(hits))
		})
	}
}

func TestCollection_CursorWalk(t *testing.T) {
	c := pagingCollection(t)
	sort := query.SortBy(query.Descending("createdAt"))
	want := []string{"u2", "u3", "u5", "u1", "u4"}

	var got []string
	opts := query.Options{Sort: sort, Limit: 2}
	for range 5 {
		hits, err := c.Find(query.Empty{}, opts)
		require.NoError(t, err)
		if len(hits) == 0 {
			break
		}
		got = append(got, ids(hits)...)
		cur := hits[len(hits)-1].Cursor()
		opts.After = &cur
	}
	assert.Equal(t, want, got)

	// Walk back from the end with Before.
	last := query.Cursor{Values: []value.Value{value.Null{}}, ID: "u4"}
	hits, err := c.Find(query.Empty{}, query.Options{Sort: sort, Limit: 2, Before: &last})
	require.NoError(t, err)
	assert.Equal(t, []string{"u5", "u1"}, ids(hits))
}

func TestCollection_CursorIgnoresSkip(t *testing.T) {
	c := pagingCollection(t)
	after := query.Cursor{Values: []value.Value{value.Text("2024-03-01")}, ID: "u2"}

	hits, err := c.Find(query.Empty{}, query.Options{
		Sort:  query.SortBy(query.Descending("createdAt")),
		Skip:  10,
		After: &after,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u3", "u5", "u1", "u4"}, ids(hits))
}

func TestCollection_FilterAndCount(t *testing.T) {
	c := pagingCollection(t)
	q := query.Gte("createdAt", value.Text("2024-02-01"))

	n, err := c.Count(q)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := c.Find(q, query.Options{Sort: query.SortBy(query.Ascending("createdAt"))})
	require.NoError(t, err)
	assert.Equal(t, []string{"u5", "u2", "u3"}, ids(hits))
	assert.Equal(t, []value.Value{value.Text("2024-02-01")}, hits[0].Keys)
}

func TestCollection_FindErrors(t *testing.T) {
	c := pagingCollection(t)
	cur := &query.Cursor{Values: []value.Value{value.Text("x")}, ID: "u1"}

	for i, opts := range []query.Options{
		{After: cur},
		{Sort: query.SortBy(query.Ascending("createdAt")), After: cur, Before: cur},
		{Sort: query.SortBy(query.Ascending("createdAt")), After: &query.Cursor{Values: []value.Value{value.Text("x")}}},
		{Sort: query.SortBy(query.Ascending("a b"))},
		{Limit: -1},
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := c.Find(query.Empty{}, opts)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}
