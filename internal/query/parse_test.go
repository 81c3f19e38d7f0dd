package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docql/internal/value"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Query
	}{
		{
			name: "empty document",
			doc:  `{}`,
			want: Empty{},
		},
		{
			name: "implicit eq",
			doc:  `{"status": "active"}`,
			want: Eq("status", value.Text("active")),
		},
		{
			name: "keys sorted into implicit and",
			doc:  `{"status": "active", "profile.bio": {"$contains": "hello"}}`,
			want: And{Children: []Query{
				Contains("profile.bio", "hello"),
				Eq("status", value.Text("active")),
			}},
		},
		{
			name: "operator map with two operators",
			doc:  `{"age": {"$lt": 65, "$gte": 18}}`,
			want: And{Children: []Query{
				Gte("age", value.Integer(18)),
				Lt("age", value.Integer(65)),
			}},
		},
		{
			name: "real and null operands",
			doc:  `{"score": {"$gt": 1.5}, "deletedAt": null}`,
			want: And{Children: []Query{
				Eq("deletedAt", value.Null{}),
				Gt("score", value.Real(1.5)),
			}},
		},
		{
			name: "nor",
			doc:  `{"$nor": [{"a": 1}, {"a": 2}]}`,
			want: Nor{Children: []Query{
				Eq("a", value.Integer(1)),
				Eq("a", value.Integer(2)),
			}},
		},
		{
			name: "set and array operators",
			doc:  `{"tags": {"$all": ["go", "sql"]}, "kind": {"$nin": []}, "n": {"$size": 2}}`,
			want: And{Children: []Query{
				Where("kind", NotInOp{Values: value.List{}}),
				Size("n", 2),
				All("tags", value.Text("go"), value.Text("sql")),
			}},
		},
		{
			name: "elemMatch on element operators",
			doc:  `{"scores": {"$elemMatch": {"$gt": 90}}}`,
			want: ElemMatch("scores", Gt("", value.Integer(90))),
		},
		{
			name: "elemMatch on element fields",
			doc:  `{"items": {"$elemMatch": {"sku": "A-1", "qty": {"$gte": 2}}}}`,
			want: ElemMatch("items", And{Children: []Query{
				Gte("qty", value.Integer(2)),
				Eq("sku", value.Text("A-1")),
			}}),
		},
		{
			name: "index",
			doc:  `{"items.$index": {"at": 0, "match": {"sku": "A-1"}}}`,
			want: Index("items", 0, Eq("sku", value.Text("A-1"))),
		},
		{
			name: "field level not",
			doc:  `{"age": {"$not": {"$gt": 5}}}`,
			want: Negate(Gt("age", value.Integer(5))),
		},
		{
			name: "top level not and exists",
			doc:  `{"$not": {"guardian": {"$exists": false}}}`,
			want: Negate(Exists("guardian", false)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"unknown operator", `{"a": {"$regex": "x"}}`, "unknown operator"},
		{"unknown top-level", `{"$where": "1"}`, "unknown top-level operator"},
		{"object operand", `{"a": {"b": 1}}`, "objects are not valid operands"},
		{"mixed object", `{"a": {"$eq": 1, "b": 2}}`, "mixes operators"},
		{"or not a list", `{"$or": {"a": 1}}`, "must be a list"},
		{"list on eq", `{"a": {"$eq": [1, 2]}}`, "scalar operand"},
		{"string op on number", `{"a": {"$like": 1}}`, "string operand"},
		{"size not integer", `{"a": {"$size": 1.5}}`, "expected an integer"},
		{"index without at", `{"a.$index": {"match": {}}}`, "missing \"at\""},
		{"malformed json", `{"a":`, "decode query document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	doc := `{"c": 3, "a": 1, "b": {"$in": [1, 2]}}`

	first, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	for range 20 {
		again, err := ParseJSON([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseOptionsJSON(t *testing.T) {
	opts, err := ParseOptionsJSON([]byte(`{
		"sort": [{"field": "createdAt", "dir": "desc"}, "-rank", "name"],
		"limit": 20,
		"skip": 5,
		"after": {"values": ["2024-01-01", 3, null], "id": "doc-1"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []SortField{Descending("createdAt"), Descending("rank"), Ascending("name")}, opts.Sort)
	assert.Equal(t, int64(20), opts.Limit)
	assert.Equal(t, int64(5), opts.Skip)
	require.NotNil(t, opts.After)
	assert.Equal(t, "doc-1", opts.After.ID)
	assert.Equal(t, []value.Value{value.Text("2024-01-01"), value.Integer(3), value.Null{}}, opts.After.Values)
	assert.Nil(t, opts.Before)
	assert.True(t, opts.HasCursor())
}

func TestParseOptions_Errors(t *testing.T) {
	for _, doc := range []string{
		`{"limit": -1}`,
		`{"limit": "ten"}`,
		`{"sort": "name"}`,
		`{"sort": [{"dir": "asc"}]}`,
		`{"after": {"values": []}}`,
		`{"page": 2}`,
	} {
		_, err := ParseOptionsJSON([]byte(doc))
		assert.Error(t, err, doc)
	}
}
