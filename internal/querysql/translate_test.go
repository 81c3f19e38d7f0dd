package querysql

import (
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

func testSchema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.FieldDef{
		{Name: "status", Type: schema.Text, Indexed: true},
		{Name: "createdAt", Type: schema.Text, Indexed: true, Nullable: true},
		{Name: "email", Type: schema.Text, Unique: true},
		{Name: "profile.bio", Type: schema.Text, Nullable: true},
		{Name: "age", Type: schema.Integer, Nullable: true},
		{Name: "score", Type: schema.Real, Path: "$.stats.score", Nullable: true},
		{Name: "tags", Type: schema.JSON, Nullable: true},
		{Name: "items", Type: schema.JSON, Nullable: true},
		{Name: "a", Type: schema.Integer, Indexed: true, Nullable: true},
	}, nil)
	require.NoError(t, err)
	return s
}

func TestTranslate_Fragments(t *testing.T) {
	tr := NewTranslator(testSchema(t))

	tests := []struct {
		name   string
		q      query.Query
		sql    string
		params []value.Value
	}{
		{
			name: "empty",
			q:    query.Empty{},
			sql:  "1=1",
		},
		{
			name:   "indexed field uses generated column",
			q:      query.Eq("status", value.Text("active")),
			sql:    "_status = ?",
			params: []value.Value{value.Text("active")},
		},
		{
			name:   "non-indexed field uses json_extract",
			q:      query.Contains("profile.bio", "hello"),
			sql:    "json_extract(body,'$.profile.bio') LIKE ?",
			params: []value.Value{value.Text("%hello%")},
		},
		{
			name:   "undeclared field uses conventional path",
			q:      query.Gt("stats.visits", value.Integer(3)),
			sql:    "json_extract(body,'$.stats.visits') > ?",
			params: []value.Value{value.Integer(3)},
		},
		{
			name:   "declared path",
			q:      query.Lte("score", value.Real(1.5)),
			sql:    "json_extract(body,'$.stats.score') <= ?",
			params: []value.Value{value.Real(1.5)},
		},
		{
			name:   "array index segment",
			q:      query.Ne("items.0.sku", value.Text("x")),
			sql:    "json_extract(body,'$.items[0].sku') != ?",
			params: []value.Value{value.Text("x")},
		},
		{
			name:   "primary key",
			q:      query.Eq("id", value.Text("u1")),
			sql:    "id = ?",
			params: []value.Value{value.Text("u1")},
		},
		{
			name:   "eq null",
			q:      query.Eq("createdAt", value.Null{}),
			sql:    "_createdAt IS ?",
			params: []value.Value{value.Null{}},
		},
		{
			name:   "ne null",
			q:      query.Ne("createdAt", value.Null{}),
			sql:    "_createdAt IS NOT ?",
			params: []value.Value{value.Null{}},
		},
		{
			name: "empty in is false",
			q:    query.In("age"),
			sql:  "0=1",
		},
		{
			name: "empty not in is true",
			q:    query.NotIn("age"),
			sql:  "1=1",
		},
		{
			name:   "in keeps list order",
			q:      query.In("age", value.Integer(3), value.Integer(1), value.Integer(2)),
			sql:    "json_extract(body,'$.age') IN (?,?,?)",
			params: []value.Value{value.Integer(3), value.Integer(1), value.Integer(2)},
		},
		{
			name:   "not in",
			q:      query.NotIn("status", value.Text("a"), value.Text("b")),
			sql:    "_status NOT IN (?,?)",
			params: []value.Value{value.Text("a"), value.Text("b")},
		},
		{
			name:   "like",
			q:      query.Like("status", "act_ve"),
			sql:    "_status LIKE ?",
			params: []value.Value{value.Text("act_ve")},
		},
		{
			name:   "ilike",
			q:      query.ILike("profile.bio", "%GO%"),
			sql:    "json_extract(body,'$.profile.bio') LIKE ? COLLATE NOCASE",
			params: []value.Value{value.Text("%GO%")},
		},
		{
			name:   "starts and ends with",
			q:      query.AllOf(query.StartsWith("email", "bob"), query.EndsWith("email", ".org")),
			sql:    "_email LIKE ? AND _email LIKE ?",
			params: []value.Value{value.Text("bob%"), value.Text("%.org")},
		},
		{
			name: "empty all is true",
			q:    query.All("tags"),
			sql:  "1=1",
		},
		{
			name: "all emits one EXISTS per value",
			q:    query.All("tags", value.Text("go"), value.Text("sql")),
			sql: "EXISTS (SELECT 1 FROM json_each(body,'$.tags') WHERE value = ?)" +
				" AND EXISTS (SELECT 1 FROM json_each(body,'$.tags') WHERE value = ?)",
			params: []value.Value{value.Text("go"), value.Text("sql")},
		},
		{
			name:   "size",
			q:      query.Size("tags", 2),
			sql:    "json_array_length(body,'$.tags') = ?",
			params: []value.Value{value.Integer(2)},
		},
		{
			name:   "array operator on indexed field reads the body",
			q:      query.Size("status", 0),
			sql:    "json_array_length(body,'$.status') = ?",
			params: []value.Value{value.Integer(0)},
		},
		{
			name:   "elemMatch on the element itself",
			q:      query.ElemMatch("scores", query.Gt("", value.Integer(90))),
			sql:    "EXISTS (SELECT 1 FROM json_each(body,'$.scores') AS e1 WHERE e1.value > ?)",
			params: []value.Value{value.Integer(90)},
		},
		{
			name: "elemMatch on element members",
			q: query.ElemMatch("items", query.AllOf(
				query.Eq("sku", value.Text("A-1")),
				query.Gte("qty", value.Integer(2)),
			)),
			sql: "EXISTS (SELECT 1 FROM json_each(body,'$.items') AS e1 WHERE " +
				"json_extract(body,e1.fullkey || '.sku') = ? AND json_extract(body,e1.fullkey || '.qty') >= ?)",
			params: []value.Value{value.Text("A-1"), value.Integer(2)},
		},
		{
			name: "index constrains position before the nested query",
			q:    query.Index("items", 1, query.Eq("sku", value.Text("A-1"))),
			sql: "EXISTS (SELECT 1 FROM json_each(body,'$.items') AS e1 WHERE " +
				"e1.key = ? AND json_extract(body,e1.fullkey || '.sku') = ?)",
			params: []value.Value{value.Integer(1), value.Text("A-1")},
		},
		{
			name: "nested element scopes get fresh aliases",
			q: query.AllOf(
				query.ElemMatch("items", query.ElemMatch("dims", query.Lt("", value.Integer(5)))),
				query.ElemMatch("tags", query.Eq("", value.Text("go"))),
			),
			sql: "EXISTS (SELECT 1 FROM json_each(body,'$.items') AS e1 WHERE " +
				"EXISTS (SELECT 1 FROM json_each(body,e1.fullkey || '.dims') AS e2 WHERE e2.value < ?))" +
				" AND EXISTS (SELECT 1 FROM json_each(body,'$.tags') AS e3 WHERE e3.value = ?)",
			params: []value.Value{value.Integer(5), value.Text("go")},
		},
		{
			name: "exists",
			q:    query.Exists("guardian", true),
			sql:  "json_type(body,'$.guardian') IS NOT NULL",
		},
		{
			name: "not exists on an indexed field reads the body",
			q:    query.Exists("status", false),
			sql:  "json_type(body,'$.status') IS NULL",
		},
		{
			name: "exists in element scope",
			q:    query.ElemMatch("items", query.Exists("sku", false)),
			sql:  "EXISTS (SELECT 1 FROM json_each(body,'$.items') AS e1 WHERE json_type(body,e1.fullkey || '.sku') IS NULL)",
		},
		{
			name: "empty and is true",
			q:    query.AllOf(),
			sql:  "1=1",
		},
		{
			name: "empty or is false",
			q:    query.AnyOf(),
			sql:  "0=1",
		},
		{
			name: "empty nor is true",
			q:    query.NoneOf(),
			sql:  "NOT (0=1)",
		},
		{
			name:   "single child and passes through",
			q:      query.AllOf(query.AnyOf(query.Eq("a", value.Integer(1)), query.Eq("a", value.Integer(2)))),
			sql:    "_a = ? OR _a = ?",
			params: []value.Value{value.Integer(1), value.Integer(2)},
		},
		{
			name:   "not",
			q:      query.Negate(query.Eq("a", value.Integer(1))),
			sql:    "NOT (_a = ?)",
			params: []value.Value{value.Integer(1)},
		},
		{
			name: "not inside or is parenthesized",
			q: query.AnyOf(
				query.Negate(query.Eq("a", value.Integer(1))),
				query.AllOf(query.Eq("a", value.Integer(2)), query.Eq("status", value.Text("x"))),
			),
			sql:    "(NOT (_a = ?)) OR (_a = ? AND _status = ?)",
			params: []value.Value{value.Integer(1), value.Integer(2), value.Text("x")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.Translate(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, res.SQL)
			if len(tt.params) == 0 {
				assert.Empty(t, res.Params)
			} else {
				assert.Equal(t, tt.params, res.Params)
			}
		})
	}
}

func TestTranslate_StatusAndBioScenario(t *testing.T) {
	s := schema.MustNew([]schema.FieldDef{
		{Name: "status", Type: schema.Text, Indexed: true},
		{Name: "profile.bio", Type: schema.Text},
	}, nil)

	res, err := Translate(s, query.Eq("status", value.Text("active")))
	require.NoError(t, err)
	assert.Equal(t, "_status = ?", res.SQL)
	args, err := res.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{"active"}, args)

	res, err = Translate(s, query.Contains("profile.bio", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body,'$.profile.bio') LIKE ?", res.SQL)
	args, err = res.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{"%hello%"}, args)
}

func TestTranslate_Nor(t *testing.T) {
	res, err := Translate(testSchema(t), query.NoneOf(
		query.Eq("a", value.Integer(1)),
		query.Eq("a", value.Integer(2)),
	))
	require.NoError(t, err)

	assert.Equal(t, "NOT (_a = ? OR _a = ?)", res.SQL)
	assert.Equal(t, []value.Value{value.Integer(1), value.Integer(2)}, res.Params)
}

func TestTranslate_Precedence(t *testing.T) {
	res, err := Translate(nil, query.AllOf(
		query.AnyOf(query.Eq("a", value.Integer(1)), query.Eq("a", value.Integer(2))),
		query.Eq("b", value.Integer(3)),
	))
	require.NoError(t, err)

	assert.Equal(t,
		"(json_extract(body,'$.a') = ? OR json_extract(body,'$.a') = ?) AND json_extract(body,'$.b') = ?",
		res.SQL)
	assert.Equal(t, []value.Value{value.Integer(1), value.Integer(2), value.Integer(3)}, res.Params)
}

func TestTranslate_MultiValueAllIsParenthesized(t *testing.T) {
	res, err := Translate(testSchema(t), query.AnyOf(
		query.All("tags", value.Text("go"), value.Text("sql")),
		query.Eq("status", value.Text("x")),
	))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.SQL, "(EXISTS"), res.SQL)
	assert.Contains(t, res.SQL, "WHERE value = ?)) OR _status = ?")
}

func TestTranslate_Errors(t *testing.T) {
	tr := NewTranslator(testSchema(t))

	deep := query.Query(query.Eq("a", value.Integer(1)))
	for range query.MaxDepth {
		deep = query.Negate(deep)
	}

	tests := []struct {
		name  string
		q     query.Query
		kind  ErrorKind
		field string
	}{
		{"space in name", query.Eq("a b", value.Integer(1)), MalformedFieldPath, "a b"},
		{"quote in name", query.Eq("a');--", value.Integer(1)), MalformedFieldPath, "a');--"},
		{"empty name at top level", query.Eq("", value.Integer(1)), MalformedFieldPath, ""},
		{"leading index", query.Eq("0.a", value.Integer(1)), MalformedFieldPath, "0.a"},
		{"bad element member", query.ElemMatch("items", query.Eq("x y", value.Integer(1))), MalformedFieldPath, "x y"},
		{"all on integer field", query.All("age", value.Integer(1)), UnknownOperatorCombination, "age"},
		{"elemMatch on real field", query.ElemMatch("score", query.Empty{}), UnknownOperatorCombination, "score"},
		{"index on primary key", query.Index("id", 0, query.Empty{}), UnknownOperatorCombination, "id"},
		{"list operand", query.Eq("age", value.List{value.Integer(1)}), InvalidOperand, "age"},
		{"list inside in", query.In("age", value.List{}), InvalidOperand, "age"},
		{"nil operator", query.Where("age", nil), InvalidOperand, "age"},
		{"negative size", query.Size("tags", -1), InvalidOperand, "tags"},
		{"negative index", query.Index("tags", -1, query.Empty{}), InvalidOperand, "tags"},
		{"nil child", query.And{Children: []query.Query{nil}}, InvalidQuery, ""},
		{"nil nested query", query.ElemMatch("tags", nil), InvalidQuery, "tags"},
		{"too deep", deep, InvalidQuery, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Translate(tt.q)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "want %s, got %v", tt.kind, err)

			var te *TranslateError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.field, te.Field)
		})
	}
}

func TestTranslate_NeverInterpolatesValues(t *testing.T) {
	hostile := "x' OR '1'='1"
	res, err := Translate(testSchema(t), query.AllOf(
		query.Eq("status", value.Text(hostile)),
		query.Contains("profile.bio", hostile),
		query.In("age", value.Text(hostile)),
		query.All("tags", value.Text(hostile)),
	))
	require.NoError(t, err)
	assert.NotContains(t, res.SQL, "OR '1'")
}

func TestTranslate_Idempotent(t *testing.T) {
	tr := NewTranslator(testSchema(t))
	r := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		q := randomQuery(r, 0)
		first, err := tr.Translate(q)
		require.NoError(t, err)
		second, err := tr.Translate(q)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestTranslate_PlaceholderCountMatchesParams(t *testing.T) {
	tr := NewTranslator(testSchema(t))
	r := rand.New(rand.NewPCG(42, 7))

	for range 1000 {
		q := randomQuery(r, 0)
		res, err := tr.Translate(q)
		require.NoError(t, err)
		require.Equal(t, strings.Count(res.SQL, "?"), len(res.Params), res.SQL)
	}
}

func TestTranslate_ConcurrentUse(t *testing.T) {
	tr := NewTranslator(testSchema(t))
	r := rand.New(rand.NewPCG(9, 9))

	queries := make([]query.Query, 50)
	want := make([]Result, len(queries))
	for i := range queries {
		queries[i] = randomQuery(r, 0)
		res, err := tr.Translate(queries[i])
		require.NoError(t, err)
		want[i] = res
	}

	var wg sync.WaitGroup
	got := make([]Result, len(queries))
	for i := range queries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = tr.Translate(queries[i])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, want, got)
}

var (
	scalarFields = []string{"status", "createdAt", "profile.bio", "age", "score", "id", "x.y"}
	arrayFields  = []string{"tags", "items", "x.list"}
)

func randomScalar(r *rand.Rand) value.Value {
	switch r.IntN(5) {
	case 0:
		return value.Text([]string{"a", "b", "?", "%x%"}[r.IntN(4)])
	case 1:
		return value.Integer(r.Int64N(100))
	case 2:
		return value.Real(float64(r.IntN(100)) / 4)
	case 3:
		return value.Bool(r.IntN(2) == 0)
	default:
		return value.Null{}
	}
}

func randomScalars(r *rand.Rand) []value.Value {
	out := make([]value.Value, r.IntN(4))
	for i := range out {
		out[i] = randomScalar(r)
	}
	return out
}

// randomQuery builds a valid query tree. Element scope is entered through
// ElemMatch/Index with member names that are always well formed.
func randomQuery(r *rand.Rand, depth int) query.Query {
	leaf := depth >= 4 || r.IntN(3) == 0
	if leaf {
		field := scalarFields[r.IntN(len(scalarFields))]
		switch r.IntN(9) {
		case 0:
			return query.Eq(field, randomScalar(r))
		case 1:
			return query.Gte(field, randomScalar(r))
		case 2:
			return query.In(field, randomScalars(r)...)
		case 3:
			return query.NotIn(field, randomScalars(r)...)
		case 4:
			return query.Contains(field, "?")
		case 5:
			return query.Exists(field, r.IntN(2) == 0)
		case 6:
			return query.All(arrayFields[r.IntN(len(arrayFields))], randomScalars(r)...)
		case 7:
			return query.Size(arrayFields[r.IntN(len(arrayFields))], r.Int64N(4))
		default:
			return query.Empty{}
		}
	}

	children := func() []query.Query {
		out := make([]query.Query, r.IntN(4))
		for i := range out {
			out[i] = randomQuery(r, depth+1)
		}
		return out
	}
	switch r.IntN(6) {
	case 0:
		return query.AllOf(children()...)
	case 1:
		return query.AnyOf(children()...)
	case 2:
		return query.NoneOf(children()...)
	case 3:
		return query.Negate(randomQuery(r, depth+1))
	case 4:
		return query.ElemMatch(arrayFields[r.IntN(len(arrayFields))], randomQuery(r, depth+1))
	default:
		return query.Index(arrayFields[r.IntN(len(arrayFields))], r.Int64N(3), randomQuery(r, depth+1))
	}
}
