package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumn(t *testing.T) {
	assert.Equal(t, "_status", Column("status"))
	assert.Equal(t, "_profile_bio", Column("profile.bio"))
	assert.Equal(t, "_items_0_sku", Column("items.0.sku"))
	assert.Equal(t, "_created_at", Column("created-at"))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "$.status", DefaultPath("status"))
	assert.Equal(t, "$.profile.bio", DefaultPath("profile.bio"))
	assert.Equal(t, "$.items[0].sku", DefaultPath("items.0.sku"))
	assert.Equal(t, ".dims[1]", RelativePath("dims.1"))
}

func TestValidateFieldName(t *testing.T) {
	for _, ok := range []string{"a", "profile.bio", "items.0.sku", "_x", "created-at"} {
		assert.NoError(t, ValidateFieldName(ok), ok)
	}
	for _, bad := range []string{"", "a..b", "0", "a.b c", "a'b", "a.$x", "a)", "é"} {
		assert.Error(t, ValidateFieldName(bad), bad)
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("$.a.b[0].c"))
	assert.Error(t, ValidatePath("$"))
	assert.Error(t, ValidatePath("$.a'"))
	assert.Error(t, ValidatePath("a.b"))
}

func TestNew_AppliesDefaults(t *testing.T) {
	s, err := New([]FieldDef{
		{Name: "status", Indexed: true},
		{Name: "email", Unique: true},
		{Name: "profile.bio", Type: Text, Nullable: true},
	}, nil)
	require.NoError(t, err)

	status, ok := s.Field("status")
	require.True(t, ok)
	assert.Equal(t, "$.status", status.Path)
	assert.Equal(t, Text, status.Type)

	email, _ := s.Field("email")
	assert.True(t, email.Indexed, "unique implies indexed")

	assert.Len(t, s.IndexedFields(), 2)
	_, ok = s.Field("missing")
	assert.False(t, ok)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		fields  []FieldDef
		indexes []IndexDef
		msg     string
	}{
		{"reserved id", []FieldDef{{Name: "id"}}, nil, "reserved"},
		{"reserved body", []FieldDef{{Name: "body"}}, nil, "reserved"},
		{"duplicate", []FieldDef{{Name: "a"}, {Name: "a"}}, nil, "declared twice"},
		{"malformed name", []FieldDef{{Name: "a b"}}, nil, "malformed"},
		{"malformed path", []FieldDef{{Name: "a", Path: "$.a'--"}}, nil, "malformed JSON path"},
		{"unknown type", []FieldDef{{Name: "a", Type: "VARCHAR"}}, nil, "unknown type"},
		{"column collision", []FieldDef{{Name: "a.b"}, {Name: "a_b"}}, nil, "collides"},
		{"index on undeclared", []FieldDef{{Name: "a", Indexed: true}}, []IndexDef{{Fields: []string{"a", "b"}}}, "undeclared"},
		{"index on unindexed", []FieldDef{{Name: "a"}}, []IndexDef{{Fields: []string{"a"}}}, "not indexed"},
		{"empty index", nil, []IndexDef{{Name: "x"}}, "no fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fields, tt.indexes)
			require.Error(t, err)
			var schemaErr *Error
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSchema_IsFrozen(t *testing.T) {
	fields := []FieldDef{{Name: "a", Indexed: true}}
	indexes := []IndexDef{{Name: "by_a", Fields: []string{"a"}}}
	s := MustNew(fields, indexes)

	fields[0].Name = "changed"
	indexes[0].Fields[0] = "changed"
	got := s.Fields()
	got[0].Name = "mutated"
	s.Indexes()[0].Fields[0] = "mutated"

	f, ok := s.Field("a")
	require.True(t, ok)
	assert.Equal(t, "a", f.Name)
	assert.Equal(t, []string{"a"}, s.Indexes()[0].Fields)
}

func TestSchema_IsUniqueKey(t *testing.T) {
	s := MustNew([]FieldDef{
		{Name: "email", Unique: true},
		{Name: "handle", Unique: true, Nullable: true},
		{Name: "status", Indexed: true},
	}, nil)

	assert.True(t, s.IsUniqueKey("id"))
	assert.True(t, s.IsUniqueKey("email"))
	assert.False(t, s.IsUniqueKey("handle"), "nullable unique columns may repeat NULL")
	assert.False(t, s.IsUniqueKey("status"))
	assert.False(t, s.IsUniqueKey("undeclared"))
}

func TestDDL(t *testing.T) {
	s := MustNew([]FieldDef{
		{Name: "status", Indexed: true},
		{Name: "createdAt", Indexed: true, Nullable: true},
		{Name: "email", Unique: true},
		{Name: "profile.bio", Nullable: true},
		{Name: "tags", Type: JSON, Indexed: true, Nullable: true},
	}, []IndexDef{{Fields: []string{"status", "createdAt"}}})

	stmts, err := s.DDL("users")
	require.NoError(t, err)

	want := []string{
		`CREATE TABLE IF NOT EXISTS "users" (
  id TEXT PRIMARY KEY,
  body TEXT NOT NULL CHECK (json_valid(body)),
  _status TEXT GENERATED ALWAYS AS (json_extract(body,'$.status')) VIRTUAL NOT NULL,
  _createdAt TEXT GENERATED ALWAYS AS (json_extract(body,'$.createdAt')) VIRTUAL,
  _email TEXT GENERATED ALWAYS AS (json_extract(body,'$.email')) VIRTUAL NOT NULL,
  _tags TEXT GENERATED ALWAYS AS (json_extract(body,'$.tags')) VIRTUAL
)`,
		`CREATE INDEX IF NOT EXISTS "users__status_idx" ON "users" (_status)`,
		`CREATE INDEX IF NOT EXISTS "users__createdAt_idx" ON "users" (_createdAt)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS "users__email_idx" ON "users" (_email)`,
		`CREATE INDEX IF NOT EXISTS "users__tags_idx" ON "users" (_tags)`,
		`CREATE INDEX IF NOT EXISTS "users__status__createdAt_idx" ON "users" (_status, _createdAt)`,
	}
	assert.Equal(t, want, stmts)

	script := Script(stmts)
	assert.Equal(t, 6, strings.Count(script, ";\n"))
}

func TestDDL_RejectsBadTable(t *testing.T) {
	_, err := MustNew(nil, nil).DDL(`users"; DROP TABLE x; --`)
	require.Error(t, err)
}

func TestDBML(t *testing.T) {
	s := MustNew([]FieldDef{
		{Name: "status", Indexed: true},
		{Name: "email", Unique: true, Nullable: true},
		{Name: "bio"},
	}, []IndexDef{
		{Fields: []string{"status", "email"}, Unique: true},
		{Name: "by_email", Fields: []string{"email"}},
	})

	project, err := s.DBML("users")
	require.NoError(t, err)
	require.Len(t, project.Tables, 1)

	for _, table := range project.Tables {
		names := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			names = append(names, col.Name)
		}
		assert.Equal(t, []string{"id", "body", "_status", "_email"}, names)

		require.Len(t, table.Indexes, 4)
		type indexInfo struct {
			name   string
			cols   int
			unique bool
		}
		got := make([]indexInfo, len(table.Indexes))
		for i, idx := range table.Indexes {
			require.NotNil(t, idx.Name)
			got[i] = indexInfo{name: *idx.Name, cols: len(idx.Columns), unique: idx.Unique}
		}
		assert.Equal(t, []indexInfo{
			{name: "users__status_idx", cols: 1},
			{name: "users__email_idx", cols: 1, unique: true},
			{name: "users__status__email_idx", cols: 2, unique: true},
			{name: "by_email", cols: 1},
		}, got)
	}

	out := project.Generate()
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "_status")
	assert.Contains(t, out, "users__status__email_idx")
}
