package schema

import (
	"fmt"
	"strings"

	"github.com/zoobzio/dbml"
)

// DDL returns the statements that materialise the schema as table.
// Statements are idempotent (IF NOT EXISTS):
//
//	CREATE TABLE IF NOT EXISTS "users" (
//	  id TEXT PRIMARY KEY,
//	  body TEXT NOT NULL CHECK (json_valid(body)),
//	  _status TEXT GENERATED ALWAYS AS (json_extract(body,'$.status')) VIRTUAL NOT NULL
//	)
//	CREATE INDEX IF NOT EXISTS "users__status_idx" ON "users" (_status)
func (s *Schema) DDL(table string) ([]string, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, &Error{Message: err.Error()}
	}
	qt := QuoteIdent(table)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", qt)
	b.WriteString("  id TEXT PRIMARY KEY,\n")
	b.WriteString("  body TEXT NOT NULL CHECK (json_valid(body))")
	indexed := s.IndexedFields()
	for _, f := range indexed {
		fmt.Fprintf(&b, ",\n  %s %s GENERATED ALWAYS AS (json_extract(body,'%s')) VIRTUAL",
			Column(f.Name), f.Type.ColumnType(), f.Path)
		if !f.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString("\n)")

	stmts := []string{b.String()}
	for _, f := range indexed {
		col := Column(f.Name)
		stmts = append(stmts, createIndex(table, table+"_"+col+"_idx", f.Unique, col))
	}
	for _, idx := range s.indexes {
		cols := make([]string, len(idx.Fields))
		for i, name := range idx.Fields {
			cols[i] = Column(name)
		}
		name := idx.Name
		if name == "" {
			name = table + "_" + strings.Join(cols, "_") + "_idx"
		}
		stmts = append(stmts, createIndex(table, name, idx.Unique, cols...))
	}
	return stmts, nil
}

func createIndex(table, name string, unique bool, cols ...string) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind, QuoteIdent(name), QuoteIdent(table), strings.Join(cols, ", "))
}

// Script joins DDL statements into one executable script.
func Script(stmts []string) string {
	return strings.Join(stmts, ";\n") + ";\n"
}

// DBML describes the materialised table as a DBML project, for tooling
// that renders schema diagrams. Only generated columns appear; unindexed
// fields live inside body.
func (s *Schema) DBML(table string) (*dbml.Project, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, &Error{Message: err.Error()}
	}

	project := dbml.NewProject(table).
		WithDatabaseType("SQLite")

	t := dbml.NewTable(table).
		WithSchema("main")

	id := dbml.NewColumn(IDColumn, "TEXT")
	id.WithPrimaryKey()
	t.AddColumn(id)

	body := dbml.NewColumn(BodyColumn, "TEXT")
	body.WithCheck("json_valid(body)")
	t.AddColumn(body)

	for _, f := range s.IndexedFields() {
		col := dbml.NewColumn(Column(f.Name), f.Type.ColumnType())
		if f.Unique {
			col.WithUnique()
		}
		if f.Nullable {
			// DBML columns are NOT NULL unless marked.
			col.WithNull()
		}
		t.AddColumn(col)

		index := dbml.NewIndex(Column(f.Name)).WithName(table + "_" + Column(f.Name) + "_idx")
		if f.Unique {
			index.WithUnique()
		}
		t.AddIndex(index)
	}
	for _, idx := range s.indexes {
		cols := make([]string, len(idx.Fields))
		for i, name := range idx.Fields {
			cols[i] = Column(name)
		}
		name := idx.Name
		if name == "" {
			name = table + "_" + strings.Join(cols, "_") + "_idx"
		}
		index := dbml.NewIndex(cols...).WithName(name)
		if idx.Unique {
			index.WithUnique()
		}
		t.AddIndex(index)
	}

	project.AddTable(t)

	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("schema: generated DBML is invalid: %w", err)
	}
	return project, nil
}
