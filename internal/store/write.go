package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/docql/internal/querysql"
	"github.com/roach88/docql/internal/schema"
)

// Collection is one document table bound to its schema.
type Collection struct {
	store  *Store
	name   string
	schema *schema.Schema
	tr     *querysql.Translator
}

// CreateCollection creates the table, generated columns and indexes for s
// in one transaction. It fails if the table already exists.
func (s *Store) CreateCollection(ctx context.Context, name string, sch *schema.Schema) (*Collection, error) {
	c, err := s.Collection(name, sch)
	if err != nil {
		return nil, err
	}
	stmts, err := c.schema.DDL(name)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: begin tx: %w", name, err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create collection %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create collection %q: commit: %w", name, err)
	}

	s.log.Info("collection created", "collection", name, "statements", len(stmts))
	return c, nil
}

// Collection binds an existing table. The schema must be the one the table
// was created with; generated columns are addressed by name.
func (s *Store) Collection(name string, sch *schema.Schema) (*Collection, error) {
	if err := schema.ValidateTableName(name); err != nil {
		return nil, err
	}
	if sch == nil {
		sch = schema.MustNew(nil, nil)
	}
	return &Collection{store: s, name: name, schema: sch, tr: querysql.NewTranslator(sch)}, nil
}

// Name returns the table name.
func (c *Collection) Name() string { return c.name }

// Schema returns the collection schema.
func (c *Collection) Schema() *schema.Schema { return c.schema }

// Insert stores bodies under freshly generated ids and returns the ids in
// order. All bodies are written in one transaction.
func (c *Collection) Insert(ctx context.Context, bodies ...any) ([]string, error) {
	docs := make([]Document, len(bodies))
	for i, b := range bodies {
		data, err := marshalBody(b)
		if err != nil {
			return nil, fmt.Errorf("insert into %q: document %d: %w", c.name, i, err)
		}
		docs[i] = Document{ID: c.store.ids.Generate(), Body: []byte(data)}
	}
	if err := c.InsertDocuments(ctx, docs...); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// InsertDocuments stores documents with caller-chosen ids. A duplicate id
// or a body violating a NOT NULL / UNIQUE generated column fails the whole
// batch.
func (c *Collection) InsertDocuments(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	sqlText := "INSERT INTO " + schema.QuoteIdent(c.name) + " (id, body) VALUES (?, ?)"

	c.store.emitStarted(ctx, c.name, "INSERT", sqlText)
	start := time.Now()

	tx, err := c.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return c.store.failed(ctx, c.name, "INSERT", start, fmt.Errorf("insert into %q: begin tx: %w", c.name, err))
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PreparexContext(ctx, sqlText)
	if err != nil {
		return c.store.failed(ctx, c.name, "INSERT", start, fmt.Errorf("insert into %q: %w", c.name, err))
	}
	defer stmt.Close()

	for _, d := range docs {
		if d.ID == "" {
			return c.store.failed(ctx, c.name, "INSERT", start, fmt.Errorf("insert into %q: empty id", c.name))
		}
		body, err := marshalBody([]byte(d.Body))
		if err != nil {
			return c.store.failed(ctx, c.name, "INSERT", start, fmt.Errorf("insert into %q: document %q: %w", c.name, d.ID, err))
		}
		if _, err := stmt.ExecContext(ctx, d.ID, body); err != nil {
			return c.store.failed(ctx, c.name, "INSERT", start, fmt.Errorf("insert into %q: document %q: %w", c.name, d.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return c.store.failed(ctx, c.name, "INSERT", start, fmt.Errorf("insert into %q: commit: %w", c.name, err))
	}

	c.store.emitAffected(ctx, c.name, "INSERT", start, int64(len(docs)))
	return nil
}
