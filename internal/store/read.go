package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/querysql"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// Page is one window of Find results.
type Page struct {
	Docs []Document
	// Next continues after the last document; empty when nothing follows
	// or the query has no sort.
	Next string
	// Prev continues before the first document (use it as a Before
	// cursor); empty on the first page.
	Prev string
	// OffsetIgnored reports that Skip was dropped in favour of a cursor.
	OffsetIgnored bool
}

// PageRequest is a Find call in the document form: options plus opaque
// cursor tokens from an earlier Page.
type PageRequest struct {
	Options query.Options
	After   string
	Before  string
}

// Resolve decodes the tokens into opts cursors.
func (r PageRequest) Resolve() (query.Options, error) {
	opts := r.Options
	if r.After != "" {
		c, err := querysql.DecodeCursor(opts.Sort, r.After)
		if err != nil {
			return query.Options{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		opts.After = c
	}
	if r.Before != "" {
		c, err := querysql.DecodeCursor(opts.Sort, r.Before)
		if err != nil {
			return query.Options{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		opts.Before = c
	}
	return opts, nil
}

// Find runs q with opts and returns one page.
//
// One row more than Limit is fetched to learn whether another page exists.
// Rows of a Before page arrive in reverse and are restored to the
// requested order.
func (c *Collection) Find(ctx context.Context, q query.Query, opts query.Options) (Page, error) {
	fetch := opts
	if opts.Limit > 0 {
		fetch.Limit = opts.Limit + 1
	}
	st, err := c.tr.Select(c.name, q, fetch)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	args, err := st.Args()
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	c.store.log.Debug("find", "collection", c.name, "sql", st.SQL, "params", len(args))
	if st.OffsetIgnored {
		c.store.log.Warn("skip ignored with cursor", "collection", c.name, "skip", opts.Skip)
	}
	c.store.emitStarted(ctx, c.name, "FIND", st.SQL)
	start := time.Now()

	rows, err := c.store.db.QueryxContext(ctx, st.SQL, args...)
	if err != nil {
		return Page{}, c.store.failed(ctx, c.name, "FIND", start, fmt.Errorf("find in %q: %w", c.name, err))
	}
	defer rows.Close()

	type hit struct {
		doc  Document
		keys []value.Value
	}
	var hits []hit
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return Page{}, c.store.failed(ctx, c.name, "FIND", start, fmt.Errorf("find in %q: scan: %w", c.name, err))
		}
		h := hit{doc: Document{ID: asString(cols[0]), Body: []byte(asString(cols[1]))}}
		for _, v := range cols[2:] {
			kv, err := fromDriver(v)
			if err != nil {
				return Page{}, c.store.failed(ctx, c.name, "FIND", start, fmt.Errorf("find in %q: sort key: %w", c.name, err))
			}
			h.keys = append(h.keys, kv)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return Page{}, c.store.failed(ctx, c.name, "FIND", start, fmt.Errorf("find in %q: %w", c.name, err))
	}

	more := opts.Limit > 0 && int64(len(hits)) > opts.Limit
	if more {
		hits = hits[:opts.Limit]
	}
	if st.Reversed {
		slices.Reverse(hits)
	}

	page := Page{Docs: make([]Document, len(hits)), OffsetIgnored: st.OffsetIgnored}
	for i, h := range hits {
		page.Docs[i] = h.doc
	}

	if len(opts.Sort) > 0 && len(hits) > 0 {
		first, last := hits[0], hits[len(hits)-1]
		hasNext, hasPrev := more, opts.After != nil || (opts.Skip > 0 && !st.OffsetIgnored)
		if st.Reversed {
			hasNext, hasPrev = true, more
		}
		if hasNext {
			if page.Next, err = querysql.EncodeCursor(opts.Sort, query.Cursor{Values: last.keys, ID: last.doc.ID}); err != nil {
				return Page{}, fmt.Errorf("find in %q: %w", c.name, err)
			}
		}
		if hasPrev {
			if page.Prev, err = querysql.EncodeCursor(opts.Sort, query.Cursor{Values: first.keys, ID: first.doc.ID}); err != nil {
				return Page{}, fmt.Errorf("find in %q: %w", c.name, err)
			}
		}
	}

	c.store.emitReturned(ctx, c.name, "FIND", start, len(page.Docs))
	return page, nil
}

// FindPage is Find for a PageRequest.
func (c *Collection) FindPage(ctx context.Context, q query.Query, req PageRequest) (Page, error) {
	opts, err := req.Resolve()
	if err != nil {
		return Page{}, err
	}
	return c.Find(ctx, q, opts)
}

// Count returns the number of documents matching q.
func (c *Collection) Count(ctx context.Context, q query.Query) (int64, error) {
	st, err := c.tr.Count(c.name, q)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	args, err := st.Args()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	c.store.emitStarted(ctx, c.name, "COUNT", st.SQL)
	start := time.Now()

	var n int64
	if err := c.store.db.GetContext(ctx, &n, st.SQL, args...); err != nil {
		return 0, c.store.failed(ctx, c.name, "COUNT", start, fmt.Errorf("count in %q: %w", c.name, err))
	}
	c.store.emitReturned(ctx, c.name, "COUNT", start, 1)
	return n, nil
}

// Get returns the document with the given id, or ErrNotFound.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	var row struct {
		ID   string `db:"id"`
		Body string `db:"body"`
	}
	sqlText := "SELECT id, body FROM " + schema.QuoteIdent(c.name) + " WHERE id = ?"
	err := c.store.db.GetContext(ctx, &row, sqlText, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("get %q from %q: %w", id, c.name, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %q from %q: %w", id, c.name, err)
	}
	return Document{ID: row.ID, Body: []byte(row.Body)}, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

// fromDriver converts a scanned column to a Value. TEXT may arrive as
// []byte; mattn reports BOOLEAN columns as bool. REAL stays Real even when
// integral.
func fromDriver(v any) (value.Value, error) {
	switch x := v.(type) {
	case []byte:
		return value.Text(x), nil
	case float64:
		return value.Real(x), nil
	case time.Time:
		return value.Text(x.Format(time.RFC3339Nano)), nil
	}
	return value.FromAny(v)
}
