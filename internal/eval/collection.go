package eval

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

const btreeDegree = 16

// Collection is an in-memory document set with the paging semantics of the
// SQL store: sort with an id tiebreak, skip/limit, After/Before cursors.
type Collection struct {
	eval *Evaluator

	mu   sync.RWMutex
	docs *btree.BTreeG[Document]
}

func idLess(a, b Document) bool { return a.ID < b.ID }

// NewCollection returns an empty collection for s.
func NewCollection(s *schema.Schema) *Collection {
	return &Collection{
		eval: New(s),
		docs: btree.NewG[Document](btreeDegree, idLess),
	}
}

// Insert adds documents. Ids must be non-empty and unique.
func (c *Collection) Insert(docs ...Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("eval: document without id")
		}
		if c.docs.Has(d) {
			return fmt.Errorf("eval: duplicate id %q", d.ID)
		}
	}
	for _, d := range docs {
		c.docs.ReplaceOrInsert(d)
	}
	return nil
}

// Get returns the document with the given id.
func (c *Collection) Get(id string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs.Get(Document{ID: id})
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs.Len()
}

// Count returns the number of documents matching q.
func (c *Collection) Count(q query.Query) (int, error) {
	matched, err := c.match(q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (c *Collection) match(q query.Query) ([]Document, error) {
	if err := c.eval.check(q, false, 1); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Document
	c.docs.Ascend(func(d Document) bool {
		if c.eval.eval(d, q, nil) == True {
			out = append(out, d)
		}
		return true
	})
	return out, nil
}

// Hit is one result of Find.
type Hit struct {
	Doc Document
	// Keys are the values of the requested sort fields, in sort order.
	Keys []value.Value
}

// Cursor returns the cursor positioned at h.
func (h Hit) Cursor() query.Cursor {
	return query.Cursor{Values: slices.Clone(h.Keys), ID: h.Doc.ID}
}

type sortKey struct {
	field string
	dir   query.Direction
}

type ranked struct {
	doc  Document
	keys []operand
}

// Find returns the documents matching q in the order and window opts
// selects.
func (c *Collection) Find(q query.Query, opts query.Options) ([]Hit, error) {
	keys, err := c.sortKeys(opts.Sort)
	if err != nil {
		return nil, err
	}
	cursor, reversed, err := pickCursor(opts, len(keys) > len(opts.Sort))
	if err != nil {
		return nil, err
	}
	matched, err := c.match(q)
	if err != nil {
		return nil, err
	}

	less := func(a, b ranked) bool {
		for i, k := range keys {
			d := compareValues(a.keys[i].val, b.keys[i].val)
			if effective(k.dir, reversed) == query.Desc {
				d = -d
			}
			if d != 0 {
				return d < 0
			}
		}
		return a.doc.ID < b.doc.ID
	}
	ordered := btree.NewG[ranked](btreeDegree, less)

	var bound []value.Value
	if cursor != nil {
		bound = append(slices.Clone(cursor.Values), value.Text(cursor.ID))
	}
	for _, d := range matched {
		r := ranked{doc: d, keys: make([]operand, len(keys))}
		for i, k := range keys {
			r.keys[i] = c.eval.resolve(d, k.field, nil)
		}
		if cursor != nil && keysetAfter(keys, r.keys, bound, reversed) != True {
			continue
		}
		ordered.ReplaceOrInsert(r)
	}

	skip := opts.Skip
	if cursor != nil {
		skip = 0
	}
	var hits []Hit
	ordered.Ascend(func(r ranked) bool {
		if skip > 0 {
			skip--
			return true
		}
		if opts.Limit > 0 && int64(len(hits)) >= opts.Limit {
			return false
		}
		h := Hit{Doc: r.doc, Keys: make([]value.Value, len(opts.Sort))}
		for i := range opts.Sort {
			h.Keys[i] = r.keys[i].val
		}
		hits = append(hits, h)
		return true
	})
	if reversed {
		slices.Reverse(hits)
	}
	return hits, nil
}

// sortKeys resolves the sort and appends the id tiebreak unless the last
// field is already a unique key.
func (c *Collection) sortKeys(sort []query.SortField) ([]sortKey, error) {
	keys := make([]sortKey, 0, len(sort)+1)
	for _, sf := range sort {
		if sf.Field != schema.IDColumn {
			if err := schema.ValidateFieldName(sf.Field); err != nil {
				return nil, invalid(sf.Field, "%v", err)
			}
		}
		dir := query.Asc
		if sf.Direction == query.Desc {
			dir = query.Desc
		}
		keys = append(keys, sortKey{field: sf.Field, dir: dir})
	}
	if len(keys) == 0 || !c.eval.schema.IsUniqueKey(keys[len(keys)-1].field) {
		keys = append(keys, sortKey{field: schema.IDColumn, dir: query.Asc})
	}
	return keys, nil
}

func pickCursor(opts query.Options, tiebreak bool) (*query.Cursor, bool, error) {
	switch {
	case opts.Limit < 0 || opts.Skip < 0:
		return nil, false, invalid("", "negative limit or skip")
	case opts.After != nil && opts.Before != nil:
		return nil, false, invalid("", "after and before are mutually exclusive")
	}
	cursor, reversed := opts.After, false
	if opts.Before != nil {
		cursor, reversed = opts.Before, true
	}
	if cursor == nil {
		return nil, false, nil
	}
	if len(opts.Sort) == 0 {
		return nil, false, invalid("", "cursor pagination requires a sort")
	}
	if len(cursor.Values) != len(opts.Sort) {
		return nil, false, invalid("", "cursor has %d values, sort has %d fields", len(cursor.Values), len(opts.Sort))
	}
	if tiebreak && cursor.ID == "" {
		return nil, false, invalid("", "cursor has no id")
	}
	return cursor, reversed, nil
}

func effective(dir query.Direction, reversed bool) query.Direction {
	if reversed {
		return dir.Reverse()
	}
	return dir
}

// keysetAfter reports whether a row lies strictly after the bound in the
// effective order, with the same NULL handling as the SQL keyset predicate.
func keysetAfter(keys []sortKey, row []operand, bound []value.Value, reversed bool) Truth {
	out := False
	for i, k := range keys {
		term := True
		for j := 0; j < i; j++ {
			term = term.And(compareOp(row[j], query.CmpEq, param(bound[j])))
		}

		v := param(bound[i])
		null := value.IsNull(v)
		x := row[i]
		if effective(k.dir, reversed) == query.Desc {
			if null {
				continue
			}
			term = term.And(compareOp(x, query.CmpLt, v).Or(truthOf(value.IsNull(x.val))))
		} else if null {
			term = term.And(truthOf(!value.IsNull(x.val)))
		} else {
			term = term.And(compareOp(x, query.CmpGt, v))
		}
		out = out.Or(term)
	}
	return out
}
