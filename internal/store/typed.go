package store

import (
	"context"

	"github.com/roach88/docql/internal/query"
)

// Typed wraps a Collection whose bodies decode into T.
type Typed[T any] struct {
	c *Collection
}

// NewTyped returns a typed view of c.
func NewTyped[T any](c *Collection) *Typed[T] {
	return &Typed[T]{c: c}
}

// Collection returns the untyped collection.
func (t *Typed[T]) Collection() *Collection { return t.c }

// TypedPage is a Page with decoded bodies.
type TypedPage[T any] struct {
	IDs   []string
	Items []T
	Next  string
	Prev  string
}

// Insert stores items and returns their generated ids.
func (t *Typed[T]) Insert(ctx context.Context, items ...T) ([]string, error) {
	bodies := make([]any, len(items))
	for i := range items {
		bodies[i] = items[i]
	}
	return t.c.Insert(ctx, bodies...)
}

// Find runs q and decodes every body.
func (t *Typed[T]) Find(ctx context.Context, q query.Query, opts query.Options) (TypedPage[T], error) {
	page, err := t.c.Find(ctx, q, opts)
	if err != nil {
		return TypedPage[T]{}, err
	}
	out := TypedPage[T]{
		IDs:   make([]string, len(page.Docs)),
		Items: make([]T, len(page.Docs)),
		Next:  page.Next,
		Prev:  page.Prev,
	}
	for i, d := range page.Docs {
		out.IDs[i] = d.ID
		if err := d.Decode(&out.Items[i]); err != nil {
			return TypedPage[T]{}, err
		}
	}
	return out, nil
}

// Get decodes the document with the given id.
func (t *Typed[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	d, err := t.c.Get(ctx, id)
	if err != nil {
		return item, err
	}
	err = d.Decode(&item)
	return item, err
}
