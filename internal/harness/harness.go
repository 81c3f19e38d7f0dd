package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/docql/internal/eval"
	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/querysql"
	"github.com/roach88/docql/internal/store"
	"github.com/roach88/docql/internal/testutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxPages bounds a cursor walk; a walk that long means the cursors loop.
const maxPages = 1000

// Harness is the test execution engine. It holds one store collection
// and the reference collection loaded with the same documents.
type Harness struct {
	store  *store.Store
	coll   *store.Collection
	ref    *eval.Collection
	tr     *querysql.Translator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Missing
// document ids are generated as doc-0001, doc-0002, ... so results are
// reproducible.
//
// Execution flow:
// 1. Open an in-memory store and create the collection
// 2. Load the documents into the store and the reference evaluator
// 3. Compile the query; a rejected query skips to the assertions
// 4. Run find, count and the cursor walk on both engines and compare
// 5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	p, err := scenario.plan()
	if err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", scenario.Name, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	st, err := store.Open(ctx, store.Options{Path: ":memory:", Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	coll, err := st.CreateCollection(ctx, p.collection, p.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	h := &Harness{
		store:  st,
		coll:   coll,
		ref:    eval.NewCollection(p.schema),
		tr:     querysql.NewTranslator(p.schema),
		logger: logger,
	}

	if err := h.load(ctx, scenario.Documents); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	result := NewResult()
	if err := h.execute(ctx, p, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// load writes the documents to both engines.
func (h *Harness) load(ctx context.Context, steps []DocumentStep) error {
	ids := testutil.NewSequentialIDs("doc")
	docs := make([]store.Document, len(steps))
	refs := make([]eval.Document, len(steps))
	for i, step := range steps {
		id := step.ID
		if id == "" {
			id = ids.Generate()
		}
		data, err := json.Marshal(step.Body)
		if err != nil {
			return fmt.Errorf("document %q: %w", id, err)
		}
		if refs[i], err = eval.ParseDocument(id, data); err != nil {
			return err
		}
		docs[i] = store.Document{ID: id, Body: data}
	}

	if err := h.coll.InsertDocuments(ctx, docs...); err != nil {
		return err
	}
	h.logger.Debug("documents loaded", "collection", h.coll.Name(), "count", len(docs))
	return h.ref.Insert(refs...)
}

// execute compiles and runs the query, recording disagreements between
// the store and the reference evaluator as errors on result.
func (h *Harness) execute(ctx context.Context, p *plan, result *Result) error {
	st, err := h.tr.Select(p.collection, p.query, p.opts)
	if err != nil {
		result.Err = err
		// The store must reject it the same way.
		if _, ferr := h.coll.Find(ctx, p.query, p.opts); !errors.Is(ferr, store.ErrInvalidQuery) {
			result.AddError(fmt.Sprintf("translator rejected the query (%v) but the store returned %v", err, ferr))
		}
		return nil
	}
	result.SQL, result.Params = st.SQL, st.Params

	page, err := h.coll.Find(ctx, p.query, p.opts)
	if err != nil {
		return fmt.Errorf("store find: %w", err)
	}
	result.IDs = storeIDs(page.Docs)

	hits, err := h.ref.Find(p.query, p.opts)
	if err != nil {
		return fmt.Errorf("reference find: %w", err)
	}
	if refIDs := hitIDs(hits); !slices.Equal(result.IDs, refIDs) {
		result.AddError(fmt.Sprintf("find: store returned %v, reference returned %v", result.IDs, refIDs))
	}

	if result.Count, err = h.coll.Count(ctx, p.query); err != nil {
		return fmt.Errorf("store count: %w", err)
	}
	refCount, err := h.ref.Count(p.query)
	if err != nil {
		return fmt.Errorf("reference count: %w", err)
	}
	if result.Count != int64(refCount) {
		result.AddError(fmt.Sprintf("count: store returned %d, reference returned %d", result.Count, refCount))
	}

	if !walkable(p.opts) {
		return nil
	}
	if result.Pages, err = h.walkStore(ctx, p); err != nil {
		return fmt.Errorf("store walk: %w", err)
	}
	refPages, err := h.walkReference(p)
	if err != nil {
		return fmt.Errorf("reference walk: %w", err)
	}
	if !equalPages(result.Pages, refPages) {
		result.AddError(fmt.Sprintf("pages: store walked %v, reference walked %v", result.Pages, refPages))
	}
	return nil
}

// walkable reports whether opts start a cursor walk.
func walkable(opts query.Options) bool {
	return opts.Limit > 0 && len(opts.Sort) > 0 && opts.After == nil && opts.Before == nil
}

// walkStore follows Next tokens until the store reports no further page.
func (h *Harness) walkStore(ctx context.Context, p *plan) ([][]string, error) {
	var pages [][]string
	req := store.PageRequest{Options: p.opts}
	for range maxPages {
		page, err := h.coll.FindPage(ctx, p.query, req)
		if err != nil {
			return nil, err
		}
		if len(page.Docs) == 0 {
			return pages, nil
		}
		pages = append(pages, storeIDs(page.Docs))
		if page.Next == "" {
			return pages, nil
		}
		req.After = page.Next
	}
	return nil, fmt.Errorf("no end after %d pages", maxPages)
}

// walkReference continues after the last hit until a short page.
func (h *Harness) walkReference(p *plan) ([][]string, error) {
	var pages [][]string
	opts := p.opts
	for range maxPages {
		hits, err := h.ref.Find(p.query, opts)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return pages, nil
		}
		pages = append(pages, hitIDs(hits))
		if int64(len(hits)) < opts.Limit {
			return pages, nil
		}
		last := hits[len(hits)-1].Cursor()
		opts.After = &last
	}
	return nil, fmt.Errorf("no end after %d pages", maxPages)
}

func storeIDs(docs []store.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func hitIDs(hits []eval.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Doc.ID
	}
	return ids
}

func equalPages(a, b [][]string) bool {
	return slices.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}
