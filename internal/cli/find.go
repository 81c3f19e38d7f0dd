package cli

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/store"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	DB         string
	Driver     string
	Schema     string
	Collection string
	Limit      int64
	After      string
	Before     string
	Count      bool
}

// FoundDoc is one document in find output.
type FoundDoc struct {
	ID   string              `json:"id"`
	Body jsoniter.RawMessage `json:"body"`
}

// FindResult is the JSON payload of the find command.
type FindResult struct {
	Docs          []FoundDoc `json:"docs"`
	Next          string     `json:"next,omitempty"`
	Prev          string     `json:"prev,omitempty"`
	OffsetIgnored bool       `json:"offset_ignored,omitempty"`
	Count         *int64     `json:"count,omitempty"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find [query-file]",
		Short: "Run a query against a document table",
		Long: `Run a query document against a collection in a SQLite database and
print one page of results.

Continue a sorted result with the printed next/prev tokens:

  docql find --collection users q.yaml --after <next>`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (default from config)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "sqlite3 or sqlite (default from config)")
	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema the collection was created with")
	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "collection (table) name")
	cmd.Flags().Int64Var(&opts.Limit, "limit", 0, "page size (overrides the query file)")
	cmd.Flags().StringVar(&opts.After, "after", "", "continue after this cursor token")
	cmd.Flags().StringVar(&opts.Before, "before", "", "continue before this cursor token")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matches instead of a page")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runFind(opts *FindOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	sch, err := LoadSchema(opts.Schema)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}

	var q query.Query = query.Empty{}
	var qopts query.Options
	if len(args) == 1 {
		qf, err := LoadQueryFile(args[0])
		if err != nil {
			code, msg := loadErrorParts(err)
			return formatter.Fail(ExitCommandError, code, msg, nil)
		}
		q, qopts = qf.Query, qf.Options
	}
	if opts.Limit > 0 {
		qopts.Limit = opts.Limit
	}

	dbPath := opts.DB
	if dbPath == "" {
		dbPath = opts.Config.DBPath
	}
	driver := opts.Driver
	if driver == "" {
		driver = opts.Config.Driver
	}
	formatter.VerboseLog("Opening %s (%s)", dbPath, driver)

	s, err := store.Open(ctx, store.Options{
		Path:        dbPath,
		Driver:      driver,
		BusyTimeout: opts.Config.BusyTimeout,
		Logger:      opts.logger(),
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer s.Close()

	coll, err := s.Collection(opts.Collection, sch)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
	}

	if opts.Count {
		n, err := coll.Count(ctx, q)
		if err != nil {
			return failQuery(formatter, err)
		}
		if formatter.Format == "json" {
			return formatter.Success(FindResult{Docs: []FoundDoc{}, Count: &n})
		}
		fmt.Fprintln(formatter.Writer, n)
		return nil
	}

	page, err := coll.FindPage(ctx, q, store.PageRequest{Options: qopts, After: opts.After, Before: opts.Before})
	if err != nil {
		return failQuery(formatter, err)
	}

	res := FindResult{
		Docs:          make([]FoundDoc, len(page.Docs)),
		Next:          page.Next,
		Prev:          page.Prev,
		OffsetIgnored: page.OffsetIgnored,
	}
	for i, d := range page.Docs {
		res.Docs[i] = FoundDoc{ID: d.ID, Body: d.Body}
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	renderDocs(formatter.Writer, res)
	return nil
}

// failQuery reports a Find/Count error. Invalid queries carry the
// translation error code.
func failQuery(formatter *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrInvalidQuery) {
		code := MapTranslateErrorCode(err)
		if code == ErrCodeGeneric {
			code = ErrCodeInvalidQuery
		}
		return formatter.Fail(ExitFailure, code, err.Error(), nil)
	}
	return formatter.Fail(ExitFailure, ErrCodeStore, err.Error(), nil)
}

func renderDocs(w io.Writer, res FindResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Body"})
	table.SetAutoWrapText(false)
	for _, d := range res.Docs {
		table.Append([]string{d.ID, string(d.Body)})
	}
	table.Render()

	fmt.Fprintf(w, "%d document(s)\n", len(res.Docs))
	if res.OffsetIgnored {
		fmt.Fprintln(w, colorDim("skip ignored: a cursor was given"))
	}
	if res.Next != "" {
		fmt.Fprintf(w, "%s %s\n", colorDim("next:"), res.Next)
	}
	if res.Prev != "" {
		fmt.Fprintf(w, "%s %s\n", colorDim("prev:"), res.Prev)
	}
}
