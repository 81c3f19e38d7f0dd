package cli

import (
	"fmt"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/querysql"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Schema  string
	Table   string
	Options string // options file applied when a query file has none
	Count   bool
	Workers int
	Output  string
}

// CompiledQuery is the result for one query file.
type CompiledQuery struct {
	File   string              `json:"file"`
	SQL    string              `json:"sql,omitempty"`
	Params jsoniter.RawMessage `json:"params,omitempty"`
	Error  *CLIError           `json:"error,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file|dir>...",
		Short: "Compile query documents to SQLite SQL",
		Long: `Compile query documents (YAML or JSON) to a parameterized SQLite
statement against a document table.

Files are compiled concurrently; output keeps the argument order.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema file (.yaml, .json or .cue)")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "docs", "document table name")
	cmd.Flags().StringVar(&opts.Options, "options", "", "options file used when a query file has none")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "emit SELECT COUNT(*) instead of a page query")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "concurrent compilations (default from config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write results as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sch, err := LoadSchema(opts.Schema)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}
	var defaults query.Options
	if opts.Options != "" {
		qf, err := LoadQueryFile(opts.Options)
		if err != nil {
			code, msg := loadErrorParts(err)
			return formatter.Fail(ExitCommandError, code, msg, nil)
		}
		defaults = qf.Options
	}
	files, err := FindQueryFiles(args)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = opts.Config.BatchWorkers
	}
	formatter.VerboseLog("Compiling %d file(s) with %d worker(s)", len(files), workers)

	results, err := compileAll(sch, files, compileSettings{
		table:    opts.Table,
		defaults: defaults,
		count:    opts.Count,
		workers:  workers,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err == nil {
			err = os.WriteFile(opts.Output, data, 0o644)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: results}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = firstError(results)
		}
		if err := json.NewEncoder(formatter.Writer).Encode(resp); err != nil {
			return err
		}
	} else {
		printCompileText(formatter, results)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("compilation failed for %d of %d file(s)", failed, len(results)))
	}
	return nil
}

type compileSettings struct {
	table    string
	defaults query.Options
	count    bool
	workers  int
}

// compileAll compiles files on a bounded ants pool. results[i] belongs to
// files[i].
func compileAll(sch *schema.Schema, files []string, cs compileSettings) ([]CompiledQuery, error) {
	if cs.workers < 1 {
		cs.workers = 1
	}
	pool, err := ants.NewPool(cs.workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	tr := querysql.NewTranslator(sch)
	results := make([]CompiledQuery, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = compileFile(tr, path, cs)
		})
		if err != nil {
			wg.Done()
			results[i] = CompiledQuery{File: path, Error: &CLIError{Code: ErrCodeGeneric, Message: err.Error()}}
		}
	}
	wg.Wait()
	return results, nil
}

func compileFile(tr *querysql.Translator, path string, cs compileSettings) CompiledQuery {
	res := CompiledQuery{File: path}
	fail := func(err error) CompiledQuery {
		code, msg := loadErrorParts(err)
		res.Error = &CLIError{Code: code, Message: msg}
		return res
	}

	qf, err := LoadQueryFile(path)
	if err != nil {
		return fail(err)
	}
	opts := qf.Options
	if isZeroOptions(opts) {
		opts = cs.defaults
	}

	var st querysql.Statement
	if cs.count {
		st, err = tr.Count(cs.table, qf.Query)
	} else {
		st, err = tr.Select(cs.table, qf.Query, opts)
	}
	if err != nil {
		return fail(err)
	}
	params, err := value.MarshalPlain(st.Params)
	if err != nil {
		return fail(err)
	}
	res.SQL, res.Params = st.SQL, params
	return res
}

func isZeroOptions(o query.Options) bool {
	return len(o.Sort) == 0 && o.Limit == 0 && o.Skip == 0 && o.After == nil && o.Before == nil
}

func firstError(results []CompiledQuery) *CLIError {
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

func printCompileText(formatter *OutputFormatter, results []CompiledQuery) {
	w := formatter.Writer
	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(w, "%s %s\n  %s: %s\n\n", colorErr("✗"), r.File, r.Error.Code, r.Error.Message)
			continue
		}
		fmt.Fprintf(w, "%s %s\n  %s\n  %s %s\n\n", colorOK("✓"), r.File, r.SQL, colorDim("params:"), r.Params)
	}
}
