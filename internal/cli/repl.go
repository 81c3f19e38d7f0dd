package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/querysql"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Schema      string
	Table       string
	HistoryFile string
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Translate queries interactively",
		Long: `Read JSON query documents line by line and print the SQL and
parameters they translate to. Type .help for commands.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema file (.yaml, .json or .cue)")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "docs", "document table name")
	cmd.Flags().StringVar(&opts.HistoryFile, "history", "", "readline history file")

	return cmd
}

const replHelp = `Enter a JSON query document, e.g. {"status": "active"}.
Commands:
  .options <json>  set sort/limit/skip/after/before for later queries
  .options         clear options
  .table <name>    switch table
  .count           toggle COUNT(*) mode
  .schema          list declared fields
  .help            this text
  .quit            leave`

var replCompleter = readline.NewPrefixCompleter(
	readline.PcItem(".options"),
	readline.PcItem(".table"),
	readline.PcItem(".count"),
	readline.PcItem(".schema"),
	readline.PcItem(".help"),
	readline.PcItem(".quit"),
)

func runRepl(opts *ReplOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sch, err := LoadSchema(opts.Schema)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "docql> ",
		HistoryFile:     opts.HistoryFile,
		AutoComplete:    replCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to initialize readline: %v", err), nil)
	}
	defer rl.Close()

	session := NewSession(sch, opts.Table)
	fmt.Fprintln(formatter.Writer, colorDim("Type .help for commands."))
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		out, quit, err := session.Eval(line)
		if err != nil {
			fmt.Fprintf(formatter.Writer, "%s %v\n", colorErr("✗"), err)
			continue
		}
		if out != "" {
			fmt.Fprintln(formatter.Writer, out)
		}
		if quit {
			return nil
		}
	}
}

// Session is the state of one REPL: schema, table, sticky options and
// count mode. Eval handles one input line.
type Session struct {
	tr    *querysql.Translator
	sch   *schema.Schema
	table string
	opts  query.Options
	count bool
}

// NewSession returns a session translating against table.
func NewSession(sch *schema.Schema, table string) *Session {
	return &Session{tr: querysql.NewTranslator(sch), sch: sch, table: table}
}

// Eval runs one line. quit reports that the session should end.
func (s *Session) Eval(line string) (out string, quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, nil
	}
	if strings.HasPrefix(line, ".") {
		return s.command(line)
	}

	q, err := query.ParseJSON([]byte(line))
	if err != nil {
		return "", false, err
	}
	var st querysql.Statement
	if s.count {
		st, err = s.tr.Count(s.table, q)
	} else {
		st, err = s.tr.Select(s.table, q, s.opts)
	}
	if err != nil {
		return "", false, err
	}
	params, err := value.MarshalPlain(st.Params)
	if err != nil {
		return "", false, err
	}
	return st.SQL + "\n" + colorDim("params: ") + string(params), false, nil
}

func (s *Session) command(line string) (string, bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ".quit", ".exit":
		return "", true, nil
	case ".help":
		return replHelp, false, nil
	case ".options":
		if arg == "" {
			s.opts = query.Options{}
			return "options cleared", false, nil
		}
		opts, err := query.ParseOptionsJSON([]byte(arg))
		if err != nil {
			return "", false, err
		}
		s.opts = opts
		return "options set", false, nil
	case ".table":
		if err := schema.ValidateTableName(arg); err != nil {
			return "", false, err
		}
		s.table = arg
		return "table " + arg, false, nil
	case ".count":
		s.count = !s.count
		if s.count {
			return "count mode on", false, nil
		}
		return "count mode off", false, nil
	case ".schema":
		var b strings.Builder
		renderFields(&b, fieldEntries(s.sch))
		return strings.TrimRight(b.String(), "\n"), false, nil
	}
	return "", false, fmt.Errorf("unknown command %s (try .help)", name)
}
