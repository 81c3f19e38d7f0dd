package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/docql/internal/schema"
)

// DDL output kinds.
const (
	EmitSQL   = "sql"
	EmitDBML  = "dbml"
	EmitTable = "table"
)

// DDLOptions holds flags for the ddl command.
type DDLOptions struct {
	*RootOptions
	Schema string
	Table  string
	Emit   string
}

// DDLResult is the JSON payload of the ddl command.
type DDLResult struct {
	Table      string       `json:"table"`
	Statements []string     `json:"statements,omitempty"`
	DBML       string       `json:"dbml,omitempty"`
	Fields     []FieldEntry `json:"fields,omitempty"`
}

// FieldEntry describes one declared field.
type FieldEntry struct {
	Name     string `json:"name"`
	Column   string `json:"column,omitempty"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Indexed  bool   `json:"indexed"`
	Unique   bool   `json:"unique"`
	Nullable bool   `json:"nullable"`
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DDLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the table definition for a schema",
		Long: `Print the CREATE TABLE and CREATE INDEX statements that materialise a
schema, its DBML description, or a table of its declared fields.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema file (.yaml, .json or .cue)")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "docs", "document table name")
	cmd.Flags().StringVar(&opts.Emit, "emit", EmitSQL, "what to print (sql|dbml|table)")

	return cmd
}

func runDDL(opts *DDLOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sch, err := LoadSchema(opts.Schema)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}

	res := DDLResult{Table: opts.Table}
	switch opts.Emit {
	case EmitSQL:
		stmts, err := sch.DDL(opts.Table)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
		}
		res.Statements = stmts
		if formatter.Format != "json" {
			fmt.Fprint(formatter.Writer, schema.Script(stmts))
			return nil
		}
	case EmitDBML:
		project, err := sch.DBML(opts.Table)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
		}
		res.DBML = project.Generate()
		if formatter.Format != "json" {
			fmt.Fprintln(formatter.Writer, res.DBML)
			return nil
		}
	case EmitTable:
		if err := schema.ValidateTableName(opts.Table); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
		}
		res.Fields = fieldEntries(sch)
		if formatter.Format != "json" {
			renderFields(formatter.Writer, res.Fields)
			return nil
		}
	default:
		return formatter.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("invalid --emit %q: must be sql, dbml or table", opts.Emit), nil)
	}
	return formatter.Success(res)
}

func fieldEntries(sch *schema.Schema) []FieldEntry {
	fields := sch.Fields()
	out := make([]FieldEntry, len(fields))
	for i, f := range fields {
		out[i] = FieldEntry{
			Name:     f.Name,
			Path:     f.Path,
			Type:     string(f.Type),
			Indexed:  f.Indexed,
			Unique:   f.Unique,
			Nullable: f.Nullable,
		}
		if f.Indexed {
			out[i].Column = schema.Column(f.Name)
		}
	}
	return out
}

func renderFields(w io.Writer, fields []FieldEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Column", "Path", "Type", "Indexed", "Unique", "Nullable"})
	for _, f := range fields {
		table.Append([]string{
			f.Name, f.Column, f.Path, f.Type,
			strconv.FormatBool(f.Indexed), strconv.FormatBool(f.Unique), strconv.FormatBool(f.Nullable),
		})
	}
	table.Render()
}
