package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/docql/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string

	// Config is loaded in PersistentPreRunE; command flags override it.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Default()}

	cmd := &cobra.Command{
		Use:   "docql",
		Short: "docql - typed document queries for SQLite",
		Long: `Compile Mongo-style document queries into parameterized SQLite SQL
over JSON document tables, and run them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Subcommands silence cobra's error printing, so report here.
			if !isValidFormat(opts.Format) {
				err := fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				cmd.PrintErrln("Error:", err)
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}
			cfg, err := config.Load(opts.EnvFile)
			if err != nil {
				cmd.PrintErrln("Error:", err)
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			opts.Config = cfg
			opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file (default .env)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewDDLCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))

	return cmd
}

// newLogger writes text logs to w. --verbose lowers the level to debug.
func newLogger(w io.Writer, level slog.Level, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// logger returns the configured logger, or a discarding one when a
// subcommand runs without the root (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
