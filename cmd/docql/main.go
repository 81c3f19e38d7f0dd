// Command docql compiles document queries to SQLite SQL and runs them.
package main

import (
	"os"

	"github.com/roach88/docql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
