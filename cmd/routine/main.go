// Command routine runs, traces and replays declarative async operations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/routine/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
