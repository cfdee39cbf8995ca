// Command graphcache runs operations against a normalized GraphQL cache,
// replays scenarios and inspects dispatch journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/graphcache/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
