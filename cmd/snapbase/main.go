// Command snapbase is the thin CLI entry point described by spec §1 as
// explicitly out of core scope: it wires pkg/workspace's three operations
// (create a snapshot, diff two snapshots, query a source's history) behind
// cobra subcommands, following the pack's cmd/ convention of a minimal
// main() that hands off to an internal/cli package.
package main

import (
	"os"

	"github.com/peter-fm/snapbase/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
