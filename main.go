// sharefold - command-line client for sharefold file servers.
//
// Run "sharefold shell" to browse interactively or call the subcommands
// (login, ls, upload, download, ...) from scripts. The session is kept
// between invocations until logout.
package main

import (
	"fmt"
	"os"

	"github.com/sharefold/sharefold/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
