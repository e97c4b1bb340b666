// Command formatbridge is the CLI demo and postinstall smoke-test
// entrypoint for the formatter bridge: flags bound directly to package
// vars, one rootCmd, subcommands registered in init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "formatbridge",
	Short: "formatbridge supervises a code-formatter host process over a framed stdio protocol",
	Long: `formatbridge is a client for a long-running code-formatter host process.
It speaks a Content-Length framed JSON protocol over the host's stdio,
handles the handshake, restarts the host on crash, and enforces a memory
budget on the host's working set.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(pingCmd)
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
