package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loom/formatbridge/internal/client"
	"github.com/loom/formatbridge/internal/config"
	"github.com/loom/formatbridge/internal/protocol"
)

var (
	flagPrintWidth int
	flagTabWidth   int
	flagUseTabs    bool
	flagEndOfLine  string
	flagVerbose    bool
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format source text read from stdin and print the result to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		c := client.New(config.FromEnv())
		defer c.Close()

		opts := protocol.FormattingOptions{
			PrintWidth: flagPrintWidth,
			TabWidth:   flagTabWidth,
			UseTabs:    flagUseTabs,
			EndOfLine:  flagEndOfLine,
		}
		formatted, err := c.Format(string(input), opts, nil)
		if err != nil {
			return err
		}

		if flagVerbose && formatted != string(input) {
			fmt.Fprintln(os.Stderr, client.Diff(string(input), formatted))
		}
		fmt.Print(formatted)
		return nil
	},
}

func init() {
	formatCmd.Flags().IntVar(&flagPrintWidth, "print-width", 80, "preferred line width")
	formatCmd.Flags().IntVar(&flagTabWidth, "tab-width", 4, "indentation width")
	formatCmd.Flags().BoolVar(&flagUseTabs, "use-tabs", false, "indent with tabs instead of spaces")
	formatCmd.Flags().StringVar(&flagEndOfLine, "end-of-line", "lf", "line ending style: lf or crlf")
	formatCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "print a diff of the changes to stderr")
}
