package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe/internal/cli"
	"github.com/vizpipe/vizpipe/pkg/ast"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [expression.txt]",
	Short: "Rewrite an expression in canonical form",
	Long:  `Parses a textual expression (from the given file or stdin) and prints it back in canonical form: normalized whitespace, deterministic argument order, minimal quoting.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		data, err := cli.ReadInput(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		expr, err := ast.Parse(strings.TrimSpace(string(data)))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(expr.String())
	},
}

func init() {
	rootCmd.AddCommand(fmtCmd)
}
