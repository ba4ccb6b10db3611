package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe/internal/cli"
	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate [expression.txt]",
	Short: "Check an expression against the function registry",
	Long:  `Parses a textual expression (from the given file or stdin) and validates every known function call: unknown arguments, missing required arguments and type mismatches are reported. With --strict, calls to unknown functions fail too.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		if err := runValidate(cmd, path); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Expression is valid.")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Reject calls to unknown functions")
}

func runValidate(cmd *cobra.Command, path string) error {
	data, err := cli.ReadInput(path)
	if err != nil {
		return err
	}

	expr, err := ast.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return err
	}

	reg := registry.New()
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		return reg.ValidateStrict(expr)
	}
	return reg.Validate(expr)
}
