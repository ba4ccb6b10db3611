package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe"
	"github.com/vizpipe/vizpipe/internal/cli"
	"github.com/vizpipe/vizpipe/pkg/adapters/memory"
	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/compose"
)

var composeCmd = &cobra.Command{
	Use:   "compose [definition.yaml]",
	Short: "Compose the expression for a pipeline definition",
	Long:  `Reads a YAML pipeline definition (from the given file or stdin), composes the full expression and prints it in canonical textual form, or as engine wire JSON with --json.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		if err := runCompose(cmd, path); err != nil {
			fmt.Fprintf(os.Stderr, "compose failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(composeCmd)
	composeCmd.Flags().Bool("json", false, "Print the engine wire JSON instead of the textual form")
	composeCmd.Flags().String("time-from", "", "Context time range start (e.g. now-15m)")
	composeCmd.Flags().String("time-to", "", "Context time range end (e.g. now)")
	composeCmd.Flags().String("query", "", "Context query string")
	composeCmd.Flags().String("query-language", "kuery", "Context query language")
	composeCmd.Flags().String("filters", "", "Context filters as a JSON array")
}

func runCompose(cmd *cobra.Command, path string) error {
	data, err := cli.ReadInput(path)
	if err != nil {
		return err
	}
	def, err := memory.Load(bytes.NewReader(data))
	if err != nil {
		return err
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	eng := vizpipe.New(vizpipe.WithLogger(cli.NewLogger(logLevel)))

	params, hasParams, err := contextParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var expr *ast.Expression
	if hasParams {
		expr, err = eng.ComposeWithContext(ctx, def.BuildRequest(), params)
	} else {
		expr, err = eng.Compose(ctx, def.BuildRequest())
	}
	if err != nil {
		return err
	}
	if expr == nil {
		return fmt.Errorf("definition produced no expression (missing visualization expression or no layer contributed)")
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		out, err := json.MarshalIndent(expr, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(expr.String())
	return nil
}

func contextParams(cmd *cobra.Command) (compose.ContextParams, bool, error) {
	var params compose.ContextParams
	has := false

	from, _ := cmd.Flags().GetString("time-from")
	to, _ := cmd.Flags().GetString("time-to")
	if from != "" || to != "" {
		params.TimeRange = &compose.TimeRange{From: from, To: to}
		has = true
	}

	query, _ := cmd.Flags().GetString("query")
	if query != "" {
		language, _ := cmd.Flags().GetString("query-language")
		params.Query = &compose.Query{Language: language, Query: query}
		has = true
	}

	filtersJSON, _ := cmd.Flags().GetString("filters")
	if filtersJSON != "" {
		if err := json.Unmarshal([]byte(filtersJSON), &params.Filters); err != nil {
			return params, false, fmt.Errorf("bad --filters: %w", err)
		}
		has = true
	}

	return params, has, nil
}
