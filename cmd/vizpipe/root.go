package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vizpipe",
	Short: "vizpipe composes expression pipelines for visualization engines",
	Long:  `vizpipe splices visualization and datasource expression chains into one executable pipeline, validates it against a function registry, and serves the composition over HTTP or MCP.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); silent when unset")
}
