package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of vizpipe",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vizpipe version %s\n", strings.TrimSpace(vizpipe.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
