package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe/internal/cli"
	"github.com/vizpipe/vizpipe/pkg/registry"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the expression functions known to the registry",
	Run: func(cmd *cobra.Command, args []string) {
		reg := registry.New()
		if docs, _ := cmd.Flags().GetBool("docs"); docs {
			fmt.Print(cli.RenderMarkdown(reg.Markdown()))
			return
		}
		for _, name := range reg.Names() {
			def, _ := reg.Lookup(name)
			if def.Help != "" {
				fmt.Printf("%-16s %s\n", def.Name, def.Help)
			} else {
				fmt.Println(def.Name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
	functionsCmd.Flags().Bool("docs", false, "Render the full markdown reference")
}
