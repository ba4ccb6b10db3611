package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe"
	"github.com/vizpipe/vizpipe/internal/cli"
	mcpAdapter "github.com/vizpipe/vizpipe/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the composer as an MCP Server.
This allows AI agents to compose and validate expression pipelines as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		logLevel, _ := cmd.Flags().GetString("log-level")

		logger := cli.NewLogger(logLevel)
		slog.SetDefault(logger)

		engine := vizpipe.New(vizpipe.WithLogger(logger))
		srv := mcpAdapter.NewServer(engine)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			slog.Info("Starting vizpipe MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				slog.Error("MCP server execution failed", "error", err)
				os.Exit(1)
			}
		case "sse":
			slog.Info("Starting vizpipe MCP server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil {
				if err != http.ErrServerClosed {
					slog.Error("MCP server execution failed", "error", err)
					os.Exit(1)
				}
			}
			slog.Info("MCP server stopped gracefully")
		default:
			log.Fatalf("Unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
