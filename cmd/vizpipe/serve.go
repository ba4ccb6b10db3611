package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vizpipe/vizpipe"
	"github.com/vizpipe/vizpipe/internal/cli"
	httpAdapter "github.com/vizpipe/vizpipe/pkg/adapters/http"
	redisAdapter "github.com/vizpipe/vizpipe/pkg/adapters/redis"
	"github.com/vizpipe/vizpipe/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP composition server",
	Long:  `Starts the composer in server mode, exposing compose/validate/functions over a JSON API with Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		port, _ := cmd.Flags().GetString("port")
		logLevel, _ := cmd.Flags().GetString("log-level")

		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if port != "" {
			cfg.Addr = ":" + port
		}

		logger := cli.NewLogger(logLevel)

		// Fail fast on a broken embedded OpenAPI document.
		if _, err := httpAdapter.LoadSpec(cmd.Context()); err != nil {
			fmt.Printf("Error loading OpenAPI spec: %v\n", err)
			os.Exit(1)
		}

		promRegistry := prometheus.NewRegistry()
		opts := []vizpipe.Option{
			vizpipe.WithLogger(logger),
			vizpipe.WithMetrics(observability.NewMetrics(promRegistry)),
		}

		if cfg.Redis.Addr != "" {
			cache := redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				redisAdapter.WithTTL(time.Duration(cfg.Redis.TTL)))
			defer cache.Close()
			opts = append(opts, vizpipe.WithCache(cache))
		}

		engine := vizpipe.New(opts...)
		handler := httpAdapter.NewHandler(engine, logger, promRegistry)

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting vizpipe server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("vizpipe server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides config)")
	serveCmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
}
