package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/board"
	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/logging"
	httpAdapter "github.com/aretw0/kiln/pkg/adapters/http"
	"github.com/aretw0/kiln/pkg/observability"
	"github.com/aretw0/kiln/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the message board demo over HTTP",
	Long:  `Starts an HTTP server driving one kiln per request through the built-in message board graph, with Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if addr != "" {
			cfg.Addr = addr
		}

		level, err := cfg.SlogLevel()
		if err != nil {
			fmt.Printf("Error in config: %v\n", err)
			os.Exit(1)
		}
		logger := logging.New(level)

		reg := registry.New(registry.WithLogger(logger))
		board.Register(reg, logger)
		if err := reg.Validate(); err != nil {
			fmt.Printf("Invalid graph: %v\n", err)
			os.Exit(1)
		}

		engineOpts := []kiln.Option{
			kiln.WithLogger(logger),
			kiln.WithName("board"),
		}
		promRegistry := prometheus.NewRegistry()
		if cfg.Metrics {
			metrics := observability.NewMetrics(promRegistry)
			engineOpts = append(engineOpts, kiln.WithLifecycleHooks(metrics.Hooks()))
		}

		engine, err := kiln.New(reg, engineOpts...)
		if err != nil {
			fmt.Printf("Error initializing kiln: %v\n", err)
			os.Exit(1)
		}

		routes := []httpAdapter.Route{
			{Method: http.MethodGet, Pattern: "/messages", Node: board.NodeMessages},
			{Method: http.MethodPost, Pattern: "/messages", Node: board.NodePost},
		}

		mux := chi.NewRouter()
		mux.Mount("/", httpAdapter.NewHandler(engine, routes, httpAdapter.WithLogger(logger)))
		if cfg.Metrics {
			mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
		}

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: mux,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Kiln Board Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		case sig := <-shutdown:
			fmt.Printf("Shutting down (%v)...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				fmt.Printf("Forced shutdown: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
