/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the electricity billing service. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load YAML config
  2. Initialize SQLite store
  3. Build Amber client; discover sites if none configured
  4. Start the background refresher
  5. Start HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresher, close the database
  4. Exit

EXAMPLES:
  # Run with the default config path
  ./server

  # Explicit config
  ./server --config ./config.yaml

SEE ALSO:
  - config/config.go: Configuration shape and defaults
  - api/server.go: Router configuration
  - api/refresher.go: Background refresh loop
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wattle/billing-engine/amber"
	"github.com/wattle/billing-engine/api"
	"github.com/wattle/billing-engine/config"
	"github.com/wattle/billing-engine/metrics"
	"github.com/wattle/billing-engine/store/sqlite"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Electricity billing balance service",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "./config.yaml",
		"Path to the YAML configuration file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	metrics.Init()

	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer st.Close()

	client := amber.NewClient(cfg.Amber.Token, cfg.Amber.BaseURL, logger)

	// No sites configured: ask the API which ones the token can see.
	siteIDs := cfg.Amber.Sites
	if len(siteIDs) == 0 {
		sites, err := client.ListSites(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to discover sites: %w", err)
		}
		for _, s := range sites {
			siteIDs = append(siteIDs, s.ID)
		}
		logger.Info().Int("count", len(siteIDs)).Msg("discovered sites")
	}
	if len(siteIDs) == 0 {
		return fmt.Errorf("no sites configured and none visible to the token")
	}

	refresher := api.NewRefresher(st, client, siteIDs, cfg.DefaultSettings(), cfg.Location(), logger)
	refresher.Interval = time.Duration(cfg.Refresh.Interval)
	refresher.Start()
	defer refresher.Stop()

	handler := api.NewHandler(st, client, refresher, cfg.DefaultSettings(), logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}
