// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/mendhq/mend/cmd/mend/config"
	"github.com/mendhq/mend/pkg/logging"
	"github.com/mendhq/mend/services/healing"
	"github.com/mendhq/mend/services/healing/execute"
	"github.com/mendhq/mend/services/healing/generate"
	"github.com/mendhq/mend/services/healing/history"
	"github.com/mendhq/mend/services/healing/repo"
)

var (
	servePort     int
	serveWatch    string
	serveAutoHeal bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the healing API server",
	Long: `Start the healing API server.

The server persists tests and execution histories in a local badger
database, exposes the healing API under /v1/healing, and serves
Prometheus metrics on /metrics. When a watch root is configured it
also watches Java sources and runs impact analysis on changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port (overrides config)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "",
		"Java source root to watch (overrides config)")
	serveCmd.Flags().BoolVar(&serveAutoHeal, "auto-heal", false,
		"Heal broken tests automatically after watched changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Global

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "healing",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	logger.SetAsDefault()

	exporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("failed to create the metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	defer provider.Shutdown(context.Background())

	dataDir := config.ExpandPath(cfg.Storage.DataDir)
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create the data directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("failed to open the database at %s: %w", dataDir, err)
	}
	defer db.Close()

	svc, err := buildService(db, cfg)
	if err != nil {
		return err
	}

	watchRoot := cfg.Watcher.Root
	if serveWatch != "" {
		watchRoot = serveWatch
	}
	if watchRoot != "" {
		opts := healing.DefaultWatcherOptions()
		opts.AutoHeal = cfg.Watcher.AutoHeal || serveAutoHeal
		if cfg.Watcher.DebounceMillis > 0 {
			opts.DebounceWindow = time.Duration(cfg.Watcher.DebounceMillis) * time.Millisecond
		}
		watcher, err := healing.NewSourceWatcher(svc, config.ExpandPath(watchRoot), opts)
		if err != nil {
			return fmt.Errorf("failed to create the source watcher: %w", err)
		}
		if err := watcher.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start the source watcher: %w", err)
		}
		defer watcher.Stop()
		logger.Info("watching sources", "root", watchRoot, "auto_heal", opts.AutoHeal)
	}

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1 := router.Group("/v1")
	healing.RegisterRoutes(v1, healing.NewHandlers(svc))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildService(db *badger.DB, cfg config.MendConfig) (*healing.Service, error) {
	repository, err := repo.NewBadgerRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create the test repository: %w", err)
	}
	store, err := history.NewBadgerStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create the history store: %w", err)
	}

	generator, err := generate.NewOpenAIClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create the generation client: %w", err)
	}

	timeout := time.Duration(cfg.Runner.TimeoutSeconds) * time.Second
	runner, err := execute.NewHTTPRunner(cfg.Runner.URL, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create the execution runner: %w", err)
	}

	svcCfg := healing.DefaultServiceConfig()
	if cfg.Healing.MaxConcurrentHeals > 0 {
		svcCfg.MaxConcurrentHeals = cfg.Healing.MaxConcurrentHeals
	}
	if cfg.Healing.ExecutionTimeoutSeconds > 0 {
		svcCfg.ExecutionTimeout = time.Duration(cfg.Healing.ExecutionTimeoutSeconds) * time.Second
	}
	if cfg.Healing.HistoryWindowSize > 0 {
		svcCfg.HistoryWindowSize = cfg.Healing.HistoryWindowSize
	}

	return healing.NewService(repository, store, generator, runner, svcCfg)
}
