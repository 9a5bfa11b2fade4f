// Kestrel - Customer lifecycle intelligence from raw transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Validate the pipeline defaults before accepting any run
	if err := cfg.Pipeline.Validate(); err != nil {
		slog.Error("invalid pipeline configuration", "error", err)
		os.Exit(1)
	}

	// Optional bootstrap import of a transaction CSV
	if csvPath := os.Getenv("KESTREL_IMPORT_CSV"); csvPath != "" {
		if err := importCSV(ctx, repo, csvPath); err != nil {
			slog.Error("failed to import transactions", "path", csvPath, "error", err)
			os.Exit(1)
		}
	}

	// Initialize async run Worker
	runWorker := worker.NewWorker(busImpl, repo, cacheImpl, cfg.Pipeline)
	if err := runWorker.Start(); err != nil {
		slog.Error("failed to start run worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, cfg.Pipeline, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop run worker first
	if err := runWorker.Stop(); err != nil {
		slog.Error("failed to stop run worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides adjusts the default config from environment variables.
func applyEnvOverrides(cfg *domain.Config) {
	if driver := os.Getenv("KESTREL_DB_DRIVER"); driver != "" {
		cfg.Repository.Driver = driver
	}
	if path := os.Getenv("KESTREL_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if host := os.Getenv("KESTREL_PG_HOST"); host != "" {
		cfg.Repository.PostgresHost = host
	}
	if user := os.Getenv("KESTREL_PG_USER"); user != "" {
		cfg.Repository.PostgresUser = user
	}
	if pass := os.Getenv("KESTREL_PG_PASSWORD"); pass != "" {
		cfg.Repository.PostgresPassword = pass
	}
	if db := os.Getenv("KESTREL_PG_DB"); db != "" {
		cfg.Repository.PostgresDB = db
	}
	if cacheType := os.Getenv("KESTREL_CACHE"); cacheType != "" {
		cfg.Cache.Type = cacheType
	}
	if addr := os.Getenv("KESTREL_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if busType := os.Getenv("KESTREL_BUS"); busType != "" {
		cfg.EventBus.Type = busType
	}
	if natsURL := os.Getenv("KESTREL_NATS_URL"); natsURL != "" {
		cfg.EventBus.NATSUrl = natsURL
	}
}

// importCSV loads a transaction export into the repository at startup.
func importCSV(ctx context.Context, repo domain.Repository, path string) error {
	start := time.Now()

	txs, err := ingest.LoadCSV(path)
	if err != nil {
		return err
	}

	summary, err := ingest.Validate(txs)
	if err != nil {
		return err
	}

	if err := repo.SaveTransactions(ctx, txs); err != nil {
		return err
	}

	slog.Info("transactions imported",
		"path", path,
		"rows", summary.RowCount,
		"customers", summary.CustomerCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  KESTREL - Customer Lifecycle Intelligence")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /transactions                    - Ingest a transaction batch")
	fmt.Println("    GET    /transactions/{id}               - Get transaction by ID")
	fmt.Println("    POST   /runs                            - Execute a pipeline run")
	fmt.Println("    GET    /runs                            - List runs")
	fmt.Println("    GET    /runs/{id}                       - Get run summary")
	fmt.Println("    GET    /runs/{id}/features              - Per-customer features")
	fmt.Println("    GET    /runs/{id}/segments              - Segment assignments")
	fmt.Println("    GET    /runs/{id}/risk                  - Risk scores")
	fmt.Println("    GET    /runs/{id}/decisions             - Actions, ROI, explanations")
	fmt.Println("    GET    /runs/{id}/customers/{customer}  - Customer drilldown")
	fmt.Println("    DELETE /runs/{id}                       - Delete a run")
	fmt.Println("    GET    /health                          - Health check")
	fmt.Println()
}
