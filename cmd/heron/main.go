// Heron - Outpatient claim adjudication that deploys in 60 seconds.
// Copyright (c) 2025 opensource.health
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-health/heron/internal/api"
	"github.com/opensource-health/heron/internal/bus"
	"github.com/opensource-health/heron/internal/cache"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/extract"
	"github.com/opensource-health/heron/internal/fraud"
	"github.com/opensource-health/heron/internal/history"
	"github.com/opensource-health/heron/internal/pipeline"
	"github.com/opensource-health/heron/internal/policy"
	"github.com/opensource-health/heron/internal/repository"
	"github.com/opensource-health/heron/internal/worker"
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
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
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

	// Initialize Policy Service and seed default terms
	policySvc := policy.NewService(repo, cacheImpl, logger)
	if err := policySvc.Seed(ctx); err != nil {
		slog.Error("failed to seed policy terms", "error", err)
		os.Exit(1)
	}
	slog.Info("policy service initialized")

	// Initialize Fraud Engine: built-in rules plus stored rules
	engine, err := fraud.NewEngine(
		cfg.Adjudication.MaxFraudWorkers,
		cfg.Adjudication.ReviewScoreThreshold,
		cfg.Adjudication.ReviewFlagCount,
	)
	if err != nil {
		slog.Error("failed to initialize fraud engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadFraudRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load fraud rules", "error", err)
		os.Exit(1)
	}
	slog.Info("fraud engine initialized", "rules_count", engine.RulesCount())

	// Initialize Adjudication Pipeline
	adjudicator := pipeline.New(
		repo,
		policySvc,
		extract.NewDocumentExtractor(logger),
		engine,
		history.NewService(repo, logger),
		busImpl,
		cfg.Adjudication,
		logger,
	)
	slog.Info("adjudication pipeline initialized")

	// Initialize async appeal Worker (Pro tier)
	var appealWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		appealWorker = worker.NewWorker(busImpl, repo, adjudicator, cfg.Adjudication)

		var tenantIDs []string
		if envTenants := os.Getenv("HERON_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		if err := appealWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start appeal worker", "error", err)
		} else {
			slog.Info("appeal worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, adjudicator, repo, cacheImpl, policySvc, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop appeal worker first
	if appealWorker != nil {
		if err := appealWorker.Stop(); err != nil {
			slog.Error("failed to stop appeal worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// loadFraudRules loads the built-in ruleset plus any rules stored in the
// database. Stored rules are added via POST /fraud/rules.
func loadFraudRules(ctx context.Context, repo domain.Repository, engine *fraud.Engine) error {
	ruleset := fraud.BuiltinRules()

	stored, err := repo.ListFraudRules(ctx, domain.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list fraud rules from database", "error", err)
	} else if len(stored) > 0 {
		slog.Info("loading stored fraud rules", "count", len(stored))
		ruleset = append(ruleset, stored...)
	}

	return engine.LoadRules(ruleset)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║      Claim Adjudication Engine            ║")
	fmt.Println("  ║      Every claim, decided fairly.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims                  - Submit a claim for adjudication")
	fmt.Println("    GET  /claims/{id}             - Get claim by ID")
	fmt.Println("    GET  /claims?memberId=        - List claims")
	fmt.Println("    POST /claims/{id}/appeal      - Appeal a rejected/partial claim")
	fmt.Println("    GET  /appeals/{id}            - Get appeal by ID")
	fmt.Println("    GET  /policy/terms            - Policy terms")
	fmt.Println("    PUT  /policy/terms            - Update tenant policy terms")
	fmt.Println("    GET  /policy/network-hospitals- Cashless network list")
	fmt.Println("    GET  /fraud/rules             - List fraud rules")
	fmt.Println("    POST /fraud/rules             - Create a fraud rule")
	fmt.Println("    POST /fraud/rules/reload      - Hot-reload fraud rules")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
