// Shrike - Subscriber fraud scoring for GSM networks.
// Copyright (c) 2025 opensource.telco
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

	"github.com/opensource-telco/shrike/internal/api"
	"github.com/opensource-telco/shrike/internal/bus"
	"github.com/opensource-telco/shrike/internal/cache"
	"github.com/opensource-telco/shrike/internal/domain"
	"github.com/opensource-telco/shrike/internal/model"
	"github.com/opensource-telco/shrike/internal/pipeline"
	"github.com/opensource-telco/shrike/internal/rules"
	"github.com/opensource-telco/shrike/internal/store"
	"github.com/opensource-telco/shrike/internal/transform"
	"github.com/opensource-telco/shrike/internal/worker"
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
	if os.Getenv("SHRIKE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting shrike",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("SHRIKE_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if path := os.Getenv("SHRIKE_ARTIFACT"); path != "" {
		cfg.Artifact.Path = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Driver,
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

	// Load model artifact
	artifact, err := loadArtifact(cfg.Artifact)
	if err != nil {
		slog.Error("failed to load model artifact", "error", err)
		os.Exit(1)
	}
	net, err := artifact.Network()
	if err != nil {
		slog.Error("failed to build inference network", "error", err)
		os.Exit(1)
	}
	slog.Info("model loaded",
		"version", artifact.Version,
		"features", artifact.Transform.Dim(),
		"locations", len(artifact.Transform.Locations),
	)

	// Initialize Store
	resultStore, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer resultStore.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

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

	// Initialize Review Rule Engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load review rules from store (no hardcoded defaults - configure via API)
	if err := loadRulesFromStore(ctx, resultStore, engine); err != nil {
		slog.Error("failed to load review rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize Scoring Pipeline
	scorer, err := pipeline.New(&artifact.Transform, net, resultStore, cacheImpl, busImpl)
	if err != nil {
		slog.Error("failed to initialize scoring pipeline", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring pipeline initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("SHRIKE_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, scorer)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, scorer, resultStore, cacheImpl, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shrike is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("shrike shutdown complete")
}

// loadArtifact reads the trained artifact from disk, or falls back to
// the deterministic demo artifact when no path is configured.
func loadArtifact(cfg domain.ArtifactConfig) (*model.Artifact, error) {
	if cfg.Path != "" {
		return model.Load(cfg.Path)
	}

	slog.Warn("no model artifact configured - starting with demo model; set SHRIKE_ARTIFACT for production use")
	return model.Demo(demoFitted()), nil
}

// demoFitted is the transform used by the demo artifact: identity
// scaling over the numeric features and a small location vocabulary.
func demoFitted() transform.Fitted {
	return transform.Fitted{
		Means:         []float64{0, 0, 0, 0},
		Stddevs:       []float64{1, 1, 1, 1},
		Locations:     []string{"rural", "suburban", "urban"},
		ReferenceDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// loadRulesFromStore loads review rules from the store into the engine.
// All rules must be configured via POST /review-rules - no hardcoded defaults.
func loadRulesFromStore(ctx context.Context, resultStore domain.ResultStore, engine *rules.Engine) error {
	stored, err := resultStore.ListReviewRules(ctx)
	if err != nil {
		slog.Warn("failed to list review rules from store", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(stored) > 0 {
		slog.Info("loading review rules from store", "count", len(stored))
		return engine.LoadRules(stored)
	}

	slog.Info("no review rules in store - configure via POST /review-rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔════════════════════════════════════════════╗")
	fmt.Println("  ║                🗡  SHRIKE                   ║")
	fmt.Println("  ║      GSM Subscriber Fraud Scoring          ║")
	fmt.Println("  ║       Every subscriber, scored.            ║")
	fmt.Println("  ╚════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                - Score a subscriber batch")
	fmt.Println("    POST /score/async          - Queue a batch for async scoring")
	fmt.Println("    GET  /results              - List result summaries")
	fmt.Println("    GET  /results/{id}         - Get a result by ID")
	fmt.Println("    DELETE /results/{id}       - Delete a result")
	fmt.Println("    GET  /results/{id}/flags   - Review-rule flags for a result")
	fmt.Println("    GET  /review-rules         - List review rules")
	fmt.Println("    POST /review-rules         - Create a review rule")
	fmt.Println("    DELETE /review-rules/{id}  - Delete a review rule")
	fmt.Println("    POST /review-rules/reload  - Hot-reload rules from store")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
