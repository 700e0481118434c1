// Orbit - Mission lifecycle and success prediction for space exploration games.
// Copyright (c) 2025 missionctl
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/missionctl/orbit/internal/api"
	"github.com/missionctl/orbit/internal/bus"
	"github.com/missionctl/orbit/internal/cache"
	"github.com/missionctl/orbit/internal/catalog"
	"github.com/missionctl/orbit/internal/config"
	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
	"github.com/missionctl/orbit/internal/mission"
	"github.com/missionctl/orbit/internal/model"
	"github.com/missionctl/orbit/internal/predictor"
	"github.com/missionctl/orbit/internal/preset"
	"github.com/missionctl/orbit/internal/ranges"
	"github.com/missionctl/orbit/internal/repository"
	"github.com/missionctl/orbit/internal/telemetry"
	"github.com/missionctl/orbit/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting orbit",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"threshold", cfg.Prediction.Threshold,
		"clamp_inputs", cfg.Prediction.ClampInputs,
		"time_unit", cfg.Mission.TimeUnit.String(),
	)

	// Tracing exports only when an endpoint is configured
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint != "" {
		slog.Info("tracing initialized",
			"service_name", cfg.Tracing.ServiceName,
			"endpoint", cfg.Tracing.Endpoint,
		)
	}

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

	metricsMgr := metrics.NewManager()

	// Feature ranges and model both fail soft
	table := ranges.Load(cfg.Ranges.Path)
	slog.Info("feature ranges initialized", "path", cfg.Ranges.Path, "count", table.Len())

	successModel := model.Load(cfg.Model.Path)
	slog.Info("model initialized", "path", cfg.Model.Path, "loaded", successModel.Loaded())

	pred := predictor.New(successModel, table, cfg.Prediction,
		predictor.WithCache(cacheImpl),
		predictor.WithMetrics(metricsMgr),
	)
	presets := preset.NewGenerator(table, cfg.Preset, metricsMgr)

	// Seed catalog and default user
	cat, err := catalog.Seed(ctx, repo, catalog.DefaultDefinitions)
	if err != nil {
		slog.Error("failed to seed mission catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("mission catalog initialized", "missions", cat.Len())

	missions := mission.NewService(repo, cat, mission.NewPredictiveResolver(pred),
		mission.WithBus(busImpl),
		mission.WithMetrics(metricsMgr),
		mission.WithTimeUnit(cfg.Mission.TimeUnit),
	)
	if cfg.Mission.DefaultUser != "" {
		if _, err := missions.EnsureUser(ctx, cfg.Mission.DefaultUser, cfg.Mission.DefaultFunds); err != nil {
			slog.Error("failed to create default user", "error", err)
			os.Exit(1)
		}
	}

	// Journal worker
	journal := worker.NewWorker(busImpl, repo, metricsMgr)
	if err := journal.Start(worker.Config{}); err != nil {
		slog.Error("failed to start journal worker", "error", err)
	}

	// Initialize Server
	srv := api.NewServer(api.Dependencies{
		Config:    cfg.Server,
		Repo:      repo,
		Cache:     cacheImpl,
		Bus:       busImpl,
		Missions:  missions,
		Predictor: pred,
		Presets:   presets,
		Metrics:   metricsMgr,
	}, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("orbit is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop the worker after the server so in-flight requests still publish
	if err := journal.Stop(); err != nil {
		slog.Error("failed to stop journal worker", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}

	slog.Info("orbit shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==========================================")
	fmt.Println("                   ORBIT")
	fmt.Println("       Mission Lifecycle & Prediction")
	fmt.Println("  ==========================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict                    - Predict mission success")
	fmt.Println("    GET  /preset                     - Generate a mission preset")
	fmt.Println("    GET  /api/missions               - List the mission catalog")
	fmt.Println("    POST /api/missions/start         - Start a mission")
	fmt.Println("    GET  /api/missions/check/{id}    - Check or resolve a mission")
	fmt.Println("    POST /api/missions/predict       - Success rate for an investment")
	fmt.Println("    GET  /api/user/{username}        - User funds and missions")
	fmt.Println("    GET  /api/user/{username}/events - Mission event journal")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println("    GET  /metrics                    - Prometheus metrics")
	fmt.Println()
}
