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

	"github.com/agentmap/dashboard/config"
	httpDelivery "github.com/agentmap/dashboard/internal/delivery/http"
	"github.com/agentmap/dashboard/internal/infrastructure/agentmap"
	"github.com/agentmap/dashboard/internal/infrastructure/session"
	"github.com/agentmap/dashboard/internal/logger"
	"github.com/agentmap/dashboard/internal/usecase"
	"github.com/agentmap/dashboard/internal/version"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("Starting AgentMap dashboard",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("remote_base_url", cfg.Remote.BaseURL),
		zap.Int("top_k", cfg.Matching.TopK),
		zap.Float64("band_green", cfg.Matching.Bands.Green),
		zap.Float64("band_yellow", cfg.Matching.Bands.Yellow),
	)

	// Initialize infrastructure dependencies
	client := agentmap.NewClient(cfg.Remote.BaseURL, agentmap.Options{
		Timeout:           cfg.Remote.Timeout,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		Burst:             cfg.Remote.Burst,
		Logger:            log.Named("agentmap"),
	})

	store := session.NewMemoryStore(session.DefaultCleanupInterval)
	defer store.Close()

	// Initialize usecase layer
	orchestrator := usecase.NewOrchestrator(client, usecase.OrchestratorConfig{
		DefaultTopK: cfg.Matching.TopK,
		Timeout:     cfg.Matching.OrchestrationTimeout,
		Bands:       cfg.Matching.Bands,
		Observer: func(mseID int64, from, to usecase.State) {
			log.Debug("orchestration state", zap.Int64("mse_id", mseID), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	}, log.Named("orchestrator"))

	dashboard := usecase.NewDashboardService(orchestrator, store, usecase.DashboardServiceConfig{
		SessionTTL: cfg.Session.TTL,
	}, log.Named("dashboard"))

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(client, orchestrator, dashboard, log)
	router := httpDelivery.SetupRouter(cfg, handler, log.Named("http"))

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// matching may take the full orchestration timeout
		WriteTimeout: cfg.Matching.OrchestrationTimeout + 5*time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
	}

	log.Info("Server stopped gracefully")
}
