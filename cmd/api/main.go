// Command api is the OrderPulse API server. It also runs the hourly report
// scheduler, the LISTEN/NOTIFY consumer and the maintenance tickers.
//
// Usage:
//
//	orderpulse-api
//	API_PORT=8080 STORAGE_DRIVER=sqlite SQLITE_PATH=orders.db orderpulse-api

// @title OrderPulse API
// @version 1.0.0
// @description Hourly marketplace order statistics: snapshots, daily totals, top products, on-demand report cycles and chat subscriber management.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name OrderPulse
// @license.name MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/orderpulse/internal/api"
	"github.com/albapepper/orderpulse/internal/app"
	"github.com/albapepper/orderpulse/internal/cache"
	"github.com/albapepper/orderpulse/internal/config"

	_ "github.com/albapepper/orderpulse/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Storage, sinks and the cycle runner
	a, err := app.New(ctx, cfg, logger, os.Stdout)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// LISTEN/NOTIFY consumer and maintenance tickers
	a.StartBackground(ctx)

	// Hourly scheduler
	schedDone := make(chan struct{})
	if cfg.SchedulerEnabled {
		sched := a.Scheduler(false)
		go func() {
			defer close(schedDone)
			if err := sched.Run(ctx); err != nil {
				logger.Error("Scheduler failed", "error", err)
			}
		}()
	} else {
		close(schedDone)
		logger.Info("Scheduler disabled (SCHEDULER_ENABLED=false)")
	}

	// Create router
	router := api.NewRouter(api.Deps{
		Runner:   a.Runner,
		Store:    a.Store,
		Cache:    appCache,
		Config:   cfg,
		Logger:   logger,
		Gatherer: a.Registry,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting OrderPulse API",
			"addr", addr,
			"environment", cfg.Environment,
			"storage", cfg.StorageDriver,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	// A cycle in progress finishes before the scheduler returns.
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("Scheduler did not stop in time")
	}
	logger.Info("Server stopped")
}
