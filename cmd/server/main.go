/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the HashVault mining engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env vars, optional .env)
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Seed plan catalog if the registry is empty
  5. Wire services and start the accrual scheduler
  6. Start HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the accrual scheduler (waits for an in-flight pass)
  4. Close database connection
  5. Exit

CONFIGURATION:
  All config via environment variables (see config/config.go):
  PORT, DATABASE_PATH, PLAN_CATALOG_FILE, ACCRUAL_INTERVAL, LOG_LEVEL,
  CORS_ORIGIN. Use DATABASE_PATH=":memory:" for an in-memory database.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hashvault/mining-engine/api"
	"github.com/hashvault/mining-engine/config"
	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/mining"
	"github.com/hashvault/mining-engine/plans"
	"github.com/hashvault/mining-engine/store/sqlite"
	"github.com/hashvault/mining-engine/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Seed the plan catalog on first boot
	if catalog, err := plans.LoadCatalog(cfg.PlanCatalogFile); err != nil {
		logger.Warn("plan catalog not loaded", zap.String("path", cfg.PlanCatalogFile), zap.Error(err))
	} else if n, err := plans.Seed(context.Background(), store, catalog); err != nil {
		logger.Fatal("failed to seed plan catalog", zap.Error(err))
	} else if n > 0 {
		logger.Info("seeded plan catalog", zap.Int("plans", n))
	}

	// Wire services
	writer := ledger.NewWriter(store)
	miningSvc := mining.NewService(store, store, writer)
	walletSvc := wallet.NewService(store, store, writer)
	accruer := mining.NewAccruer(store, store, writer)
	scheduler := mining.NewScheduler(accruer, cfg.AccrualInterval)

	handler := &api.Handler{
		Ledger:    store,
		Plans:     store,
		Mining:    miningSvc,
		Wallet:    walletSvc,
		Scheduler: scheduler,
	}
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.Duration("accrual_interval", cfg.AccrualInterval))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
