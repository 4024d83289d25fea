package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/queueit/backend/internal/broker"
	"github.com/queueit/backend/internal/config"
	"github.com/queueit/backend/internal/database"
	"github.com/queueit/backend/internal/logging"
	"github.com/queueit/backend/internal/router"
	qsentry "github.com/queueit/backend/internal/sentry"
	"github.com/queueit/backend/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()

	if err := qsentry.Init(cfg.SentryDSN, cfg.SentryEnvironment, version); err != nil {
		slog.Error("failed to initialize sentry", slog.Any("error", err))
		os.Exit(1)
	}
	defer sentry.Flush(2 * time.Second)

	// Initialize database
	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(sqlDB); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	hub := broker.New(cfg.SubscriberBuffer)
	r, closeRouter := router.New(cfg, store.NewStore(sqlDB), hub)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Streams never finish on their own; closing the hub ends them.
	srv.RegisterOnShutdown(hub.Close)
	srv.RegisterOnShutdown(closeRouter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
