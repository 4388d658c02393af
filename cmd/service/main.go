// cmd/service/main.go
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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"spygit/internal/ai"
	"spygit/internal/analysis"
	"spygit/internal/api"
	"spygit/internal/auth"
	"spygit/internal/config"
	"spygit/internal/dashboard"
	"spygit/internal/database"
	"spygit/internal/dispatch"
	"spygit/internal/github"
	"spygit/internal/syncer"
	"spygit/internal/webhook"
	"spygit/pkg/logger/sl"
	"spygit/pkg/logger/slogpretty"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", sl.Err(err))
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration and build the logger
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := new(slog.LevelVar)
	slogpretty.SetLevel(cfg.LogLevel, logLevel)
	logger := slogpretty.New(cfg.LogFormat, os.Stdout, logLevel)
	slog.SetDefault(logger)
	logger.Info("Configuration loaded successfully")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 2. Database and migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.MigrationsPath, cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	store := database.NewStore(dbpool)

	// 3. Application components
	ghFactory, err := github.NewFactory(cfg.GithubAPIURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client factory: %w", err)
	}

	appSyncer := syncer.NewSyncer(store, func(token string) syncer.GitHub {
		return ghFactory.ForToken(token)
	}, syncer.Options{
		RepoPageSize:     cfg.GithubRepoPageSize,
		CommitRepoLimit:  cfg.GithubCommitRepoLimit,
		CommitsPerRepo:   cfg.GithubCommitsPerRepo,
		PRPageSize:       cfg.GithubPRPageSize,
		MaxStoredCommits: cfg.SyncMaxStoredCommits,
		Concurrency:      cfg.SyncConcurrency,
		Interval:         cfg.SyncInterval,
	}, logger)

	analyzer := analysis.NewService(store, ai.NewClient(cfg.AIAPIURL, cfg.AIAPIKey, cfg.AIModel), cfg.AnalysisMarkFailed, logger)

	dispatcher := dispatch.New(dispatch.Options{
		Workers:       cfg.DispatchWorkers,
		QueueSize:     cfg.DispatchQueueSize,
		MaxRetries:    cfg.DispatchMaxRetries,
		RetryInterval: cfg.DispatchRetryInterval,
		TaskTimeout:   cfg.DispatchTaskTimeout,
	}, logger)
	dispatcher.Start(ctx)

	server := api.NewServer(logger, api.Deps{
		Syncer:     appSyncer,
		Webhooks:   webhook.NewReceiver(store, analyzer, dispatcher, cfg.GithubWebhookSecret, logger),
		Analyzer:   analyzer,
		Dashboards: dashboard.NewAggregator(store, logger),
		Auth:       auth.NewVerifier(cfg.JWTSecret),
		DB:         store,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Background sync and the HTTP server
	go appSyncer.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 5. Wait for shutdown signal
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", sl.Err(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("Dispatcher shutdown failed", sl.Err(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

func runMigrations(sourceURL, dbURL string) error {
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
