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

	"github.com/redis/go-redis/v9"

	"github.com/pro804501/evaluateai-ai-backend/internal/api"
	"github.com/pro804501/evaluateai-ai-backend/internal/cleanup"
	"github.com/pro804501/evaluateai-ai-backend/internal/config"
	"github.com/pro804501/evaluateai-ai-backend/internal/engine"
	"github.com/pro804501/evaluateai-ai-backend/internal/oracle"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/ratelimit"
	"github.com/pro804501/evaluateai-ai-backend/internal/rubric"
	"github.com/pro804501/evaluateai-ai-backend/internal/shop"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting evaluateai backend",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("database connected successfully")

	// Optional Redis for the grading rate limiter
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(initCtx).Err(); err != nil {
			slog.Warn("redis unreachable, rate limiting will fail open", "error", err)
		}
	} else {
		slog.Info("redis not configured, grading rate limiter disabled")
	}
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimit.GradeCalls, cfg.RateLimit.GradeWindow)

	// Load grading rubrics
	rubricLoader := rubric.NewLoader()
	if err := rubricLoader.LoadFromDir(cfg.Rubrics.Dir); err != nil {
		slog.Warn("failed to load rubrics from dir", "dir", cfg.Rubrics.Dir, "error", err)
	}

	// Wire the grading workflow
	ledger := quota.NewLedger(repo)
	oracleClient := oracle.NewOpenAIClient(cfg.Oracle)
	eng := engine.New(repo, ledger, oracleClient, rubricLoader)
	shopService := shop.NewService(repo, ledger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start housekeeping worker
	janitor := cleanup.NewJanitor(repo, cfg.Janitor.Interval)
	janitor.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, eng, ledger, shopService, repo, limiter)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}
