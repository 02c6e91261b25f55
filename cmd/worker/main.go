// Package main is the entrypoint for the HashScope scrape worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hashscope/internal/config"
	"hashscope/internal/queue"
	"hashscope/internal/scrape"
	"hashscope/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "queue", cfg.Queue.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	jobQueue, err := queue.NewRedisQueue(cfg.Redis.URL, cfg.Queue.Name, cfg.Queue.LockDuration)
	if err != nil {
		return fmt.Errorf("create job queue: %w", err)
	}
	defer jobQueue.Close()

	if err := jobQueue.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	worker := scrape.NewWorker(jobQueue, store.NewPostgresStore(pool), cfg.Apify)

	// Run blocks until the context is cancelled; an in-flight job is finished
	// before it returns.
	worker.Run(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}
