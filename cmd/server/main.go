// Package main is the entrypoint for the HashScope API server.
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

	"hashscope/internal/api"
	"hashscope/internal/api/handler"
	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/config"
	"hashscope/internal/queue"
	"hashscope/internal/scrape"
	"hashscope/internal/store"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "queue", cfg.Queue.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect to the job queue
	jobQueue, err := queue.NewRedisQueue(cfg.Redis.URL, cfg.Queue.Name, cfg.Queue.LockDuration)
	if err != nil {
		return fmt.Errorf("create job queue: %w", err)
	}
	defer jobQueue.Close()

	if err := jobQueue.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and the synchronous scrape runner
	pgStore := store.NewPostgresStore(pool)
	runner := scrape.NewRunner(cfg.Apify)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Auth:           mw.NewAuth(cfg.Auth.JWTSecret),
		RateLimit:      mw.NewRateLimit(jobQueue, 60),
		AllowedOrigins: cfg.Server.AllowedOrigins,

		HealthHandler: healthHandler(pgStore, jobQueue),

		ScrapeHandler:            handler.NewScrapeHandler(pgStore, jobQueue),
		InteractiveScrapeHandler: handler.NewInteractiveScrapeHandler(pgStore, runner),
		ScrapeStatusHandler:      handler.NewScrapeStatusHandler(pgStore, jobQueue),

		CreateCampaignHandler:    handler.NewCreateCampaignHandler(pgStore),
		ListCampaignsHandler:     handler.NewListCampaignsHandler(pgStore),
		DeleteCampaignHandler:    handler.NewDeleteCampaignHandler(pgStore),
		ListCampaignPostsHandler: handler.NewListCampaignPostsHandler(pgStore),

		GetSettingsHandler:  handler.NewGetSettingsHandler(pgStore),
		SaveSettingsHandler: handler.NewSaveSettingsHandler(pgStore),

		BootstrapHandler: handler.NewBootstrapHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// The write timeout must outlast an interactive scrape, which holds the
	// response open while the actor run completes.
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Apify.InteractiveRunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and queue connectivity.
func healthHandler(s store.Store, q queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"queue":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := q.Ping(r.Context()); err != nil {
			checks["queue"] = "degraded"
		}

		if checks["database"] != "ok" || checks["queue"] != "ok" {
			response.JSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "degraded",
				"services": checks,
			})
			return
		}

		response.OK(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
