package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/syncmymind/api/internal/access"
	"github.com/syncmymind/api/internal/app/migrate"
	"github.com/syncmymind/api/internal/feed"
	httpx "github.com/syncmymind/api/internal/http"
	"github.com/syncmymind/api/internal/repository/postgres"
	"github.com/syncmymind/api/internal/service/auth"
	"github.com/syncmymind/api/internal/service/connection"
	"github.com/syncmymind/api/internal/service/directory"
	"github.com/syncmymind/api/internal/service/observation"
	"github.com/syncmymind/api/internal/service/project"
	"github.com/syncmymind/api/internal/service/sharing"
	"github.com/syncmymind/api/internal/service/task"
	"github.com/syncmymind/api/pkg/config"
	"github.com/syncmymind/api/pkg/logger"
)

const visibilityCheckTimeout = 2 * time.Second

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := runner.Ping(ctx); err != nil {
			log.Warn("database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	resolver := access.NewResolver(repo, repo)

	hub := feed.NewHub(func(projectID, userID string) bool {
		checkCtx, cancel := context.WithTimeout(context.Background(), visibilityCheckTimeout)
		defer cancel()
		level, err := resolver.Effective(checkCtx, projectID, userID)
		if err != nil {
			return false
		}
		return level.AtLeast(access.LevelView)
	})

	services := httpx.Services{
		Auth:        auth.New(repo, log, cfg),
		Project:     project.New(repo, repo, resolver, hub, log),
		Task:        task.New(repo, resolver, hub, log),
		Observation: observation.New(repo, repo, resolver, hub, log),
		Connection:  connection.New(repo, resolver, log),
		Sharing:     sharing.New(repo, repo, resolver, log),
		Directory:   directory.New(repo, cfg.SearchPageLimit, log),
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, services, hub, limiter, cfg.FeedHeartbeat, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
