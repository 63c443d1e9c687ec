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

	"github.com/sjohnston82/twitter-t3-clone/internal/config"
	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
	"github.com/sjohnston82/twitter-t3-clone/internal/httpserver"
	"github.com/sjohnston82/twitter-t3-clone/internal/identity"
	"github.com/sjohnston82/twitter-t3-clone/internal/postgres"
	"github.com/sjohnston82/twitter-t3-clone/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Post store
	repo, err := postgres.NewRepository(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	if err := repo.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	// Rate limiter: shared Redis counters when configured, otherwise a
	// process-local window store (limits then hold per instance only).
	var limiter domain.WriteLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.MaxPosts, cfg.RateLimit.Window)
		logger.Info("rate limiting with redis", "addr", cfg.Redis.Addr,
			"max_posts", cfg.RateLimit.MaxPosts, "window", cfg.RateLimit.Window)
	} else {
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxPosts, cfg.RateLimit.Window)
		mem.StartJanitor(ctx, 2*time.Minute)
		limiter = mem
		logger.Warn("rate limiting in memory, limits do not hold across instances",
			"max_posts", cfg.RateLimit.MaxPosts, "window", cfg.RateLimit.Window)
	}

	// Identity provider
	resolver := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.SecretKey)

	// Live feed fan-out
	hub := httpserver.NewHub(logger)
	go hub.Run(ctx)

	posts := domain.NewPostService(repo, resolver, limiter, hub, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := httpserver.NewServer(cfg, posts, resolver, hub, logger)
	server.StartJanitor(ctx)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
