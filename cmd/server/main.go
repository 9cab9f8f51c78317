package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/pricewire/pricewire/internal/auth"
	"github.com/pricewire/pricewire/internal/broadcast"
	"github.com/pricewire/pricewire/internal/config"
	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/listener"
	"github.com/pricewire/pricewire/internal/logging"
	"github.com/pricewire/pricewire/internal/postgres"
	"github.com/pricewire/pricewire/internal/redis"
	"github.com/pricewire/pricewire/internal/registry"
	"github.com/pricewire/pricewire/internal/server"
	"github.com/pricewire/pricewire/internal/version"
)

const updateBufferSize = 256

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupPrices wires the price repository, fronted by the Redis read-through
// cache when REDIS_URL is configured.
func setupPrices(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (domain.PriceRepository, func()) {
	prices := postgres.NewPriceRepo(pool)
	if cfg.RedisURL == "" {
		return prices, func() {}
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewPriceCacheRepo(client, prices), func() { _ = client.Close() }
}

func runGracefulShutdown(srv *server.Server, reg *registry.Registry, cancel context.CancelFunc, wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Stop the upstream listener and broadcaster first so no delivery
		// is attempted while sessions are being torn down.
		cancel()
		wg.Wait()

		reg.CloseAll(websocket.CloseGoingAway, "server shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", build.Version,
		"commit", build.Commit,
	)

	pool := setupDB(cfg)
	defer pool.Close()

	prices, closePrices := setupPrices(context.Background(), cfg, pool)
	defer closePrices()

	tokens := postgres.NewTokenRepo(pool)
	gate := auth.NewGate(tokens)
	reg := registry.New()

	updates := make(chan domain.PriceUpdate, updateBufferSize)
	feed := listener.New(
		listener.PgxConnector(cfg.DatabaseURL),
		cfg.ListenChannel,
		cfg.ReconnectDelay,
		clock,
		updates,
	)
	broadcaster := broadcast.NewBroadcaster(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		feed.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		broadcaster.Run(ctx, updates)
	}()

	srv := server.NewServer(cfg, gate, reg, prices, tokens, feed, pool, clock)

	done := runGracefulShutdown(srv, reg, cancel, &wg)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
