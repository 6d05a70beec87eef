package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/adapter/httpserver"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	"github.com/pscheid92/familyhub/internal/adapter/postgres"
	"github.com/pscheid92/familyhub/internal/adapter/redis"
	"github.com/pscheid92/familyhub/internal/app"
	"github.com/pscheid92/familyhub/internal/broadcast"
	"github.com/pscheid92/familyhub/internal/domain"
	"github.com/pscheid92/familyhub/internal/platform/config"
	"github.com/pscheid92/familyhub/internal/platform/logging"
	"github.com/pscheid92/familyhub/internal/platform/retry"
	"github.com/pscheid92/familyhub/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

var startupRetry = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Startup dependency not ready, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := retry.Do(ctx, startupRetry, retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return postgres.Connect(attemptCtx, cfg.DatabaseURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupTransport returns NoTransport when REDIS_URL is unset. An unreachable
// Redis is not fatal: sessions degrade until it comes back.
func setupTransport(cfg *config.Config, m *metrics.RedisMetrics) (domain.Transport, *goredis.Client) {
	if !cfg.BroadcastEnabled() {
		slog.Warn("REDIS_URL not set, live notifications disabled")
		return domain.NoTransport{}, nil
	}

	rdb, err := redis.NewClient(cfg.RedisURL, m)
	if err != nil {
		slog.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = retry.DoVoid(ctx, startupRetry, retry.Transient, func(ctx context.Context) error {
		return redis.Ping(ctx, rdb)
	})
	if err != nil {
		slog.Warn("Redis unreachable at startup, notifications degraded until it recovers", "error", err)
	}

	return redis.NewTransport(rdb, m), rdb
}

func healthChecks(pool *pgxpool.Pool, rdb *goredis.Client) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}
	if rdb != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redis.Ping(ctx, rdb) },
			Optional: true,
		})
	}
	return checks
}

func runGracefulShutdown(srv *httpserver.Server, hub *broadcast.Hub, producer *broadcast.Producer) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()

		if err := producer.Wait(shutdownCtx); err != nil {
			slog.Warn("Pending publishes did not finish", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	reg := metrics.NewRegistry()
	broadcastMetrics := metrics.NewBroadcastMetrics(reg)

	pool := setupDB(cfg, metrics.NewDBMetrics(reg))
	defer pool.Close()

	transport, rdb := setupTransport(cfg, metrics.NewRedisMetrics(reg))
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	producer := broadcast.NewProducer(transport, cfg.EventsTopic, cfg.PublishTimeout,
		broadcast.WithProducerMetrics(broadcastMetrics),
		broadcast.WithProducerClock(clock),
	)

	appSvc := app.NewService(postgres.NewEventRepo(pool), producer, clock)

	hub := broadcast.NewHub(transport, broadcast.HubConfig{
		Session: broadcast.SessionConfig{
			Topic:             cfg.EventsTopic,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
		MaxSessions: cfg.MaxWebSocketConnections,
	}, clock, broadcastMetrics)

	srv := httpserver.NewServer(cfg, appSvc, hub,
		httpserver.WithMetrics(reg),
		httpserver.WithHealthChecks(healthChecks(pool, rdb)...),
	)

	done := runGracefulShutdown(srv, hub, producer)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
