package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/renangcr/devProperties/internal/adapter/httpserver"
	"github.com/renangcr/devProperties/internal/adapter/metrics"
	"github.com/renangcr/devProperties/internal/adapter/postgres"
	"github.com/renangcr/devProperties/internal/adapter/redis"
	"github.com/renangcr/devProperties/internal/app"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/identity"
	"github.com/renangcr/devProperties/internal/platform/config"
	"github.com/renangcr/devProperties/internal/platform/logging"
	"github.com/renangcr/devProperties/internal/platform/version"
)

const (
	shutdownTimeout = 10 * time.Second
	evictionPeriod  = time.Minute
)

func runGracefulShutdown(srv *httpserver.Server, registry *authstate.Registry, stopEviction func()) <-chan struct{} {
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

		stopEviction()
		registry.Close()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg), clock)
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.WithQueryTracer(tracer))
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

func setupRedis(cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	breakerMetrics := metrics.NewBreakerMetrics(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.WithStateObserver(breakerMetrics.Observe))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()

	pool := setupDB(cfg, reg, clock)
	defer pool.Close()

	redisClient := setupRedis(cfg, reg)
	defer func() { _ = redisClient.Close() }()

	accountRepo := postgres.NewAccountRepo(pool)
	listingRepo := postgres.NewListingRepo(pool)
	imageRepo := postgres.NewImageRepo(pool)
	authStateRepo := redis.NewAuthStateRepo(redisClient)

	identitySvc := identity.NewService(accountRepo, authStateRepo, cfg.SessionMaxAge)

	authMetrics := metrics.NewAuthMetrics(reg)
	registry := authstate.NewRegistry(
		func(clientID string) authstate.Subscriber { return identitySvc.ForClient(clientID) },
		cfg.ClientIdleTTL,
		authstate.WithMetrics(authMetrics),
		authstate.WithClock(clock),
	)
	stopEviction := registry.StartEviction(evictionPeriod)

	appSvc := app.NewService(listingRepo, imageRepo, clock,
		app.WithMaxImageBytes(int(cfg.MaxImageBytes)),
		app.WithMetrics(metrics.NewListingMetrics(reg)),
	)

	srv, err := httpserver.NewServer(cfg, appSvc, identitySvc, registry, healthChecks(pool, redisClient),
		httpserver.WithClock(clock),
		httpserver.WithPrometheus(reg),
		httpserver.WithGuardObserver(authMetrics),
	)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, registry, stopEviction)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
