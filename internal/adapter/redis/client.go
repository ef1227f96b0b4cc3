package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/renangcr/devProperties/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses the URL, installs the circuit breaker and waits until the
// server answers a PING.
func NewClient(ctx context.Context, redisURL string, hookOpts ...HookOption) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(NewCircuitBreakerHook(hookOpts...))

	policy := retry.Startup
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable yet, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}

	if _, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return rdb.Ping(ctx).Result()
	}); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return rdb, nil
}
