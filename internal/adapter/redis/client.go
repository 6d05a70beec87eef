// Package redis implements the broadcast transport on Redis pub/sub.
package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL and returns a client that reports command
// metrics to m (nil disables them). It does not dial; call Ping for that.
func NewClient(redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(&metricsHook{m: m})
	}
	return rdb, nil
}

// Ping checks connectivity and is used by startup retries and the readiness probe.
func Ping(ctx context.Context, rdb *goredis.Client) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
