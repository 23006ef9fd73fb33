package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker verifies the report store is reachable and writable.
type RedisChecker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisChecker creates a checker that probes under keyPrefix.
func NewRedisChecker(client redis.UniversalClient, keyPrefix string) *RedisChecker {
	return &RedisChecker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Name returns the name of the checker.
func (r *RedisChecker) Name() string {
	return "redis"
}

// Check pings the server and round-trips a short-lived probe key.
func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	key := r.keyPrefix + "preflight"
	if err := r.client.Set(ctx, key, "ok", 0).Err(); err != nil {
		return fmt.Errorf("redis not writable: %w", err)
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis probe cleanup failed: %w", err)
	}

	return nil
}
