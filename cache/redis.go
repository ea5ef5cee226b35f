// Package cache holds the Redis-backed helpers: distributed track locks and
// the peak report cache.
package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"Rippers/config"
	"Rippers/logger"

	"github.com/go-redis/redis/v8"
)

const (
	dialTimeout = 5 * time.Second
	probeKey    = "rippers:probe"
)

// Options maps the Redis settings onto client options.
func Options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:        net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: dialTimeout,
	}
}

// ConnectRedis opens a client and pings the server. The caller owns Close.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}
	logger.Info("Redis connected", logger.String("addr", client.Options().Addr), logger.Int("db", cfg.RedisDB))
	return client, nil
}

// CheckRoundTrip writes, reads back and deletes a probe key.
func CheckRoundTrip(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	want := fmt.Sprintf("probe-%d", time.Now().UnixNano())
	if err := client.Set(ctx, probeKey, want, time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}
	got, err := client.Get(ctx, probeKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get Redis key: %w", err)
	}
	if got != want {
		return fmt.Errorf("unexpected value from Redis: got %q", got)
	}
	return client.Del(ctx, probeKey).Err()
}
