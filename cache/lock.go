package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"Rippers/logger"
)

const (
	lockKeyPrefix     = "rippers:lock:track:"
	defaultLockTTL    = 2 * time.Minute
	defaultRetryDelay = 100 * time.Millisecond
)

// Only the holder's token may release or extend a lock.
var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker serializes track edits across processes sharing one Redis.
// A held lock is refreshed until released, so long merges keep it.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, ttl: defaultLockTTL, retryDelay: defaultRetryDelay}
}

// LockKey is the Redis key guarding one track name.
func LockKey(name string) string {
	return lockKeyPrefix + name
}

// Lock blocks until the lock on name is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	key := LockKey(name)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	stop := make(chan struct{})
	go l.refresh(key, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				logger.Warn("Failed to release track lock", logger.String("key", key), logger.ErrorField(err))
			}
		})
	}, nil
}

func (l *RedisLocker) refresh(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Err()
			cancel()
			if err != nil && err != redis.Nil {
				logger.Warn("Failed to extend track lock", logger.String("key", key), logger.ErrorField(err))
			}
		}
	}
}
