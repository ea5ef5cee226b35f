package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"Rippers/logger"

	"github.com/go-redis/redis/v8"
)

const reportKeyPrefix = "rippers:report:"

// ReportCache keeps audio tool reports in Redis.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache 创建报告缓存; ttl 为 0 时永不过期
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// ReportKey hashes an arbitrary report identity into a bounded Redis key.
func ReportKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return reportKeyPrefix + hex.EncodeToString(sum[:])
}

// Get 获取缓存的报告，失败时最多重试一次
func (c *ReportCache) Get(ctx context.Context, key string) (string, bool) {
	rkey := ReportKey(key)
	retryDelay := 100 * time.Millisecond

	const maxRetries = 2
	for attempt := 0; attempt < maxRetries; attempt++ {
		val, err := c.client.Get(ctx, rkey).Result()
		if err == nil {
			logger.Debug("Report cache hit", logger.String("key", rkey))
			return val, true
		}
		if errors.Is(err, redis.Nil) {
			return "", false
		}
		if attempt < maxRetries-1 {
			logger.Warn("Report cache read failed, retrying",
				logger.String("key", rkey),
				logger.ErrorField(err))
			select {
			case <-ctx.Done():
				return "", false
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
			continue
		}
		logger.Warn("Report cache read failed", logger.String("key", rkey), logger.ErrorField(err))
	}
	return "", false
}

// Set 写入报告缓存
func (c *ReportCache) Set(ctx context.Context, key, report string) {
	rkey := ReportKey(key)
	if err := c.client.Set(ctx, rkey, report, c.ttl).Err(); err != nil {
		logger.Warn("Report cache write failed", logger.String("key", rkey), logger.ErrorField(err))
	}
}
