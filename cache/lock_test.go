package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"Rippers/config"
	"Rippers/core/audio"
	"Rippers/core/library"
)

var _ library.Locker = (*RedisLocker)(nil)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "rippers:lock:track:song.mp3", LockKey("song.mp3"))
}

func TestLockFailsWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisLocker(client).Lock(ctx, "song.mp3")
	assert.Error(t, err)
}

func TestCheckRoundTripWithoutClient(t *testing.T) {
	assert.Error(t, CheckRoundTrip(context.Background(), nil))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := Options(&config.Config{RedisHost: "cache.local", RedisPort: "6380", RedisPassword: "pw", RedisDB: 2})
	assert.Equal(t, "cache.local:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, dialTimeout, opts.DialTimeout)
}

var _ audio.ReportCache = (*ReportCache)(nil)

func TestReportKeyIsBounded(t *testing.T) {
	k1 := ReportKey("measure-peak|/music/a.mp3|10|1")
	k2 := ReportKey("measure-peak|/music/a.mp3|11|1")
	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, len(reportKeyPrefix)+40)
}

func TestReportCacheMissesWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewReportCache(client, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Set(ctx, "k", "v")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
