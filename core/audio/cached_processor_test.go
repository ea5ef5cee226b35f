package audio_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/core/audio"
	"Rippers/core/audio/audiotest"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, report string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = report
}

func TestCachedProcessorMeasurePeak(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0644))

	fake := audiotest.New()
	fake.PeakReport = "noise\n[Parsed_volumedetect_0 @ 0x0] max_volume: -9.5 dB\nmore noise"
	cache := &mapCache{m: map[string]string{}}
	p := audio.NewCachedProcessor(fake, cache)

	for i := 0; i < 3; i++ {
		res, err := p.MeasurePeak(ctx, path)
		require.NoError(t, err)
		peak, ok := audio.ParsePeak(res.Output)
		require.True(t, ok)
		assert.Equal(t, -9.5, peak)
	}
	assert.Len(t, fake.CallsFor(audio.OpMeasurePeak), 1)
	for _, v := range cache.m {
		assert.Equal(t, "max_volume: -9.5 dB", v)
	}

	// A rewrite is a new version.
	require.NoError(t, os.WriteFile(path, []byte("louder audio"), 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	_, err := p.MeasurePeak(ctx, path)
	require.NoError(t, err)
	assert.Len(t, fake.CallsFor(audio.OpMeasurePeak), 2)
}

func TestCachedProcessorSkipsFailuresAndMissingFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0644))

	fake := audiotest.New()
	fake.Fail[audio.OpMeasurePeak] = true
	cache := &mapCache{m: map[string]string{}}
	p := audio.NewCachedProcessor(fake, cache)

	_, err := p.MeasurePeak(ctx, path)
	assert.ErrorIs(t, err, audio.ErrToolFailure)
	assert.Empty(t, cache.m)

	fake.Fail[audio.OpMeasurePeak] = false
	_, err = p.MeasurePeak(ctx, filepath.Join(t.TempDir(), "missing.mp3"))
	require.NoError(t, err)
	assert.Empty(t, cache.m)
}

func TestCachedProcessorForwardsTags(t *testing.T) {
	fake := audiotest.New()
	fake.Tags["a.mp3"] = map[string]string{"artist": "Blur"}
	p := audio.NewCachedProcessor(fake, &mapCache{m: map[string]string{}})

	tags, err := p.ReadTags(context.Background(), "/x/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Blur", tags["artist"])
}
