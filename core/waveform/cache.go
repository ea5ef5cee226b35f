// Package waveform renders and caches peak images of tracks.
package waveform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"Rippers/core/audio"
	"Rippers/core/library"
	"Rippers/logger"
	"Rippers/model"
)

const (
	defaultSize  = "1200x240"
	defaultColor = "#3b82f6"
)

// Cache is advisory: a missing image only means it has not been rendered.
type Cache struct {
	layout library.Layout
	proc   audio.Processor
	locker library.Locker
	Size   string
	Color  string
}

func NewCache(layout library.Layout, proc audio.Processor, locker library.Locker) *Cache {
	return &Cache{layout: layout, proc: proc, locker: locker, Size: defaultSize, Color: defaultColor}
}

func (c *Cache) Path(name string) string {
	return c.layout.WaveformPath(name)
}

func (c *Cache) Exists(name string) bool {
	_, err := os.Stat(c.Path(name))
	return err == nil
}

// Filter is the showwavespic graph used for rendering.
func (c *Cache) Filter() string {
	return fmt.Sprintf("showwavespic=s=%s:colors=%s:split_channels=0", c.Size, c.Color)
}

// Get returns the image path, rendering it first when absent.
func (c *Cache) Get(ctx context.Context, name string) (string, error) {
	if !library.ValidName(name) {
		return "", fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	path := c.Path(name)
	if c.Exists(name) {
		return path, nil
	}

	unlock, err := c.locker.Lock(ctx, name)
	if err != nil {
		return "", err
	}
	defer unlock()

	if c.Exists(name) {
		return path, nil
	}
	audioPath := c.layout.AudioPath(name)
	if info, err := os.Stat(audioPath); err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("track %s: %w", name, model.ErrNotFound)
	}
	if err := os.MkdirAll(c.layout.WaveformDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create waveform directory: %w", err)
	}

	tmp := filepath.Join(c.layout.WaveformDir, "."+filepath.Base(path)+".tmp.png")
	_, err = c.proc.Transcode(ctx, audio.TranscodeRequest{
		Input:         audioPath,
		Output:        tmp,
		FilterComplex: c.Filter(),
		ExtraArgs:     []string{"-frames:v", "1"},
	})
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to render waveform for %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	logger.Debug("Waveform rendered", logger.Track(name))
	return path, nil
}

// Invalidate drops the cached image. Callers that changed the audio hold
// the track lock.
func (c *Cache) Invalidate(name string) {
	if err := os.Remove(c.Path(name)); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove stale waveform", logger.Track(name), logger.ErrorField(err))
	}
}
