package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"Rippers/core/library"
	"Rippers/logger"
	"Rippers/model"
)

// DefaultSettle is how long a new file must stay quiet before it is adopted.
const DefaultSettle = 500 * time.Millisecond

// Watcher gives a minimal sidecar to tracks that appear without one, e.g.
// files copied in by hand or by another downloader.
type Watcher struct {
	store  *library.Store
	settle time.Duration
	now    func() time.Time
}

func NewWatcher(store *library.Store, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{store: store, settle: settle, now: time.Now}
}

// Adopt writes a sidecar for name unless one already exists.
func (w *Watcher) Adopt(ctx context.Context, name string) (bool, error) {
	if !w.store.Exists(name) {
		return false, nil
	}
	unlock, err := w.store.Locker().Lock(ctx, name)
	if err != nil {
		return false, err
	}
	defer unlock()

	layout := w.store.Layout()
	if _, ok, err := layout.ReadSidecar(name); err != nil || ok {
		return false, err
	}
	sc := &model.Sidecar{
		Timestamp: w.now().Unix(),
		Title:     strings.TrimSpace(strings.ReplaceAll(layout.Stem(name), "_", " ")),
	}
	if err := layout.WriteSidecar(name, sc); err != nil {
		return false, err
	}
	logger.Info("Adopted track", logger.Track(name))
	return true, nil
}

// Sweep adopts every track currently lacking a sidecar.
func (w *Watcher) Sweep(ctx context.Context) (int, error) {
	names, err := w.store.Names()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		adopted, err := w.Adopt(ctx, name)
		if err != nil {
			logger.Warn("Adopt failed", logger.Track(name), logger.ErrorField(err))
			continue
		}
		if adopted {
			n++
		}
	}
	return n, nil
}

// Run watches the track directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := w.store.Layout().TrackDir
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("Watching track directory", logger.String("dir", dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if w.store.Layout().IsTrackFile(name) {
				pending[name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for name, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, name)
				if _, err := w.Adopt(ctx, name); err != nil {
					logger.Warn("Adopt failed", logger.Track(name), logger.ErrorField(err))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", logger.ErrorField(err))
		}
	}
}
