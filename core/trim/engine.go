// Package trim cuts tracks to a time range or strips their silent edges.
package trim

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"Rippers/core/audio"
	"Rippers/core/backup"
	"Rippers/core/library"
	"Rippers/core/normalize"
	"Rippers/core/waveform"
	"Rippers/logger"
	"Rippers/model"
)

// ParseTimeSpec reads "SS.sss" or "MM:SS". Empty text means unbounded and
// yields nil. Minutes may exceed 59.
func ParseTimeSpec(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	invalid := fmt.Errorf("%w: time %q", model.ErrInvalidArgument, text)

	if strings.Contains(text, ":") {
		parts := strings.Split(text, ":")
		if len(parts) != 2 {
			return nil, invalid
		}
		minutes, err1 := strconv.Atoi(parts[0])
		seconds, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || minutes < 0 || seconds < 0 {
			return nil, invalid
		}
		v := float64(minutes*60 + seconds)
		return &v, nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, invalid
	}
	return &v, nil
}

// Engine edits tracks in place.
type Engine struct {
	layout     library.Layout
	proc       audio.Processor
	locker     library.Locker
	backups    *backup.Manager
	waveforms  *waveform.Cache
	tagger     *normalize.Tagger
	sampleRate int
	bitrate    string
}

func NewEngine(store *library.Store, backups *backup.Manager, waveforms *waveform.Cache, tagger *normalize.Tagger, sampleRate int, bitrate string) *Engine {
	return &Engine{
		layout:     store.Layout(),
		proc:       store.Processor(),
		locker:     store.Locker(),
		backups:    backups,
		waveforms:  waveforms,
		tagger:     tagger,
		sampleRate: sampleRate,
		bitrate:    bitrate,
	}
}

func (e *Engine) lock(ctx context.Context, name string) (func(), error) {
	if !library.ValidName(name) {
		return nil, fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	unlock, err := e.locker.Lock(ctx, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(e.layout.AudioPath(name)); err != nil {
		unlock()
		return nil, fmt.Errorf("track %s: %w", name, model.ErrNotFound)
	}
	return unlock, nil
}

// Apply keeps only [start, end] of name. A nil bound is open. No backup is
// taken: a range cut is final.
func (e *Engine) Apply(ctx context.Context, name string, start, end *float64) error {
	if start == nil && end == nil {
		return fmt.Errorf("%w: no trim range given", model.ErrInvalidArgument)
	}
	if start != nil && end != nil && *end <= *start {
		return fmt.Errorf("%w: end %.3f is not after start %.3f", model.ErrInvalidArgument, *end, *start)
	}
	unlock, err := e.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	tmp := e.layout.TempPath(name, "trim")
	_, err = e.proc.Transcode(ctx, audio.TranscodeRequest{
		Input:        e.layout.AudioPath(name),
		Output:       tmp,
		Start:        start,
		End:          end,
		StreamCopy:   true,
		CopyMetadata: true,
	})
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to trim %s: %w", name, err)
	}
	if err := os.Rename(tmp, e.layout.AudioPath(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	e.finish(ctx, name)
	logger.Info("Track trimmed", logger.Track(name))
	return nil
}

// TrimSilence strips leading and trailing silence. It backs the track up
// first and discards that backup again if the edit fails.
func (e *Engine) TrimSilence(ctx context.Context, name string) (err error) {
	unlock, err := e.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	created, err := e.backups.Create(name)
	if err != nil {
		return err
	}
	tmp := e.layout.TempPath(name, "silence")
	defer func() {
		if err == nil {
			return
		}
		os.Remove(tmp)
		if created {
			if derr := e.backups.Discard(name); derr != nil {
				logger.Error("Rollback could not discard backup", logger.Track(name), logger.ErrorField(derr))
			}
		}
	}()

	_, err = e.proc.Transcode(ctx, audio.TranscodeRequest{
		Input:        e.layout.AudioPath(name),
		Output:       tmp,
		AudioFilter:  audio.SilenceEdgeFilter(),
		CopyMetadata: true,
		SampleRate:   e.sampleRate,
		Bitrate:      e.bitrate,
	})
	if err != nil {
		return fmt.Errorf("failed to trim silence of %s: %w", name, err)
	}
	if err = os.Rename(tmp, e.layout.AudioPath(name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	e.finish(ctx, name)
	logger.Info("Silence trimmed", logger.Track(name))
	return nil
}

func (e *Engine) finish(ctx context.Context, name string) {
	if err := e.tagger.Apply(ctx, name); err != nil {
		logger.Warn("Tag write-back failed", logger.Track(name), logger.ErrorField(err))
	}
	e.waveforms.Invalidate(name)
}
