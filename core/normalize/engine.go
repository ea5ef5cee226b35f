// Package normalize raises quiet tracks to a fixed peak, keeping a backup
// so the edit can be undone.
package normalize

import (
	"context"
	"fmt"
	"math"
	"os"

	"Rippers/core/audio"
	"Rippers/core/backup"
	"Rippers/core/library"
	"Rippers/core/waveform"
	"Rippers/logger"
	"Rippers/model"
)

const (
	// ThresholdDB is the peak below which a track is worth normalizing.
	ThresholdDB = -3.0
	// TargetPeakDB is where the loudest sample ends up.
	TargetPeakDB = -1.0
	// MaxGainDB bounds the boost applied to very quiet sources.
	MaxGainDB = 20.0
)

// NeedsNormalization reports whether a measured peak is quiet enough to boost.
func NeedsNormalization(peakDB float64) bool {
	return peakDB < ThresholdDB
}

// Gain is the boost that moves peakDB to target, never above MaxGainDB.
func Gain(peakDB, target float64) float64 {
	return math.Min(target-peakDB, MaxGainDB)
}

// Action names what Toggle did.
type Action string

const (
	ActionNormalized Action = "normalized"
	ActionRestored   Action = "restored"
)

// Result describes a completed normalization.
type Result struct {
	Track  string  `json:"track"`
	PeakDB float64 `json:"peakDb"`
	GainDB float64 `json:"gainDb"`
}

// Engine runs the Original → Normalized → Original state machine of a track.
type Engine struct {
	layout     library.Layout
	proc       audio.Processor
	locker     library.Locker
	backups    *backup.Manager
	waveforms  *waveform.Cache
	tagger     *Tagger
	sampleRate int
	bitrate    string
}

func NewEngine(store *library.Store, backups *backup.Manager, waveforms *waveform.Cache, sampleRate int, bitrate string) *Engine {
	return &Engine{
		layout:     store.Layout(),
		proc:       store.Processor(),
		locker:     store.Locker(),
		backups:    backups,
		waveforms:  waveforms,
		tagger:     NewTagger(store.Layout(), store.Processor()),
		sampleRate: sampleRate,
		bitrate:    bitrate,
	}
}

// Tagger exposes the tag primitive to other editors.
func (e *Engine) Tagger() *Tagger { return e.tagger }

func (e *Engine) exists(name string) error {
	if !library.ValidName(name) {
		return fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	if _, err := os.Stat(e.layout.AudioPath(name)); err != nil {
		return fmt.Errorf("track %s: %w", name, model.ErrNotFound)
	}
	return nil
}

// MeasurePeak returns the peak level of name in dB. An unreadable report
// counts as 0 dB, which means no normalization is recommended.
func (e *Engine) MeasurePeak(ctx context.Context, name string) (float64, error) {
	if err := e.exists(name); err != nil {
		return 0, err
	}
	return e.measure(ctx, name)
}

func (e *Engine) measure(ctx context.Context, name string) (float64, error) {
	res, err := e.proc.MeasurePeak(ctx, e.layout.AudioPath(name))
	if err != nil {
		return 0, err
	}
	peak, ok := audio.ParsePeak(res.Output)
	if !ok {
		logger.Warn("Peak report not found, assuming 0 dB", logger.Track(name))
		return 0, nil
	}
	return peak, nil
}

// Apply normalizes name. It refuses while a backup exists.
func (e *Engine) Apply(ctx context.Context, name string) (*Result, error) {
	if err := e.exists(name); err != nil {
		return nil, err
	}
	unlock, err := e.locker.Lock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.apply(ctx, name)
}

func (e *Engine) apply(ctx context.Context, name string) (res *Result, err error) {
	if err := e.exists(name); err != nil {
		return nil, err
	}
	if e.backups.Exists(name) {
		return nil, fmt.Errorf("%s: %w", name, model.ErrAlreadyNormalized)
	}

	created, err := e.backups.Create(name)
	if err != nil {
		return nil, err
	}
	tmp := e.layout.TempPath(name, "normalize")
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

	peak, err := e.measure(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to measure %s: %w", name, err)
	}
	gain := Gain(peak, TargetPeakDB)

	_, err = e.proc.Transcode(ctx, audio.TranscodeRequest{
		Input:       e.layout.AudioPath(name),
		Output:      tmp,
		AudioFilter: audio.NormalizeFilter(gain),
		SampleRate:  e.sampleRate,
		Bitrate:     e.bitrate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", name, err)
	}
	if err = os.Rename(tmp, e.layout.AudioPath(name)); err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", name, err)
	}

	e.retag(ctx, name)
	e.waveforms.Invalidate(name)
	logger.Info("Track normalized",
		logger.Track(name),
		logger.Float64("peak_db", peak),
		logger.Float64("gain_db", gain))
	return &Result{Track: name, PeakDB: peak, GainDB: gain}, nil
}

// Restore puts the backup back and consumes it.
func (e *Engine) Restore(ctx context.Context, name string) error {
	if !library.ValidName(name) {
		return fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	unlock, err := e.locker.Lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()
	return e.restore(ctx, name)
}

func (e *Engine) restore(ctx context.Context, name string) error {
	if err := e.backups.Restore(name); err != nil {
		return err
	}
	e.retag(ctx, name)
	e.waveforms.Invalidate(name)
	logger.Info("Track restored", logger.Track(name))
	return nil
}

// Toggle normalizes a track without a backup and restores one that has it.
func (e *Engine) Toggle(ctx context.Context, name string) (Action, *Result, error) {
	if err := e.exists(name); err != nil {
		return "", nil, err
	}
	unlock, err := e.locker.Lock(ctx, name)
	if err != nil {
		return "", nil, err
	}
	defer unlock()

	if e.backups.Exists(name) {
		return ActionRestored, nil, e.restore(ctx, name)
	}
	res, err := e.apply(ctx, name)
	return ActionNormalized, res, err
}

// WriteTags copies the sidecar metadata into the embedded tags.
func (e *Engine) WriteTags(ctx context.Context, name string) error {
	if err := e.exists(name); err != nil {
		return err
	}
	unlock, err := e.locker.Lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()
	return e.tagger.Apply(ctx, name)
}

// retag is best effort: the audio edit has already landed.
func (e *Engine) retag(ctx context.Context, name string) {
	if err := e.tagger.Apply(ctx, name); err != nil {
		logger.Warn("Tag write-back failed", logger.Track(name), logger.ErrorField(err))
	}
}
