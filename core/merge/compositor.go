// Package merge joins a playlist into one loudness-matched track and lays
// background beds under recordings.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Rippers/core/audio"
	"Rippers/core/library"
	"Rippers/core/playlist"
	"Rippers/logger"
	"Rippers/model"
)

const (
	mergeSuffix      = " (Full Mix)"
	defaultMergeStem = "Merged_Playlist"
	mergeAlbum       = "Playlist Merge"
	mergeArtist      = "Various Artists"
	mixSuffix        = " (Mixed)"
	// DefaultBedVolume is the linear gain of a background bed.
	DefaultBedVolume = 0.2
)

// Options tune a merge.
type Options struct {
	// TrimSilence drops silent runs of five seconds or more from the result.
	TrimSilence bool
}

// Result describes the merged track.
type Result struct {
	Track      string  `json:"filename"`
	Duration   float64 `json:"duration"`
	TrackCount int     `json:"trackCount"`
	TwoPass    bool    `json:"twoPass"`
}

// SilenceWarning marks a long silent run inside one playlist track.
type SilenceWarning struct {
	TrackIndex int     `json:"trackIndex"`
	Track      string  `json:"track"`
	Start      float64 `json:"start"`
	Duration   float64 `json:"duration"`
}

// Compositor builds new tracks out of existing ones.
type Compositor struct {
	tracks     *library.Store
	playlists  *playlist.Store
	layout     library.Layout
	proc       audio.Processor
	locker     library.Locker
	tempDir    string
	target     audio.LoudnessTarget
	sampleRate int
	bitrate    string
	now        func() time.Time
}

func NewCompositor(tracks *library.Store, playlists *playlist.Store, tempDir string, sampleRate int, bitrate string) *Compositor {
	return &Compositor{
		tracks:     tracks,
		playlists:  playlists,
		layout:     tracks.Layout(),
		proc:       tracks.Processor(),
		locker:     tracks.Locker(),
		tempDir:    tempDir,
		target:     audio.DefaultLoudnessTarget,
		sampleRate: sampleRate,
		bitrate:    bitrate,
		now:        time.Now,
	}
}

// OutputStem is the file stem a merge of a playlist called name starts from.
func OutputStem(name string) string {
	safe := library.SafeName(name)
	if safe == "" {
		safe = defaultMergeStem
	}
	return safe + mergeSuffix
}

// inputs verifies every referenced file; one missing file refuses the merge.
func (c *Compositor) inputs(p *model.Playlist) ([]string, error) {
	if len(p.Tracks) == 0 {
		return nil, fmt.Errorf("playlist %s: %w", p.Name, model.ErrEmptyPlaylist)
	}
	names := p.Filenames()
	for _, name := range names {
		if !c.tracks.Exists(name) {
			return nil, fmt.Errorf("%s: %w", name, model.ErrTrackMissing)
		}
	}
	return names, nil
}

// ScanSilence reports long silent runs per track so the caller can decide
// whether to merge with TrimSilence. Dangling references are skipped.
func (c *Compositor) ScanSilence(ctx context.Context, playlistID string) ([]SilenceWarning, error) {
	p, err := c.playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	warnings := []SilenceWarning{}
	for i, name := range p.Filenames() {
		if !c.tracks.Exists(name) {
			continue
		}
		path := c.layout.AudioPath(name)
		res, err := c.proc.DetectSilence(ctx, path, audio.GapSilenceThresholdDB, audio.GapSilenceMinDuration)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Silence scan failed", logger.Track(name), logger.ErrorField(err))
			continue
		}
		spans := audio.ParseSilence(res.Output)
		if len(spans) == 0 {
			continue
		}
		var total float64
		for _, span := range spans {
			d := span.Duration
			if span.Open {
				if total == 0 {
					total, _ = c.proc.Duration(ctx, path)
				}
				d = total - span.Start
			}
			if d < audio.GapSilenceMinDuration {
				continue
			}
			warnings = append(warnings, SilenceWarning{TrackIndex: i, Track: name, Start: span.Start, Duration: d})
		}
	}
	return warnings, nil
}

// Merge concatenates the playlist in order, loudness-matches the result and
// stores it as a new track. Nothing is written unless every track exists.
func (c *Compositor) Merge(ctx context.Context, playlistID string, opts Options) (*Result, error) {
	p, err := c.playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	names, err := c.inputs(p)
	if err != nil {
		return nil, err
	}

	outName, unlock, err := c.layout.ClaimName(ctx, c.locker, OutputStem(p.Name), " ", names...)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if _, err := c.inputs(p); err != nil {
		return nil, err
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = c.layout.AudioPath(name)
	}

	work, err := os.MkdirTemp(c.tempDir, "merge-")
	if err != nil {
		return nil, fmt.Errorf("failed to create merge workspace: %w", err)
	}
	defer os.RemoveAll(work)

	concat := filepath.Join(work, "concat"+c.layout.Ext)
	if _, err := c.proc.Concat(ctx, paths, concat); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConcatenationFailed, err)
	}

	var measured *audio.LoudnessStats
	res, err := c.proc.LoudnessAnalyze(ctx, concat, c.target)
	if err == nil {
		if stats, ok := audio.ParseLoudness(res.Output); ok {
			measured = stats
		}
	}
	if measured == nil {
		logger.Warn("Loudness analysis unavailable, using single-pass normalization",
			logger.Playlist(p.Name), logger.ErrorField(err))
	}

	tmp := c.layout.TempPath(outName, "merge")
	_, err = c.proc.LoudnessApply(ctx, audio.LoudnessApplyRequest{
		Input:       concat,
		Output:      tmp,
		Target:      c.target,
		Measured:    measured,
		TrimSilence: opts.TrimSilence,
		SampleRate:  c.sampleRate,
		Bitrate:     c.bitrate,
	})
	if err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to normalize merged playlist: %w", err)
	}
	if err := os.Rename(tmp, c.layout.AudioPath(outName)); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to place merged track: %w", err)
	}

	var duration float64
	for i, path := range paths {
		d, err := c.proc.Duration(ctx, path)
		if err != nil {
			logger.Warn("Duration probe failed", logger.Track(names[i]), logger.ErrorField(err))
			continue
		}
		duration += d
	}

	now := c.now()
	sc := &model.Sidecar{
		Timestamp:      now.Unix(),
		Artist:         mergeArtist,
		Title:          p.Name + mergeSuffix,
		Album:          mergeAlbum,
		Summary:        fmt.Sprintf("Merged playlist containing %d tracks: %s", len(names), strings.Join(names, ", ")),
		Merged:         now.Format("2006-01-02 15:04:05"),
		SourcePlaylist: p.Name,
		TrackCount:     len(names),
	}
	if err := c.layout.WriteSidecar(outName, sc); err != nil {
		logger.Warn("Merged track has no sidecar", logger.Track(outName), logger.ErrorField(err))
	}

	logger.Info("Playlist merged",
		logger.Playlist(p.Name),
		logger.Track(outName),
		logger.Int("inputs", len(names)),
		logger.Bool("two_pass", measured != nil),
		logger.Bool("trim_silence", opts.TrimSilence))
	return &Result{Track: outName, Duration: duration, TrackCount: len(names), TwoPass: measured != nil}, nil
}

// MixOptions tune MixBackground.
type MixOptions struct {
	BedVolume float64 // linear, DefaultBedVolume when zero
}

// MixBackground lays bed, looped, under voice and stores the result as a
// new track. Both inputs are left untouched.
func (c *Compositor) MixBackground(ctx context.Context, voice, bed string, opts MixOptions) (string, error) {
	for _, name := range []string{voice, bed} {
		if !c.tracks.Exists(name) {
			return "", fmt.Errorf("track %s: %w", name, model.ErrNotFound)
		}
	}
	volume := opts.BedVolume
	if volume == 0 {
		volume = DefaultBedVolume
	}
	if volume < 0 || volume > 1 {
		return "", fmt.Errorf("%w: bed volume %v", model.ErrInvalidArgument, volume)
	}

	stem := library.SafeName(c.layout.Stem(voice))
	if stem == "" {
		stem = "Mix"
	}
	outName, unlock, err := c.layout.ClaimName(ctx, c.locker, stem+mixSuffix, " ", voice, bed)
	if err != nil {
		return "", err
	}
	defer unlock()

	tmp := c.layout.TempPath(outName, "mix")
	_, err = c.proc.Mix(ctx, audio.MixRequest{
		Foreground: c.layout.AudioPath(voice),
		Bed:        c.layout.AudioPath(bed),
		Output:     tmp,
		BedVolume:  volume,
		SampleRate: c.sampleRate,
		Bitrate:    c.bitrate,
	})
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to mix %s with %s: %w", voice, bed, err)
	}
	if err := os.Rename(tmp, c.layout.AudioPath(outName)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to place mixed track: %w", err)
	}

	sc, _, err := c.layout.ReadSidecar(voice)
	if err != nil || sc == nil {
		sc = &model.Sidecar{}
	}
	if sc.Title == "" {
		sc.Title = c.layout.Stem(voice)
	}
	sc.Title += mixSuffix
	sc.Summary = strings.TrimSpace(sc.Summary + "\nBackground: " + bed)
	sc.Timestamp = c.now().Unix()
	if err := c.layout.WriteSidecar(outName, sc); err != nil {
		logger.Warn("Mixed track has no sidecar", logger.Track(outName), logger.ErrorField(err))
	}
	logger.Info("Background mixed", logger.String("voice", voice), logger.String("bed", bed), logger.Track(outName))
	return outName, nil
}

// IsRefusal reports whether err means the merge never started.
func IsRefusal(err error) bool {
	return errors.Is(err, model.ErrTrackMissing) || errors.Is(err, model.ErrEmptyPlaylist) || errors.Is(err, model.ErrNotFound)
}
