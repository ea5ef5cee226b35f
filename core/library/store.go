package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"Rippers/core/audio"
	"Rippers/logger"
	"Rippers/model"
)

// TagWriter writes sidecar metadata into the embedded tags of a track.
type TagWriter interface {
	WriteTags(ctx context.Context, name string) error
}

// Options configures a Store.
type Options struct {
	Layout     Layout
	Processor  audio.Processor
	Locker     Locker
	MaxAge     time.Duration // zero disables eviction
	SampleRate int
	Bitrate    string
}

// Store is the track directory.
type Store struct {
	layout     Layout
	proc       audio.Processor
	locker     Locker
	maxAge     time.Duration
	sampleRate int
	bitrate    string
	tags       TagWriter
	now        func() time.Time
}

// NewStore creates the track, backup and waveform directories if needed.
func NewStore(opts Options) (*Store, error) {
	for _, dir := range []string{opts.Layout.TrackDir, opts.Layout.BackupDir, opts.Layout.WaveformDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	locker := opts.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Store{
		layout:     opts.Layout,
		proc:       opts.Processor,
		locker:     locker,
		maxAge:     opts.MaxAge,
		sampleRate: opts.SampleRate,
		bitrate:    opts.Bitrate,
		now:        time.Now,
	}, nil
}

func (s *Store) Layout() Layout { return s.layout }

func (s *Store) Locker() Locker { return s.locker }

func (s *Store) Processor() audio.Processor { return s.proc }

// SetTagWriter enables tag write-back in UpdateMetadata.
func (s *Store) SetTagWriter(w TagWriter) { s.tags = w }

// Exists reports whether the audio file of name is present.
func (s *Store) Exists(name string) bool {
	if !ValidName(name) {
		return false
	}
	info, err := os.Stat(s.layout.AudioPath(name))
	return err == nil && !info.IsDir()
}

// Names returns the track file names in directory order.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.layout.TrackDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read track directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !s.layout.IsTrackFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// List evicts expired tracks, then returns the rest newest first.
func (s *Store) List(ctx context.Context) ([]*model.Track, error) {
	if s.maxAge > 0 {
		if _, err := s.EvictExpired(ctx, s.maxAge); err != nil {
			logger.Warn("Eviction sweep failed", logger.ErrorField(err))
		}
	}
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	tracks := make([]*model.Track, 0, len(names))
	for _, name := range names {
		t, err := s.view(name)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		tracks = append(tracks, t)
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].ModTime.After(tracks[j].ModTime)
	})
	return tracks, nil
}

// Get returns the materialized view of one track. Embedded tags fill in
// whatever an absent or incomplete sidecar leaves empty.
func (s *Store) Get(ctx context.Context, name string) (*model.Track, error) {
	t, err := s.view(name)
	if err != nil {
		return nil, err
	}
	if t.Artist != "" && t.Title != "" {
		return t, nil
	}
	if tr, ok := s.proc.(audio.TagReader); ok {
		tags, err := tr.ReadTags(ctx, s.layout.AudioPath(name))
		if err != nil {
			logger.Debug("Reading embedded tags failed", logger.Track(name), logger.ErrorField(err))
			return t, nil
		}
		fill := func(dst *string, key string) {
			if *dst == "" {
				*dst = tags[key]
			}
		}
		fill(&t.Artist, "artist")
		fill(&t.Title, "title")
		fill(&t.Album, "album")
		fill(&t.SourceURL, "comment")
	}
	return t, nil
}

// Probe is Get plus duration and peak measured through the audio tools.
func (s *Store) Probe(ctx context.Context, name string) (*model.Track, error) {
	t, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	path := s.layout.AudioPath(name)
	if d, err := s.proc.Duration(ctx, path); err == nil {
		t.Duration = d
	} else {
		logger.Warn("Duration probe failed", logger.Track(name), logger.ErrorField(err))
	}
	res, err := s.proc.MeasurePeak(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to measure peak of %s: %w", name, err)
	}
	peak, ok := audio.ParsePeak(res.Output)
	if !ok {
		peak = 0
	}
	t.PeakDB = &peak
	return t, nil
}

func (s *Store) view(name string) (*model.Track, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	info, err := os.Stat(s.layout.AudioPath(name))
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("track %s: %w", name, model.ErrNotFound)
	}
	t := &model.Track{
		Name:        name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		AcquiredAt:  info.ModTime(),
		HasBackup:   fileExists(s.layout.BackupPath(name)),
		HasWaveform: fileExists(s.layout.WaveformPath(name)),
	}
	sc, ok, err := s.layout.ReadSidecar(name)
	if err != nil {
		logger.Warn("Ignoring unreadable sidecar", logger.Track(name), logger.ErrorField(err))
		return t, nil
	}
	if !ok {
		return t, nil
	}
	t.HasSidecar = true
	t.Artist = sc.Artist
	t.Title = sc.Title
	t.Album = sc.Album
	t.Summary = sc.Summary
	t.LyricsURL = sc.LyricsURL
	t.ImageURL = sc.ImageURL
	t.SourceURL = sc.URL
	t.OriginalTitle = sc.VideoTitle
	if sc.Timestamp > 0 {
		t.AcquiredAt = time.Unix(sc.Timestamp, 0)
	}
	return t, nil
}

// Rename moves a track and its companions. The new name gets the track
// extension when the caller left it off.
func (s *Store) Rename(ctx context.Context, oldName, newName string) (string, error) {
	newName = s.layout.WithExt(newName)
	if !ValidName(oldName) || !ValidName(newName) || !s.layout.IsTrackFile(newName) {
		return "", fmt.Errorf("%w: rename %q to %q", model.ErrInvalidArgument, oldName, newName)
	}
	if oldName == newName {
		return "", fmt.Errorf("%w: %s", model.ErrConflict, newName)
	}

	unlock, err := LockAll(ctx, s.locker, oldName, newName)
	if err != nil {
		return "", err
	}
	defer unlock()

	if !s.Exists(oldName) {
		return "", fmt.Errorf("track %s: %w", oldName, model.ErrNotFound)
	}
	if fileExists(s.layout.AudioPath(newName)) {
		return "", fmt.Errorf("track %s: %w", newName, model.ErrConflict)
	}
	if err := os.Rename(s.layout.AudioPath(oldName), s.layout.AudioPath(newName)); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", oldName, err)
	}

	companions := [][2]string{
		{s.layout.SidecarPath(oldName), s.layout.SidecarPath(newName)},
		{s.layout.WaveformPath(oldName), s.layout.WaveformPath(newName)},
		{s.layout.BackupPath(oldName), s.layout.BackupPath(newName)},
	}
	for _, c := range companions {
		if err := renameIfExists(c[0], c[1]); err != nil {
			logger.Warn("Companion rename failed",
				logger.String("from", c[0]), logger.String("to", c[1]), logger.ErrorField(err))
		}
	}
	logger.Info("Track renamed", logger.String("from", oldName), logger.String("to", newName))
	return newName, nil
}

// Delete removes a track and every companion. Deleting a missing track succeeds.
func (s *Store) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	unlock, err := s.locker.Lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()
	return s.deleteLocked(name)
}

func (s *Store) deleteLocked(name string) error {
	if err := removeIfExists(s.layout.AudioPath(name)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	for _, path := range []string{
		s.layout.SidecarPath(name),
		s.layout.WaveformPath(name),
		s.layout.BackupPath(name),
	} {
		if err := removeIfExists(path); err != nil {
			logger.Warn("Companion delete failed", logger.String("path", path), logger.ErrorField(err))
		}
	}
	return nil
}

// EvictExpired deletes every track whose mtime is older than maxAge and
// returns the names it removed.
func (s *Store) EvictExpired(ctx context.Context, maxAge time.Duration) ([]string, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	horizon := s.now().Add(-maxAge)
	var evicted []string
	for _, name := range names {
		info, err := os.Stat(s.layout.AudioPath(name))
		if err != nil || !info.ModTime().Before(horizon) {
			continue
		}
		if err := s.Delete(ctx, name); err != nil {
			return evicted, err
		}
		evicted = append(evicted, name)
	}
	if len(evicted) > 0 {
		logger.Info("Evicted expired tracks", logger.Strings("tracks", evicted))
	}
	return evicted, nil
}

// UpdateMetadata merges update into the sidecar and, when writeTags is set,
// pushes the result into the embedded tags.
func (s *Store) UpdateMetadata(ctx context.Context, name string, update model.MetadataUpdate, writeTags bool) (*model.Sidecar, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
	}
	sc, err := s.updateSidecar(ctx, name, update)
	if err != nil {
		return nil, err
	}
	if writeTags && s.tags != nil {
		if err := s.tags.WriteTags(ctx, name); err != nil {
			return sc, fmt.Errorf("metadata saved but tag write failed: %w", err)
		}
	}
	return sc, nil
}

func (s *Store) updateSidecar(ctx context.Context, name string, update model.MetadataUpdate) (*model.Sidecar, error) {
	unlock, err := s.locker.Lock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !s.Exists(name) {
		return nil, fmt.Errorf("track %s: %w", name, model.ErrNotFound)
	}
	return s.layout.MergeSidecar(name, update)
}

// ImportOptions describes an uploaded or recorded file.
type ImportOptions struct {
	Name     string // display name; the file name is derived from it
	Channels int    // 0 keeps the source layout
	Sidecar  *model.Sidecar
}

// Sidecar defaults for imported recordings.
const (
	RecordingArtist  = "Voice Recording"
	RecordingSummary = "Voice recording imported into Rippers"
)

// Import transcodes src into the track format under a fresh name and writes
// its sidecar. The source file is left alone.
func (s *Store) Import(ctx context.Context, src string, opts ImportOptions) (*model.Track, error) {
	stem := SafeName(opts.Name)
	if stem == "" {
		stem = "Recording"
	}
	name, unlock, err := s.layout.ClaimName(ctx, s.locker, stem, "_")
	if err != nil {
		return nil, err
	}
	defer unlock()

	tmp := s.layout.TempPath(name, "import")
	_, err = s.proc.Transcode(ctx, audio.TranscodeRequest{
		Input:      src,
		Output:     tmp,
		ExtraArgs:  []string{"-vn"},
		SampleRate: s.sampleRate,
		Channels:   opts.Channels,
		Bitrate:    s.bitrate,
	})
	if err != nil {
		_ = removeIfExists(tmp)
		return nil, fmt.Errorf("failed to import %s: %w", filepath.Base(src), err)
	}
	if err := os.Rename(tmp, s.layout.AudioPath(name)); err != nil {
		_ = removeIfExists(tmp)
		return nil, fmt.Errorf("failed to place imported track %s: %w", name, err)
	}

	sc := opts.Sidecar
	if sc == nil {
		sc = &model.Sidecar{}
	}
	if sc.Title == "" {
		sc.Title = opts.Name
	}
	if sc.Artist == "" {
		sc.Artist = RecordingArtist
	}
	if sc.Summary == "" {
		sc.Summary = RecordingSummary
	}
	if sc.Timestamp == 0 {
		sc.Timestamp = s.now().Unix()
	}
	if err := s.layout.WriteSidecar(name, sc); err != nil {
		logger.Warn("Imported track has no sidecar", logger.Track(name), logger.ErrorField(err))
	}
	logger.Info("Track imported", logger.Track(name), logger.String("source", filepath.Base(src)))
	return s.view(name)
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
