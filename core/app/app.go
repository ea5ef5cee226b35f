// Package app assembles the library services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"Rippers/cache"
	"Rippers/config"
	"Rippers/core/archive"
	"Rippers/core/audio"
	"Rippers/core/backup"
	"Rippers/core/ingest"
	"Rippers/core/library"
	"Rippers/core/merge"
	"Rippers/core/metadata"
	"Rippers/core/normalize"
	"Rippers/core/playlist"
	"Rippers/core/trim"
	"Rippers/core/waveform"
	"Rippers/db"
	"Rippers/logger"
	"Rippers/model"
	"Rippers/repository"
	"Rippers/storage"

	"github.com/go-redis/redis/v8"
)

// Services is every component a surface (CLI or HTTP) needs.
type Services struct {
	Config *config.Config

	Processor  audio.Processor
	Tracks     *library.Store
	Backups    *backup.Manager
	Waveforms  *waveform.Cache
	Normalizer *normalize.Engine
	Trimmer    *trim.Engine
	Playlists  *playlist.Store
	Compositor *merge.Compositor
	Acquirer   *ingest.Acquirer
	Watcher    *ingest.Watcher
	Activity   repository.ActivityRepository

	// ArchiveStore is nil unless MinIO is configured.
	ArchiveStore *storage.ArchiveStore

	archiveMu sync.RWMutex
	archive   *archive.Matcher

	closers []func() error
}

// Options overrides the external tools, mainly for tests.
type Options struct {
	Processor audio.Processor
	Fetcher   ingest.Fetcher
	Locker    library.Locker
}

// New wires the services against the real ffmpeg and yt-dlp binaries.
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	return NewWithOptions(ctx, cfg, Options{})
}

func NewWithOptions(ctx context.Context, cfg *config.Config, opts Options) (*Services, error) {
	s := &Services{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
	}

	s.Processor = opts.Processor
	if s.Processor == nil {
		s.Processor = audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
	}

	rdb, err := s.connectRedis(cfg, opts.Locker == nil)
	if err != nil {
		return nil, err
	}
	if rdb != nil && cfg.RedisCache {
		s.Processor = audio.NewCachedProcessor(s.Processor, cache.NewReportCache(rdb, cfg.ReportTTL))
		logger.Info("Caching peak measurements in Redis", logger.Duration("ttl", cfg.ReportTTL))
	}

	locker := opts.Locker
	if locker == nil {
		locker = library.NewKeyedMutex()
		if rdb != nil && cfg.RedisLocks {
			locker = cache.NewRedisLocker(rdb)
			logger.Info("Using Redis track locks",
				logger.String("host", cfg.RedisHost),
				logger.String("port", cfg.RedisPort))
		}
	}

	tracks, err := library.NewStore(library.Options{
		Layout: library.Layout{
			TrackDir:    cfg.TrackDir,
			Ext:         cfg.TrackExt,
			BackupDir:   cfg.BackupDir,
			WaveformDir: cfg.WaveformDir,
		},
		Processor:  s.Processor,
		Locker:     locker,
		MaxAge:     cfg.MaxFileAge,
		SampleRate: cfg.AudioSampleRate,
		Bitrate:    cfg.AudioBitrate,
	})
	if err != nil {
		return nil, err
	}
	s.Tracks = tracks
	s.Backups = backup.NewManager(tracks.Layout())
	s.Waveforms = waveform.NewCache(tracks.Layout(), s.Processor, tracks.Locker())
	s.Normalizer = normalize.NewEngine(tracks, s.Backups, s.Waveforms, cfg.AudioSampleRate, cfg.AudioBitrate)
	tracks.SetTagWriter(s.Normalizer)
	s.Trimmer = trim.NewEngine(tracks, s.Backups, s.Waveforms, s.Normalizer.Tagger(), cfg.AudioSampleRate, cfg.AudioBitrate)
	s.Playlists = playlist.NewStore(cfg.PlaylistFile)
	s.Compositor = merge.NewCompositor(tracks, s.Playlists, cfg.TempDir, cfg.AudioSampleRate, cfg.AudioBitrate)

	if s.Activity, err = s.activity(cfg); err != nil {
		return nil, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = ingest.NewYTDLPFetcher(cfg.YtDlpPath, cfg.TrackExt)
	}
	s.Acquirer = ingest.NewAcquirer(tracks, fetcher, ingest.Deps{
		Parser: metadata.Chain{
			metadata.NewHTTPTitleParser(cfg.TitleParserURL, cfg.TitleParserKey, cfg.TitleParserModel),
			metadata.SplitParser{},
		},
		Pages:    metadata.NewPageTitleFetcher(),
		Tags:     s.Normalizer,
		Activity: s.Activity,
	})
	s.Watcher = ingest.NewWatcher(tracks, ingest.DefaultSettle)

	if cfg.MinioEndpoint != "" {
		if s.ArchiveStore, err = storage.NewArchiveStore(cfg); err != nil {
			return nil, err
		}
	}
	if err := s.ReloadArchive(ctx); err != nil {
		logger.Warn("Archive index unavailable", logger.ErrorField(err))
		s.setArchive(archive.NewMatcher(nil))
	}

	ok = true
	return s, nil
}

// connectRedis connects when a Redis feature is switched on, else returns nil.
func (s *Services) connectRedis(cfg *config.Config, wantLocks bool) (*redis.Client, error) {
	if !cfg.RedisCache && !(cfg.RedisLocks && wantLocks) {
		return nil, nil
	}
	client, err := cache.ConnectRedis(cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, client.Close)
	return client, nil
}

// activity picks the log backend: SQLite file, then MySQL, then JSON file.
func (s *Services) activity(cfg *config.Config) (repository.ActivityRepository, error) {
	switch {
	case cfg.ActivityDB != "":
		repo, err := repository.OpenSQLiteActivityRepository(cfg.ActivityDB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, repo.Close)
		return repo, nil
	case cfg.DBHost != "":
		gdb, err := db.Connect(cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Closer(gdb))
		if err := db.Migrate(gdb, &model.ActivityEntry{}); err != nil {
			return nil, err
		}
		return repository.NewGormActivityRepository(gdb), nil
	default:
		return repository.NewJSONActivityRepository(cfg.ActivityLog), nil
	}
}

// Archive returns the currently loaded archive index.
func (s *Services) Archive() *archive.Matcher {
	s.archiveMu.RLock()
	defer s.archiveMu.RUnlock()
	return s.archive
}

func (s *Services) setArchive(m *archive.Matcher) {
	s.archiveMu.Lock()
	s.archive = m
	s.archiveMu.Unlock()
}

// ReloadArchive reads the index from the bucket when ARCHIVE_OBJECT is set,
// otherwise from the local file. A missing local file is an empty index.
func (s *Services) ReloadArchive(ctx context.Context) error {
	var (
		m   *archive.Matcher
		err error
	)
	if s.ArchiveStore != nil && s.Config.ArchiveObject != "" {
		m, err = s.remoteArchive(ctx)
	} else {
		m, err = archive.LoadIndexFile(s.Config.ArchiveIndex)
	}
	if err != nil {
		return err
	}
	s.setArchive(m)
	logger.Info("Archive index loaded",
		logger.Int("entries", m.Len()),
		logger.String("generated", m.Generated()))
	return nil
}

func (s *Services) remoteArchive(ctx context.Context) (*archive.Matcher, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	rc, err := s.ArchiveStore.FetchIndex(ctx, s.Config.ArchiveObject)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	m, err := archive.LoadIndex(rc)
	if err != nil {
		return nil, fmt.Errorf("archive object %s: %w", s.Config.ArchiveObject, err)
	}
	return m, nil
}

// Close releases the external connections in reverse order of opening.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// TrackLookup resolves playlist entries for M3U export.
func (s *Services) TrackLookup(ctx context.Context) playlist.Lookup {
	return func(name string) (string, bool) {
		t, err := s.Tracks.Get(ctx, name)
		if err != nil {
			return "", false
		}
		return t.DisplayName(), true
	}
}
