package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/config"
	"Rippers/core/audio/audiotest"
	"Rippers/core/library"
	"Rippers/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	tracks := filepath.Join(root, "downloads")
	return &config.Config{
		TrackDir:        tracks,
		TrackExt:        ".mp3",
		BackupDir:       filepath.Join(tracks, "backups"),
		WaveformDir:     filepath.Join(tracks, "waveforms"),
		TempDir:         filepath.Join(root, "tmp"),
		PlaylistFile:    filepath.Join(root, "playlists.json"),
		ArchiveIndex:    filepath.Join(root, "archive_index.json"),
		ActivityLog:     filepath.Join(root, "rip_log.json"),
		MaxFileAge:      8 * time.Hour,
		AudioBitrate:    "192k",
		AudioSampleRate: 44100,
		YtDlpPath:       "yt-dlp",
	}
}

func TestNewWiresLocalBackends(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.ArchiveIndex, []byte(`{"generated":"2024-01-01","total_files":1,
		"files":[{"path":"Queen/Jazz/Don't Stop Me Now.mp3","artist":"Queen","title":"Don't Stop Me Now","album":"Jazz"}]}`), 0644))

	s, err := NewWithOptions(context.Background(), cfg, Options{Processor: audiotest.New()})
	require.NoError(t, err)
	defer s.Close()

	assert.DirExists(t, cfg.TrackDir)
	assert.DirExists(t, cfg.BackupDir)
	assert.Nil(t, s.ArchiveStore)
	assert.Equal(t, 1, s.Archive().Len())

	entry, ok := s.Archive().MatchByArtistTitle("queen", "dont stop me now")
	require.True(t, ok)
	assert.Equal(t, "Jazz", entry.Album)

	require.NoError(t, s.Activity.Add(context.Background(), &model.ActivityEntry{Timestamp: 1, Status: model.ActivityStatusSuccess}))
	assert.FileExists(t, cfg.ActivityLog)
}

func TestNewSQLiteActivityAndMissingArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.ActivityDB = filepath.Join(filepath.Dir(cfg.ActivityLog), "activity.db")

	s, err := NewWithOptions(context.Background(), cfg, Options{Processor: audiotest.New()})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 0, s.Archive().Len())
	require.NoError(t, s.Activity.Add(context.Background(), &model.ActivityEntry{Timestamp: 1, Status: model.ActivityStatusFailed}))
	entries, err := s.Activity.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NoFileExists(t, cfg.ActivityLog)
}

func TestCorruptArchiveFallsBackToEmpty(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.ArchiveIndex, []byte(`{not json`), 0644))

	s, err := NewWithOptions(context.Background(), cfg, Options{Processor: audiotest.New()})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 0, s.Archive().Len())
	assert.Error(t, s.ReloadArchive(context.Background()))
}

func TestNewFailsWhenRedisIsUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisHost, cfg.RedisPort = "127.0.0.1", "1"
	cfg.RedisCache = true

	_, err := NewWithOptions(context.Background(), cfg, Options{Processor: audiotest.New()})
	assert.Error(t, err)
}

func TestNewSkipsRedisForInjectedLocker(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisHost, cfg.RedisPort = "127.0.0.1", "1"
	cfg.RedisLocks = true

	s, err := NewWithOptions(context.Background(), cfg, Options{Processor: audiotest.New(), Locker: library.NewKeyedMutex()})
	require.NoError(t, err)
	s.Close()
}
