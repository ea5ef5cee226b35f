package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/core/audio"
	"Rippers/core/audio/audiotest"
	"Rippers/model"
)

func newTestStore(t *testing.T) (*Store, *audiotest.Processor) {
	t.Helper()
	root := t.TempDir()
	proc := audiotest.New()
	s, err := NewStore(Options{
		Layout: Layout{
			TrackDir:    root,
			Ext:         ".mp3",
			BackupDir:   filepath.Join(root, "backups"),
			WaveformDir: filepath.Join(root, "waveforms"),
		},
		Processor:  proc,
		SampleRate: 44100,
		Bitrate:    "192k",
	})
	require.NoError(t, err)
	return s, proc
}

func writeTrack(t *testing.T, s *Store, name, body string, mtime time.Time) {
	t.Helper()
	path := s.layout.AudioPath(name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{TrackDir: "dl", Ext: ".mp3", BackupDir: "dl/backups", WaveformDir: "dl/waveforms"}

	assert.Equal(t, filepath.Join("dl", "song.mp3.meta"), l.SidecarPath("song.mp3"))
	assert.Equal(t, filepath.Join("dl/backups", "song_backup.mp3"), l.BackupPath("song.mp3"))
	assert.Equal(t, filepath.Join("dl/waveforms", "song_waveform.png"), l.WaveformPath("song.mp3"))
	assert.Equal(t, filepath.Join("dl", ".song.trim.tmp.mp3"), l.TempPath("song.mp3", "trim"))

	assert.True(t, l.IsTrackFile("song.mp3"))
	assert.True(t, l.IsTrackFile("LOUD.MP3"))
	assert.True(t, l.IsTrackFile("song_backup.mp3"))
	assert.False(t, l.IsTrackFile(".song.trim.tmp.mp3"))
	assert.False(t, l.IsTrackFile("song.mp3.meta"))

	assert.Equal(t, "new.mp3", l.WithExt("new"))
	assert.Equal(t, "new.mp3", l.WithExt("new.mp3"))
}

func TestValidNameAndSafeName(t *testing.T) {
	assert.True(t, ValidName("song.mp3"))
	assert.False(t, ValidName("../song.mp3"))
	assert.False(t, ValidName("a/b.mp3"))
	assert.False(t, ValidName(""))

	assert.Equal(t, "MixTape  2024", SafeName("Mix/Tape & 2024!"))
	assert.Equal(t, "", SafeName("???"))
}

func TestUniqueName(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, "Memo.mp3", s.layout.UniqueName("Memo", "_"))

	writeTrack(t, s, "Memo.mp3", "a", time.Now())
	assert.Equal(t, "Memo_1.mp3", s.layout.UniqueName("Memo", "_"))

	writeTrack(t, s, "Memo_1.mp3", "b", time.Now())
	assert.Equal(t, "Memo_2.mp3", s.layout.UniqueName("Memo", "_"))
}

func TestSidecarMissingKeysReadAsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(s.layout.SidecarPath("a.mp3"), []byte(`{"artist":"Queen"}`), 0644))

	sc, ok, err := s.layout.ReadSidecar("a.mp3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Queen", sc.Artist)
	assert.Empty(t, sc.Title)
	assert.Empty(t, sc.URL)

	_, ok, err = s.layout.ReadSidecar("none.mp3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListOrdersNewestFirstAndJoinsSidecars(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now()
	writeTrack(t, s, "old.mp3", "o", now.Add(-2*time.Hour))
	writeTrack(t, s, "new.mp3", "n", now.Add(-time.Minute))
	writeTrack(t, s, "mid.mp3", "m", now.Add(-time.Hour))
	require.NoError(t, s.layout.WriteSidecar("mid.mp3", &model.Sidecar{Artist: "Queen", Title: "Innuendo", Timestamp: 1700000000}))
	require.NoError(t, os.WriteFile(s.layout.BackupPath("old.mp3"), []byte("o"), 0644))

	tracks, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "new.mp3", tracks[0].Name)
	assert.Equal(t, "mid.mp3", tracks[1].Name)
	assert.Equal(t, "old.mp3", tracks[2].Name)

	assert.True(t, tracks[1].HasSidecar)
	assert.Equal(t, "Queen - Innuendo", tracks[1].DisplayName())
	assert.Equal(t, int64(1700000000), tracks[1].AcquiredAt.Unix())
	assert.Equal(t, tracks[0].ModTime, tracks[0].AcquiredAt)
	assert.True(t, tracks[2].HasBackup)
}

func TestListEvictsExpiredTracks(t *testing.T) {
	s, _ := newTestStore(t)
	s.maxAge = 8 * time.Hour
	now := time.Now()
	writeTrack(t, s, "stale.mp3", "s", now.Add(-9*time.Hour))
	require.NoError(t, s.layout.WriteSidecar("stale.mp3", &model.Sidecar{Title: "stale"}))
	require.NoError(t, os.WriteFile(s.layout.BackupPath("stale.mp3"), []byte("s"), 0644))
	writeTrack(t, s, "fresh.mp3", "f", now.Add(-time.Hour))

	tracks, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "fresh.mp3", tracks[0].Name)
	assert.NoFileExists(t, s.layout.SidecarPath("stale.mp3"))
	assert.NoFileExists(t, s.layout.BackupPath("stale.mp3"))
}

func TestGetFallsBackToEmbeddedTags(t *testing.T) {
	s, proc := newTestStore(t)
	writeTrack(t, s, "a.mp3", "a", time.Now())
	proc.Tags["a.mp3"] = map[string]string{"artist": "Tagged", "title": "From ID3", "comment": "https://example.com/v"}
	require.NoError(t, s.layout.WriteSidecar("a.mp3", &model.Sidecar{Artist: "Sidecar Artist"}))

	tr, err := s.Get(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Sidecar Artist", tr.Artist)
	assert.Equal(t, "From ID3", tr.Title)
	assert.Equal(t, "https://example.com/v", tr.SourceURL)

	_, err = s.Get(context.Background(), "missing.mp3")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestProbeDefaultsUnparsablePeakToZero(t *testing.T) {
	s, proc := newTestStore(t)
	writeTrack(t, s, "a.mp3", "a", time.Now())
	proc.Durations["a.mp3"] = 182.5

	tr, err := s.Probe(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.NotNil(t, tr.PeakDB)
	assert.Equal(t, -8.4, *tr.PeakDB)
	assert.Equal(t, 182.5, tr.Duration)
	assert.True(t, tr.NeedsNormalization(-3))

	proc.PeakReport = "no report here"
	tr, err = s.Probe(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, 0.0, *tr.PeakDB)
	assert.False(t, tr.NeedsNormalization(-3))
}

func TestRenameMovesCompanions(t *testing.T) {
	s, _ := newTestStore(t)
	writeTrack(t, s, "a.mp3", "audio", time.Now())
	require.NoError(t, s.layout.WriteSidecar("a.mp3", &model.Sidecar{Title: "A"}))
	require.NoError(t, os.WriteFile(s.layout.WaveformPath("a.mp3"), []byte("png"), 0644))

	got, err := s.Rename(context.Background(), "a.mp3", "b")
	require.NoError(t, err)
	assert.Equal(t, "b.mp3", got)

	assert.NoFileExists(t, s.layout.AudioPath("a.mp3"))
	assert.NoFileExists(t, s.layout.SidecarPath("a.mp3"))
	assert.NoFileExists(t, s.layout.WaveformPath("a.mp3"))
	assert.FileExists(t, s.layout.AudioPath("b.mp3"))
	assert.FileExists(t, s.layout.SidecarPath("b.mp3"))
	assert.FileExists(t, s.layout.WaveformPath("b.mp3"))
}

func TestRenameWithoutCompanionsCreatesNone(t *testing.T) {
	s, _ := newTestStore(t)
	writeTrack(t, s, "a.mp3", "audio", time.Now())

	_, err := s.Rename(context.Background(), "a.mp3", "b.mp3")
	require.NoError(t, err)
	assert.FileExists(t, s.layout.AudioPath("b.mp3"))
	assert.NoFileExists(t, s.layout.SidecarPath("b.mp3"))
	assert.NoFileExists(t, s.layout.WaveformPath("b.mp3"))
	assert.NoFileExists(t, s.layout.BackupPath("b.mp3"))
}

func TestRenameErrors(t *testing.T) {
	s, _ := newTestStore(t)
	writeTrack(t, s, "a.mp3", "a", time.Now())
	writeTrack(t, s, "b.mp3", "b", time.Now())

	_, err := s.Rename(context.Background(), "a.mp3", "b.mp3")
	assert.True(t, errors.Is(err, model.ErrConflict))

	_, err = s.Rename(context.Background(), "missing.mp3", "c.mp3")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = s.Rename(context.Background(), "a.mp3", "../c.mp3")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))

	data, err := os.ReadFile(s.layout.AudioPath("b.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	writeTrack(t, s, "a.mp3", "a", time.Now())
	require.NoError(t, s.layout.WriteSidecar("a.mp3", &model.Sidecar{}))
	require.NoError(t, os.WriteFile(s.layout.WaveformPath("a.mp3"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(s.layout.BackupPath("a.mp3"), []byte("a"), 0644))

	require.NoError(t, s.Delete(context.Background(), "a.mp3"))
	require.NoError(t, s.Delete(context.Background(), "a.mp3"))

	for _, p := range []string{
		s.layout.AudioPath("a.mp3"),
		s.layout.SidecarPath("a.mp3"),
		s.layout.WaveformPath("a.mp3"),
		s.layout.BackupPath("a.mp3"),
	} {
		assert.NoFileExists(t, p)
	}
}

type recordingTagWriter struct{ names []string }

func (w *recordingTagWriter) WriteTags(_ context.Context, name string) error {
	w.names = append(w.names, name)
	return nil
}

func TestUpdateMetadataMergesFields(t *testing.T) {
	s, _ := newTestStore(t)
	writeTrack(t, s, "a.mp3", "a", time.Now())
	require.NoError(t, s.layout.WriteSidecar("a.mp3", &model.Sidecar{URL: "https://example.com", Artist: "Old", Album: "Keep"}))
	tw := &recordingTagWriter{}
	s.SetTagWriter(tw)

	artist, title := "New", "Title"
	sc, err := s.UpdateMetadata(context.Background(), "a.mp3", model.MetadataUpdate{Artist: &artist, Title: &title}, true)
	require.NoError(t, err)
	assert.Equal(t, "New", sc.Artist)
	assert.Equal(t, "Title", sc.Title)
	assert.Equal(t, "Keep", sc.Album)
	assert.Equal(t, "https://example.com", sc.URL)
	assert.Equal(t, []string{"a.mp3"}, tw.names)

	onDisk, ok, err := s.layout.ReadSidecar("a.mp3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sc, onDisk)
}

func TestUpdateMetadataCreatesSidecar(t *testing.T) {
	s, _ := newTestStore(t)
	writeTrack(t, s, "a.mp3", "a", time.Now())
	album := "Live"

	_, err := s.UpdateMetadata(context.Background(), "a.mp3", model.MetadataUpdate{Album: &album}, false)
	require.NoError(t, err)
	sc, ok, err := s.layout.ReadSidecar("a.mp3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Live", sc.Album)

	_, err = s.UpdateMetadata(context.Background(), "missing.mp3", model.MetadataUpdate{Album: &album}, false)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestImportTranscodesUnderUniqueName(t *testing.T) {
	s, proc := newTestStore(t)
	src := filepath.Join(t.TempDir(), "upload.webm")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0644))
	writeTrack(t, s, "Voice memo.mp3", "taken", time.Now())

	tr, err := s.Import(context.Background(), src, ImportOptions{
		Name:     "Voice memo",
		Channels: 1,
		Sidecar:  &model.Sidecar{Artist: "Voice Recording"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Voice memo_1.mp3", tr.Name)
	assert.Equal(t, "Voice Recording", tr.Artist)
	assert.Equal(t, "Voice memo", tr.Title)
	assert.FileExists(t, src)

	calls := proc.CallsFor(audio.OpTranscode)
	require.Len(t, calls, 1)
	req := calls[0].Request.(audio.TranscodeRequest)
	assert.Equal(t, 1, req.Channels)
	assert.Equal(t, 44100, req.SampleRate)
	assert.Equal(t, "192k", req.Bitrate)
}

func TestImportFailureLeavesNothing(t *testing.T) {
	s, proc := newTestStore(t)
	proc.Fail[audio.OpTranscode] = true
	src := filepath.Join(t.TempDir(), "upload.wav")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0644))

	_, err := s.Import(context.Background(), src, ImportOptions{Name: "Memo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, audio.ErrToolFailure))

	names, err := s.Names()
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NoFileExists(t, s.layout.TempPath("Memo.mp3", "import"))
}

func TestKeyedMutexSerializesOneName(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "song.mp3")
			require.NoError(t, err)
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Empty(t, k.locks)
}

func TestKeyedMutexHonorsContext(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := k.Lock(context.Background(), "b")
	require.NoError(t, err)
	other()
}

func TestLockAllSkipsDuplicates(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := LockAll(context.Background(), k, "b", "a", "b")
	require.NoError(t, err)
	unlock()
	assert.Empty(t, k.locks)
}

func TestBackupNamesOnlyHiddenInSharedDirectory(t *testing.T) {
	shared := Layout{TrackDir: "dl", Ext: ".mp3", BackupDir: "dl/", WaveformDir: "dl/waveforms"}
	assert.False(t, shared.IsTrackFile("song_backup.mp3"))
	assert.True(t, shared.IsTrackFile("backup_tape.mp3"))

	s, _ := newTestStore(t)
	ctx := context.Background()
	writeTrack(t, s, "studio.mp3", "s", time.Now())

	got, err := s.Rename(ctx, "studio.mp3", "studio_backup")
	require.NoError(t, err)
	assert.Equal(t, "studio_backup.mp3", got)
	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"studio_backup.mp3"}, names)

	s.layout.BackupDir = s.layout.TrackDir
	writeTrack(t, s, "take.mp3", "t", time.Now())
	_, err = s.Rename(ctx, "take.mp3", "take_backup.mp3")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	assert.FileExists(t, s.layout.AudioPath("take.mp3"))

	src := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0644))
	_, err = s.Import(ctx, src, ImportOptions{Name: "demo_backup"})
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestConcurrentImportsGetDistinctNames(t *testing.T) {
	s, _ := newTestStore(t)
	src := filepath.Join(t.TempDir(), "take.webm")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0644))

	const n = 4
	var wg sync.WaitGroup
	got := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr, err := s.Import(context.Background(), src, ImportOptions{Name: "Rec"})
			errs[i] = err
			if err == nil {
				got[i] = tr.Name
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"Rec.mp3", "Rec_1.mp3", "Rec_2.mp3", "Rec_3.mp3"}, got)
	names, err := s.Names()
	require.NoError(t, err)
	assert.Len(t, names, n)
}

func TestImportRecordingDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	src := filepath.Join(t.TempDir(), "memo.webm")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0644))

	tr, err := s.Import(context.Background(), src, ImportOptions{Name: "Memo"})
	require.NoError(t, err)

	sc, ok, err := s.layout.ReadSidecar(tr.Name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RecordingArtist, sc.Artist)
	assert.Equal(t, RecordingSummary, sc.Summary)
	assert.Equal(t, "Memo", sc.Title)
}
