package trim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/core/audio"
	"Rippers/core/audio/audiotest"
	"Rippers/core/backup"
	"Rippers/core/library"
	"Rippers/core/normalize"
	"Rippers/core/waveform"
	"Rippers/model"
)

func TestParseTimeSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "  ", want: nil},
		{in: "90", want: ptr(90)},
		{in: "12.5", want: ptr(12.5)},
		{in: "01:30", want: ptr(90)},
		{in: "75:05", want: ptr(4505)},
		{in: "1:2:3", wantErr: true},
		{in: "1.5:30", wantErr: true},
		{in: "-4", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "NaN", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeSpec(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, model.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr(v float64) *float64 { return &v }

type fixture struct {
	engine    *Engine
	proc      *audiotest.Processor
	layout    library.Layout
	backups   *backup.Manager
	waveforms *waveform.Cache
}

func newFixture(t *testing.T) *fixture {
	root := t.TempDir()
	proc := audiotest.New()
	store, err := library.NewStore(library.Options{
		Layout: library.Layout{
			TrackDir:    root,
			Ext:         ".mp3",
			BackupDir:   filepath.Join(root, "backups"),
			WaveformDir: filepath.Join(root, "waveforms"),
		},
		Processor: proc,
	})
	require.NoError(t, err)
	backups := backup.NewManager(store.Layout())
	waveforms := waveform.NewCache(store.Layout(), proc, store.Locker())
	tagger := normalize.NewTagger(store.Layout(), proc)
	return &fixture{
		engine:    NewEngine(store, backups, waveforms, tagger, 44100, "192k"),
		proc:      proc,
		layout:    store.Layout(),
		backups:   backups,
		waveforms: waveforms,
	}
}

func (f *fixture) write(t *testing.T, name, body string) {
	require.NoError(t, os.WriteFile(f.layout.AudioPath(name), []byte(body), 0644))
}

func (f *fixture) read(t *testing.T, name string) string {
	data, err := os.ReadFile(f.layout.AudioPath(name))
	require.NoError(t, err)
	return string(data)
}

func TestApplyCutsInPlaceWithoutBackup(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.mp3", "pcm")
	require.NoError(t, os.WriteFile(f.layout.WaveformPath("a.mp3"), []byte("png"), 0644))

	require.NoError(t, f.engine.Apply(context.Background(), "a.mp3", ptr(30), nil))

	assert.Equal(t, "pcm|transcode", f.read(t, "a.mp3"))
	assert.False(t, f.backups.Exists("a.mp3"))
	assert.False(t, f.waveforms.Exists("a.mp3"))

	calls := f.proc.CallsFor(audio.OpTranscode)
	require.Len(t, calls, 1)
	req := calls[0].Request.(audio.TranscodeRequest)
	assert.True(t, req.StreamCopy)
	assert.True(t, req.CopyMetadata)
	assert.Equal(t, 30.0, *req.Start)
	assert.Nil(t, req.End)
}

func TestApplyFailureLeavesOriginal(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.mp3", "pcm")
	f.proc.Fail[audio.OpTranscode] = true

	err := f.engine.Apply(context.Background(), "a.mp3", nil, ptr(10))
	require.Error(t, err)
	assert.Equal(t, "pcm", f.read(t, "a.mp3"))
	assert.NoFileExists(t, f.layout.TempPath("a.mp3", "trim"))
}

func TestApplyRejectsBadRanges(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.mp3", "pcm")

	err := f.engine.Apply(context.Background(), "a.mp3", nil, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	err = f.engine.Apply(context.Background(), "a.mp3", ptr(20), ptr(10))
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	err = f.engine.Apply(context.Background(), "ghost.mp3", ptr(1), nil)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Empty(t, f.proc.Calls)
}

func TestTrimSilenceTakesBackup(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.mp3", "pcm")

	require.NoError(t, f.engine.TrimSilence(context.Background(), "a.mp3"))
	assert.True(t, f.backups.Exists("a.mp3"))
	backupData, err := os.ReadFile(f.backups.Path("a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "pcm", string(backupData))

	req := f.proc.CallsFor(audio.OpTranscode)[0].Request.(audio.TranscodeRequest)
	assert.Equal(t, audio.SilenceEdgeFilter(), req.AudioFilter)
	assert.False(t, req.StreamCopy)
}

func TestTrimSilenceFailureDiscardsNewBackup(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.mp3", "pcm")
	f.proc.Fail[audio.OpTranscode] = true

	require.Error(t, f.engine.TrimSilence(context.Background(), "a.mp3"))
	assert.False(t, f.backups.Exists("a.mp3"))
	assert.Equal(t, "pcm", f.read(t, "a.mp3"))
}

func TestTrimSilenceFailureKeepsEarlierBackup(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.mp3", "pristine")
	_, err := f.backups.Create("a.mp3")
	require.NoError(t, err)
	f.write(t, "a.mp3", "edited")
	f.proc.Fail[audio.OpTranscode] = true

	require.Error(t, f.engine.TrimSilence(context.Background(), "a.mp3"))
	assert.True(t, f.backups.Exists("a.mp3"))
	data, err := os.ReadFile(f.backups.Path("a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "pristine", string(data))
}
