package logger

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(DebugLevel))
	assert.Equal(t, zapcore.WarnLevel, parseLevel(WarnLevel))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel(ErrorLevel))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestHelpersBeforeInit(t *testing.T) {
	assert.NotNil(t, L())
	assert.NotPanics(t, func() {
		Info("not initialised", String("k", "v"))
		Warn("still fine", ErrorField(assert.AnError))
		Sync()
	})
}

func TestSetLevelAdjustsRunningLogger(t *testing.T) {
	InitLogger(Config{Level: InfoLevel})
	defer SetLevel(InfoLevel)

	assert.False(t, L().Core().Enabled(zapcore.DebugLevel))
	SetLevel(DebugLevel)
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))

	// A second InitLogger keeps the logger and only moves the level.
	first := L()
	InitLogger(Config{Level: ErrorLevel})
	assert.Same(t, first, L())
	assert.False(t, L().Core().Enabled(zapcore.WarnLevel))
}

func TestBuildCoreWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rippers.log")
	core, err := buildCore(Config{OutputPath: path, MaxSize: 1}, io.Discard)
	require.NoError(t, err)

	zap.New(core).Warn("Track trimmed", Track("song.mp3"))
	require.NoError(t, core.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"track":"song.mp3"`)
	assert.Contains(t, string(data), `"msg":"Track trimmed"`)
}

func TestBuildCoreRejectsUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := buildCore(Config{OutputPath: filepath.Join(blocker, "sub", "x.log")}, io.Discard)
	assert.Error(t, err)
}
