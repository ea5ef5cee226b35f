// Package logger wraps a process-wide zap logger. Console output goes to
// stderr so command output on stdout stays parseable; an optional rotated
// JSON file receives the same entries.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	global *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// LogLevel names a minimum log level.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Config describes where logs go and how the file output rotates.
type Config struct {
	Level LogLevel
	// Console selects the human readable encoder for stderr instead of JSON.
	Console    bool
	OutputPath string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func parseLevel(l LogLevel) zapcore.Level {
	lvl, err := zapcore.ParseLevel(string(l))
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.RFC3339TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return ec
}

// InitLogger builds the global logger. Later calls only adjust the level,
// so a command can tighten or loosen verbosity after startup.
func InitLogger(config Config) {
	level.SetLevel(parseLevel(config.Level))

	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return
	}
	core, fileErr := buildCore(config, os.Stderr)
	if fileErr != nil {
		// The file sink is optional; keep logging to the console.
		core, _ = buildCore(Config{Console: config.Console}, os.Stderr)
	}
	global = zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if fileErr != nil {
		global.Warn("Log file unavailable, console only",
			zap.String("path", config.OutputPath), zap.Error(fileErr))
	}
}

func buildCore(config Config, console io.Writer) (zapcore.Core, error) {
	ec := encoderConfig()
	var enc zapcore.Encoder
	if config.Console {
		cc := ec
		cc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(cc)
	} else {
		enc = zapcore.NewJSONEncoder(ec)
	}
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(console), level)}

	if config.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o755); err != nil {
			return nil, err
		}
		rotated := &lumberjack.Logger{
			Filename:   config.OutputPath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(ec), zapcore.AddSync(rotated), level))
	}
	return zapcore.NewTee(cores...), nil
}

// SetLevel changes the minimum level of the running logger.
func SetLevel(l LogLevel) {
	level.SetLevel(parseLevel(l))
}

// L returns the global logger, or a no-op logger before InitLogger ran.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
	Sync()
	os.Exit(1)
}

// Track tags an entry with the library name of a track.
func Track(name string) zap.Field { return zap.String("track", name) }

// Playlist tags an entry with a playlist name.
func Playlist(name string) zap.Field { return zap.String("playlist", name) }

func String(key, val string) zap.Field                 { return zap.String(key, val) }
func Strings(key string, val []string) zap.Field       { return zap.Strings(key, val) }
func Int(key string, val int) zap.Field                { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }

// ErrorField wraps err under the "error" key.
func ErrorField(err error) zap.Field { return zap.Error(err) }
