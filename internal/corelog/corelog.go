// Package corelog provides the structured logger used across the engine.
//
// It wraps zap the way packetd's logger package does: a small set of
// level methods over a *zap.Logger, a process-wide default instance,
// and an Options struct the caller fills in directly rather than a
// config-file format (file parsing is outside this module's scope).
package corelog

import (
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the default logger. There is no file-format loader
// for Options; callers construct it in process.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// JSON selects the JSON encoder instead of the console encoder.
	JSON bool
	// Output defaults to os.Stderr when nil.
	Output zapcore.WriteSyncer
}

func toZapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.Logger from Options.
func New(opt Options) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if opt.JSON {
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	out := opt.Output
	if out == nil {
		out = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, out, toZapLevel(opt.Level))
	return zap.New(core, zap.AddCaller())
}

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(New(Options{Level: "info"}))
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *zap.Logger) {
	current.Store(l)
}

// L returns the process-wide logger.
func L() *zap.Logger {
	return current.Load()
}
