// Package logger exposes the process-wide leveled logger used by every
// bridge component. It is a thin printf-style facade over zap so callers
// never carry a logger handle around; hook invocations and the daemon share
// the same configuration surface.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the verbosity threshold used by the logger. Lower values are more
// verbose.
type Level = zapcore.Level

const (
	// LevelDebug enables verbose logs intended for debugging.
	LevelDebug = zapcore.DebugLevel
	// LevelInfo enables informational logs (default).
	LevelInfo = zapcore.InfoLevel
	// LevelWarn enables only warnings and errors.
	LevelWarn = zapcore.WarnLevel
	// LevelError enables only error logs.
	LevelError = zapcore.ErrorLevel
)

var (
	mu    sync.RWMutex
	log   = zap.NewNop().Sugar()
	level = zap.NewAtomicLevelAt(LevelInfo)
)

// ParseLevel parses a log level string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// Init configures the global logger. Logs always go to a rotating-free file
// under logDir; when debug is set they are mirrored to stderr as well.
// Safe to call more than once (last call wins).
func Init(logDir string, debug bool) error {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if debug {
		level.SetLevel(LevelDebug)
	}

	cores := make([]zapcore.Core, 0, 2)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
		path := filepath.Join(logDir, "bridge.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level))
	}
	if debug || logDir == "" {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))

	mu.Lock()
	log = logger.Sugar()
	mu.Unlock()
	return nil
}

// SetLevel sets the global log level threshold.
func SetLevel(l Level) {
	level.SetLevel(l)
}

// Enabled reports whether a level would be emitted by the current
// configuration.
func Enabled(l Level) bool {
	return level.Enabled(l)
}

// Sync flushes buffered log entries. Called before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = log.Sync()
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debugf(format, args...)
}

// Infof logs at INFO level.
func Infof(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Infof(format, args...)
}

// Warnf logs at WARN level.
func Warnf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warnf(format, args...)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Errorf(format, args...)
}
