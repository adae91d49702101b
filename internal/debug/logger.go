// Package debug provides the engine-wide structured logger built on log/slog.
package debug

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/satishbabariya/prisma-engines-go/runtime"
)

var (
	// logger is the global engine logger
	logger *slog.Logger
	// enabled reports whether debug level output is on
	enabled bool
	mu      sync.RWMutex
)

func init() {
	Init(false)
}

// Init configures the global logger to write to stderr.
// With enable=false only warnings and errors are emitted.
func Init(enable bool) {
	InitWithWriter(os.Stderr, enable)
}

// InitWithWriter configures the global logger to write to w.
func InitWithWriter(w io.Writer, enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable

	level := slog.LevelWarn
	if enable {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Enabled returns whether debug logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// Failure logs err tagged with its kind. Internal errors are logged at error
// level, validation errors at debug level and everything else as a warning.
func Failure(msg string, err error, args ...any) {
	kind := runtime.Kind(err)
	args = append(args, "kind", kind, "error", err)
	switch kind {
	case "internal":
		current().Error(msg, args...)
	case "validation":
		current().Debug(msg, args...)
	default:
		current().Warn(msg, args...)
	}
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	return current()
}
