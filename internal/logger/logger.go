// Package logger provides the structured logger shared by every package of
// the server.
//
// It wraps log/slog with package-level helpers so call sites stay short:
//
//	logger.Info("client connected", "conn", id, "remote", addr)
//
// The level starts from the YAIL_LOG_LEVEL environment variable (debug, info,
// warn, error) and can be changed at runtime with SetLevel. All output goes to
// stderr by default.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	level = new(slog.LevelVar)

	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use.
	DefaultLogger *slog.Logger
)

func init() {
	level.Set(ParseLevel(os.Getenv("YAIL_LOG_LEVEL")))
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the current logging level.
func Level() slog.Level {
	return level.Level()
}

// SetOutput redirects the default logger. Intended for tests and for the
// daemon log file.
func SetOutput(w io.Writer) {
	DefaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// With returns a logger that adds args to every record.
func With(args ...any) *slog.Logger {
	return DefaultLogger.With(args...)
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors such as a failing image source.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}
