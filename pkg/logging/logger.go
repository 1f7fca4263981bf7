package logging

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// New creates a new JSON logger with the specified level
func New(level string) *Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

// ForService returns a logger that tags every entry with the service name.
// Each long-running process (orders, payments, notifications) calls this once
// in main so aggregated log streams can be told apart.
func ForService(level, service string) *Logger {
	base := New(level)
	return &Logger{Logger: base.Logger.With(slog.String("service", service))}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
