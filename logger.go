package resdb

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with resdb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFile adds a file field to the logger (useful for tagging operations).
func (l *Logger) WithFile(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("file", path),
	}
}

// LogAddFile logs a file load operation.
func (l *Logger) LogAddFile(ctx context.Context, ref string, objects int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add file failed",
			"ref", ref,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "file indexed",
			"ref", ref,
			"objects", objects,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, query string, matches int) {
	l.DebugContext(ctx, "search completed",
		"query", query,
		"matches", matches,
	)
}

// LogMaterialize logs a payload materialization.
func (l *Logger) LogMaterialize(ctx context.Context, path string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "materialize failed",
			"file", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "payload materialized",
			"file", path,
			"bytes", bytes,
		)
	}
}

// LogRelease logs a memory release operation.
func (l *Logger) LogRelease(ctx context.Context, blocks int) {
	l.DebugContext(ctx, "memory blocks released",
		"blocks", blocks,
	)
}

// LogRemoveFiles logs a file removal operation.
func (l *Logger) LogRemoveFiles(ctx context.Context, removed int) {
	l.InfoContext(ctx, "files removed",
		"files", removed,
	)
}
