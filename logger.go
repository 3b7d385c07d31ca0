package bloomgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bloomgo-specific context.
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

// WithName adds a filter name field to the logger.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("name", name),
	}
}

// WithVariant adds a filter variant field to the logger.
func (l *Logger) WithVariant(v Variant) *Logger {
	return &Logger{
		Logger: l.Logger.With("variant", v.String()),
	}
}

// WithSlotCount adds a slot count field to the logger.
func (l *Logger) WithSlotCount(n uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("slot_count", n),
	}
}

// LogLoad logs a deserialization operation.
func (l *Logger) LogLoad(ctx context.Context, variant Variant, name string, bufferBytes uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "filter load failed",
			"variant", variant.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "filter loaded",
			"variant", variant.String(),
			"name", name,
			"buffer_bytes", bufferBytes,
		)
	}
}

// LogSave logs a serialization operation.
func (l *Logger) LogSave(ctx context.Context, variant Variant, name string, written int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "filter save failed",
			"variant", variant.String(),
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "filter saved",
			"variant", variant.String(),
			"name", name,
			"bytes", written,
		)
	}
}

// LogSweep logs an expiry sweep over a decaying filter.
func (l *Logger) LogSweep(ctx context.Context, name string, reaped uint64) {
	l.DebugContext(ctx, "expired slots cleared",
		"name", name,
		"reaped", reaped,
	)
}

// LogClear logs a full filter reset.
func (l *Logger) LogClear(ctx context.Context, name string, saturation float64) {
	l.InfoContext(ctx, "filter cleared",
		"name", name,
		"saturation_pct", saturation,
	)
}
