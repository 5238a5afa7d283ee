package diffgraph

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with diffgraph-specific context.
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
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithStrategy adds a construction-strategy field to the logger.
func (l *Logger) WithStrategy(s Strategy) *Logger {
	return &Logger{
		Logger: l.Logger.With("strategy", s.String()),
	}
}

// WithSize adds point-count and dimension fields to the logger.
func (l *Logger) WithSize(n, dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("n", n, "dimension", dim),
	}
}

// LogKernelBuild logs a kernel construction.
func (l *Logger) LogKernelBuild(strategy Strategy, n int, duration time.Duration, err error) {
	if err != nil {
		l.Error("kernel build failed",
			"strategy", strategy.String(),
			"n", n,
			"error", err,
		)
	} else {
		l.Debug("kernel build completed",
			"strategy", strategy.String(),
			"n", n,
			"duration", duration,
		)
	}
}

// LogOperatorBuild logs a diffusion-operator derivation.
func (l *Logger) LogOperatorBuild(normalization string, duration time.Duration, err error) {
	if err != nil {
		l.Error("operator build failed",
			"normalization", normalization,
			"error", err,
		)
	} else {
		l.Debug("operator build completed",
			"normalization", normalization,
			"duration", duration,
		)
	}
}

// LogLandmarkBuild logs a landmark reduction.
func (l *Logger) LogLandmarkBuild(landmarks int, duration time.Duration, err error) {
	if err != nil {
		l.Error("landmark build failed",
			"landmarks", landmarks,
			"error", err,
		)
	} else {
		l.Debug("landmark build completed",
			"landmarks", landmarks,
			"duration", duration,
		)
	}
}

// LogExtension logs an out-of-sample extension.
func (l *Logger) LogExtension(points int, duration time.Duration, err error) {
	if err != nil {
		l.Error("extension failed",
			"points", points,
			"error", err,
		)
	} else {
		l.Debug("extension completed",
			"points", points,
			"duration", duration,
		)
	}
}
