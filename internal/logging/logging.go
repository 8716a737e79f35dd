// Package logging wraps log/slog so every layer of this daemon logs
// through the same structured, leveled interface.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with a thin convenience surface.
type Logger struct {
	logger *slog.Logger
}

// Options configures New.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|text
	Output io.Writer
}

// New builds a Logger per Options, defaulting to info/json/stdout.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     parseLevel(opts.Level),
		AddSource: opts.Level == "debug",
	}

	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	return &Logger{logger: slog.New(handler)}
}

// Slog returns the underlying *slog.Logger for callers (e.g. internal/engine)
// that take a plain *slog.Logger rather than this wrapper.
func (l *Logger) Slog() *slog.Logger { return l.logger }

// With returns a Logger with the given attributes attached to every
// subsequent record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger = New(Options{Level: "info", Format: "json"})

// Default returns the package-level default logger, for callers that
// haven't wired a specific instance yet (e.g. package init paths).
func Default() *Logger { return defaultLogger }

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) { defaultLogger = l }
