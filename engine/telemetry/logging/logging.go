// Package logging wraps log/slog with the engine's node/component attribute
// conventions, following the teacher's correlated-logger shape.
package logging

import (
	"context"
	"log/slog"
)

// Logger is the minimal surface the engine depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct{ base *slog.Logger }

// New wraps a *slog.Logger, defaulting to slog.Default() when nil.
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &slogLogger{base: base}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.base.Error(msg, args...) }
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{base: l.base.With(args...)}
}

// FromContext extracts a correlation-friendly logger; the engine carries no
// tracer, so this returns base unchanged (or a default logger when base is
// nil), but the
// signature lets the engine be embedded in a traced process later without
// touching call sites.
func FromContext(ctx context.Context, base Logger) Logger {
	if base == nil {
		return New(nil)
	}
	return base
}
