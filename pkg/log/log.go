// Package log provides structured logging for prollytree. It wraps Go's
// log/slog with per-subsystem child loggers and with structured fields for
// the tree package's Kind-discriminated errors.
package log

import (
	"errors"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with prollytree's subsystem conventions.
type Logger struct {
	inner *slog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger *Logger

func init() {
	defaultLogger = New(slog.LevelInfo)
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler. Tests
// use this to capture log output instead of writing to stderr.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return NewWithHandler(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger with an additional "module" attribute, e.g.
// log.Module("tree") for a logger handed to the tree driver via
// tree.WithLogger.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// kindError is the shape a domain error can implement to contribute extra
// structured attributes to ErrorErr/WarnErr beyond its message. pkg/tree's
// *Error implements this (LogFields returns its Kind and Op) so that a
// tree failure logged through here carries "kind"/"op" as queryable JSON
// fields instead of folding them into opaque error text. This package
// cannot import pkg/tree to name the type directly, since pkg/tree's Tree
// takes a *Logger via WithLogger; the interface match is structural.
type kindError interface {
	LogFields() []any
}

// errArgs builds the leading "error", err pair for ErrorErr/WarnErr, plus
// any LogFields err (or a wrapped cause) contributes.
func errArgs(err error) []any {
	args := []any{"error", err}
	var ke kindError
	if errors.As(err, &ke) {
		args = append(args, ke.LogFields()...)
	}
	return args
}

// ErrorErr logs msg at LevelError with err and, when err carries
// structured fields (e.g. pkg/tree's Kind/Op), those fields merged in
// ahead of args.
func (l *Logger) ErrorErr(msg string, err error, args ...any) {
	l.inner.Error(msg, append(errArgs(err), args...)...)
}

// WarnErr is ErrorErr at LevelWarn, for failures that are returned to the
// caller rather than poisoning a handle (e.g. a failed fetchNode).
func (l *Logger) WarnErr(msg string, err error, args ...any) {
	l.inner.Warn(msg, append(errArgs(err), args...)...)
}

// ---------------------------------------------------------------------------
// Package-level convenience functions -- delegate to defaultLogger.
// ---------------------------------------------------------------------------

// Debug logs at LevelDebug using the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at LevelInfo using the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at LevelWarn using the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at LevelError using the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// ErrorErr logs at LevelError using the default logger, attaching err's
// structured fields per the Logger method of the same name.
func ErrorErr(msg string, err error, args ...any) { defaultLogger.ErrorErr(msg, err, args...) }

// WarnErr logs at LevelWarn using the default logger, attaching err's
// structured fields per the Logger method of the same name.
func WarnErr(msg string, err error, args ...any) { defaultLogger.WarnErr(msg, err, args...) }
