// Package log provides structured logging for the icsattest telemetry
// client. Every subsystem logs through a child Logger tagged with its
// module name. Logger.Sensor additionally tags records with a sensor id,
// so one logical sensor's records can be followed through a concurrent
// run; the streaming engine does not apply it.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger emits structured JSON records carrying telemetry-client context
// (module, sensor_id, and whatever the caller adds with With).
type Logger struct {
	inner *slog.Logger
}

var defaultLogger = New("info")

// New creates a Logger writing JSON to stderr. The level is given as its
// configuration string (debug, info, warn, error); unrecognized strings
// fall back to info, matching LevelFromString.
func New(level string) *Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a Logger writing JSON to w. Tests and bring-up
// tooling use it to capture output.
func NewWithWriter(w io.Writer, level string) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: LevelFromString(level),
	})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler,
// for callers that need full control over formatting or destination.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// SetDefault replaces the process-wide default logger. A nil argument is
// ignored so a misconfigured caller cannot silence the whole client.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the process-wide default logger. Subsystems derive
// their own children from it at construction time.
func Default() *Logger {
	return defaultLogger
}

// child is the single derivation point every tagging method funnels
// through.
func (l *Logger) child(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Module returns a child logger tagged with the subsystem name. This is
// how crypto, attest, stream and experiment obtain their contextual
// loggers.
func (l *Logger) Module(name string) *Logger {
	return l.child("module", name)
}

// Sensor returns a child logger tagged with a sensor identifier, so every
// sample of one logical sensor shares the same tag.
func (l *Logger) Sensor(id string) *Logger {
	return l.child("sensor_id", id)
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return l.child(args...)
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// Package-level convenience functions, delegating to the current default.

// Debug logs at LevelDebug using the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }

// Info logs at LevelInfo using the default logger.
func Info(msg string, args ...any) { Default().Info(msg, args...) }

// Warn logs at LevelWarn using the default logger.
func Warn(msg string, args ...any) { Default().Warn(msg, args...) }

// Error logs at LevelError using the default logger.
func Error(msg string, args ...any) { Default().Error(msg, args...) }
