// SPDX-License-Identifier: Apache-2.0

// Package logger wraps zerolog.Logger with the constructors and context
// helpers used across weavesync.
//
// The Logger type embeds zerolog.Logger, so the full zerolog API is
// available directly. Components receive a *Logger at construction time and
// derive request- or run-scoped children from it.
package logger

import (
	"context"
	"net/http"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// NewLogger constructs a JSON logger on stdout for the given role label
// (e.g. "scheduler", "telemetry"). Every entry carries the role, a
// timestamp, and the emitting function name under "func".
func NewLogger(role string) *Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	l := zerolog.New(os.Stdout).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

// NewFileLogger is NewLogger writing to the given file path, appending.
// Falls back to stdout when the file cannot be opened, so a broken log path
// never silences the process.
func NewFileLogger(role, path string) *Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		out = os.Stdout
	}

	l := zerolog.New(out).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

// Nop returns a *Logger that discards everything. For tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// SetLevel adjusts the global minimum level. Unknown names fall back to
// info rather than failing startup over a typo.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// GetChildLogger returns a new *Logger inheriting all fields of the
// receiver.
func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

// FromRequest returns the logger attached to the request context, or the
// global logger when none is attached.
func FromRequest(r *http.Request) *Logger {
	return &Logger{*log.Ctx(r.Context())}
}

// FromContext returns the logger attached to ctx, or the global logger when
// none is attached. Never nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
