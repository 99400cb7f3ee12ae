package strata

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. SetLogger may race with logging from
// any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// loggerSinks receive every logger passed to SetLogger. Backends with their
// own package logger register here.
var loggerSinks []func(*slog.Logger)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for strata and its backends.
// By default, strata produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by strata:
//   - [slog.LevelDebug]: buffer growth, pipeline and target creation
//   - [slog.LevelInfo]: backend selection
//   - [slog.LevelWarn]: absorbed frame diagnostics (degenerate shapes, clamped
//     clip depth, unknown textures, skipped frames)
//
// Example:
//
//	strata.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	for _, set := range loggerSinks {
		set(l)
	}
}

// Logger returns the current logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
