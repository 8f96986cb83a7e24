package wr

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting altogether.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr holds the package logger. It is read when a Renderer is
// created; the renderer then hands its logger to the backend and to each
// component it owns, so nothing below the root package reads a global.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the default logger picked up by NewRenderer.
// By default wr produces no log output. Pass nil to restore silence.
//
// Log levels used by wr:
//   - [slog.LevelDebug]: per-frame diagnostics (dropped primitives, evictions, pass counts)
//   - [slog.LevelInfo]: lifecycle events (renderer started, shaders compiled)
//   - [slog.LevelWarn]: scene build failures, failed shader reloads
//
// Example:
//
//	wr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current default logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
