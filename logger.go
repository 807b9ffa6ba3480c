package xstream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xstream/device"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// live counts the open runtimes per backend. Backends log through the
// package logger, which is process-wide.
var (
	liveMu sync.Mutex
	live   = make(map[device.Backend]int)
)

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for xstream and the device backends of
// open runtimes. Runtimes created with WithLogger keep their own logger for
// their records; their backends still follow SetLogger.
// By default, xstream produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by xstream:
//   - [slog.LevelDebug]: dispatch and event diagnostics (signals, devices)
//   - [slog.LevelInfo]: lifecycle events (runtime ready, adapter selected)
//   - [slog.LevelWarn]: non-fatal issues (failed operations reported by
//     status, resource release errors)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	xstream.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	xstream.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	liveMu.Lock()
	defer liveMu.Unlock()
	for b := range live {
		propagateLogger(b, l)
	}
}

// Logger returns the current logger used by xstream.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by device backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a backend if it implements the
// loggerSetter interface.
func propagateLogger(b device.Backend, l *slog.Logger) {
	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// track registers b as used by one more runtime and hands it the package
// logger.
func track(b device.Backend) {
	liveMu.Lock()
	defer liveMu.Unlock()
	live[b]++
	propagateLogger(b, Logger())
}

func untrack(b device.Backend) {
	liveMu.Lock()
	defer liveMu.Unlock()
	if live[b]--; live[b] <= 0 {
		delete(live, b)
	}
}
