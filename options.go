package xstream

import (
	"log/slog"

	"github.com/gogpu/xstream/device"
)

// Option configures a Runtime during creation.
//
// Example:
//
//	// Host-ordered signal/wait dispatch on the best available backend
//	rt, err := xstream.New()
//
//	// Native device queues on the HAL backend
//	rt, err := xstream.New(
//	    xstream.WithStrategy(xstream.BackendStream),
//	    xstream.WithBackendName("hal"),
//	)
type Option func(*options)

// options holds optional configuration for Runtime creation.
type options struct {
	strategy      Strategy
	backend       device.Backend
	backendName   string
	defaultDevice int
	logger        *slog.Logger
}

// defaultOptions returns the default runtime options.
func defaultOptions() options {
	return options{
		strategy: AsyncSignalWait,
	}
}

// WithStrategy sets the dispatch strategy. The strategy cannot be changed
// after New.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithBackend uses b as the device backend. New initializes b; the caller
// keeps ownership and closes it after the Runtime.
func WithBackend(b device.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithBackendName selects a registered backend by name, e.g. "host" or
// "hal". Ignored when WithBackend is given.
func WithBackendName(name string) Option {
	return func(o *options) {
		o.backendName = name
	}
}

// WithDefaultDevice sets the device used for stream-less dispatch and for
// event creation. Defaults to device 0.
func WithDefaultDevice(i int) Option {
	return func(o *options) {
		o.defaultDevice = i
	}
}

// WithLogger sets the logger for the runtime's own records. Without it the
// runtime uses the package logger. Device backends always log through the
// package logger (see SetLogger), since backend logging is process-wide.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
