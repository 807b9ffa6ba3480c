// Package acc exposes xstream through status-returning calls on opaque
// handles, in the shape of the acc_* accelerator interface.
//
// Every operation returns an xstream.Status: 0 on success, -1 when the
// device backend failed and -2 when a precondition was violated,
// including an unknown, destroyed or wrongly tagged handle. Failures are
// logged at Warn level; no error state is kept between calls.
//
// Calls on the same stream handle are serialized by the API, so stream
// handles may be shared between goroutines.
package acc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xstream"
)

// ErrInvalidHandle is logged when a call names a handle that does not
// refer to a live object of the expected kind.
var ErrInvalidHandle = errors.New("acc: invalid handle")

// API is the handle table over one Runtime.
//
// Thread safety: API is safe for concurrent use.
type API struct {
	rt  *xstream.Runtime
	log *slog.Logger
	seq atomic.Uint64

	mu      sync.Mutex
	streams map[Handle]*streamEntry
	events  map[Handle]*xstream.Event
}

type streamEntry struct {
	mu sync.Mutex
	s  *xstream.Stream
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for failure diagnostics. Without it the
// xstream package logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		a.log = l
	}
}

// New creates an API over rt. The caller keeps ownership of rt.
func New(rt *xstream.Runtime, opts ...Option) *API {
	a := &API{
		rt:      rt,
		streams: make(map[Handle]*streamEntry),
		events:  make(map[Handle]*xstream.Event),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Runtime returns the underlying runtime.
func (a *API) Runtime() *xstream.Runtime { return a.rt }

// Live returns the number of live streams and events.
func (a *API) Live() (streams, events int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.streams), len(a.events)
}

// StreamCreate creates a stream on device dev.
func (a *API) StreamCreate(dev int) (Handle, xstream.Status) {
	s, err := a.rt.NewStream(dev)
	if err != nil {
		return 0, a.fail("stream_create", err)
	}

	h := makeHandle(KindStream, a.seq.Add(1))
	a.mu.Lock()
	a.streams[h] = &streamEntry{s: s}
	a.mu.Unlock()
	return h, xstream.StatusSuccess
}

// StreamDestroy waits for the work on stream h and releases it.
func (a *API) StreamDestroy(h Handle) xstream.Status {
	const op = "stream_destroy"

	e, st := a.stream(op, h)
	if e == nil {
		return st
	}

	e.mu.Lock()
	err := e.s.Destroy()
	e.mu.Unlock()
	if err != nil {
		return a.fail(op, err)
	}

	a.mu.Lock()
	delete(a.streams, h)
	a.mu.Unlock()
	return xstream.StatusSuccess
}

// StreamSync blocks until the work on stream h has completed.
func (a *API) StreamSync(h Handle) xstream.Status {
	const op = "stream_sync"

	e, st := a.stream(op, h)
	if e == nil {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return a.status(op, e.s.Synchronize())
}

// StreamQuery reports whether the work on stream h has completed.
func (a *API) StreamQuery(h Handle) (bool, xstream.Status) {
	const op = "stream_query"

	e, st := a.stream(op, h)
	if e == nil {
		return false, st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ok, err := e.s.Query()
	return ok, a.status(op, err)
}

// StreamWaitEvent makes work enqueued on stream s after the call wait for
// event ev.
func (a *API) StreamWaitEvent(s, ev Handle) xstream.Status {
	const op = "stream_wait_event"

	e, st := a.stream(op, s)
	if e == nil {
		return st
	}
	event, st := a.event(op, ev)
	if event == nil {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return a.status(op, e.s.WaitEvent(event))
}

// EventCreate creates an unsignaled event.
func (a *API) EventCreate() (Handle, xstream.Status) {
	ev, err := a.rt.CreateEvent()
	if err != nil {
		return 0, a.fail("event_create", err)
	}

	h := makeHandle(KindEvent, a.seq.Add(1))
	a.mu.Lock()
	a.events[h] = ev
	a.mu.Unlock()
	return h, xstream.StatusSuccess
}

// EventDestroy releases event h. A failed destroy keeps the handle valid
// so that it can be retried.
func (a *API) EventDestroy(h Handle) xstream.Status {
	const op = "event_destroy"

	ev, st := a.event(op, h)
	if ev == nil {
		return st
	}
	if err := ev.Destroy(); err != nil {
		return a.fail(op, err)
	}

	a.mu.Lock()
	delete(a.events, h)
	a.mu.Unlock()
	return xstream.StatusSuccess
}

// EventRecord records event ev at the current tail of stream s.
func (a *API) EventRecord(ev, s Handle) xstream.Status {
	const op = "event_record"

	event, st := a.event(op, ev)
	if event == nil {
		return st
	}
	if s == 0 {
		return a.status(op, event.Record(nil))
	}
	e, st := a.stream(op, s)
	if e == nil {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return a.status(op, event.Record(e.s))
}

// EventQuery reports whether event h is signaled.
func (a *API) EventQuery(h Handle) (bool, xstream.Status) {
	const op = "event_query"

	ev, st := a.event(op, h)
	if ev == nil {
		return false, st
	}
	ok, err := ev.Query()
	return ok, a.status(op, err)
}

// EventSynchronize blocks until event h is signaled.
func (a *API) EventSynchronize(h Handle) xstream.Status {
	const op = "event_synchronize"

	ev, st := a.event(op, h)
	if ev == nil {
		return st
	}
	return a.status(op, ev.Synchronize())
}

// DispatchRegion enqueues r on stream s, or on the default device when s
// is 0.
func (a *API) DispatchRegion(s Handle, r *xstream.Region, wait bool) xstream.Status {
	const op = "dispatch_region"

	if s == 0 {
		return a.status(op, a.rt.Dispatch(nil, r, wait))
	}
	e, st := a.stream(op, s)
	if e == nil {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return a.status(op, a.rt.Dispatch(e.s, r, wait))
}

// DeviceSynchronize blocks until the work on every device has completed.
func (a *API) DeviceSynchronize() xstream.Status {
	return a.status("device_synchronize", a.rt.Synchronize())
}

// Close destroys every live event and stream. It returns the first
// non-success status; objects that fail to release stay in the table.
func (a *API) Close() xstream.Status {
	a.mu.Lock()
	events := make([]Handle, 0, len(a.events))
	for h := range a.events {
		events = append(events, h)
	}
	streams := make([]Handle, 0, len(a.streams))
	for h := range a.streams {
		streams = append(streams, h)
	}
	a.mu.Unlock()

	result := xstream.StatusSuccess
	for _, h := range events {
		if st := a.EventDestroy(h); st != xstream.StatusSuccess && result == xstream.StatusSuccess {
			result = st
		}
	}
	for _, h := range streams {
		if st := a.StreamDestroy(h); st != xstream.StatusSuccess && result == xstream.StatusSuccess {
			result = st
		}
	}
	return result
}

func (a *API) stream(op string, h Handle) (*streamEntry, xstream.Status) {
	a.mu.Lock()
	e := a.streams[h]
	a.mu.Unlock()
	if e == nil {
		return nil, a.invalid(op, h, KindStream)
	}
	return e, xstream.StatusSuccess
}

func (a *API) event(op string, h Handle) (*xstream.Event, xstream.Status) {
	a.mu.Lock()
	ev := a.events[h]
	a.mu.Unlock()
	if ev == nil {
		return nil, a.invalid(op, h, KindEvent)
	}
	return ev, xstream.StatusSuccess
}

func (a *API) invalid(op string, h Handle, want Kind) xstream.Status {
	a.logger().Warn("acc: operation failed",
		"op", op,
		"status", xstream.StatusCondition,
		"err", fmt.Errorf("%w: %v (want kind %d)", ErrInvalidHandle, h, want))
	return xstream.StatusCondition
}

func (a *API) status(op string, err error) xstream.Status {
	if err == nil {
		return xstream.StatusSuccess
	}
	return a.fail(op, err)
}

func (a *API) fail(op string, err error) xstream.Status {
	st := xstream.StatusOf(err)
	a.logger().Warn("acc: operation failed", "op", op, "status", st, "err", err)
	return st
}

func (a *API) logger() *slog.Logger {
	if a.log != nil {
		return a.log
	}
	return xstream.Logger()
}
