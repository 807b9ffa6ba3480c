package xstream

import (
	"sync"

	"github.com/gogpu/xstream/device"
)

type eventState int

const (
	eventUnsignaled eventState = iota
	eventRecorded
	eventDestroyed
)

// Event is a cross-stream completion token. A new event is unsignaled; it
// can be recorded into one stream once, and is signaled when every
// operation enqueued on that stream before the record has completed.
//
// Query, Synchronize and Destroy are safe for concurrent use. Record must
// be called from the goroutine that owns the stream.
type Event struct {
	mu    sync.Mutex
	ev    device.Event
	state eventState

	// src is the device of the stream the event was recorded into.
	src device.Device
}

// CreateEvent creates an unsignaled event.
func (rt *Runtime) CreateEvent() (*Event, error) {
	const op = "event_create"

	if rt.closed.Load() {
		return nil, conditionError(op, ErrClosed)
	}
	ev, err := rt.defaultDev.NewEvent()
	if err != nil {
		return nil, deviceError(op, err)
	}
	return &Event{ev: ev}, nil
}

// Record binds the event to the current tail of s. It does not block.
func (e *Event) Record(s *Stream) error {
	const op = "event_record"

	if s == nil {
		return conditionError(op, ErrNilStream)
	}
	if s.destroyed {
		return conditionError(op, ErrDestroyed)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case eventDestroyed:
		return conditionError(op, ErrDestroyed)
	case eventRecorded:
		return conditionError(op, ErrAlreadyRecorded)
	}

	f, err := s.marker()
	if err != nil {
		return deviceError(op, err)
	}
	if err := e.ev.Record(f); err != nil {
		return deviceError(op, err)
	}
	e.state = eventRecorded
	e.src = s.dev
	return nil
}

// Query reports whether the event is signaled, without blocking. An event
// that was never recorded reports false. If the work before the recorded
// point failed, Query reports true together with a backend error.
func (e *Event) Query() (bool, error) {
	const op = "event_query"

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case eventDestroyed:
		return false, conditionError(op, ErrDestroyed)
	case eventUnsignaled:
		return false, nil
	}

	ok, err := e.ev.Query()
	if err != nil {
		return ok, deviceError(op, err)
	}
	return ok, nil
}

// Synchronize blocks until the event is signaled. Synchronizing an event
// that was never recorded is a condition error.
func (e *Event) Synchronize() error {
	const op = "event_synchronize"

	e.mu.Lock()
	state, ev := e.state, e.ev
	e.mu.Unlock()

	switch state {
	case eventDestroyed:
		return conditionError(op, ErrDestroyed)
	case eventUnsignaled:
		return conditionError(op, ErrNotRecorded)
	}

	if err := ev.Wait(); err != nil {
		return deviceError(op, err)
	}
	return nil
}

// Destroy releases the event. Destroying an event twice is a condition
// error. If the device fails to release the event, Destroy may be called
// again.
func (e *Event) Destroy() error {
	const op = "event_destroy"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == eventDestroyed {
		return conditionError(op, ErrDestroyed)
	}
	if err := e.ev.Destroy(); err != nil {
		return deviceError(op, err)
	}
	e.state = eventDestroyed
	e.src = nil
	return nil
}

// point returns the recorded fence and its device, or a nil fence for an
// unrecorded event.
func (e *Event) point() (device.Fence, device.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case eventDestroyed:
		return nil, nil, ErrDestroyed
	case eventUnsignaled:
		return nil, nil, nil
	}
	return e.ev.Fence(), e.src, nil
}
