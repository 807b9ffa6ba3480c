package xstream

import (
	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Stream is an ordered command queue bound to one device.
//
// A Stream is owned by the goroutine that submits work on it. Its
// bookkeeping methods, Dispatch on it, Event.Record into it and
// WaitEvent on it must not be called concurrently; Stream has no internal
// locking.
type Stream struct {
	rt  *Runtime
	dev device.Device

	// queue is the native device queue under BackendStream, nil otherwise.
	queue device.Queue

	signal  Signal
	pending Signal

	// tail is reached once everything enqueued so far, and every event
	// waited on so far, has been reached.
	tail device.Fence

	destroyed bool
}

// NewStream creates a stream on device dev.
func (rt *Runtime) NewStream(dev int) (*Stream, error) {
	const op = "stream_create"

	if rt.closed.Load() {
		return nil, conditionError(op, ErrClosed)
	}
	d, err := rt.device(dev)
	if err != nil {
		return nil, conditionError(op, err)
	}

	s := &Stream{rt: rt, dev: d}
	if rt.strategy == BackendStream {
		q, err := d.NewQueue()
		if err != nil {
			return nil, deviceError(op, err)
		}
		s.queue = q
	}

	rt.logger().Debug("xstream: stream created", "device", dev, "strategy", rt.strategy)
	return s, nil
}

// NextSignal advances the signal counter and returns the new value.
func (s *Stream) NextSignal() Signal {
	s.signal++
	return s.signal
}

// MarkPending records that operations up to sig are outstanding. A sig
// beyond the current signal is clamped to it.
func (s *Stream) MarkPending(sig Signal) {
	if sig > s.signal {
		sig = s.signal
	}
	s.pending = sig
}

// IsReady reports whether no unconfirmed asynchronous work remains.
func (s *Stream) IsReady() bool { return s.pending == NoSignal }

// Signal returns the last signal handed out, or 0.
func (s *Stream) Signal() Signal { return s.signal }

// Pending returns the highest signal not yet confirmed complete, or 0.
func (s *Stream) Pending() Signal { return s.pending }

// Device returns the index of the stream's device.
func (s *Stream) Device() int { return s.dev.Index() }

// Native returns the native queue handle under BackendStream, nil
// otherwise.
func (s *Stream) Native() any {
	if s.queue == nil {
		return nil
	}
	return s.queue.Native()
}

// Query reports whether all work enqueued on s has completed, without
// blocking. Once it has, pending is cleared; a failure of that work is
// returned as a backend error.
func (s *Stream) Query() (bool, error) {
	const op = "stream_query"

	if s.destroyed {
		return false, conditionError(op, ErrDestroyed)
	}
	if !sched.IsDone(s.tail) {
		return false, nil
	}
	s.pending = NoSignal
	if err := s.tailErr(); err != nil {
		return true, deviceError(op, err)
	}
	return true, nil
}

// Synchronize blocks until all work enqueued on s has completed and clears
// pending.
func (s *Stream) Synchronize() error {
	const op = "stream_sync"

	if s.destroyed {
		return conditionError(op, ErrDestroyed)
	}
	err := sched.Wait(s.tail)
	s.pending = NoSignal
	if err != nil {
		return deviceError(op, err)
	}
	return nil
}

// WaitEvent makes work enqueued on s after the call wait until ev is
// signaled. It does not block. Waiting on an event that was never
// recorded has no effect.
func (s *Stream) WaitEvent(ev *Event) error {
	const op = "stream_wait_event"

	switch {
	case s.destroyed:
		return conditionError(op, ErrDestroyed)
	case ev == nil:
		return conditionError(op, ErrNilEvent)
	}

	f, src, err := ev.point()
	if err != nil {
		return conditionError(op, err)
	}
	if f == nil {
		return nil
	}
	if !s.dev.CanWaitOn(src) {
		return conditionError(op, ErrCrossDevice)
	}

	if s.queue != nil {
		if err := s.queue.WaitFence(f); err != nil {
			return deviceError(op, err)
		}
	}
	s.tail = sched.Join(s.tail, f)
	return nil
}

// Destroy waits for the work enqueued on s and releases it. A stream can
// be destroyed after failures; the failures themselves are not reported
// again.
func (s *Stream) Destroy() error {
	const op = "stream_destroy"

	if s.destroyed {
		return conditionError(op, ErrDestroyed)
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			return deviceError(op, err)
		}
	}
	if err := sched.Wait(s.tail); err != nil {
		s.rt.logger().Debug("xstream: stream destroyed after failed work", "device", s.Device(), "err", err)
	}

	s.destroyed = true
	s.queue = nil
	s.pending = NoSignal
	return nil
}

// marker returns a fence for the current tail of s.
func (s *Stream) marker() (device.Fence, error) {
	if s.queue != nil {
		return s.queue.Marker()
	}
	if s.tail == nil {
		return sched.Completed(nil), nil
	}
	return s.tail, nil
}

func (s *Stream) tailErr() error {
	if s.tail == nil {
		return nil
	}
	return s.tail.Err()
}
