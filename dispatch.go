package xstream

import (
	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Dispatcher enqueues regions according to one Strategy.
type Dispatcher interface {
	// Strategy returns the strategy the dispatcher implements.
	Strategy() Strategy

	// Dispatch enqueues a clone of r on s, or on the default device when s
	// is nil. With wait set it blocks until the region has completed.
	Dispatch(s *Stream, r *Region, wait bool) error
}

func newDispatcher(rt *Runtime, st Strategy) Dispatcher {
	switch st {
	case Synchronous:
		return &syncDispatcher{rt: rt}
	case BackendStream:
		return &streamDispatcher{rt: rt}
	default:
		return &signalDispatcher{rt: rt}
	}
}

// Dispatch enqueues region r on stream s (nil for the default device)
// using the runtime's strategy.
func (rt *Runtime) Dispatch(s *Stream, r *Region, wait bool) error {
	const op = "dispatch_region"

	switch {
	case rt.closed.Load():
		return conditionError(op, ErrClosed)
	case r == nil:
		return conditionError(op, ErrNilRegion)
	case s != nil && s.destroyed:
		return conditionError(op, ErrDestroyed)
	}
	return rt.dispatcher.Dispatch(s, r, wait)
}

// dispatchDetached runs r on the default device with no stream
// bookkeeping.
func dispatchDetached(rt *Runtime, r *Region, wait bool) error {
	const op = "dispatch_region"

	d := rt.defaultDev
	f, err := d.Offload(r.Clone().op(d.Index(), NoSignal, NoSignal))
	if err != nil {
		return deviceError(op, err)
	}
	rt.logger().Debug("xstream: region dispatched", "region", r.name, "device", d.Index(), "wait", wait)
	if !wait {
		return nil
	}
	if err := sched.Wait(f); err != nil {
		return deviceError(op, err)
	}
	return nil
}

// syncDispatcher runs every region to completion.
type syncDispatcher struct {
	rt *Runtime
}

func (*syncDispatcher) Strategy() Strategy { return Synchronous }

func (sd *syncDispatcher) Dispatch(s *Stream, r *Region, _ bool) error {
	const op = "dispatch_region"

	if s == nil {
		return dispatchDetached(sd.rt, r, true)
	}

	f, err := s.dev.Offload(r.Clone().op(s.Device(), NoSignal, NoSignal), s.tail)
	if err != nil {
		return deviceError(op, err)
	}
	s.tail = f

	sd.rt.logger().Debug("xstream: region dispatched", "region", r.name, "device", s.Device(), "strategy", Synchronous)

	if err := sched.Wait(f); err != nil {
		return deviceError(op, err)
	}
	return nil
}

// signalDispatcher orders regions on the host: each region is offloaded
// after the stream's tail.
type signalDispatcher struct {
	rt *Runtime
}

func (*signalDispatcher) Strategy() Strategy { return AsyncSignalWait }

func (sd *signalDispatcher) Dispatch(s *Stream, r *Region, wait bool) error {
	if s == nil {
		return dispatchDetached(sd.rt, r, wait)
	}
	return enqueue(sd.rt, s, r, wait, func(o device.Op) (device.Fence, error) {
		return s.dev.Offload(o, s.tail)
	})
}

// streamDispatcher submits regions to the stream's native queue.
type streamDispatcher struct {
	rt *Runtime
}

func (*streamDispatcher) Strategy() Strategy { return BackendStream }

func (sd *streamDispatcher) Dispatch(s *Stream, r *Region, wait bool) error {
	if s == nil {
		return dispatchDetached(sd.rt, r, wait)
	}
	return enqueue(sd.rt, s, r, wait, s.queue.Submit)
}

// enqueue tags r with the next signal of s, hands it to submit and updates
// the stream bookkeeping once the enqueue succeeded. A failed enqueue
// leaves s untouched.
func enqueue(rt *Runtime, s *Stream, r *Region, wait bool, submit func(device.Op) (device.Fence, error)) error {
	const op = "dispatch_region"

	sig := s.signal + 1
	f, err := submit(r.Clone().op(s.Device(), sig, s.pending))
	if err != nil {
		return deviceError(op, err)
	}

	consumed := s.NextSignal()
	s.tail = f
	s.MarkPending(consumed)

	rt.logger().Debug("xstream: region dispatched",
		"region", r.name,
		"device", s.Device(),
		"signal", consumed,
		"wait", wait)

	if !wait {
		return nil
	}
	err = sched.Wait(f)
	s.pending = NoSignal
	if err != nil {
		return deviceError(op, err)
	}
	return nil
}
