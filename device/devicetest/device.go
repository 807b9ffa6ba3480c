package devicetest

import "github.com/gogpu/xstream/device"

// Device wraps a device of the inner backend.
type Device struct {
	backend *Backend
	inner   device.Device
}

// Inner returns the wrapped device.
func (d *Device) Inner() device.Device { return d.inner }

// Info returns the inner device info.
func (d *Device) Info() device.Info { return d.inner.Info() }

// Index returns the inner device index.
func (d *Device) Index() int { return d.inner.Index() }

// Offload forwards to the inner device.
func (d *Device) Offload(op device.Op, after ...device.Fence) (device.Fence, error) {
	if err := d.backend.hit(OpOffload); err != nil {
		return nil, err
	}
	return d.inner.Offload(d.backend.execute(op), after...)
}

// NewQueue forwards to the inner device and wraps the queue.
func (d *Device) NewQueue() (device.Queue, error) {
	if err := d.backend.hit(OpNewQueue); err != nil {
		return nil, err
	}
	q, err := d.inner.NewQueue()
	if err != nil {
		return nil, err
	}
	return &Queue{dev: d, inner: q}, nil
}

// NewEvent forwards to the inner device and wraps the event.
func (d *Device) NewEvent() (device.Event, error) {
	if err := d.backend.hit(OpNewEvent); err != nil {
		return nil, err
	}
	e, err := d.inner.NewEvent()
	if err != nil {
		return nil, err
	}
	return &Event{backend: d.backend, inner: e}, nil
}

// CanWaitOn forwards to the inner device, unwrapping other.
func (d *Device) CanWaitOn(other device.Device) bool {
	if w, ok := other.(*Device); ok {
		other = w.inner
	}
	return d.inner.CanWaitOn(other)
}

// Synchronize forwards to the inner device.
func (d *Device) Synchronize() error {
	if err := d.backend.hit(OpSynchronize); err != nil {
		return err
	}
	return d.inner.Synchronize()
}

// execute wraps op so that a pending OpExecute failure replaces its run.
func (b *Backend) execute(op device.Op) device.Op {
	if op == nil {
		return nil
	}
	return func(target any) error {
		if err := b.hit(OpExecute); err != nil {
			return err
		}
		return op(target)
	}
}

// Queue wraps a queue of the inner backend.
type Queue struct {
	dev   *Device
	inner device.Queue
}

// Device returns the wrapping device.
func (q *Queue) Device() device.Device { return q.dev }

// Submit forwards to the inner queue.
func (q *Queue) Submit(op device.Op) (device.Fence, error) {
	if err := q.dev.backend.hit(OpSubmit); err != nil {
		return nil, err
	}
	return q.inner.Submit(q.dev.backend.execute(op))
}

// Marker forwards to the inner queue.
func (q *Queue) Marker() (device.Fence, error) {
	if err := q.dev.backend.hit(OpMarker); err != nil {
		return nil, err
	}
	return q.inner.Marker()
}

// WaitFence forwards to the inner queue.
func (q *Queue) WaitFence(f device.Fence) error {
	if err := q.dev.backend.hit(OpWaitFence); err != nil {
		return err
	}
	return q.inner.WaitFence(f)
}

// Native returns the inner native handle.
func (q *Queue) Native() any { return q.inner.Native() }

// Close forwards to the inner queue.
func (q *Queue) Close() error { return q.inner.Close() }

// Event wraps an event of the inner backend.
type Event struct {
	backend *Backend
	inner   device.Event
}

// Record forwards to the inner event.
func (e *Event) Record(f device.Fence) error {
	if err := e.backend.hit(OpRecord); err != nil {
		return err
	}
	return e.inner.Record(f)
}

// Query forwards to the inner event.
func (e *Event) Query() (bool, error) {
	if err := e.backend.hit(OpQuery); err != nil {
		return false, err
	}
	return e.inner.Query()
}

// Wait forwards to the inner event.
func (e *Event) Wait() error {
	if err := e.backend.hit(OpWait); err != nil {
		return err
	}
	return e.inner.Wait()
}

// Fence returns the inner recorded fence.
func (e *Event) Fence() device.Fence { return e.inner.Fence() }

// Destroy forwards to the inner event. An injected failure leaves the
// inner event alive so that Destroy can be retried.
func (e *Event) Destroy() error {
	if err := e.backend.hit(OpDestroy); err != nil {
		return err
	}
	return e.inner.Destroy()
}
