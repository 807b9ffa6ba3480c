package host

import (
	"sync"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Event is a host device event. It is signaled when its recorded fence is
// reached.
type Event struct {
	mu        sync.Mutex
	fence     device.Fence
	destroyed bool
}

// Record binds the event to f. A nil f records an already reached point.
func (e *Event) Record(f device.Fence) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.destroyed:
		return device.ErrDestroyed
	case e.fence != nil:
		return device.ErrAlreadyRecorded
	}
	if f == nil {
		f = sched.Completed(nil)
	}
	e.fence = f
	return nil
}

// Query reports whether the recorded fence has been reached. Once it has,
// the failure of the work behind it, if any, is returned as well.
func (e *Event) Query() (bool, error) {
	f, err := e.current()
	if err != nil {
		return false, err
	}
	if f == nil || !sched.IsDone(f) {
		return false, nil
	}
	return true, f.Err()
}

// Wait blocks until the recorded fence is reached.
func (e *Event) Wait() error {
	f, err := e.current()
	if err != nil {
		return err
	}
	if f == nil {
		return device.ErrNotRecorded
	}
	<-f.Done()
	return f.Err()
}

// Fence returns the recorded fence, or nil.
func (e *Event) Fence() device.Fence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fence
}

// Destroy releases the event.
func (e *Event) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return device.ErrDestroyed
	}
	e.destroyed = true
	e.fence = nil
	return nil
}

func (e *Event) current() (device.Fence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return nil, device.ErrDestroyed
	}
	return e.fence, nil
}
