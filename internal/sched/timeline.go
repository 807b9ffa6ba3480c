package sched

import "sync"

// Timeline is an ordered sequence of operations with explicit waits. It
// runs operations one at a time in enqueue order. The first failure faults
// the timeline: every later operation is skipped and completes with the
// same error.
//
// Thread safety: Timeline is safe for concurrent use.
type Timeline struct {
	serial  *Serial
	tracker *Tracker

	mu     sync.Mutex
	waits  []Fence
	closed bool

	// fault is only accessed by functions running on serial.
	fault error
}

// NewTimeline starts a timeline. Every enqueued operation is registered
// with tracker, which may be nil.
func NewTimeline(tracker *Tracker) *Timeline {
	return &Timeline{
		serial:  NewSerial(),
		tracker: tracker,
	}
}

// Enqueue appends fn and returns the fence of its completion. A nil fn
// enqueues a marker that only observes earlier work and waits. Enqueue
// returns false if the timeline is closed.
func (t *Timeline) Enqueue(fn func() error) (Fence, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, false
	}

	waits := t.waits
	t.waits = nil

	done := NewCompletion()
	if t.tracker != nil {
		t.tracker.Add()
	}

	t.serial.Submit(func() {
		err := t.fault
		if err == nil {
			err = Wait(waits...)
		}
		if err == nil && fn != nil {
			err = Run(fn)
		}
		if err != nil && t.fault == nil {
			t.fault = err
		}
		done.Complete(err)
		if t.tracker != nil {
			t.tracker.Done(err)
		}
	})
	return done, true
}

// After makes operations enqueued after the call wait for f. It returns
// false if the timeline is closed.
func (t *Timeline) After(f Fence) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if f != nil {
		t.waits = append(t.waits, f)
	}
	return true
}

// Close stops accepting operations and waits for enqueued ones to finish.
// It reports whether this call closed the timeline.
func (t *Timeline) Close() bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.closed = true
	t.mu.Unlock()

	t.serial.Close()
	return true
}
