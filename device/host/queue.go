package host

import (
	"fmt"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Queue is a FIFO queue on a host device.
//
// Thread safety: Queue is safe for concurrent use; operations submitted
// from different goroutines are ordered by the time Submit is called.
type Queue struct {
	dev      *Device
	timeline *sched.Timeline
}

func newQueue(d *Device) *Queue {
	return &Queue{
		dev:      d,
		timeline: sched.NewTimeline(d.tracker),
	}
}

// Device returns the owning device.
func (q *Queue) Device() device.Device { return q.dev }

// Submit appends op to the queue.
func (q *Queue) Submit(op device.Op) (device.Fence, error) {
	if op == nil {
		return nil, device.ErrNilOp
	}
	f, ok := q.timeline.Enqueue(func() error { return op(q.dev) })
	if !ok {
		return nil, q.closedErr()
	}
	return f, nil
}

// Marker returns a fence reached once everything submitted so far, and
// every fence passed to WaitFence so far, has been reached.
func (q *Queue) Marker() (device.Fence, error) {
	f, ok := q.timeline.Enqueue(nil)
	if !ok {
		return nil, q.closedErr()
	}
	return f, nil
}

// WaitFence makes operations submitted after the call wait for f.
func (q *Queue) WaitFence(f device.Fence) error {
	if !q.timeline.After(f) {
		return q.closedErr()
	}
	return nil
}

// Native returns the queue itself; host queues have no lower-level handle.
func (q *Queue) Native() any { return q }

// Close runs everything already submitted and releases the queue.
// Closing a closed queue is a no-op.
func (q *Queue) Close() error {
	if q.timeline.Close() {
		q.dev.forget(q)
	}
	return nil
}

func (q *Queue) closedErr() error {
	return fmt.Errorf("host: queue on device %d: %w", q.dev.index, device.ErrClosed)
}
