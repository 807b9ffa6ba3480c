// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"fmt"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Queue is a FIFO queue on a HAL device. Each operation is recorded,
// submitted and completed before the next one starts.
type Queue struct {
	dev      *Device
	timeline *sched.Timeline
}

// Device returns the owning device.
func (q *Queue) Device() device.Device { return q.dev }

// Submit appends op to the queue.
func (q *Queue) Submit(op device.Op) (device.Fence, error) {
	if op == nil {
		return nil, device.ErrNilOp
	}
	f, ok := q.timeline.Enqueue(func() error { return q.dev.execute(op) })
	if !ok {
		return nil, q.closedErr()
	}
	return f, nil
}

// Marker returns a fence reached once everything submitted so far has
// completed.
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

// Native returns the hal.Queue of the device. Submissions made directly on
// it are not ordered with this queue.
func (q *Queue) Native() any { return q.dev.queue }

// Close drains the queue. Closing a closed queue is a no-op.
func (q *Queue) Close() error {
	if q.timeline.Close() {
		q.dev.forget(q)
	}
	return nil
}

func (q *Queue) closedErr() error {
	return fmt.Errorf("halgpu: queue on device %d: %w", q.dev.index, device.ErrClosed)
}
