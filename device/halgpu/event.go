// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// hostSignaler is implemented by HAL fences the host can signal.
type hostSignaler interface {
	Signal(value uint64)
}

// Event is a HAL device event. It owns a hal.Fence that is destroyed with
// the event. When the recorded point is reached the fence is signaled to 1
// if the backend allows host signaling, and its status is then checked on
// every query so that device loss surfaces as an error.
type Event struct {
	dev *Device

	mu        sync.Mutex
	fence     hal.Fence
	recorded  device.Fence
	signaled  bool
	destroyed bool
}

// Record binds the event to f. A nil f records an already reached point.
func (e *Event) Record(f device.Fence) error {
	e.mu.Lock()
	switch {
	case e.destroyed:
		e.mu.Unlock()
		return device.ErrDestroyed
	case e.recorded != nil:
		e.mu.Unlock()
		return device.ErrAlreadyRecorded
	}
	if f == nil {
		f = sched.Completed(nil)
	}
	e.recorded = f
	e.mu.Unlock()

	sched.After(f, func(error) { e.signal() })
	return nil
}

func (e *Event) signal() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	if s, ok := e.fence.(hostSignaler); ok {
		s.Signal(1)
		e.signaled = true
	}
}

// Query reports whether the recorded point has been reached.
func (e *Event) Query() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return false, device.ErrDestroyed
	}
	if e.recorded == nil || !sched.IsDone(e.recorded) {
		return false, nil
	}
	if err := e.recorded.Err(); err != nil {
		return true, err
	}
	if e.signaled {
		if _, err := e.dev.hal.GetFenceStatus(e.fence); err != nil {
			return true, fmt.Errorf("halgpu: fence status: %w", err)
		}
	}
	return true, nil
}

// Wait blocks until the recorded point is reached.
func (e *Event) Wait() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return device.ErrDestroyed
	}
	f := e.recorded
	e.mu.Unlock()

	if f == nil {
		return device.ErrNotRecorded
	}
	<-f.Done()
	if err := f.Err(); err != nil {
		return err
	}
	_, err := e.Query()
	return err
}

// Fence returns the recorded fence, or nil.
func (e *Event) Fence() device.Fence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorded
}

// Destroy releases the HAL fence.
func (e *Event) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return device.ErrDestroyed
	}
	e.dev.hal.DestroyFence(e.fence)
	e.fence = nil
	e.recorded = nil
	e.destroyed = true
	return nil
}
