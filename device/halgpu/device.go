// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Completion polling backoff bounds.
const (
	pollMin = 50 * time.Microsecond
	pollMax = 2 * time.Millisecond
)

// Device is a HAL compute device.
type Device struct {
	backend *Backend
	index   int
	info    device.Info

	hal   hal.Device
	queue hal.Queue

	// submitMu serializes access to the HAL queue.
	submitMu sync.Mutex

	pool    *sched.Pool
	tracker *sched.Tracker
	closed  atomic.Bool

	mu     sync.Mutex
	queues map[*Queue]struct{}
}

func newDevice(b *Backend, index int, d hal.Device, q hal.Queue, adapter gpucontext.AdapterInfo) *Device {
	return &Device{
		backend: b,
		index:   index,
		info: device.Info{
			Index:    index,
			Name:     adapter.Name,
			Backend:  device.BackendHAL,
			Type:     deviceType(adapter.Type),
			Features: []string{"compute"},
		},
		hal:     d,
		queue:   q,
		pool:    sched.NewPool(0),
		tracker: sched.NewTracker(),
		queues:  make(map[*Queue]struct{}),
	}
}

// Info describes the device.
func (d *Device) Info() device.Info {
	info := d.info
	info.Features = append([]string(nil), d.info.Features...)
	return info
}

// Index returns the device position within its backend.
func (d *Device) Index() int { return d.index }

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.hal }

// Offload runs op once every fence in after is reached, then submits the
// command buffers op recorded. The returned fence is reached when the HAL
// reports the submission complete.
func (d *Device) Offload(op device.Op, after ...device.Fence) (device.Fence, error) {
	if op == nil {
		return nil, device.ErrNilOp
	}
	if d.closed.Load() {
		return nil, fmt.Errorf("halgpu: offload on device %d: %w", d.index, device.ErrClosed)
	}

	done := sched.NewCompletion()
	d.tracker.Add()

	finish := func(err error) {
		done.Complete(err)
		d.tracker.Done(err)
	}

	deps := make([]sched.Fence, 0, len(after))
	for _, f := range after {
		if f != nil {
			deps = append(deps, f)
		}
	}

	sched.After(sched.Join(deps...), func(depErr error) {
		if depErr != nil {
			finish(depErr)
			return
		}
		if !d.pool.Submit(func() { finish(d.execute(op)) }) {
			finish(device.ErrClosed)
		}
	})
	return done, nil
}

// execute runs op against a fresh target and submits what it recorded.
func (d *Device) execute(op device.Op) error {
	t := &Target{dev: d}
	defer t.release()

	if err := sched.Run(func() error { return op(t) }); err != nil {
		return err
	}
	return d.submit(t.buffers)
}

// submit hands buffers to the HAL queue and waits for the submission to
// complete.
func (d *Device) submit(buffers []hal.CommandBuffer) error {
	if len(buffers) == 0 {
		return nil
	}

	d.submitMu.Lock()
	index, err := d.queue.Submit(buffers)
	d.submitMu.Unlock()
	if err != nil {
		return fmt.Errorf("halgpu: submit on device %d: %w", d.index, err)
	}

	slogger().Debug("halgpu: submitted", "device", d.index, "buffers", len(buffers), "index", index)

	backoff := pollMin
	for {
		d.submitMu.Lock()
		completed := d.queue.PollCompleted()
		d.submitMu.Unlock()

		if completed >= index {
			return nil
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, pollMax)
	}
}

// NewQueue creates a FIFO queue on the device.
func (d *Device) NewQueue() (device.Queue, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("halgpu: new queue on device %d: %w", d.index, device.ErrClosed)
	}

	q := &Queue{dev: d, timeline: sched.NewTimeline(d.tracker)}

	d.mu.Lock()
	d.queues[q] = struct{}{}
	d.mu.Unlock()

	return q, nil
}

// NewEvent creates an unsignaled event backed by a HAL fence.
func (d *Device) NewEvent() (device.Event, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("halgpu: new event on device %d: %w", d.index, device.ErrClosed)
	}

	fence, err := d.hal.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create fence: %w", err)
	}
	return &Event{dev: d, fence: fence}, nil
}

// CanWaitOn reports whether d can depend on fences of other. HAL devices
// only wait on their own timeline.
func (d *Device) CanWaitOn(other device.Device) bool {
	o, ok := other.(*Device)
	return ok && o == d
}

// Synchronize waits for all submitted work and for the HAL device to go
// idle, and returns the first failure since the previous call.
func (d *Device) Synchronize() error {
	err := d.tracker.Wait()

	d.submitMu.Lock()
	idleErr := d.hal.WaitIdle()
	d.submitMu.Unlock()

	if err != nil {
		return err
	}
	if idleErr != nil {
		return fmt.Errorf("halgpu: wait idle on device %d: %w", d.index, idleErr)
	}
	return nil
}

func (d *Device) forget(q *Queue) {
	d.mu.Lock()
	delete(d.queues, q)
	d.mu.Unlock()
}

func (d *Device) close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}

	d.mu.Lock()
	queues := make([]*Queue, 0, len(d.queues))
	for q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()

	for _, q := range queues {
		_ = q.Close()
	}

	if err := d.Synchronize(); err != nil {
		slogger().Warn("halgpu: device closed with failed work", "device", d.index, "err", err)
	}
	d.pool.Close()
}
