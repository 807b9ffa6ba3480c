// Package devicetest wraps a device.Backend to inject failures and count
// calls, for testing code built on the device interfaces.
//
//	b := devicetest.Wrap(host.New())
//	b.FailNext(devicetest.OpSubmit, 1)
//	// the next Queue.Submit on any device of b returns ErrInjected
package devicetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/xstream/device"
)

// ErrInjected is the error returned by injected failures.
var ErrInjected = errors.New("devicetest: injected failure")

// Op names an interceptable call.
type Op string

// Interceptable calls.
const (
	OpInit        Op = "init"
	OpDevice      Op = "device"
	OpOffload     Op = "offload"
	OpExecute     Op = "execute"
	OpNewQueue    Op = "new_queue"
	OpSubmit      Op = "submit"
	OpMarker      Op = "marker"
	OpWaitFence   Op = "wait_fence"
	OpNewEvent    Op = "new_event"
	OpRecord      Op = "record"
	OpQuery       Op = "query"
	OpWait        Op = "wait"
	OpDestroy     Op = "destroy"
	OpSynchronize Op = "synchronize"
)

// Backend is a device.Backend that forwards to an inner backend.
//
// OpExecute failures are not returned by the enqueueing call: the next
// operation to run on a device fails with ErrInjected instead, so that the
// failure is reported through its fence.
type Backend struct {
	inner device.Backend

	mu      sync.Mutex
	fail    map[Op]int
	calls   map[Op]int
	devices map[int]*Device
}

// Wrap returns a Backend forwarding to inner.
func Wrap(inner device.Backend) *Backend {
	return &Backend{
		inner:   inner,
		fail:    make(map[Op]int),
		calls:   make(map[Op]int),
		devices: make(map[int]*Device),
	}
}

// FailNext makes the next n calls of op fail with ErrInjected.
func (b *Backend) FailNext(op Op, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op] = n
}

// Calls returns how many times op has been called.
func (b *Backend) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Reset clears pending failures and call counts.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.fail)
	clear(b.calls)
}

// Inner returns the wrapped backend.
func (b *Backend) Inner() device.Backend { return b.inner }

// hit records a call of op and reports whether it must fail.
func (b *Backend) hit(op Op) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls[op]++
	if b.fail[op] > 0 {
		b.fail[op]--
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

// Name returns the inner backend name.
func (b *Backend) Name() string { return b.inner.Name() }

// Init initializes the inner backend.
func (b *Backend) Init() error {
	if err := b.hit(OpInit); err != nil {
		return err
	}
	return b.inner.Init()
}

// Close closes the inner backend.
func (b *Backend) Close() {
	b.mu.Lock()
	clear(b.devices)
	b.mu.Unlock()

	b.inner.Close()
}

// DeviceCount returns the inner device count.
func (b *Backend) DeviceCount() int { return b.inner.DeviceCount() }

// Device returns a wrapper around inner device i. Repeated calls return
// the same wrapper.
func (b *Backend) Device(i int) (device.Device, error) {
	if err := b.hit(OpDevice); err != nil {
		return nil, err
	}
	d, err := b.inner.Device(i)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.devices[i]
	if !ok || w.inner != d {
		w = &Device{backend: b, inner: d}
		b.devices[i] = w
	}
	return w, nil
}
