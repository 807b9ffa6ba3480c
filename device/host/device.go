package host

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"golang.org/x/sys/cpu"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

// Device is a host device. Offloaded operations receive the *Device as
// their target.
type Device struct {
	backend *Backend
	index   int
	info    device.Info

	pool    *sched.Pool
	tracker *sched.Tracker
	closed  atomic.Bool

	mu     sync.Mutex
	queues map[*Queue]struct{}
}

func newDevice(b *Backend, index, workers int) *Device {
	return &Device{
		backend: b,
		index:   index,
		info: device.Info{
			Index:    index,
			Name:     fmt.Sprintf("host-%d", index),
			Backend:  device.BackendHost,
			Type:     gputypes.DeviceTypeCPU,
			Features: cpuFeatures(),
		},
		pool:    sched.NewPool(workers),
		tracker: sched.NewTracker(),
		queues:  make(map[*Queue]struct{}),
	}
}

// cpuFeatures reports the SIMD extensions available to host kernels.
func cpuFeatures() []string {
	var f []string
	if cpu.X86.HasSSE2 {
		f = append(f, "sse2")
	}
	if cpu.X86.HasSSE41 {
		f = append(f, "sse4.1")
	}
	if cpu.X86.HasAVX {
		f = append(f, "avx")
	}
	if cpu.X86.HasAVX2 {
		f = append(f, "avx2")
	}
	if cpu.X86.HasFMA {
		f = append(f, "fma")
	}
	if cpu.X86.HasAVX512F {
		f = append(f, "avx512f")
	}
	if cpu.ARM64.HasASIMD {
		f = append(f, "asimd")
	}
	if cpu.ARM64.HasFPHP {
		f = append(f, "fphp")
	}
	return f
}

// Info describes the device.
func (d *Device) Info() device.Info {
	info := d.info
	info.Features = append([]string(nil), d.info.Features...)
	return info
}

// Index returns the device position within its backend.
func (d *Device) Index() int { return d.index }

// Workers returns the number of worker goroutines of the device.
func (d *Device) Workers() int { return d.pool.Workers() }

// Offload runs op on the device worker pool once every fence in after is
// reached. A failed dependency skips op and is reported by the returned
// fence.
func (d *Device) Offload(op device.Op, after ...device.Fence) (device.Fence, error) {
	if op == nil {
		return nil, device.ErrNilOp
	}
	if d.closed.Load() {
		return nil, fmt.Errorf("host: offload on device %d: %w", d.index, device.ErrClosed)
	}

	done := sched.NewCompletion()
	d.tracker.Add()

	finish := func(err error) {
		done.Complete(err)
		d.tracker.Done(err)
	}

	sched.After(sched.Join(fences(after)...), func(depErr error) {
		if depErr != nil {
			finish(depErr)
			return
		}
		ok := d.pool.Submit(func() {
			finish(sched.Run(func() error { return op(d) }))
		})
		if !ok {
			finish(device.ErrClosed)
		}
	})
	return done, nil
}

// NewQueue creates a FIFO queue on the device.
func (d *Device) NewQueue() (device.Queue, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("host: new queue on device %d: %w", d.index, device.ErrClosed)
	}

	q := newQueue(d)

	d.mu.Lock()
	d.queues[q] = struct{}{}
	d.mu.Unlock()

	return q, nil
}

// NewEvent creates an unsignaled event.
func (d *Device) NewEvent() (device.Event, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("host: new event on device %d: %w", d.index, device.ErrClosed)
	}
	return &Event{}, nil
}

// CanWaitOn reports whether d can depend on fences of other. A device can
// always wait on itself; peers of the same backend only with WithPeerWait.
func (d *Device) CanWaitOn(other device.Device) bool {
	o, ok := other.(*Device)
	if !ok {
		return false
	}
	if o == d {
		return true
	}
	return d.backend.cfg.peerWait && o.backend == d.backend
}

// Synchronize blocks until all offloaded and queued work has finished and
// returns the first failure since the previous call.
func (d *Device) Synchronize() error {
	return d.tracker.Wait()
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

	if err := d.tracker.Wait(); err != nil {
		slogger().Debug("host: device closed with failed work", "device", d.index, "err", err)
	}
	d.pool.Close()
}

// fences converts device fences to scheduler fences.
func fences(fs []device.Fence) []sched.Fence {
	out := make([]sched.Fence, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
