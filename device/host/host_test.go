package host

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/internal/sched"
)

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(opts...)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func mustDevice(t *testing.T, b *Backend, i int) *Device {
	t.Helper()
	d, err := b.Device(i)
	if err != nil {
		t.Fatalf("Device(%d) error = %v", i, err)
	}
	return d.(*Device)
}

func waitFence(t *testing.T, f device.Fence) error {
	t.Helper()
	select {
	case <-f.Done():
		return f.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for fence")
		return nil
	}
}

// =============================================================================
// Backend Tests
// =============================================================================

func TestBackend_Registered(t *testing.T) {
	if !device.IsRegistered(device.BackendHost) {
		t.Fatal("host backend is not registered")
	}
	b := device.Get(device.BackendHost)
	if b == nil || b.Name() != "host" {
		t.Fatalf("Get(host) = %v, want host backend", b)
	}
}

func TestBackend_Devices(t *testing.T) {
	b := New(WithDevices(3), WithWorkers(2))

	if _, err := b.Device(0); !errors.Is(err, device.ErrNotInitialized) {
		t.Errorf("Device(0) before Init error = %v, want ErrNotInitialized", err)
	}

	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	if b.DeviceCount() != 3 {
		t.Errorf("DeviceCount() = %d, want 3", b.DeviceCount())
	}
	if _, err := b.Device(3); !errors.Is(err, device.ErrNoDevice) {
		t.Errorf("Device(3) error = %v, want ErrNoDevice", err)
	}

	d := mustDevice(t, b, 2)
	info := d.Info()
	if info.Index != 2 || d.Index() != 2 {
		t.Errorf("Index = %d/%d, want 2", info.Index, d.Index())
	}
	if info.Type != gputypes.DeviceTypeCPU {
		t.Errorf("Type = %v, want DeviceTypeCPU", info.Type)
	}
	if info.Backend != "host" {
		t.Errorf("Backend = %q, want host", info.Backend)
	}
	if d.Workers() != 2 {
		t.Errorf("Workers() = %d, want 2", d.Workers())
	}
}

func TestBackend_CloseReleasesDevices(t *testing.T) {
	b := New()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := mustDevice(t, b, 0)
	b.Close()

	if b.DeviceCount() != 0 {
		t.Errorf("DeviceCount() after Close = %d, want 0", b.DeviceCount())
	}
	if _, err := d.Offload(func(any) error { return nil }); !errors.Is(err, device.ErrClosed) {
		t.Errorf("Offload after Close error = %v, want ErrClosed", err)
	}
}

// =============================================================================
// Offload Tests
// =============================================================================

func TestDevice_OffloadTarget(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)

	var got any
	f, err := d.Offload(func(target any) error {
		got = target
		return nil
	})
	if err != nil {
		t.Fatalf("Offload() error = %v", err)
	}
	if err := waitFence(t, f); err != nil {
		t.Fatalf("fence error = %v", err)
	}
	if got != d {
		t.Errorf("target = %v, want the device", got)
	}
}

func TestDevice_OffloadAfter(t *testing.T) {
	b := newTestBackend(t, WithWorkers(4))
	d := mustDevice(t, b, 0)

	gate := sched.NewCompletion()
	var firstDone atomic.Bool

	first, _ := d.Offload(func(any) error {
		<-gate.Done()
		firstDone.Store(true)
		return nil
	})

	var sawFirst atomic.Bool
	second, err := d.Offload(func(any) error {
		sawFirst.Store(firstDone.Load())
		return nil
	}, first)
	if err != nil {
		t.Fatalf("Offload() error = %v", err)
	}

	gate.Complete(nil)
	if err := waitFence(t, second); err != nil {
		t.Fatalf("fence error = %v", err)
	}
	if !sawFirst.Load() {
		t.Error("dependent op ran before its dependency finished")
	}
}

func TestDevice_OffloadFailedDependency(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)

	boom := errors.New("boom")
	failed, _ := d.Offload(func(any) error { return boom })

	ran := false
	dep, _ := d.Offload(func(any) error {
		ran = true
		return nil
	}, failed)

	if err := waitFence(t, dep); !errors.Is(err, boom) {
		t.Errorf("dependent fence error = %v, want %v", err, boom)
	}
	if ran {
		t.Error("op ran although its dependency failed")
	}
	if err := d.Synchronize(); !errors.Is(err, boom) {
		t.Errorf("Synchronize() = %v, want %v", err, boom)
	}
	if err := d.Synchronize(); err != nil {
		t.Errorf("second Synchronize() = %v, want nil", err)
	}
}

func TestDevice_OffloadPanic(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)

	f, _ := d.Offload(func(any) error { panic("bad kernel") })
	if err := waitFence(t, f); !errors.Is(err, sched.ErrPanic) {
		t.Errorf("fence error = %v, want ErrPanic", err)
	}
}

func TestDevice_OffloadNil(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)

	if _, err := d.Offload(nil); !errors.Is(err, device.ErrNilOp) {
		t.Errorf("Offload(nil) error = %v, want ErrNilOp", err)
	}
}

func TestDevice_CanWaitOn(t *testing.T) {
	tests := []struct {
		name     string
		peerWait bool
		want     bool
	}{
		{"peers isolated", false, false},
		{"peer wait", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t, WithDevices(2), WithPeerWait(tt.peerWait))
			d0 := mustDevice(t, b, 0)
			d1 := mustDevice(t, b, 1)

			if !d0.CanWaitOn(d0) {
				t.Error("device cannot wait on itself")
			}
			if got := d0.CanWaitOn(d1); got != tt.want {
				t.Errorf("CanWaitOn(peer) = %v, want %v", got, tt.want)
			}
		})
	}

	other := newTestBackend(t, WithPeerWait(true))
	b := newTestBackend(t, WithPeerWait(true))
	if mustDevice(t, b, 0).CanWaitOn(mustDevice(t, other, 0)) {
		t.Error("CanWaitOn(device of another backend) = true, want false")
	}
}

// =============================================================================
// Queue Tests
// =============================================================================

func TestQueue_Order(t *testing.T) {
	b := newTestBackend(t, WithWorkers(4))
	d := mustDevice(t, b, 0)

	q, err := d.NewQueue()
	if err != nil {
		t.Fatalf("NewQueue() error = %v", err)
	}
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var last device.Fence
	for i := 0; i < 50; i++ {
		last, err = q.Submit(func(any) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	if err := waitFence(t, last); err != nil {
		t.Fatalf("fence error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueue_StickyFault(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)
	q, _ := d.NewQueue()
	defer q.Close()

	boom := errors.New("boom")
	_, _ = q.Submit(func(any) error { return boom })

	ran := false
	later, _ := q.Submit(func(any) error {
		ran = true
		return nil
	})
	marker, _ := q.Marker()

	if err := waitFence(t, later); !errors.Is(err, boom) {
		t.Errorf("later fence error = %v, want %v", err, boom)
	}
	if err := waitFence(t, marker); !errors.Is(err, boom) {
		t.Errorf("marker error = %v, want %v", err, boom)
	}
	if ran {
		t.Error("op ran on a faulted queue")
	}
}

func TestQueue_WaitFence(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)

	qa, _ := d.NewQueue()
	qb, _ := d.NewQueue()
	defer qa.Close()
	defer qb.Close()

	gate := sched.NewCompletion()
	var aDone atomic.Bool
	_, _ = qa.Submit(func(any) error {
		<-gate.Done()
		aDone.Store(true)
		return nil
	})
	mark, _ := qa.Marker()

	if err := qb.WaitFence(mark); err != nil {
		t.Fatalf("WaitFence() error = %v", err)
	}
	var sawA atomic.Bool
	fb, _ := qb.Submit(func(any) error {
		sawA.Store(aDone.Load())
		return nil
	})

	select {
	case <-fb.Done():
		t.Fatal("waiting queue ran before the fence was reached")
	case <-time.After(10 * time.Millisecond):
	}

	gate.Complete(nil)
	if err := waitFence(t, fb); err != nil {
		t.Fatalf("fence error = %v", err)
	}
	if !sawA.Load() {
		t.Error("queue B ran before queue A's marked work")
	}
}

func TestQueue_MarkerEmpty(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)
	q, _ := d.NewQueue()
	defer q.Close()

	m, err := q.Marker()
	if err != nil {
		t.Fatalf("Marker() error = %v", err)
	}
	if err := waitFence(t, m); err != nil {
		t.Errorf("marker error = %v, want nil", err)
	}
}

func TestQueue_Close(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)
	q, _ := d.NewQueue()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		_, _ = q.Submit(func(any) error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return nil
		})
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if ran.Load() != 5 {
		t.Errorf("ran %d ops before Close returned, want 5", ran.Load())
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if _, err := q.Submit(func(any) error { return nil }); !errors.Is(err, device.ErrClosed) {
		t.Errorf("Submit after Close error = %v, want ErrClosed", err)
	}
	if q.Native() != q {
		t.Error("Native() does not return the queue")
	}
	if q.Device() != d {
		t.Error("Device() does not return the owning device")
	}
}

// =============================================================================
// Event Tests
// =============================================================================

func TestEvent_Lifecycle(t *testing.T) {
	b := newTestBackend(t)
	d := mustDevice(t, b, 0)

	ev, err := d.NewEvent()
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	if ok, err := ev.Query(); ok || err != nil {
		t.Errorf("Query() on fresh event = %v, %v; want false, nil", ok, err)
	}
	if err := ev.Wait(); !errors.Is(err, device.ErrNotRecorded) {
		t.Errorf("Wait() on fresh event = %v, want ErrNotRecorded", err)
	}

	gate := sched.NewCompletion()
	if err := ev.Record(gate); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := ev.Record(gate); !errors.Is(err, device.ErrAlreadyRecorded) {
		t.Errorf("second Record() = %v, want ErrAlreadyRecorded", err)
	}
	if ok, _ := ev.Query(); ok {
		t.Error("Query() = true before the fence is reached")
	}

	gate.Complete(nil)
	if err := ev.Wait(); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
	if ok, err := ev.Query(); !ok || err != nil {
		t.Errorf("Query() = %v, %v; want true, nil", ok, err)
	}

	if err := ev.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if err := ev.Destroy(); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("second Destroy() = %v, want ErrDestroyed", err)
	}
	if _, err := ev.Query(); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("Query() after Destroy = %v, want ErrDestroyed", err)
	}
}

func TestEvent_FailedFence(t *testing.T) {
	ev := &Event{}
	boom := errors.New("boom")
	_ = ev.Record(sched.Completed(boom))

	ok, err := ev.Query()
	if !ok || !errors.Is(err, boom) {
		t.Errorf("Query() = %v, %v; want true, %v", ok, err, boom)
	}
	if err := ev.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait() = %v, want %v", err, boom)
	}
}
