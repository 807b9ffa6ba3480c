package devicetest

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/device/host"
)

func newWrapped(t *testing.T, opts ...host.Option) (*Backend, device.Device) {
	t.Helper()
	b := Wrap(host.New(opts...))
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(b.Close)

	d, err := b.Device(0)
	if err != nil {
		t.Fatalf("Device(0) error = %v", err)
	}
	return b, d
}

func wait(t *testing.T, f device.Fence) error {
	t.Helper()
	select {
	case <-f.Done():
		return f.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for fence")
		return nil
	}
}

func TestFailNext(t *testing.T) {
	b, d := newWrapped(t)

	q, err := d.NewQueue()
	if err != nil {
		t.Fatalf("NewQueue() error = %v", err)
	}
	defer q.Close()

	b.FailNext(OpSubmit, 2)
	for i := 0; i < 2; i++ {
		if _, err := q.Submit(func(any) error { return nil }); !errors.Is(err, ErrInjected) {
			t.Errorf("Submit #%d error = %v, want ErrInjected", i, err)
		}
	}

	f, err := q.Submit(func(any) error { return nil })
	if err != nil {
		t.Fatalf("third Submit() error = %v", err)
	}
	if err := wait(t, f); err != nil {
		t.Errorf("fence error = %v", err)
	}
	if got := b.Calls(OpSubmit); got != 3 {
		t.Errorf("Calls(submit) = %d, want 3", got)
	}
}

func TestFailExecute(t *testing.T) {
	b, d := newWrapped(t)

	b.FailNext(OpExecute, 1)
	ran := false
	f, err := d.Offload(func(any) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Offload() error = %v, want nil (failure is asynchronous)", err)
	}
	if err := wait(t, f); !errors.Is(err, ErrInjected) {
		t.Errorf("fence error = %v, want ErrInjected", err)
	}
	if ran {
		t.Error("op ran despite injected execution failure")
	}
}

func TestEventDestroyRetry(t *testing.T) {
	b, d := newWrapped(t)

	ev, err := d.NewEvent()
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	b.FailNext(OpDestroy, 1)
	if err := ev.Destroy(); !errors.Is(err, ErrInjected) {
		t.Fatalf("Destroy() error = %v, want ErrInjected", err)
	}
	if err := ev.Destroy(); err != nil {
		t.Errorf("retried Destroy() error = %v, want nil", err)
	}
	if err := ev.Destroy(); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("third Destroy() error = %v, want ErrDestroyed", err)
	}
}

func TestDeviceIdentity(t *testing.T) {
	b, d := newWrapped(t, host.WithDevices(2))

	again, _ := b.Device(0)
	if again != d {
		t.Error("Device(0) returned a different wrapper")
	}
	if !d.CanWaitOn(again) {
		t.Error("wrapped device cannot wait on itself")
	}

	q, _ := d.NewQueue()
	defer q.Close()
	if q.Device() != d {
		t.Error("Queue.Device() is not the wrapping device")
	}
}

func TestReset(t *testing.T) {
	b, d := newWrapped(t)

	b.FailNext(OpNewEvent, 5)
	_, _ = d.NewEvent()
	b.Reset()

	if b.Calls(OpNewEvent) != 0 {
		t.Errorf("Calls(new_event) after Reset = %d, want 0", b.Calls(OpNewEvent))
	}
	if _, err := d.NewEvent(); err != nil {
		t.Errorf("NewEvent() after Reset error = %v, want nil", err)
	}
}
