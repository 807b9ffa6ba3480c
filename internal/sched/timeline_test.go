package sched

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeline_Order(t *testing.T) {
	tl := NewTimeline(nil)
	defer tl.Close()

	var last atomic.Int64
	var outOfOrder atomic.Bool
	var f Fence
	for i := int64(1); i <= 50; i++ {
		f, _ = tl.Enqueue(func() error {
			if !last.CompareAndSwap(i-1, i) {
				outOfOrder.Store(true)
			}
			return nil
		})
	}

	if err := Wait(f); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if outOfOrder.Load() {
		t.Error("operations ran out of enqueue order")
	}
}

func TestTimeline_Fault(t *testing.T) {
	tr := NewTracker()
	tl := NewTimeline(tr)
	defer tl.Close()

	boom := errors.New("boom")
	tl.Enqueue(func() error { return boom })

	ran := false
	skipped, _ := tl.Enqueue(func() error {
		ran = true
		return nil
	})
	marker, _ := tl.Enqueue(nil)

	if err := Wait(skipped); !errors.Is(err, boom) {
		t.Errorf("skipped op error = %v, want %v", err, boom)
	}
	if err := Wait(marker); !errors.Is(err, boom) {
		t.Errorf("marker error = %v, want %v", err, boom)
	}
	if ran {
		t.Error("op ran on a faulted timeline")
	}
	if err := tr.Wait(); !errors.Is(err, boom) {
		t.Errorf("tracker Wait() = %v, want %v", err, boom)
	}
}

func TestTimeline_After(t *testing.T) {
	tl := NewTimeline(nil)
	defer tl.Close()

	gate := NewCompletion()
	tl.After(gate)
	f, _ := tl.Enqueue(func() error { return nil })

	select {
	case <-f.Done():
		t.Fatal("op ran before the awaited fence")
	case <-time.After(10 * time.Millisecond):
	}

	gate.Complete(nil)
	if err := Wait(f); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestTimeline_Close(t *testing.T) {
	tl := NewTimeline(nil)

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		tl.Enqueue(func() error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return nil
		})
	}

	if !tl.Close() {
		t.Error("first Close() = false, want true")
	}
	if ran.Load() != 4 {
		t.Errorf("ran = %d before Close returned, want 4", ran.Load())
	}
	if tl.Close() {
		t.Error("second Close() = true, want false")
	}
	if _, ok := tl.Enqueue(func() error { return nil }); ok {
		t.Error("Enqueue after Close succeeded")
	}
	if tl.After(Completed(nil)) {
		t.Error("After on a closed timeline succeeded")
	}
}

func TestAfter(t *testing.T) {
	var got error
	After(nil, func(err error) { got = err })
	if got != nil {
		t.Errorf("After(nil) err = %v, want nil", got)
	}

	boom := errors.New("boom")
	c := NewCompletion()
	ch := make(chan error, 1)
	After(c, func(err error) { ch <- err })
	c.Complete(boom)

	select {
	case err := <-ch:
		if !errors.Is(err, boom) {
			t.Errorf("After err = %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for After callback")
	}
}
