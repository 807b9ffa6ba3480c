package sched

import (
	"errors"
	"testing"
	"time"
)

func TestCompletion_Lifecycle(t *testing.T) {
	c := NewCompletion()

	if IsDone(c) {
		t.Fatal("new completion reports done")
	}
	if c.Err() != nil {
		t.Errorf("Err() before Complete = %v, want nil", c.Err())
	}

	boom := errors.New("boom")
	if !c.Complete(boom) {
		t.Error("first Complete = false, want true")
	}
	if c.Complete(nil) {
		t.Error("second Complete = true, want false")
	}

	if !IsDone(c) {
		t.Error("completion not done after Complete")
	}
	if !errors.Is(c.Err(), boom) {
		t.Errorf("Err() = %v, want %v", c.Err(), boom)
	}
}

func TestCompleted(t *testing.T) {
	if !IsDone(Completed(nil)) {
		t.Error("Completed(nil) is not done")
	}
	if IsDone(nil) != true {
		t.Error("IsDone(nil) = false, want true")
	}
}

func TestWait_FirstErrorInOrder(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	err := Wait(nil, Completed(nil), Completed(first), Completed(second))
	if !errors.Is(err, first) {
		t.Errorf("Wait() = %v, want %v", err, first)
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name   string
		fences []Fence
		done   bool
	}{
		{"empty", nil, true},
		{"nil only", []Fence{nil}, true},
		{"all done", []Fence{Completed(nil), Completed(nil)}, true},
		{"one pending", []Fence{Completed(nil), NewCompletion()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := Join(tt.fences...)
			time.Sleep(time.Millisecond)
			if got := IsDone(j); got != tt.done {
				t.Errorf("IsDone(Join) = %v, want %v", got, tt.done)
			}
		})
	}
}

func TestJoin_WaitsForAll(t *testing.T) {
	a := NewCompletion()
	b := NewCompletion()
	boom := errors.New("boom")

	j := Join(a, b)

	a.Complete(nil)
	time.Sleep(time.Millisecond)
	if IsDone(j) {
		t.Fatal("join done before every fence")
	}

	b.Complete(boom)

	select {
	case <-j.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for join")
	}
	if !errors.Is(j.Err(), boom) {
		t.Errorf("Join Err() = %v, want %v", j.Err(), boom)
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	err := Run(func() error { panic("kernel fault") })
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("Run() = %v, want ErrPanic", err)
	}

	want := errors.New("plain")
	if got := Run(func() error { return want }); !errors.Is(got, want) {
		t.Errorf("Run() = %v, want %v", got, want)
	}
}
