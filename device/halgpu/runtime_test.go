package halgpu

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/xstream"
)

// =============================================================================
// xstream Integration Tests
// =============================================================================

func TestRuntime_KernelRegions(t *testing.T) {
	for _, st := range []xstream.Strategy{xstream.Synchronous, xstream.AsyncSignalWait, xstream.BackendStream} {
		t.Run(st.String(), func(t *testing.T) {
			b, d := newNoopBackend(t)

			k, err := d.CompileKernel(KernelDescriptor{Label: "noop", WGSL: testKernel, SkipValidation: true})
			if err != nil {
				t.Fatalf("CompileKernel() error = %v", err)
			}
			defer k.Destroy()

			rt, err := xstream.New(xstream.WithBackend(b), xstream.WithStrategy(st))
			if err != nil {
				t.Fatalf("xstream.New() error = %v", err)
			}
			defer rt.Close()

			s, err := rt.NewStream(0)
			if err != nil {
				t.Fatalf("NewStream() error = %v", err)
			}
			defer s.Destroy()

			var recorded atomic.Int32
			r := xstream.NewRegion("dispatch", func(x *xstream.Exec) error {
				target, ok := x.Native().(*Target)
				if !ok {
					return errors.New("native target is not *halgpu.Target")
				}
				if err := target.Dispatch(k, 4, 1, 1); err != nil {
					return err
				}
				recorded.Add(int32(target.Recorded()))
				return nil
			})

			for i := 0; i < 3; i++ {
				if err := rt.Dispatch(s, r, false); err != nil {
					t.Fatalf("Dispatch #%d error = %v", i+1, err)
				}
			}

			ev, err := rt.CreateEvent()
			if err != nil {
				t.Fatalf("CreateEvent() error = %v", err)
			}
			defer ev.Destroy()
			if err := ev.Record(s); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if err := ev.Synchronize(); err != nil {
				t.Fatalf("event Synchronize() error = %v", err)
			}

			if got := recorded.Load(); got != 3 {
				t.Errorf("recorded command buffers = %d, want 3", got)
			}
			if err := s.Synchronize(); err != nil {
				t.Errorf("stream Synchronize() error = %v", err)
			}
			if err := rt.Synchronize(); err != nil {
				t.Errorf("runtime Synchronize() error = %v", err)
			}
		})
	}
}

func TestRuntime_RegionFailure(t *testing.T) {
	b, _ := newNoopBackend(t)

	rt, err := xstream.New(xstream.WithBackend(b), xstream.WithStrategy(xstream.BackendStream))
	if err != nil {
		t.Fatalf("xstream.New() error = %v", err)
	}
	defer rt.Close()

	s, err := rt.NewStream(0)
	if err != nil {
		t.Fatalf("NewStream() error = %v", err)
	}
	defer s.Destroy()

	err = rt.Dispatch(s, xstream.NewRegion("foreign", func(x *xstream.Exec) error {
		return x.Native().(*Target).Dispatch(nil, 1, 1, 1)
	}), true)
	if !errors.Is(err, ErrNilKernel) || xstream.StatusOf(err) != xstream.StatusBackend {
		t.Errorf("Dispatch() = %v, want backend error wrapping ErrNilKernel", err)
	}
	// Drain the recorded failure so Close does not report it.
	_ = rt.Synchronize()
}
