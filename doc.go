// Package xstream provides accelerator streams and events: a host-side
// routine enqueues offload regions onto compute devices without blocking,
// tracks their completion with per-stream signal counters, and orders work
// across streams with events.
//
// # Quick Start
//
//	rt, err := xstream.New()
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	s, _ := rt.NewStream(0)
//	defer s.Destroy()
//
//	r := xstream.NewRegion("scale", func(x *xstream.Exec) error {
//	    v := x.Arg(0).([]float64)
//	    for i := range v {
//	        v[i] *= 2
//	    }
//	    return nil
//	}, data)
//
//	_ = rt.Dispatch(s, r, false) // returns once enqueued
//	_ = s.Synchronize()          // blocks until done
//
// # Dispatch Strategies
//
// A Runtime uses exactly one Strategy, chosen with WithStrategy:
//   - AsyncSignalWait (default): regions are offloaded to the stream's
//     device; the host orders each one after the stream's previous work.
//   - Synchronous: every Dispatch blocks until the region completes.
//   - BackendStream: each stream owns a native device queue that orders
//     its regions.
//
// Every successful enqueue on a stream advances its signal by one and
// marks that signal pending. Dispatch with wait set blocks until the
// region, and so all earlier work on the stream, has completed, and
// leaves the stream idle.
//
// # Events
//
// Events are created unsignaled. Record binds an event to the current tail
// of a stream; Stream.WaitEvent makes later work on another stream wait
// for it; Query and Synchronize observe it from any goroutine.
//
//	ev, _ := rt.CreateEvent()
//	_ = rt.Dispatch(a, produce, false)
//	_ = ev.Record(a)
//	_ = b.WaitEvent(ev)
//	_ = rt.Dispatch(b, consume, false) // never starts before produce ends
//
// # Errors
//
// Failing operations return an *Error whose Kind separates backend
// failures (the device rejected the call) from condition failures (a
// precondition was violated, such as using a destroyed event). StatusOf
// maps errors to the status codes 0, -1 and -2 used by package acc.
//
// # Backends
//
// Devices come from a device.Backend. The host backend (goroutine-backed
// devices) is always available. Importing device/halgpu together with a
// wgpu HAL backend makes GPU devices available under the name "hal".
package xstream
