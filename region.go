package xstream

import "github.com/gogpu/xstream/device"

// Region is an offload region: captured arguments plus a body that runs
// on a device. A Region is immutable once built. Dispatch takes a clone,
// so the caller may reuse or drop its Region as soon as Dispatch returns.
type Region struct {
	name string
	args []any
	body func(*Exec) error
}

// NewRegion builds a region named name that runs body with args.
func NewRegion(name string, body func(*Exec) error, args ...any) *Region {
	return &Region{
		name: name,
		args: append([]any(nil), args...),
		body: body,
	}
}

// Name returns the region name.
func (r *Region) Name() string { return r.name }

// NumArgs returns the number of captured arguments.
func (r *Region) NumArgs() int { return len(r.args) }

// Clone returns a copy of r with its own argument slice. Argument values
// are copied shallowly.
func (r *Region) Clone() *Region {
	return &Region{
		name: r.name,
		args: append([]any(nil), r.args...),
		body: r.body,
	}
}

// op turns the region into a device operation run with the given
// bookkeeping values.
func (r *Region) op(dev int, signal, pending Signal) device.Op {
	return func(target any) error {
		if r.body == nil {
			return nil
		}
		return r.body(&Exec{
			device:  dev,
			signal:  signal,
			pending: pending,
			args:    r.args,
			native:  target,
		})
	}
}

// Exec is the execution context of a running region.
type Exec struct {
	device  int
	signal  Signal
	pending Signal
	args    []any
	native  any
}

// Device returns the index of the device running the region.
func (e *Exec) Device() int { return e.device }

// Signal returns the signal the region was tagged with, or 0 for
// synchronous and stream-less dispatch.
func (e *Exec) Signal() Signal { return e.signal }

// Pending returns the stream's pending signal at dispatch time.
func (e *Exec) Pending() Signal { return e.pending }

// Arg returns captured argument i, or nil if i is out of range.
func (e *Exec) Arg(i int) any {
	if i < 0 || i >= len(e.args) {
		return nil
	}
	return e.args[i]
}

// Args returns a copy of the captured arguments.
func (e *Exec) Args() []any { return append([]any(nil), e.args...) }

// NumArgs returns the number of captured arguments.
func (e *Exec) NumArgs() int { return len(e.args) }

// Native returns the backend execution target, such as *halgpu.Target
// for HAL devices or *host.Device for host devices.
func (e *Exec) Native() any { return e.native }
