package xstream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/xstream/device"
	"github.com/gogpu/xstream/device/host"
)

// Runtime holds the device context: a backend, its devices, the default
// device and the dispatch strategy. A Runtime is safe for concurrent use;
// the streams it creates are not (see Stream).
type Runtime struct {
	backend      device.Backend
	ownsBackend  bool
	devices      []device.Device
	defaultIndex int
	defaultDev   device.Device

	strategy   Strategy
	dispatcher Dispatcher
	log        *slog.Logger

	closed atomic.Bool
}

// New creates a Runtime.
//
// The backend is chosen in this order: the backend given with
// WithBackend; the registered backend named with WithBackendName; the
// registered backends by priority ("hal" before "host"), taking the first
// whose Init succeeds; and finally a host backend.
func New(opts ...Option) (*Runtime, error) {
	const op = "runtime_create"

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	switch o.strategy {
	case Synchronous, AsyncSignalWait, BackendStream:
	default:
		return nil, conditionError(op, fmt.Errorf("%w: %d", ErrUnknownStrategy, o.strategy))
	}

	rt := &Runtime{
		strategy: o.strategy,
		log:      o.logger,
	}

	b, owned, err := selectBackend(o)
	if err != nil {
		return nil, err
	}
	rt.backend = b
	rt.ownsBackend = owned

	track(b)

	if err := rt.initDevices(o.defaultDevice); err != nil {
		rt.release()
		return nil, err
	}
	rt.dispatcher = newDispatcher(rt, rt.strategy)

	rt.logger().Info("xstream: runtime ready",
		"backend", b.Name(),
		"devices", len(rt.devices),
		"default", rt.defaultIndex,
		"strategy", rt.strategy)
	return rt, nil
}

func selectBackend(o options) (b device.Backend, owned bool, err error) {
	const op = "runtime_create"

	switch {
	case o.backend != nil:
		if err := o.backend.Init(); err != nil {
			return nil, false, deviceError(op, err)
		}
		return o.backend, false, nil

	case o.backendName != "":
		b := device.Get(o.backendName)
		if b == nil {
			return nil, false, conditionError(op, fmt.Errorf("%w: %q", ErrNoBackend, o.backendName))
		}
		if err := b.Init(); err != nil {
			return nil, false, deviceError(op, err)
		}
		return b, true, nil
	}

	if b, err := device.InitDefault(); err == nil {
		return b, true, nil
	}

	b = host.New()
	if err := b.Init(); err != nil {
		return nil, false, deviceError(op, errors.Join(ErrNoBackend, err))
	}
	return b, true, nil
}

func (rt *Runtime) initDevices(defaultIndex int) error {
	const op = "runtime_create"

	n := rt.backend.DeviceCount()
	if n == 0 {
		return conditionError(op, fmt.Errorf("%w: backend %q has no devices", ErrNoBackend, rt.backend.Name()))
	}

	rt.devices = make([]device.Device, n)
	for i := range rt.devices {
		d, err := rt.backend.Device(i)
		if err != nil {
			return deviceError(op, err)
		}
		rt.devices[i] = d
	}

	if defaultIndex < 0 || defaultIndex >= n {
		return conditionError(op, fmt.Errorf("%w: default device %d of %d", ErrInvalidDevice, defaultIndex, n))
	}
	rt.defaultIndex = defaultIndex
	rt.defaultDev = rt.devices[defaultIndex]
	return nil
}

// device returns device i.
func (rt *Runtime) device(i int) (device.Device, error) {
	if i < 0 || i >= len(rt.devices) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidDevice, i, len(rt.devices))
	}
	return rt.devices[i], nil
}

// Device returns device i of the backend.
func (rt *Runtime) Device(i int) (device.Device, error) {
	d, err := rt.device(i)
	if err != nil {
		return nil, conditionError("device", err)
	}
	return d, nil
}

// DeviceCount returns the number of devices.
func (rt *Runtime) DeviceCount() int { return len(rt.devices) }

// DefaultDevice returns the index of the default device.
func (rt *Runtime) DefaultDevice() int { return rt.defaultIndex }

// Strategy returns the dispatch strategy.
func (rt *Runtime) Strategy() Strategy { return rt.strategy }

// Backend returns the device backend.
func (rt *Runtime) Backend() device.Backend { return rt.backend }

// Synchronize blocks until the work on every device has completed and
// returns the first failure any device reported since the previous call.
func (rt *Runtime) Synchronize() error {
	const op = "device_synchronize"

	if rt.closed.Load() {
		return conditionError(op, ErrClosed)
	}

	var first error
	for _, d := range rt.devices {
		if err := d.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return deviceError(op, first)
	}
	return nil
}

// Close releases the runtime. A backend selected by the runtime is closed
// with it; a backend passed with WithBackend is left to the caller.
// Close is safe to call multiple times.
func (rt *Runtime) Close() {
	if !rt.closed.CompareAndSwap(false, true) {
		return
	}
	rt.release()
	rt.logger().Debug("xstream: runtime closed", "backend", rt.backend.Name())
}

func (rt *Runtime) release() {
	untrack(rt.backend)
	if rt.ownsBackend {
		rt.backend.Close()
	}
}

func (rt *Runtime) logger() *slog.Logger {
	if rt.log != nil {
		return rt.log
	}
	return Logger()
}
