package device

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Common device errors.
var (
	// ErrNotAvailable is returned when a requested backend is not registered.
	ErrNotAvailable = errors.New("device: backend not available")

	// ErrNotInitialized is returned when a backend is used before Init.
	ErrNotInitialized = errors.New("device: backend not initialized")

	// ErrNoDevice is returned for a device index outside [0, DeviceCount).
	ErrNoDevice = errors.New("device: no such device")

	// ErrClosed is returned when a closed backend, device or queue is used.
	ErrClosed = errors.New("device: closed")

	// ErrDestroyed is returned when a destroyed event is used.
	ErrDestroyed = errors.New("device: event destroyed")

	// ErrNotRecorded is returned by Event.Wait before Record.
	ErrNotRecorded = errors.New("device: event not recorded")

	// ErrAlreadyRecorded is returned by Event.Record on a recorded event.
	ErrAlreadyRecorded = errors.New("device: event already recorded")

	// ErrNilOp is returned when a nil operation is offloaded or submitted.
	ErrNilOp = errors.New("device: nil operation")
)

// Op is a unit of device work. target is the backend's native execution
// context for the duration of the call (nil if the backend has none).
type Op func(target any) error

// Fence is a point on a device timeline. Done is closed once every
// operation before the point has finished; Err then reports the first
// failure among them.
type Fence interface {
	Done() <-chan struct{}
	Err() error
}

// Info describes a device.
type Info struct {
	// Index is the device position within its backend.
	Index int

	// Name is a human-readable device name.
	Name string

	// Backend is the name of the backend that owns the device.
	Backend string

	// Type is the device class.
	Type gputypes.DeviceType

	// Features lists backend-specific capabilities.
	Features []string
}

// Backend enumerates devices of one kind.
type Backend interface {
	// Name returns the backend identifier (e.g. "host", "hal").
	Name() string

	// Init acquires the backend's devices. It must be called before
	// DeviceCount or Device.
	Init() error

	// Close waits for outstanding work and releases every device.
	Close()

	// DeviceCount returns the number of devices.
	DeviceCount() int

	// Device returns device i.
	Device(i int) (Device, error)
}

// Device executes operations.
type Device interface {
	// Info describes the device.
	Info() Info

	// Index returns the device position within its backend.
	Index() int

	// Offload runs op once every fence in after is reached, with no order
	// relative to other offloaded work. If any fence in after failed, op
	// is skipped and the returned fence carries that failure.
	Offload(op Op, after ...Fence) (Fence, error)

	// NewQueue creates a FIFO queue on the device.
	NewQueue() (Queue, error)

	// NewEvent creates an unsignaled event.
	NewEvent() (Event, error)

	// CanWaitOn reports whether work on this device can depend on fences
	// produced by other.
	CanWaitOn(other Device) bool

	// Synchronize blocks until all work submitted to the device has
	// finished and returns the first failure since the previous call.
	Synchronize() error
}

// Queue is a FIFO of operations on one device. Operations run one at a
// time in submission order. Once an operation fails the queue is faulted:
// later operations are skipped and their fences carry the same error.
type Queue interface {
	// Device returns the owning device.
	Device() Device

	// Submit appends op to the queue.
	Submit(op Op) (Fence, error)

	// Marker returns a fence that is reached once everything submitted so
	// far has finished.
	Marker() (Fence, error)

	// WaitFence makes work submitted after the call wait for f. It does
	// not block the caller.
	WaitFence(f Fence) error

	// Native returns the backend handle of the queue.
	Native() any

	// Close drains the queue and releases it.
	Close() error
}

// Event is a device completion primitive bound to one fence.
type Event interface {
	// Record binds the event to f. An event can be recorded once.
	Record(f Fence) error

	// Query reports whether the recorded fence has been reached without
	// blocking. An unrecorded event reports false.
	Query() (bool, error)

	// Wait blocks until the recorded fence is reached.
	Wait() error

	// Fence returns the recorded fence, or nil.
	Fence() Fence

	// Destroy releases the event.
	Destroy() error
}
