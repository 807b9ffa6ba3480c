// Package host implements device.Backend with goroutine-backed software
// devices. It is always available and serves as the fallback when no GPU
// backend can be initialized.
//
// Each device owns a worker pool for offloaded work. Each queue owns a
// serial executor, so queued operations run one at a time in submission
// order while different queues and offloaded work proceed in parallel.
package host

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/xstream/device"
)

func init() {
	device.Register(device.BackendHost, func() device.Backend { return New() })
}

// Backend is the host device backend.
//
// Thread safety: Backend is safe for concurrent use.
type Backend struct {
	cfg config

	mu      sync.RWMutex
	devices []*Device
}

// New creates an uninitialized host backend.
func New(opts ...Option) *Backend {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Backend{cfg: cfg}
}

// Name returns "host".
func (b *Backend) Name() string { return device.BackendHost }

// Init creates the backend's devices. Calling Init on an initialized
// backend is a no-op.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.devices != nil {
		return nil
	}

	b.devices = make([]*Device, b.cfg.devices)
	for i := range b.devices {
		b.devices[i] = newDevice(b, i, b.cfg.workers)
	}

	slogger().Debug("host: backend initialized",
		"devices", len(b.devices),
		"workers", b.devices[0].pool.Workers(),
		"peerWait", b.cfg.peerWait)
	return nil
}

// Close drains and releases every device. The backend may be initialized
// again afterwards.
func (b *Backend) Close() {
	b.mu.Lock()
	devices := b.devices
	b.devices = nil
	b.mu.Unlock()

	for _, d := range devices {
		d.close()
	}
}

// DeviceCount returns the number of devices, or 0 before Init.
func (b *Backend) DeviceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.devices)
}

// Device returns device i.
func (b *Backend) Device(i int) (device.Device, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.devices == nil {
		return nil, device.ErrNotInitialized
	}
	if i < 0 || i >= len(b.devices) {
		return nil, fmt.Errorf("host: device %d of %d: %w", i, len(b.devices), device.ErrNoDevice)
	}
	return b.devices[i], nil
}

// SetLogger sets the logger for the host backend.
// Called by xstream.SetLogger to propagate logging configuration.
func (b *Backend) SetLogger(l *slog.Logger) {
	setLogger(l)
}
