// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package halgpu implements device.Backend on top of the wgpu HAL.
//
// Devices come either from gpucontext.DeviceProvider values supplied by the
// host application (whose Device and Queue must be hal.Device and
// hal.Queue), or are opened from a registered HAL backend:
//
//	import _ "github.com/gogpu/wgpu/hal/vulkan"
//
//	b := halgpu.New() // opens the first usable HAL backend on Init
//
// Operations offloaded to a halgpu device receive a *Target. The operation
// records command buffers through Target.Encode or Target.Dispatch; once it
// returns, the buffers are submitted to the device queue and the operation
// completes when the HAL reports the submission as finished.
package halgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xstream/device"
)

// Errors returned by the HAL backend.
var (
	// ErrNoAdapter is returned when no HAL backend exposes an adapter.
	ErrNoAdapter = errors.New("halgpu: no adapter available")

	// ErrNotHAL is returned when a DeviceProvider does not expose a
	// hal.Device and hal.Queue.
	ErrNotHAL = errors.New("halgpu: provider does not expose a HAL device")

	// ErrNilKernel is returned when a nil kernel is dispatched.
	ErrNilKernel = errors.New("halgpu: nil kernel")

	// ErrForeignKernel is returned when a kernel is dispatched on a device
	// other than the one it was compiled for.
	ErrForeignKernel = errors.New("halgpu: kernel belongs to another device")
)

func init() {
	device.Register(device.BackendHAL, func() device.Backend { return New() })
}

// variantPriority orders HAL backends for automatic selection.
var variantPriority = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
	gputypes.BackendEmpty,
}

// Backend is the HAL device backend.
//
// Thread safety: Backend is safe for concurrent use.
type Backend struct {
	providers []gpucontext.DeviceProvider

	mu      sync.RWMutex
	devices []*Device
	owned   []*Provider
}

// New creates an uninitialized HAL backend. With no providers, Init opens
// one device from the first registered HAL backend that has an adapter.
// Provided devices remain owned by the caller.
func New(providers ...gpucontext.DeviceProvider) *Backend {
	return &Backend{providers: providers}
}

// Name returns "hal".
func (b *Backend) Name() string { return device.BackendHAL }

// Init wraps the providers, or opens a device when none were given.
// Calling Init on an initialized backend is a no-op.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.devices != nil {
		return nil
	}

	providers := b.providers
	var owned []*Provider
	if len(providers) == 0 {
		p, err := openAny()
		if err != nil {
			return err
		}
		owned = append(owned, p)
		providers = []gpucontext.DeviceProvider{p}
	}

	devices := make([]*Device, 0, len(providers))
	for i, p := range providers {
		halDevice, okDev := p.Device().(hal.Device)
		halQueue, okQueue := p.Queue().(hal.Queue)
		if !okDev || !okQueue {
			for _, d := range devices {
				d.close()
			}
			for _, o := range owned {
				o.Release()
			}
			return fmt.Errorf("halgpu: provider %d: %w", i, ErrNotHAL)
		}
		devices = append(devices, newDevice(b, i, halDevice, halQueue, p.AdapterInfo()))
	}

	b.devices = devices
	b.owned = owned

	slogger().Debug("halgpu: backend initialized", "devices", len(devices), "owned", len(owned))
	return nil
}

// openAny opens the highest-priority registered HAL backend that has an
// adapter.
func openAny() (*Provider, error) {
	available := hal.AvailableBackends()
	slices.SortStableFunc(available, func(a, b gputypes.Backend) int {
		return variantRank(a) - variantRank(b)
	})

	var errs []error
	for _, variant := range available {
		p, err := Open(variant)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return p, nil
	}
	if len(errs) == 0 {
		return nil, ErrNoAdapter
	}
	return nil, fmt.Errorf("%w: %w", ErrNoAdapter, errors.Join(errs...))
}

func variantRank(v gputypes.Backend) int {
	if i := slices.Index(variantPriority, v); i >= 0 {
		return i
	}
	return len(variantPriority)
}

// Close drains every device, then releases devices the backend opened.
func (b *Backend) Close() {
	b.mu.Lock()
	devices := b.devices
	owned := b.owned
	b.devices = nil
	b.owned = nil
	b.mu.Unlock()

	for _, d := range devices {
		d.close()
	}
	for _, p := range owned {
		p.Release()
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
		return nil, fmt.Errorf("halgpu: device %d of %d: %w", i, len(b.devices), device.ErrNoDevice)
	}
	return b.devices[i], nil
}

// SetLogger sets the logger for the HAL backend and the wgpu HAL.
// Called by xstream.SetLogger to propagate logging configuration.
func (b *Backend) SetLogger(l *slog.Logger) {
	setLogger(l)
}
