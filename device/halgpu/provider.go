// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Provider is a gpucontext.DeviceProvider for a HAL device opened by Open.
// Device returns a hal.Device and Queue a hal.Queue.
type Provider struct {
	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue
	info     gputypes.AdapterInfo
}

var _ gpucontext.DeviceProvider = (*Provider)(nil)

// Open creates an instance of the registered HAL backend variant, picks its
// first adapter and opens a device with default limits.
func Open(variant gputypes.Backend) (*Provider, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("halgpu: open %v: %w", variant, hal.ErrBackendNotFound)
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.BackendsAll,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("halgpu: open %v: %w", variant, ErrNoAdapter)
	}
	exposed := adapters[0]

	open, err := exposed.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		exposed.Adapter.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("halgpu: open device: %w", err)
	}

	slogger().Info("halgpu: adapter selected",
		"name", exposed.Info.Name,
		"backend", exposed.Info.Backend,
		"type", exposed.Info.DeviceType)

	return &Provider{
		instance: instance,
		adapter:  exposed.Adapter,
		device:   open.Device,
		queue:    open.Queue,
		info:     exposed.Info,
	}, nil
}

// Device returns the hal.Device.
func (p *Provider) Device() gpucontext.Device { return p.device }

// Queue returns the hal.Queue.
func (p *Provider) Queue() gpucontext.Queue { return p.queue }

// SurfaceFormat returns TextureFormatUndefined; compute devices have no
// surface.
func (p *Provider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Adapter returns the hal.Adapter.
func (p *Provider) Adapter() gpucontext.Adapter { return p.adapter }

// AdapterInfo returns the adapter name and class.
func (p *Provider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: p.info.Name,
		Type: adapterType(p.info.DeviceType),
	}
}

// Info returns the full HAL adapter description.
func (p *Provider) Info() gputypes.AdapterInfo { return p.info }

// Release destroys the device, adapter and instance.
func (p *Provider) Release() {
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
	if p.adapter != nil {
		p.adapter.Destroy()
		p.adapter = nil
	}
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
	p.queue = nil
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU, gputypes.DeviceTypeVirtualGPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

func deviceType(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	default:
		return gputypes.DeviceTypeOther
	}
}
