// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Target is the execution context handed to operations running on a HAL
// device. Command buffers recorded through it are submitted together once
// the operation returns without error, and discarded otherwise.
//
// A Target is only valid for the duration of the operation.
type Target struct {
	dev      *Device
	encoders []hal.CommandEncoder
	buffers  []hal.CommandBuffer
}

// Device returns the HAL device.
func (t *Target) Device() hal.Device { return t.dev.hal }

// Index returns the device index within its backend.
func (t *Target) Index() int { return t.dev.index }

// Encode records one command buffer. fn receives an encoder that is
// already encoding; if fn fails the recording is discarded.
func (t *Target) Encode(label string, fn func(hal.CommandEncoder) error) error {
	enc, err := t.dev.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return fmt.Errorf("halgpu: begin encoding %q: %w", label, err)
	}
	if err := fn(enc); err != nil {
		enc.DiscardEncoding()
		enc.Destroy()
		return err
	}
	cb, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("halgpu: end encoding %q: %w", label, err)
	}

	t.encoders = append(t.encoders, enc)
	t.buffers = append(t.buffers, cb)
	return nil
}

// Dispatch records a compute pass that runs k over an x*y*z grid of
// workgroups.
func (t *Target) Dispatch(k *Kernel, x, y, z uint32) error {
	if k == nil {
		return ErrNilKernel
	}
	if k.dev != t.dev {
		return ErrForeignKernel
	}
	return t.Encode(k.label, func(enc hal.CommandEncoder) error {
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: k.label})
		pass.SetPipeline(k.pipeline)
		pass.Dispatch(x, y, z)
		pass.End()
		return nil
	})
}

// Recorded returns the number of command buffers recorded so far.
func (t *Target) Recorded() int { return len(t.buffers) }

// release frees recorded command buffers and their encoders.
func (t *Target) release() {
	for _, cb := range t.buffers {
		t.dev.hal.FreeCommandBuffer(cb)
	}
	for _, enc := range t.encoders {
		enc.Destroy()
	}
	t.buffers = nil
	t.encoders = nil
}
