// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// KernelDescriptor describes a WGSL compute kernel.
type KernelDescriptor struct {
	// Label is an optional debug name.
	Label string

	// WGSL is the shader source.
	WGSL string

	// EntryPoint is the compute entry point. Defaults to "main".
	EntryPoint string

	// SkipValidation disables naga IR validation.
	SkipValidation bool
}

// Kernel is a compiled compute pipeline bound to one device.
type Kernel struct {
	dev      *Device
	label    string
	module   hal.ShaderModule
	layout   hal.PipelineLayout
	pipeline hal.ComputePipeline
}

// CompileKernel compiles desc.WGSL to SPIR-V with naga and creates a
// compute pipeline on the device.
func (d *Device) CompileKernel(desc KernelDescriptor) (*Kernel, error) {
	if desc.WGSL == "" {
		return nil, errors.New("halgpu: empty kernel source")
	}
	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}

	spirv, err := compileWGSL(desc.WGSL, !desc.SkipValidation)
	if err != nil {
		return nil, fmt.Errorf("halgpu: kernel %q: %w", desc.Label, err)
	}

	k := &Kernel{dev: d, label: desc.Label}

	k.module, err = d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create shader module: %w", err)
	}

	k.layout, err = d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: desc.Label})
	if err != nil {
		k.Destroy()
		return nil, fmt.Errorf("halgpu: create pipeline layout: %w", err)
	}

	k.pipeline, err = d.hal.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: k.layout,
		Compute: hal.ComputeState{
			Module:                        k.module,
			EntryPoint:                    entry,
			ZeroInitializeWorkgroupMemory: true,
		},
	})
	if err != nil {
		k.Destroy()
		return nil, fmt.Errorf("halgpu: create compute pipeline: %w", err)
	}

	slogger().Debug("halgpu: kernel compiled", "label", desc.Label, "words", len(spirv))
	return k, nil
}

// Label returns the kernel debug name.
func (k *Kernel) Label() string { return k.label }

// Destroy releases the pipeline, layout and shader module.
// Destroy must not be called while a dispatch of k is in flight.
func (k *Kernel) Destroy() {
	h := k.dev.hal
	if k.pipeline != nil {
		h.DestroyComputePipeline(k.pipeline)
		k.pipeline = nil
	}
	if k.layout != nil {
		h.DestroyPipelineLayout(k.layout)
		k.layout = nil
	}
	if k.module != nil {
		h.DestroyShaderModule(k.module)
		k.module = nil
	}
}

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(source string, validate bool) ([]uint32, error) {
	opts := naga.DefaultOptions()
	opts.Validate = validate

	code, err := naga.CompileWithOptions(source, opts)
	if err != nil {
		return nil, err
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V length %d is not a multiple of 4", len(code))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return words, nil
}
