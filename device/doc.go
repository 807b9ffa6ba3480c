// Package device defines the narrow interfaces through which xstream talks
// to compute devices, and a registry of named device backends.
//
// A Backend enumerates Devices. A Device executes operations either
// unordered (Offload, with explicit fence dependencies) or through a FIFO
// Queue it creates. Completion is observed through Fences, and Events turn a
// fence into a first-class object that can be queried, waited on and
// destroyed.
//
// # Backends
//
// Backends register themselves from an init function:
//
//	func init() {
//	    device.Register("host", func() device.Backend { return New() })
//	}
//
// Select a backend by name with Get, or let Default pick the best available
// one. The built-in priority is "hal" (wgpu HAL devices) before "host"
// (goroutine-backed software devices).
//
//	import _ "github.com/gogpu/xstream/device/host"
//
//	b := device.Get("host")
//	if err := b.Init(); err != nil {
//	    return err
//	}
//	defer b.Close()
package device
