package device

import (
	"slices"

	"github.com/gogpu/gpucontext"
)

// Backend names.
const (
	// BackendHAL is the wgpu HAL backend.
	BackendHAL = "hal"

	// BackendHost is the goroutine-backed software backend.
	BackendHost = "host"
)

// Factory creates a backend instance.
type Factory func() Backend

// Priority order for backend selection (first available wins).
var backendPriority = []string{BackendHAL, BackendHost}

var backends = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(backendPriority...),
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	backends.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	backends.Unregister(name)
}

// Available returns the registered backend names in selection order:
// prioritized names first, then the rest sorted.
func Available() []string {
	names := backends.Available()
	slices.Sort(names)

	ordered := make([]string, 0, len(names))
	for _, name := range backendPriority {
		if slices.Contains(names, name) {
			ordered = append(ordered, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(backendPriority, name) {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return backends.Has(name)
}

// Get returns a new, uninitialized backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Backend {
	return backends.Get(name)
}

// Default returns the highest-priority registered backend, uninitialized.
// Returns nil if no backends are registered.
func Default() Backend {
	return backends.Best()
}

// InitDefault initializes registered backends in selection order and
// returns the first one whose Init succeeds.
func InitDefault() (Backend, error) {
	for _, name := range Available() {
		b := Get(name)
		if b == nil {
			continue
		}
		if err := b.Init(); err != nil {
			continue
		}
		return b, nil
	}
	return nil, ErrNotAvailable
}
