package backend

import (
	"github.com/gogpu/gpucontext"
)

// Backend name constants.
const (
	// Software is the CPU rasterizer.
	Software = "software"
	// WGPU is the GPU backend on gogpu/wgpu.
	WGPU = "wgpu"
)

// registry holds registered backends in priority order: the GPU backend
// when compiled in, software as the fallback.
var registry = gpucontext.NewRegistry[Factory](gpucontext.WithPriority(WGPU, Software))

// Register registers a backend factory with the given name.
// This is typically called from init() functions.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, f Factory) {
	registry.Register(name, func() Factory { return f })
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registry.Unregister(name)
}

// Available returns the registered backend names.
func Available() []string {
	return registry.Available()
}

// IsRegistered reports whether a backend with the given name is registered.
func IsRegistered(name string) bool {
	return registry.Has(name)
}
