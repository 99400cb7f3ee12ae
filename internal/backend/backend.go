package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/frame"
)

// Auto selects a backend from the target.
const Auto = "auto"

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNeedsDevice is returned when a GPU backend is requested for a
	// target without a device.
	ErrNeedsDevice = errors.New("backend: target has no device")
)

// Target describes what a backend renders into.
type Target struct {
	// Width and Height are the target size in physical pixels.
	Width, Height uint32

	// Device provides the hal device and queue (HalDevice() any and
	// HalQueue() any). Nil means an offscreen software target.
	Device any

	// Surface is an optional hal.Surface presented after each frame.
	Surface any

	// PresentMode configures Surface; zero selects Fifo.
	PresentMode gputypes.PresentMode

	// Workers bounds the software rasterizer's parallelism; zero or
	// negative means GOMAXPROCS.
	Workers int
}

// Factory opens a backend for a target.
type Factory func(t Target) (frame.Backend, error)

// Open creates the named backend for t. The name Auto (or "") picks the
// highest-priority backend able to serve t.
func Open(name string, t Target) (frame.Backend, error) {
	if name == "" || name == Auto {
		name = Choose(t)
	}
	f := registry.Get(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrBackendNotAvailable, name, Available())
	}
	b, err := f(t)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return b, nil
}

// Choose returns the backend Open would use for Auto.
func Choose(t Target) string {
	if t.Device == nil {
		return Software
	}
	return registry.BestName()
}
