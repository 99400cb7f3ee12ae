//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/wgpu/hal"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gpu: backend closed")

	// ErrNoDevice is returned when a device provider does not expose hal
	// objects.
	ErrNoDevice = errors.New("gpu: no hal device")

	// ErrInvalidTexture is returned for malformed texture uploads.
	ErrInvalidTexture = errors.New("gpu: invalid texture")

	// ErrSampleCount is returned for sample counts the pipelines do not
	// support.
	ErrSampleCount = errors.New("gpu: unsupported sample count")

	// ErrInvalidEffect is returned by LoadEffect for an effect without
	// passes.
	ErrInvalidEffect = errors.New("gpu: invalid effect")
)

// mapError wraps a hal error with the frame error the renderer's recovery
// policy understands. Unknown errors are wrapped unchanged.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("%s: %w: %w", op, frame.ErrSurfaceOutOfMemory, err)
	case errors.Is(err, hal.ErrSurfaceLost), errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("%s: %w: %w", op, frame.ErrSurfaceLost, err)
	case errors.Is(err, hal.ErrSurfaceOutdated), errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrNotReady):
		return fmt.Errorf("%s: %w: %w", op, frame.ErrSurfaceTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
