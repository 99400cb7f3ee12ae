//go:build !nogpu

package backend

import (
	"fmt"

	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/gpu"
	"github.com/gogpu/wgpu/hal"
)

func init() {
	Register(WGPU, openGPU)
}

func openGPU(t Target) (frame.Backend, error) {
	if t.Device == nil {
		return nil, ErrNeedsDevice
	}
	opts := gpu.Options{PresentMode: t.PresentMode}
	if t.Surface != nil {
		s, ok := t.Surface.(hal.Surface)
		if !ok {
			return nil, fmt.Errorf("surface %T is not a hal.Surface", t.Surface)
		}
		opts.Surface = s
	}
	return gpu.NewFromProvider(t.Device, t.Width, t.Height, opts)
}
