package backend

import (
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/raster"
)

// init registers the software backend on package import.
func init() {
	Register(Software, func(t Target) (frame.Backend, error) {
		return raster.New(t.Width, t.Height, t.Workers), nil
	})
}
