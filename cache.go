package strata

import (
	"fmt"

	"github.com/gogpu/strata/internal/scene"
	"github.com/gogpu/strata/internal/tessellate"
)

// cachedShape is a shape tessellated once and shared by every instance
// added from it, across draw queues.
type cachedShape struct {
	geom  *scene.Geometry
	shape Shape
}

// LoadShape tessellates shape and keeps it under key until UnloadShape.
// Loading a key again replaces the shape for instances added afterwards.
// A degenerate shape is kept (possibly empty) and logged.
func (r *Renderer) LoadShape(key uint64, shape Shape) error {
	if r.closed {
		return ErrRendererClosed
	}
	g := &scene.Geometry{Input: shape.input(r.fringeAA())}
	mesh, err := tessellate.Tessellate(g.Input)
	g.Mesh, g.Err = &mesh, err
	if err != nil {
		Logger().Warn("strata: cached shape is degenerate", "key", key, "err", err)
	}
	r.shapes[key] = &cachedShape{geom: g, shape: shape}
	return nil
}

// AddCachedShape queues an instance of a shape loaded with LoadShape.
func (r *Renderer) AddCachedShape(key uint64, clip ClipID, texture TextureID) (InstanceID, error) {
	if r.closed {
		return NoInstance, ErrRendererClosed
	}
	s, ok := r.shapes[key]
	if !ok {
		return NoInstance, fmt.Errorf("%w: %d", ErrUnknownShape, key)
	}
	return r.enqueue(s.geom, s.shape, clip, texture)
}

// UnloadShape forgets a cached shape. Queued instances keep drawing it
// until ClearDrawQueue.
func (r *Renderer) UnloadShape(key uint64) {
	delete(r.shapes, key)
}

// IsShapeLoaded reports whether key names a cached shape.
func (r *Renderer) IsShapeLoaded(key uint64) bool {
	_, ok := r.shapes[key]
	return ok
}
