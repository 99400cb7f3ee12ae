package strata

import (
	"context"
	"fmt"
	"image"

	"github.com/gogpu/strata/internal/frame"
)

// Snapshot returns a copy of the last rendered frame. Only the software
// backend supports readback; other backends return ErrReadbackUnsupported.
func (r *Renderer) Snapshot() (*image.RGBA, error) {
	if r.closed {
		return nil, ErrRendererClosed
	}
	s, ok := r.backend.(frame.Snapshotter)
	if !ok {
		return nil, fmt.Errorf("snapshot: %s: %w", r.backend.Name(), ErrReadbackUnsupported)
	}
	w, h, pix, err := s.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return &image.RGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

// RenderToImage renders the queue and returns the frame.
func (r *Renderer) RenderToImage(ctx context.Context) (*image.RGBA, error) {
	if err := r.Render(ctx); err != nil {
		return nil, err
	}
	return r.Snapshot()
}
