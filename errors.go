package strata

import (
	"errors"
	"fmt"

	"github.com/gogpu/strata/internal/backend"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/scene"
	"github.com/gogpu/strata/internal/tessellate"
)

// Frame errors returned by Render. Test with errors.Is.
var (
	// ErrSurfaceLost is recoverable: call Resize and render again.
	ErrSurfaceLost = frame.ErrSurfaceLost

	// ErrSurfaceOutOfMemory is fatal. The renderer closes itself and every
	// later call returns ErrRendererClosed.
	ErrSurfaceOutOfMemory = frame.ErrSurfaceOutOfMemory

	// ErrSurfaceTransient means the frame was skipped (timeout, outdated
	// surface). The draw queue is intact.
	ErrSurfaceTransient = frame.ErrSurfaceTransient

	// ErrReadbackUnsupported is returned by Snapshot when the backend cannot
	// read back pixels.
	ErrReadbackUnsupported = frame.ErrReadbackUnsupported
)

// Absorbed conditions. They never fail a frame; they are logged and reported
// as FrameStats.Diagnostics with the matching Kind.
var (
	ErrTessellationDegenerate  = tessellate.ErrDegenerate
	ErrClipDepthExceeded       = errors.New("strata: clip depth exceeded")
	ErrUnknownTextureReference = errors.New("strata: unknown texture reference")
)

// API errors.
var (
	ErrUnknownInstance     = scene.ErrUnknownInstance
	ErrUnknownClip         = scene.ErrUnknownClip
	ErrUnknownShape        = errors.New("strata: unknown cached shape")
	ErrInvalidConfig       = errors.New("strata: invalid config")
	ErrInvalidTexture      = errors.New("strata: invalid texture")
	ErrRendererClosed      = errors.New("strata: renderer closed")
	ErrBackendNotAvailable = backend.ErrBackendNotAvailable
)

// Diagnostic is a non-fatal problem found while rendering a frame.
type Diagnostic struct {
	// Kind is one of the absorbed sentinels, e.g. ErrClipDepthExceeded.
	Kind error
	// Instance is the affected instance, or NoInstance.
	Instance InstanceID
	// Clip is the affected clip node, or NoClip.
	Clip ClipID
	// Err carries the details and wraps Kind.
	Err error
}

func (d Diagnostic) Error() string { return d.Err.Error() }

func (d Diagnostic) Unwrap() error { return d.Err }

func newDiagnostic(kind error, inst InstanceID, clip ClipID, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Instance: inst,
		Clip:     clip,
		Err:      fmt.Errorf("%w: "+format, append([]any{kind}, args...)...),
	}
}
