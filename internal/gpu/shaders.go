//go:build !nogpu

package gpu

import (
	_ "embed"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/effect"
	"github.com/gogpu/strata/internal/frame"
)

// Embedded WGSL shader sources.

//go:embed shaders/strata.wgsl
var strataShaderSource string

//go:embed shaders/composite.wgsl
var compositeShaderSource string

//go:embed shaders/copy.wgsl
var copyFragmentSource string

// copyShaderSource is the fullscreen copy used to composite group layers
// and to present the layered frame.
var copyShaderSource = effect.Assemble(copyFragmentSource)

// uniformSize is the byte size of the frame uniform buffer.
// Layout: viewport (vec2<f32>) + scale (f32) + fringe (f32) = 16 bytes.
const uniformSize = 16

// vertexStride is the byte stride of tessellate.Vertex: position, normal,
// coverage, uv and paint, all float32.
const vertexStride = 32

// vertexLayouts describes the two vertex buffers of the content pipelines:
// per-vertex geometry in slot 0 and per-instance records in slot 1.
func vertexLayouts() []gputypes.VertexBufferLayout {
	attr := func(format gputypes.VertexFormat, offset uint64, loc uint32) gputypes.VertexAttribute {
		return gputypes.VertexAttribute{Format: format, Offset: offset, ShaderLocation: loc}
	}
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				attr(gputypes.VertexFormatFloat32x2, 0, 0),  // position
				attr(gputypes.VertexFormatFloat32x2, 8, 1),  // normal
				attr(gputypes.VertexFormatFloat32, 16, 2),   // coverage
				attr(gputypes.VertexFormatFloat32x2, 20, 3), // uv
				attr(gputypes.VertexFormatFloat32, 28, 4),   // paint
			},
		},
		{
			ArrayStride: frame.InstanceSize,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				attr(gputypes.VertexFormatFloat32x4, 0, 5), // transform columns
				attr(gputypes.VertexFormatFloat32x4, 16, 6),
				attr(gputypes.VertexFormatFloat32x4, 32, 7),
				attr(gputypes.VertexFormatFloat32x4, 48, 8),
				attr(gputypes.VertexFormatFloat32x4, 64, 9),  // color
				attr(gputypes.VertexFormatFloat32x4, 80, 10), // stroke
				attr(gputypes.VertexFormatFloat32, 96, 11),   // depth
			},
		},
	}
}
