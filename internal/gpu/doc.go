//go:build !nogpu

// Package gpu is the WebGPU backend of strata. It executes frame plans on a
// gogpu/wgpu hal device using stencil-masked render pipelines.
//
// # Passes
//
// A frame is encoded into one command buffer with up to three render passes:
//
//  1. Main: clip masks and opaque or textured content. Mask draws increment
//     or decrement the stencil where it equals the clip's parent depth;
//     content draws pass where it equals the clip depth.
//  2. Accumulate (OIT only): translucent content adds weighted color into an
//     RGBA16Float target and multiplies revealage into an R16Float target,
//     using the same stencil masks.
//  3. Composite (OIT only): a fullscreen triangle normalizes the accumulated
//     color and blends it over the main pass result.
//
// With a sample count above one, the color and depth-stencil attachments are
// multisampled and resolved into the target in the last pass.
//
// # Targets
//
// When created with a surface the backend renders into the acquired surface
// texture and presents it. Without a surface it renders into an offscreen
// texture, which is useful for tests with the noop hal backend.
//
// All shading happens in premultiplied linear light; the target and texture
// formats are sRGB so the hardware applies the transfer function on load and
// store.
package gpu
