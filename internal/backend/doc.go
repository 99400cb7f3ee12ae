// Package backend selects and opens the frame backend for a render target.
//
// Backends register themselves on package initialization, keyed by name:
//
//   - "wgpu": the GPU backend on a gogpu/wgpu hal device (excluded by the
//     nogpu build tag)
//   - "software": the CPU rasterizer rendering into an in-memory image
//
// Open with the name "auto" picks the GPU backend when the target carries a
// device and the software backend otherwise.
package backend
