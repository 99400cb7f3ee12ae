// Package strata is a retained 2D renderer for GPU surfaces.
//
// # Overview
//
// strata draws queued shapes (rectangles, rounded rectangles, polygons and
// paths) with per-instance transforms, colors and up to two texture layers.
// Shapes can be nested under clip nodes; a clip node masks its content to
// its own outline intersected with every ancestor's. Rendering runs on the
// GPU through gogpu/wgpu, or on a software rasterizer for headless use and
// tests.
//
// # Quick Start
//
//	r, err := strata.New(strata.Target{Width: 512, Height: 512}, strata.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//
//	clip, _ := r.AddClip(strata.NewRoundedRect(strata.XYWH(16, 16, 480, 480), strata.UniformRadii(24)), strata.NoClip)
//	id, _ := r.AddShape(strata.NewRect(strata.XYWH(0, 0, 256, 256)).WithFill(strata.RGB(1, 0, 0)), clip, strata.NoTexture)
//	_ = r.SetTransform(id, strata.Rotate(0.3).Then(strata.Translate(128, 128)))
//
//	img, err := r.RenderToImage(context.Background())
//
// # Frames
//
// The queue persists across frames. Render draws everything queued and
// ClearDrawQueue starts over, keeping buffers, cached shapes and textures.
// Shapes are tessellated once, in parallel, on the first Render after they
// are added; LoadShape tessellates ahead of time for shapes drawn often.
//
// Problems local to one shape (degenerate outlines, clip nesting deeper than
// Config.MaxClipDepth, references to unloaded textures) do not fail a frame.
// They are reported in LastFrameStats().Diagnostics and logged at warn level.
//
// # Anti-aliasing
//
// By default edges are anti-aliased with a one pixel fringe of geometry
// that fades to transparent (InflatedGeometry). Multisample(n) uses MSAA
// instead. Clip outlines are never anti-aliased.
//
// # Transparency
//
// Instances blend source-over in draw order. With Config.OITEnabled,
// translucent untextured instances are resolved with weighted blended
// order-independent transparency instead, which trades exact ordering for
// fewer pipeline switches.
//
// # Coordinate System
//
//   - Origin (0,0) at top-left, Y down
//   - Shape coordinates are logical pixels; Target.ScaleFactor maps them to
//     physical pixels
//   - Transforms are 4x4 matrices; Perspective adds depth foreshortening
//
// # Logging
//
// strata is silent by default. See SetLogger.
package strata

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)
