package raster

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gogpu/strata/internal/batch"
	"github.com/gogpu/strata/internal/cliptree"
	"github.com/gogpu/strata/internal/color"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/scene"
	"github.com/gogpu/strata/internal/tessellate"
	"github.com/gogpu/strata/internal/xform"
)

var (
	red   = color.Premul{R: 1, A: 1}
	green = color.Premul{G: 1, A: 1}
	blue  = color.Premul{B: 1, A: 1}

	redPx   = [4]uint8{255, 0, 0, 255}
	greenPx = [4]uint8{0, 255, 0, 255}
	bluePx  = [4]uint8{0, 0, 255, 255}
	clearPx = [4]uint8{}
)

func rect(t *testing.T, x0, y0, x1, y1 float32, aa bool) *scene.Geometry {
	t.Helper()
	in := tessellate.Input{
		Contours:  []tessellate.Contour{{Points: tessellate.Rectangle(tessellate.Rect{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1}), Closed: true}},
		Fill:      true,
		AntiAlias: aa,
	}
	m, err := tessellate.Tessellate(in)
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	return &scene.Geometry{Input: in, Mesh: &m}
}

func add(t *testing.T, q *scene.Queue, g *scene.Geometry, c color.Premul, clip cliptree.ID) *scene.Instance {
	t.Helper()
	id, err := q.Add(scene.Instance{Geometry: g, Transform: xform.Identity(), Color: c, Clip: clip})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	inst, err := q.Instance(id)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	return inst
}

func addClip(t *testing.T, q *scene.Queue, parent cliptree.ID, g *scene.Geometry) cliptree.ID {
	t.Helper()
	id, err := q.AddClip(parent, scene.Clip{Geometry: g, Transform: xform.Identity()})
	if err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	return id
}

func newBackend(t *testing.T, size, workers int) *Backend {
	t.Helper()
	b := New(uint32(size), uint32(size), workers) //nolint:gosec // test sizes are small
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// render plans q and executes it on b, returning the snapshot pixels.
// tweak may adjust the plan before execution.
func render(t *testing.T, b *Backend, q *scene.Queue, oit bool, tweak func(*frame.Plan)) []byte {
	t.Helper()
	var bld batch.Builder
	var plan frame.Plan
	bld.Build(q, batch.Options{MaxClipDepth: cliptree.MaxDepth, OIT: oit, HasTexture: b.HasTexture}, &plan)
	plan.Width, plan.Height = uint32(b.width), uint32(b.height) //nolint:gosec // test sizes are small
	plan.Scale = 1
	plan.FringeWidth = 1
	plan.SampleCount = 1
	plan.OIT = oit
	if tweak != nil {
		tweak(&plan)
	}
	if err := b.Execute(context.Background(), &plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	_, _, px, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return px
}

func pixelAt(px []byte, width, x, y int) [4]uint8 {
	i := (y*width + x) * 4
	return [4]uint8{px[i], px[i+1], px[i+2], px[i+3]}
}

func TestClearColor(t *testing.T) {
	b := newBackend(t, 4, 2)
	var q scene.Queue
	px := render(t, b, &q, false, func(p *frame.Plan) {
		p.ClearColor = color.Premul{R: 1, G: 1, B: 1, A: 1}.Array()
	})
	for y := range 4 {
		for x := range 4 {
			if got := pixelAt(px, 4, x, y); got != [4]uint8{255, 255, 255, 255} {
				t.Fatalf("pixel (%d,%d) = %v, want white", x, y, got)
			}
		}
	}
}

func TestRectCoversExactlyItsBounds(t *testing.T) {
	b := newBackend(t, 10, 3)
	var q scene.Queue
	add(t, &q, rect(t, 2, 2, 8, 8, false), red, cliptree.None)
	px := render(t, b, &q, false, nil)

	for y := range 10 {
		for x := range 10 {
			want := clearPx
			if x >= 2 && x < 8 && y >= 2 && y < 8 {
				want = redPx
			}
			if got := pixelAt(px, 10, x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestScaleFactorMapsLogicalToPhysical(t *testing.T) {
	b := newBackend(t, 20, 2)
	var q scene.Queue
	add(t, &q, rect(t, 2, 2, 8, 8, false), red, cliptree.None)
	px := render(t, b, &q, false, func(p *frame.Plan) { p.Scale = 2 })

	for _, tc := range []struct {
		x, y int
		want [4]uint8
	}{
		{3, 10, clearPx},
		{4, 10, redPx},
		{15, 4, redPx},
		{16, 10, clearPx},
		{10, 16, clearPx},
	} {
		if got := pixelAt(px, 20, tc.x, tc.y); got != tc.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestTransformMovesShape(t *testing.T) {
	b := newBackend(t, 10, 1)
	var q scene.Queue
	inst := add(t, &q, rect(t, 0, 0, 2, 2, false), red, cliptree.None)
	inst.Transform = xform.Translate(3, 4, 0)
	px := render(t, b, &q, false, nil)

	if got := pixelAt(px, 10, 3, 4); got != redPx {
		t.Errorf("pixel (3,4) = %v, want red", got)
	}
	if got := pixelAt(px, 10, 4, 5); got != redPx {
		t.Errorf("pixel (4,5) = %v, want red", got)
	}
	if got := pixelAt(px, 10, 0, 0); got != clearPx {
		t.Errorf("pixel (0,0) = %v, want clear", got)
	}
}

func TestFringeFadesEdges(t *testing.T) {
	b := newBackend(t, 10, 2)
	var q scene.Queue
	add(t, &q, rect(t, 2, 2, 8, 8, true), red, cliptree.None)
	px := render(t, b, &q, false, nil)

	if got := pixelAt(px, 10, 5, 5); got != redPx {
		t.Errorf("interior = %v, want red", got)
	}
	edge := pixelAt(px, 10, 1, 5)
	if edge[3] == 0 || edge[3] == 255 {
		t.Errorf("fringe pixel alpha = %d, want partial", edge[3])
	}
	if edge[0] != edge[3] || edge[1] != 0 || edge[2] != 0 {
		t.Errorf("fringe pixel = %v, want premultiplied red", edge)
	}
	if got := pixelAt(px, 10, 0, 5); got != clearPx {
		t.Errorf("beyond fringe = %v, want clear", got)
	}
}

func TestMultisampleEdgeCoverage(t *testing.T) {
	b := newBackend(t, 10, 2)
	var q scene.Queue
	add(t, &q, rect(t, 2.5, 0, 7.5, 10, false), red, cliptree.None)
	px := render(t, b, &q, false, func(p *frame.Plan) { p.SampleCount = 4 })

	for _, x := range []int{2, 7} {
		got := pixelAt(px, 10, x, 5)
		if got[3] < 127 || got[3] > 128 {
			t.Errorf("pixel %d alpha = %d, want half coverage", x, got[3])
		}
	}
	if got := pixelAt(px, 10, 5, 5); got != redPx {
		t.Errorf("interior = %v, want red", got)
	}
	if got := pixelAt(px, 10, 1, 5); got != clearPx {
		t.Errorf("outside = %v, want clear", got)
	}
}

func TestClipMasksContent(t *testing.T) {
	b := newBackend(t, 10, 2)
	var q scene.Queue
	clip := addClip(t, &q, cliptree.None, rect(t, 0, 0, 5, 10, false))
	add(t, &q, rect(t, 0, 0, 10, 10, false), red, clip)
	px := render(t, b, &q, false, nil)

	for x := range 10 {
		want := clearPx
		if x < 5 {
			want = redPx
		}
		if got := pixelAt(px, 10, x, 3); got != want {
			t.Errorf("pixel (%d,3) = %v, want %v", x, got, want)
		}
	}
}

func siblingScene(t *testing.T) *scene.Queue {
	t.Helper()
	q := new(scene.Queue)
	left := addClip(t, q, cliptree.None, rect(t, 0, 0, 5, 10, false))
	right := addClip(t, q, cliptree.None, rect(t, 5, 0, 10, 10, false))
	topLeft := addClip(t, q, left, rect(t, 0, 0, 10, 5, false))
	full := rect(t, 0, 0, 10, 10, false)
	add(t, q, full, red, left)
	add(t, q, full, green, right)
	add(t, q, full, blue, topLeft)
	return q
}

func TestSiblingClipsAreIsolated(t *testing.T) {
	b := newBackend(t, 10, 4)
	px := render(t, b, siblingScene(t), false, nil)

	for y := range 10 {
		for x := range 10 {
			var want [4]uint8
			switch {
			case x >= 5:
				want = greenPx
			case y < 5:
				want = bluePx
			default:
				want = redPx
			}
			if got := pixelAt(px, 10, x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestRenderingIsDeterministic(t *testing.T) {
	q := siblingScene(t)
	single := render(t, newBackend(t, 10, 1), q, false, nil)

	b := newBackend(t, 10, 8)
	first := render(t, b, q, false, nil)
	second := render(t, b, q, false, nil)
	if !bytes.Equal(first, second) {
		t.Error("two frames of the same queue differ")
	}
	if !bytes.Equal(single, first) {
		t.Error("output depends on the worker count")
	}
}

func TestTextureLayers(t *testing.T) {
	const (
		opaqueBlue  frame.TextureID = 1
		transparent frame.TextureID = 2
		opaqueGreen frame.TextureID = 3
	)
	b := newBackend(t, 4, 1)
	load := func(id frame.TextureID, c color.Premul) {
		px := c.EncodeTexel()
		if err := b.LoadTexture(id, 1, 1, px[:]); err != nil {
			t.Fatalf("LoadTexture(%d): %v", id, err)
		}
	}
	load(opaqueBlue, blue)
	load(transparent, color.Transparent)
	load(opaqueGreen, green)

	tests := []struct {
		name   string
		bg, fg frame.TextureID
		want   [4]uint8
	}{
		{"no layers", frame.NoTexture, frame.NoTexture, redPx},
		{"transparent background", transparent, frame.NoTexture, redPx},
		{"opaque background", opaqueBlue, frame.NoTexture, bluePx},
		{"opaque foreground", frame.NoTexture, opaqueGreen, greenPx},
		{"foreground over background", opaqueBlue, opaqueGreen, greenPx},
		{"transparent foreground", opaqueBlue, transparent, bluePx},
		{"missing texture", 99, frame.NoTexture, redPx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q scene.Queue
			inst := add(t, &q, rect(t, 0, 0, 4, 4, false), red, cliptree.None)
			inst.Background, inst.Foreground = tt.bg, tt.fg
			px := render(t, b, &q, false, nil)
			if got := pixelAt(px, 4, 1, 1); got != tt.want {
				t.Errorf("pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOITFollowsDrawOrder(t *testing.T) {
	halfRed := color.Premul{R: 0.5, A: 0.5}
	halfGreen := color.Premul{G: 0.5, A: 0.5}
	tests := []struct {
		name        string
		first, last color.Premul
	}{
		{"green over red", halfRed, halfGreen},
		{"red over green", halfGreen, halfRed},
	}
	var got [][4]uint8
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			build := func() *scene.Queue {
				q := new(scene.Queue)
				add(t, q, rect(t, 0, 0, 10, 10, false), tt.first, cliptree.None)
				add(t, q, rect(t, 0, 0, 10, 10, false), tt.last, cliptree.None)
				return q
			}
			want := color.Over(tt.last, tt.first).EncodeSRGB8Premul()
			if px := pixelAt(render(t, newBackend(t, 10, 2), build(), false, nil), 10, 2, 6); px != want {
				t.Errorf("source-over = %v, want %v", px, want)
			}

			px := pixelAt(render(t, newBackend(t, 10, 2), build(), true, nil), 10, 2, 6)
			got = append(got, px)
			for c := range 4 {
				if d := int(px[c]) - int(want[c]); d < -1 || d > 1 {
					t.Errorf("channel %d: OIT %d vs exact %d", c, px[c], want[c])
				}
			}
		})
	}
	if len(got) == 2 && got[0] == got[1] {
		t.Errorf("OIT result %v ignores draw order", got[0])
	}
}

func TestBackendErrors(t *testing.T) {
	b := New(4, 4, 1)
	if _, _, _, err := b.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Snapshot before render: %v, want ErrNoFrame", err)
	}
	if err := b.LoadTexture(frame.NoTexture, 1, 1, make([]byte, 4)); !errors.Is(err, ErrInvalidTexture) {
		t.Errorf("LoadTexture(NoTexture): %v", err)
	}
	if err := b.LoadTexture(5, 2, 2, make([]byte, 4)); !errors.Is(err, ErrInvalidTexture) {
		t.Errorf("LoadTexture short pixels: %v", err)
	}

	plan := &frame.Plan{Width: 4, Height: 4, Scale: 1, SampleCount: 3}
	if err := b.Execute(context.Background(), plan); err == nil {
		t.Error("Execute with 3 samples succeeded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan.SampleCount = 1
	if err := b.Execute(ctx, plan); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute canceled: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := b.Execute(context.Background(), plan); !errors.Is(err, ErrClosed) {
		t.Errorf("Execute after Close: %v", err)
	}
}

func TestEffectPlansRejected(t *testing.T) {
	b := newBackend(t, 4, 1)
	var q scene.Queue
	g := addClip(t, &q, cliptree.None, rect(t, 0, 0, 4, 4, false))
	add(t, &q, rect(t, 0, 0, 4, 4, false), red, g)

	var bld batch.Builder
	var plan frame.Plan
	bld.Build(&q, batch.Options{MaxClipDepth: cliptree.MaxDepth, Groups: map[cliptree.ID]frame.EffectUse{g: {Effect: 1}}}, &plan)
	plan.Width, plan.Height, plan.Scale, plan.SampleCount = 4, 4, 1, 1

	if err := b.Execute(context.Background(), &plan); !errors.Is(err, frame.ErrEffectsUnsupported) {
		t.Errorf("Execute = %v, want ErrEffectsUnsupported", err)
	}
	if _, ok := any(b).(frame.EffectLoader); ok {
		t.Error("software backend claims to load effects")
	}
}
