// Package raster is the CPU backend. It executes frame plans with the same
// stages as the GPU pipelines: the shared vertex math from internal/xform,
// per-sample stencil testing, layered compositing and weighted blended OIT,
// all in premultiplied linear light. Rows are processed in parallel bands;
// every pixel sees the commands in plan order, so output is deterministic.
package raster

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/strata/internal/color"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/parallel"
	"github.com/gogpu/strata/internal/xform"
)

// Name is the registry name of the software backend.
const Name = "software"

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("raster: backend closed")

	// ErrNoFrame is returned by Snapshot before the first frame.
	ErrNoFrame = errors.New("raster: no frame rendered")

	// ErrInvalidTexture is returned for malformed texture uploads.
	ErrInvalidTexture = errors.New("raster: invalid texture")
)

type jobKind uint8

const (
	jobPush jobKind = iota
	jobPop
	jobDraw
	jobAccumulate
)

// job is one draw of one instance with its pipeline state resolved.
type job struct {
	kind           jobKind
	ref            uint8
	variant        frame.Variant
	fill, stroke   color.Premul
	depth          float32
	foregroundOnly bool
	background     *texture
	foreground     *texture
	first, last    int // range in Backend.tris
}

// Backend renders frame plans into an in-memory RGBA image.
type Backend struct {
	width, height int
	samples       int
	oit           bool

	pool     *parallel.WorkerPool
	color    []color.Premul
	stencil  []uint8
	accum    []color.Accum
	resolved []byte
	rendered bool

	textures map[frame.TextureID]*texture
	jobs     []job
	tris     []tri
	closed   bool
}

// New returns a software backend using the given number of workers
// (zero or negative means GOMAXPROCS).
func New(width, height uint32, workers int) *Backend {
	return &Backend{
		width:    int(width),
		height:   int(height),
		pool:     parallel.NewWorkerPool(workers),
		textures: make(map[frame.TextureID]*texture),
	}
}

// Name implements frame.Backend.
func (b *Backend) Name() string { return Name }

// Resize implements frame.Backend. Size-dependent buffers are reallocated on
// the next frame.
func (b *Backend) Resize(width, height uint32) error {
	if b.closed {
		return ErrClosed
	}
	b.width, b.height = int(width), int(height)
	return nil
}

// LoadTexture implements frame.Backend.
func (b *Backend) LoadTexture(id frame.TextureID, width, height int, pixels []byte) error {
	if b.closed {
		return ErrClosed
	}
	if id == frame.NoTexture || width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return fmt.Errorf("%w: id %d, %dx%d, %d bytes", ErrInvalidTexture, id, width, height, len(pixels))
	}
	b.textures[id] = decodeTexture(width, height, pixels)
	return nil
}

// UnloadTexture implements frame.Backend.
func (b *Backend) UnloadTexture(id frame.TextureID) { delete(b.textures, id) }

// HasTexture implements frame.Backend.
func (b *Backend) HasTexture(id frame.TextureID) bool {
	_, ok := b.textures[id]
	return ok
}

// Execute implements frame.Backend.
func (b *Backend) Execute(ctx context.Context, plan *frame.Plan) error {
	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if plan.HasEffects() {
		return fmt.Errorf("raster: %w", frame.ErrEffectsUnsupported)
	}
	samples := max(1, int(plan.SampleCount))
	if !SupportedSampleCount(samples) {
		return fmt.Errorf("raster: unsupported sample count %d", samples)
	}
	b.ensure(int(plan.Width), int(plan.Height), samples, plan.OIT)
	b.prepare(plan)

	clearColor := color.FromArray(plan.ClearColor)
	b.pool.Bands(b.height, func(y0, y1 int) {
		b.band(y0, y1, clearColor)
	})
	b.rendered = true
	return nil
}

// Snapshot implements frame.Snapshotter.
func (b *Backend) Snapshot() (width, height int, pixels []byte, err error) {
	if b.closed {
		return 0, 0, nil, ErrClosed
	}
	if !b.rendered {
		return 0, 0, nil, ErrNoFrame
	}
	return b.width, b.height, append([]byte(nil), b.resolved...), nil
}

// Close implements frame.Backend.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.pool.Close()
	b.color, b.stencil, b.accum, b.resolved = nil, nil, nil, nil
	clear(b.textures)
	return nil
}

func (b *Backend) ensure(width, height, samples int, oit bool) {
	b.width, b.height, b.samples, b.oit = width, height, samples, oit
	n := width * height * samples
	b.color = resize(b.color, n)
	b.stencil = resize(b.stencil, n)
	if oit {
		b.accum = resize(b.accum, n)
	}
	b.resolved = resize(b.resolved, width*height*4)
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// prepare runs the vertex stage and resolves per-draw state.
func (b *Backend) prepare(plan *frame.Plan) {
	b.jobs = b.jobs[:0]
	b.tris = b.tris[:0]
	b.addJobs(plan, plan.Main, false)
	if plan.OIT {
		b.addJobs(plan, plan.Accumulate, true)
	}
}

func (b *Backend) addJobs(plan *frame.Plan, cmds []frame.Command, accumulate bool) {
	for ci := range cmds {
		cmd := &cmds[ci]
		for _, d := range cmd.Draws {
			inst := &plan.Instances[d.Instance]
			j := job{
				ref:     uint8(min(cmd.Ref, 255)), //nolint:gosec // G115: clamped to 255
				variant: cmd.Variant,
				fill:    color.FromArray(inst.Color),
				stroke:  color.FromArray(inst.Stroke),
				depth:   inst.Depth,
			}
			switch cmd.Op {
			case frame.OpPushClip:
				j.kind = jobPush
			case frame.OpPopClip:
				j.kind = jobPop
			default:
				j.kind = jobDraw
				if accumulate {
					j.kind = jobAccumulate
				}
			}
			switch cmd.Variant {
			case frame.SingleTexture:
				j.foregroundOnly = inst.Flags&frame.FlagForeground != 0
				id := cmd.Background
				if j.foregroundOnly {
					id = cmd.Foreground
				}
				j.background = b.textures[id]
			case frame.DualTexture:
				j.background = b.textures[cmd.Background]
				j.foreground = b.textures[cmd.Foreground]
			}

			m := xform.FromColumns(inst.Transform)
			j.first = len(b.tris)
			for k := uint32(0); k+2 < d.IndexCount; k += 3 {
				var v [3]svert
				for c := range 3 {
					idx := int(plan.Indices[d.FirstIndex+k+uint32(c)]) + int(d.BaseVertex) //nolint:gosec // G115: index fits
					v[c] = vertexStage(m, plan, idx, plan.FringeWidth, plan.Scale)
				}
				if t, ok := setup(v[0], v[1], v[2], b.width, b.height); ok {
					b.tris = append(b.tris, t)
				}
			}
			j.last = len(b.tris)
			b.jobs = append(b.jobs, j)
		}
	}
}

// band renders rows [y0, y1): clear, all jobs in order, OIT composite and
// resolve into the output image.
func (b *Backend) band(y0, y1 int, clearColor color.Premul) {
	w, s := b.width, b.samples
	lo, hi := y0*w*s, y1*w*s
	for i := lo; i < hi; i++ {
		b.color[i] = clearColor
		b.stencil[i] = 0
	}
	if b.oit {
		for i := lo; i < hi; i++ {
			b.accum[i] = color.NewAccum()
		}
	}

	pattern := samplePattern[s]
	for ji := range b.jobs {
		j := &b.jobs[ji]
		for ti := j.first; ti < j.last; ti++ {
			t := &b.tris[ti]
			for y := max(t.minY, y0); y <= min(t.maxY, y1-1); y++ {
				for x := t.minX; x <= t.maxX; x++ {
					base := (y*w + x) * s
					for si, off := range pattern {
						w0, w1, w2, inside := t.weights(float64(x)+off[0], float64(y)+off[1])
						if !inside {
							continue
						}
						idx := base + si
						if b.stencil[idx] != j.ref {
							continue
						}
						switch j.kind {
						case jobPush:
							if b.stencil[idx] < 255 {
								b.stencil[idx]++
							}
						case jobPop:
							if b.stencil[idx] > 0 {
								b.stencil[idx]--
							}
						case jobDraw:
							cov, u, v := t.interpolate(w0, w1, w2)
							b.color[idx] = color.Over(j.fragment(t.v[0].paint, cov, u, v), b.color[idx])
						case jobAccumulate:
							cov, u, v := t.interpolate(w0, w1, w2)
							b.accum[idx].Add(j.fragment(t.v[0].paint, cov, u, v), j.depth)
						}
					}
				}
			}
		}
	}

	if b.oit {
		for i := lo; i < hi; i++ {
			b.color[i] = color.Over(b.accum[i].Resolve(), b.color[i])
		}
	}

	inv := 1 / float32(s)
	for y := y0; y < y1; y++ {
		for x := range w {
			var sum color.Premul
			base := (y*w + x) * s
			for si := range s {
				sum = sum.Add(b.color[base+si])
			}
			px := sum.Scale(inv).EncodeSRGB8Premul()
			copy(b.resolved[(y*w+x)*4:], px[:])
		}
	}
}
