// Package batch turns a scene queue into a frame plan: it packs meshes and
// instance records into flat arrays and orders draws into stencil-masked
// command streams, grouping consecutive draws that share pipeline state.
package batch

import (
	"slices"

	"github.com/gogpu/strata/internal/cliptree"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/scene"
	"github.com/gogpu/strata/internal/tessellate"
	"github.com/gogpu/strata/internal/xform"
)

// Options configures one Build.
type Options struct {
	MaxClipDepth int
	OIT          bool
	// HasTexture reports whether the backend holds a texture. Layers with
	// unknown textures are dropped, which renders them fully transparent.
	HasTexture func(frame.TextureID) bool
	// Groups maps clip nodes to the effect run over their content.
	Groups map[cliptree.ID]frame.EffectUse
	// Backdrops maps instances to the effect run over what lies behind them.
	Backdrops map[scene.ID]frame.EffectUse
}

// SwitchCounts counts pipeline changes in a frame's command streams.
type SwitchCounts struct {
	ToStencilIncrement int
	ToStencilDecrement int
	ToLeafDraw         int
	ToComposite        int
	ToEffect           int
	Total              int
}

// MissingTexture records a texture reference the backend could not resolve.
type MissingTexture struct {
	Instance scene.ID
	Texture  frame.TextureID
}

// Report summarizes a Build.
type Report struct {
	Switches SwitchCounts
	// Clamped lists clip nodes deeper than the depth limit.
	Clamped []cliptree.ID
	// Missing lists unresolvable texture references.
	Missing []MissingTexture
	// OrderClamped counts instances whose draw order exceeded the depth
	// bias range.
	OrderClamped int
	Instances    int
	Triangles    int
	Commands     int
	MaxClipRef   uint32
	// Effects counts effect runs: group layers plus backdrops.
	Effects int
}

type meshRange struct {
	firstIndex uint32
	fillCount  uint32
	totalCount uint32
	baseVertex int32
}

type entry struct {
	index    int // into queue instances
	instance uint32
	key      key
}

type key struct {
	variant    frame.Variant
	background frame.TextureID
	foreground frame.TextureID
}

// Builder keeps scratch storage between frames. The zero value is ready.
type Builder struct {
	clipPlan cliptree.Plan
	meshes   map[*tessellate.Mesh]meshRange
	clipInst []int64
	main     []entry
	accum    []entry
	scopes   []cliptree.ID

	first   map[cliptree.ID]int
	keys    [][]int
	order   []int
	sorted  []entry
	effects map[cliptree.ID]int
}

// Build fills out from q. out is reset first.
func (b *Builder) Build(q *scene.Queue, opts Options, out *frame.Plan) Report {
	var rep Report
	out.Reset()
	if b.meshes == nil {
		b.meshes = make(map[*tessellate.Mesh]meshRange)
	}
	clear(b.meshes)
	b.main = b.main[:0]
	b.accum = b.accum[:0]

	instances := q.Instances()
	for i := range instances {
		inst := &instances[i]
		if inst.Removed() || inst.Geometry == nil || inst.Geometry.Mesh == nil || inst.Geometry.Mesh.Empty() {
			continue
		}
		r := b.addMesh(inst.Geometry.Mesh, out)

		bg, fg := inst.Background, inst.Foreground
		if bg != frame.NoTexture && !hasTexture(opts, bg) {
			rep.Missing = append(rep.Missing, MissingTexture{Instance: scene.ID(i), Texture: bg}) //nolint:gosec // G115: instance count fits uint32
			bg = frame.NoTexture
		}
		if fg != frame.NoTexture && !hasTexture(opts, fg) {
			rep.Missing = append(rep.Missing, MissingTexture{Instance: scene.ID(i), Texture: fg}) //nolint:gosec // G115: instance count fits uint32
			fg = frame.NoTexture
		}

		depth, clamped := xform.DrawOrderDepth(inst.Order)
		if clamped {
			rep.OrderClamped++
		}
		rec := frame.Instance{
			Transform: inst.Transform.Columns(),
			Color:     inst.Color.Array(),
			Stroke:    inst.Stroke.Array(),
			Depth:     depth,
		}
		k := key{background: bg, foreground: fg}
		switch {
		case bg != frame.NoTexture && fg != frame.NoTexture:
			k.variant = frame.DualTexture
		case bg != frame.NoTexture || fg != frame.NoTexture:
			k.variant = frame.SingleTexture
			if fg != frame.NoTexture {
				rec.Flags |= frame.FlagForeground
			}
		default:
			k.variant = frame.Solid
		}

		instIdx := uint32(len(out.Instances)) //nolint:gosec // G115: instance count fits uint32
		out.Instances = append(out.Instances, rec)
		e := entry{index: i, instance: instIdx, key: k}
		if opts.OIT && k.variant == frame.Solid && inst.Color.A < 1 && inst.Stroke.A < 1 && !b.usesEffect(q, opts, scene.ID(i)) { //nolint:gosec // G115: instance count fits uint32
			e.key.variant = frame.OITAccumulate
			b.accum = append(b.accum, e)
		} else {
			b.main = append(b.main, e)
		}
		rep.Instances++
		rep.Triangles += int(r.totalCount / 3)
	}

	// OIT weights rank translucent instances within the frame, latest nearest.
	for k, e := range b.accum {
		out.Instances[e.instance].Depth = xform.LayerDepth(len(b.accum)-1-k, len(b.accum))
	}

	if len(opts.Groups) > 0 {
		b.clusterGroups(q, opts)
	}

	clips := q.Clips()
	b.clipInst = b.clipInst[:0]
	for range clips {
		b.clipInst = append(b.clipInst, -1)
	}

	var clamped map[cliptree.ID]struct{}
	for s, stream := range [][]entry{b.main, b.accum} {
		if len(stream) == 0 {
			continue
		}
		var group func(cliptree.ID) bool
		if s == 0 && len(opts.Groups) > 0 {
			group = func(id cliptree.ID) bool { _, ok := opts.Groups[id]; return ok }
		}
		b.planStream(q, stream, opts.MaxClipDepth, group)
		for _, id := range b.clipPlan.Clamped {
			if clamped == nil {
				clamped = make(map[cliptree.ID]struct{})
			}
			if _, ok := clamped[id]; !ok {
				clamped[id] = struct{}{}
				rep.Clamped = append(rep.Clamped, id)
			}
		}
		rep.MaxClipRef = max(rep.MaxClipRef, b.clipPlan.MaxRef)
		if s == 0 {
			out.Main = b.emit(q, opts, stream, out, out.Main)
		} else {
			out.Accumulate = b.emit(q, opts, stream, out, out.Accumulate)
		}
	}
	slices.Sort(rep.Clamped)

	rep.Switches = countSwitches(out.Main, out.Accumulate)
	rep.Commands = len(out.Main) + len(out.Accumulate)
	rep.Effects = len(out.Effects)
	return rep
}

func hasTexture(opts Options, id frame.TextureID) bool {
	return opts.HasTexture != nil && opts.HasTexture(id)
}

// usesEffect reports whether instance id has a backdrop or draws inside a
// group layer. Such instances stay in the main stream.
func (b *Builder) usesEffect(q *scene.Queue, opts Options, id scene.ID) bool {
	if _, ok := opts.Backdrops[id]; ok {
		return true
	}
	if len(opts.Groups) == 0 {
		return false
	}
	tree := q.Tree()
	for c := q.Instances()[id].Clip; c != cliptree.None; c = tree.Parent(c) {
		if _, ok := opts.Groups[c]; ok {
			return true
		}
	}
	return false
}

// clusterGroups reorders the main stream so each group's draws are
// consecutive, placed where the group's first draw was. Nested groups are
// clustered within their parent. Draws keep their relative order otherwise.
func (b *Builder) clusterGroups(q *scene.Queue, opts Options) {
	if b.first == nil {
		b.first = make(map[cliptree.ID]int)
	}
	clear(b.first)
	instances := q.Instances()
	tree := q.Tree()

	for i, e := range b.main {
		for c := instances[e.index].Clip; c != cliptree.None; c = tree.Parent(c) {
			if _, ok := opts.Groups[c]; ok {
				if _, seen := b.first[c]; !seen {
					b.first[c] = i
				}
			}
		}
	}

	// A draw's key runs from its outermost group's first position down to
	// its own, so sorting by key keeps every group contiguous.
	b.keys = resize(b.keys, len(b.main))
	for i, e := range b.main {
		key := b.keys[i][:0]
		for c := instances[e.index].Clip; c != cliptree.None; c = tree.Parent(c) {
			if _, ok := opts.Groups[c]; ok {
				key = append(key, b.first[c])
			}
		}
		slices.Reverse(key)
		b.keys[i] = append(key, i)
	}

	b.order = b.order[:0]
	for i := range b.main {
		b.order = append(b.order, i)
	}
	slices.SortFunc(b.order, func(x, y int) int { return slices.Compare(b.keys[x], b.keys[y]) })
	b.sorted = b.sorted[:0]
	for _, i := range b.order {
		b.sorted = append(b.sorted, b.main[i])
	}
	b.main, b.sorted = b.sorted, b.main
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return append(s[:cap(s)], make([]T, n-cap(s))...)
	}
	return s[:n]
}

// addMesh appends m's geometry once per frame and returns its index range.
// Fringe indices are rebased so fill and fringe share one base vertex and
// form one contiguous index range.
func (b *Builder) addMesh(m *tessellate.Mesh, out *frame.Plan) meshRange {
	if r, ok := b.meshes[m]; ok {
		return r
	}
	r := meshRange{
		firstIndex: uint32(len(out.Indices)),    //nolint:gosec // G115: buffer sizes fit uint32
		baseVertex: int32(len(out.Vertices)),    //nolint:gosec // G115: buffer sizes fit int32
		fillCount:  uint32(len(m.Fill.Indices)), //nolint:gosec // G115: buffer sizes fit uint32
	}
	out.Vertices = append(out.Vertices, m.Fill.Vertices...)
	out.Vertices = append(out.Vertices, m.Fringe.Vertices...)
	out.Indices = append(out.Indices, m.Fill.Indices...)
	shift := uint32(len(m.Fill.Vertices)) //nolint:gosec // G115: buffer sizes fit uint32
	for _, idx := range m.Fringe.Indices {
		out.Indices = append(out.Indices, idx+shift)
	}
	r.totalCount = r.fillCount + uint32(len(m.Fringe.Indices)) //nolint:gosec // G115: buffer sizes fit uint32
	b.meshes[m] = r
	return r
}

// planStream builds the clip plan for the instances of one stream. Entries
// are appended in draw order, which the plan preserves across clip scopes.
func (b *Builder) planStream(q *scene.Queue, stream []entry, maxDepth int, group func(cliptree.ID) bool) {
	instances := q.Instances()
	b.scopes = b.scopes[:0]
	for _, e := range stream {
		b.scopes = append(b.scopes, instances[e.index].Clip)
	}
	q.Tree().PlanGroups(&b.clipPlan, maxDepth, b.scopes, group)
}

// emit walks the clip plan and appends the stream's commands to cmds.
func (b *Builder) emit(q *scene.Queue, opts Options, stream []entry, out *frame.Plan, cmds []frame.Command) []frame.Command {
	instances := q.Instances()
	if b.effects == nil {
		b.effects = make(map[cliptree.ID]int)
	}
	clear(b.effects)
	for _, ev := range b.clipPlan.Events {
		switch ev.Kind {
		case cliptree.BeginGroup:
			cmds = pushOp(cmds, frame.Command{Op: frame.OpBeginGroup, Ref: ev.Ref, Effect: b.groupEffect(opts, ev.Node, out)})
		case cliptree.EndGroup:
			cmds = pushOp(cmds, frame.Command{Op: frame.OpEndGroup, Ref: ev.Ref, Effect: b.groupEffect(opts, ev.Node, out)})
		case cliptree.Push, cliptree.Pop:
			d, ok := b.maskDraw(q, ev.Node, out)
			if !ok {
				continue
			}
			op := frame.OpPushClip
			if ev.Kind == cliptree.Pop {
				op = frame.OpPopClip
			}
			cmds = pushCommand(cmds, frame.Command{Op: op, Ref: ev.Ref, Variant: frame.Solid}, d)
		case cliptree.Content:
			for _, e := range stream[ev.Start:ev.End] {
				r := b.meshes[instances[e.index].Geometry.Mesh]
				d := frame.Draw{
					FirstIndex: r.firstIndex,
					IndexCount: r.totalCount,
					BaseVertex: r.baseVertex,
					Instance:   e.instance,
				}
				if use, ok := opts.Backdrops[scene.ID(e.index)]; ok { //nolint:gosec // G115: instance count fits uint32
					out.Effects = append(out.Effects, use)
					cmds = pushCommand(cmds, frame.Command{Op: frame.OpBackdrop, Ref: ev.Ref, Variant: frame.Solid, Effect: len(out.Effects) - 1}, d)
				}
				if n := len(cmds); n > 0 && cmds[n-1].Op == frame.OpDraw && cmds[n-1].Ref == ev.Ref &&
					(key{cmds[n-1].Variant, cmds[n-1].Background, cmds[n-1].Foreground}) == e.key {
					cmds[n-1].Draws = append(cmds[n-1].Draws, d)
					continue
				}
				cmds = pushCommand(cmds, frame.Command{
					Op:         frame.OpDraw,
					Ref:        ev.Ref,
					Variant:    e.key.variant,
					Background: e.key.background,
					Foreground: e.key.foreground,
				}, d)
			}
		}
	}
	return cmds
}

// pushCommand appends c with d as its first draw, reusing the draw storage
// left in cmds' spare capacity by the previous frame.
func pushCommand(cmds []frame.Command, c frame.Command, d frame.Draw) []frame.Command {
	if n := len(cmds); n < cap(cmds) {
		c.Draws = append(cmds[:n+1][n].Draws[:0], d)
	} else {
		c.Draws = []frame.Draw{d}
	}
	return append(cmds, c)
}

// pushOp appends c without draws.
func pushOp(cmds []frame.Command, c frame.Command) []frame.Command {
	if n := len(cmds); n < cap(cmds) {
		c.Draws = cmds[:n+1][n].Draws[:0]
	}
	return append(cmds, c)
}

// groupEffect returns the Plan.Effects index of node's group effect. A group
// closed and opened again reuses its entry.
func (b *Builder) groupEffect(opts Options, node cliptree.ID, out *frame.Plan) int {
	if i, ok := b.effects[node]; ok {
		return i
	}
	out.Effects = append(out.Effects, opts.Groups[node])
	b.effects[node] = len(out.Effects) - 1
	return len(out.Effects) - 1
}

// maskDraw returns the fill-only draw for a clip node's mask, adding the clip
// instance record on first use.
func (b *Builder) maskDraw(q *scene.Queue, id cliptree.ID, out *frame.Plan) (frame.Draw, bool) {
	c := &q.Clips()[id]
	if c.Geometry == nil || c.Geometry.Mesh == nil || len(c.Geometry.Mesh.Fill.Indices) == 0 {
		return frame.Draw{}, false
	}
	r := b.addMesh(c.Geometry.Mesh, out)
	if b.clipInst[id] < 0 {
		b.clipInst[id] = int64(len(out.Instances))
		out.Instances = append(out.Instances, frame.Instance{Transform: c.Transform.Columns()})
	}
	return frame.Draw{
		FirstIndex: r.firstIndex,
		IndexCount: r.fillCount,
		BaseVertex: r.baseVertex,
		Instance:   uint32(b.clipInst[id]), //nolint:gosec // G115: instance count fits uint32
	}, true
}

type pipelineKind struct {
	op      frame.Op
	variant frame.Variant
}

func countSwitches(streams ...[]frame.Command) SwitchCounts {
	var sc SwitchCounts
	last := pipelineKind{op: 255}
	for _, cmds := range streams {
		for _, c := range cmds {
			k := pipelineKind{op: c.Op, variant: c.Variant}
			if c.Op != frame.OpDraw {
				k.variant = frame.Solid
			}
			if c.Op == frame.OpBeginGroup {
				// A new layer starts a pass with no pipeline bound.
				last = pipelineKind{op: 255}
				continue
			}
			if k == last && !c.Op.Effects() {
				continue
			}
			last = k
			switch c.Op {
			case frame.OpPushClip:
				sc.ToStencilIncrement++
			case frame.OpPopClip:
				sc.ToStencilDecrement++
			case frame.OpEndGroup, frame.OpBackdrop:
				sc.ToEffect++
			default:
				sc.ToLeafDraw++
			}
		}
	}
	if len(streams) > 1 && len(streams[1]) > 0 {
		sc.ToComposite++
	}
	sc.Total = sc.ToStencilIncrement + sc.ToStencilDecrement + sc.ToLeafDraw + sc.ToComposite + sc.ToEffect
	return sc
}
