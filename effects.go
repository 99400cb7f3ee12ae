package strata

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/strata/internal/cliptree"
	"github.com/gogpu/strata/internal/effect"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/scene"
)

// EffectID names an effect loaded with LoadEffect.
type EffectID uint64

// Effect errors. Test with errors.Is.
var (
	// ErrEffectsUnsupported is returned when the backend cannot run effect
	// shaders; the software backend never can.
	ErrEffectsUnsupported = frame.ErrEffectsUnsupported

	// ErrEffectCompilation means a pass failed to parse, validate or build
	// into a pipeline.
	ErrEffectCompilation = effect.ErrCompilation

	// ErrEffectNotLoaded is returned when attaching an effect id that was
	// never loaded or has been unloaded.
	ErrEffectNotLoaded = errors.New("strata: effect not loaded")

	// ErrInvalidEffectParams means params were given to an effect without a
	// @group(1) binding, or none to an effect with one.
	ErrInvalidEffectParams = effect.ErrInvalidParams
)

// LoadEffect compiles a post-processing effect under id. Each pass is WGSL
// defining
//
//	@fragment fn effect_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32>
//
// that samples t_input with s_input; the first pass reads the rendered
// content, later passes the previous pass's output. A pass may declare a
// uniform at @group(1) @binding(0) for parameters given when the effect is
// attached. Loading an id again replaces the effect; attachments whose
// params no longer fit it are dropped.
func (r *Renderer) LoadEffect(id EffectID, passes ...string) error {
	if r.closed {
		return ErrRendererClosed
	}
	loader, ok := r.backend.(frame.EffectLoader)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEffectsUnsupported, r.backend.Name())
	}
	e, err := effect.Compile(passes)
	if err != nil {
		return fmt.Errorf("load effect %d: %w", id, err)
	}
	if err := loader.LoadEffect(frame.EffectID(id), e.Passes); err != nil {
		return fmt.Errorf("load effect %d: %w", id, err)
	}
	if r.effects == nil {
		r.effects = make(map[EffectID]*effect.Effect)
	}
	r.effects[id] = e

	fid := frame.EffectID(id)
	misfit := func(use frame.EffectUse) bool { return use.Effect == fid && e.CheckParams(use.Params) != nil }
	dropped := deleteUses(r.groupEffects, misfit) + deleteUses(r.backdrops, misfit)
	if dropped > 0 {
		Logger().Warn("strata: reloaded effect dropped attachments with mismatched params", "effect", id, "dropped", dropped)
	}
	Logger().Debug("strata: effect loaded", "effect", id, "passes", len(e.Passes), "params", e.TakesParams())
	return nil
}

// UnloadEffect frees an effect and detaches it from every clip and shape.
func (r *Renderer) UnloadEffect(id EffectID) {
	if _, ok := r.effects[id]; !ok {
		return
	}
	delete(r.effects, id)
	fid := frame.EffectID(id)
	uses := func(use frame.EffectUse) bool { return use.Effect == fid }
	deleteUses(r.groupEffects, uses)
	deleteUses(r.backdrops, uses)
	if loader, ok := r.backend.(frame.EffectLoader); ok && !r.closed {
		loader.UnloadEffect(fid)
	}
}

// IsEffectLoaded reports whether id names a loaded effect.
func (r *Renderer) IsEffectLoaded(id EffectID) bool {
	_, ok := r.effects[id]
	return ok
}

// SetGroupEffect renders everything under clip, including the clip's own
// mask, into an offscreen layer, runs the effect over it and composites the
// result where the clip's parent allows. Content of one group is drawn
// together at the position of its first shape in the queue.
func (r *Renderer) SetGroupEffect(clip ClipID, id EffectID, params []byte) error {
	if r.closed {
		return ErrRendererClosed
	}
	if _, err := r.queue.Clip(cliptree.ID(clip)); err != nil {
		return err
	}
	use, err := r.effectUse(id, params)
	if err != nil {
		return err
	}
	if r.groupEffects == nil {
		r.groupEffects = make(map[cliptree.ID]frame.EffectUse)
	}
	r.groupEffects[cliptree.ID(clip)] = use
	return nil
}

// UpdateGroupEffectParams replaces the params of clip's group effect.
func (r *Renderer) UpdateGroupEffectParams(clip ClipID, params []byte) error {
	if r.closed {
		return ErrRendererClosed
	}
	use, ok := r.groupEffects[cliptree.ID(clip)]
	if !ok {
		return fmt.Errorf("%w: clip %d has no group effect", ErrUnknownClip, clip)
	}
	if err := r.updateUse(&use, params); err != nil {
		return err
	}
	r.groupEffects[cliptree.ID(clip)] = use
	return nil
}

// RemoveGroupEffect detaches clip's group effect, if any.
func (r *Renderer) RemoveGroupEffect(clip ClipID) {
	delete(r.groupEffects, cliptree.ID(clip))
}

// SetBackdropEffect runs the effect over what is drawn behind the instance
// and shows the result through the instance's shape, before the shape
// itself draws on top.
func (r *Renderer) SetBackdropEffect(id InstanceID, effectID EffectID, params []byte) error {
	if _, err := r.instance(id); err != nil {
		return err
	}
	use, err := r.effectUse(effectID, params)
	if err != nil {
		return err
	}
	if r.backdrops == nil {
		r.backdrops = make(map[scene.ID]frame.EffectUse)
	}
	r.backdrops[scene.ID(id)] = use
	return nil
}

// UpdateBackdropEffectParams replaces the params of an instance's backdrop
// effect.
func (r *Renderer) UpdateBackdropEffectParams(id InstanceID, params []byte) error {
	if r.closed {
		return ErrRendererClosed
	}
	use, ok := r.backdrops[scene.ID(id)]
	if !ok {
		return fmt.Errorf("%w: instance %d has no backdrop effect", ErrUnknownInstance, id)
	}
	if err := r.updateUse(&use, params); err != nil {
		return err
	}
	r.backdrops[scene.ID(id)] = use
	return nil
}

// RemoveBackdropEffect detaches an instance's backdrop effect, if any.
func (r *Renderer) RemoveBackdropEffect(id InstanceID) {
	delete(r.backdrops, scene.ID(id))
}

func (r *Renderer) effectUse(id EffectID, params []byte) (frame.EffectUse, error) {
	e, ok := r.effects[id]
	if !ok {
		return frame.EffectUse{}, fmt.Errorf("%w: %d", ErrEffectNotLoaded, id)
	}
	if err := e.CheckParams(params); err != nil {
		return frame.EffectUse{}, fmt.Errorf("effect %d: %w", id, err)
	}
	return frame.EffectUse{Effect: frame.EffectID(id), Params: slices.Clone(params)}, nil
}

func (r *Renderer) updateUse(use *frame.EffectUse, params []byte) error {
	id := EffectID(use.Effect)
	e, ok := r.effects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEffectNotLoaded, id)
	}
	if err := e.CheckParams(params); err != nil {
		return fmt.Errorf("effect %d: %w", id, err)
	}
	use.Params = append(use.Params[:0], params...)
	return nil
}

// clearEffectAttachments detaches every effect. Clip and instance ids are
// reused by the next queue, so attachments do not outlive it.
func (r *Renderer) clearEffectAttachments() {
	clear(r.groupEffects)
	clear(r.backdrops)
}

func deleteUses[K comparable](m map[K]frame.EffectUse, match func(frame.EffectUse) bool) int {
	n := 0
	for k, use := range m {
		if match(use) {
			delete(m, k)
			n++
		}
	}
	return n
}
