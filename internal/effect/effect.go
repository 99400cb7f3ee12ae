// Package effect assembles user effect shaders into complete WGSL modules and
// checks them before they reach a backend.
//
// A user pass supplies only the fragment entry point effect_main. It is
// compiled together with a fixed preamble that binds the input texture and
// sampler at group 0 and a vertex stage drawing one viewport-covering
// triangle. Parameters, when a pass wants them, are a uniform at
// @group(1) @binding(0) whose layout the caller owns.
package effect

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/strata/internal/frame"
)

// EntryPoint is the fragment entry point every pass must define.
const EntryPoint = "effect_main"

// Errors returned by Compile and CheckParams.
var (
	ErrCompilation   = errors.New("effect: compilation failed")
	ErrInvalidParams = errors.New("effect: invalid params")
)

// paramsGroup is the bind group of the effect parameters.
const paramsGroup = 1

const preamble = `@group(0) @binding(0) var t_input: texture_2d<f32>;
@group(0) @binding(1) var s_input: sampler;

struct QuadOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_quad(@builtin(vertex_index) vi: u32) -> QuadOutput {
    let uv = vec2<f32>(f32((vi << 1u) & 2u), f32(vi & 2u));
    var out: QuadOutput;
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(uv.x, 1.0 - uv.y);
    return out;
}

`

// Assemble prefixes a fragment source with the input bindings and the
// fullscreen vertex stage vs_quad, whose output struct QuadOutput carries
// the uv at location 0.
func Assemble(fragment string) string { return preamble + fragment }

// Effect is a checked multi-pass effect.
type Effect struct {
	Passes []frame.EffectPass
}

// Compile assembles and checks each pass. Passes run in order, ping-ponging
// between two textures.
func Compile(passes []string) (*Effect, error) {
	if len(passes) == 0 {
		return nil, fmt.Errorf("%w: at least one pass is required", ErrCompilation)
	}
	e := &Effect{Passes: make([]frame.EffectPass, 0, len(passes))}
	for i, src := range passes {
		p, err := compilePass(src)
		if err != nil {
			return nil, fmt.Errorf("%w: pass %d: %w", ErrCompilation, i, err)
		}
		e.Passes = append(e.Passes, p)
	}
	return e, nil
}

func compilePass(src string) (frame.EffectPass, error) {
	full := Assemble(src)
	ast, err := naga.Parse(full)
	if err != nil {
		return frame.EffectPass{}, err
	}
	mod, err := naga.LowerWithSource(ast, full)
	if err != nil {
		return frame.EffectPass{}, err
	}
	if errs, err := naga.Validate(mod); err != nil {
		return frame.EffectPass{}, err
	} else if len(errs) > 0 {
		return frame.EffectPass{}, &errs[0]
	}

	found := false
	for _, ep := range mod.EntryPoints {
		if ep.Name == EntryPoint && ep.Stage == ir.StageFragment {
			found = true
		}
	}
	if !found {
		return frame.EffectPass{}, fmt.Errorf("no @fragment fn %s", EntryPoint)
	}
	return frame.EffectPass{Source: full, Params: bindsParams(mod)}, nil
}

// bindsParams reports whether mod declares a resource in the parameter group.
func bindsParams(mod *ir.Module) bool {
	for _, g := range mod.GlobalVariables {
		if g.Binding != nil && g.Binding.Group == paramsGroup {
			return true
		}
	}
	return false
}

// TakesParams reports whether any pass binds the parameters.
func (e *Effect) TakesParams() bool {
	for _, p := range e.Passes {
		if p.Params {
			return true
		}
	}
	return false
}

// CheckParams reports whether params suit e: an effect that binds parameters
// needs them, one that does not rejects them.
func (e *Effect) CheckParams(params []byte) error {
	switch takes := e.TakesParams(); {
	case takes && len(params) == 0:
		return fmt.Errorf("%w: effect expects parameters but none were provided", ErrInvalidParams)
	case !takes && len(params) > 0:
		return fmt.Errorf("%w: effect takes no parameters but %d bytes were provided", ErrInvalidParams, len(params))
	}
	return nil
}
