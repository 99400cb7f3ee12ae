package cliptree

import "slices"

// Kind is the kind of a plan event.
type Kind uint8

const (
	// Push draws the node's mask where stencil == Ref and increments.
	Push Kind = iota
	// Content draws scopes[Start:End], clipped by Node, where stencil == Ref.
	Content
	// Pop draws the node's mask where stencil == Ref and decrements.
	Pop
	// BeginGroup starts an offscreen layer for the content under Node. The
	// layer has its own stencil, starting at 0. Ref is the reference of the
	// enclosing layer the group composites into.
	BeginGroup
	// EndGroup closes Node's layer. Ref matches its BeginGroup.
	EndGroup
)

func (k Kind) String() string {
	switch k {
	case Push:
		return "push"
	case Content:
		return "content"
	case Pop:
		return "pop"
	case BeginGroup:
		return "begin-group"
	case EndGroup:
		return "end-group"
	default:
		return "unknown"
	}
}

// Event is one step of a plan. Start and End are only set on Content events.
type Event struct {
	Kind  Kind
	Node  ID
	Ref   uint32
	Start int
	End   int
}

// Plan is the stencil schedule for one frame. A Plan is reusable: passing the
// same value to Tree.Plan every frame avoids reallocating its slices.
type Plan struct {
	Events []Event

	// Clamped lists, in ascending order, the nodes deeper than the depth
	// limit that clip some content. They push no mask; their content renders
	// with the nearest unclamped ancestor's reference.
	Clamped []ID
	// MaxRef is the highest reference value used in any layer.
	MaxRef uint32

	seen   []bool
	stack  []ID
	path   []ID
	chain  []ID
	layers []layer
}

// layer is an open group. Its masks are stack[base:].
type layer struct {
	node ID
	base int
	ref  uint32
}

// Plan fills p with the schedule for drawing content in submission order.
// scopes[i] is the clip of the i-th draw, None when unclipped. Consecutive
// draws in one scope share a Content event. On a scope change the masks are
// popped down to the common ancestor and pushed up to the new scope, so a
// later draw is never covered by an earlier one. Siblings reuse the same
// reference values and the stencil never holds more than maxDepth levels.
// Nodes without content are never pushed. maxDepth is clamped to
// [1, MaxDepth]. The schedule ends with the stencil back at 0.
func (t *Tree) Plan(p *Plan, maxDepth int, scopes []ID) {
	t.PlanGroups(p, maxDepth, scopes, nil)
}

// PlanGroups is Plan with group layers. Content under a node for which group
// reports true is drawn between BeginGroup and EndGroup events for that
// node, in a layer whose masks start below the node's parent: the node's own
// mask is pushed inside the layer, its ancestors' masks outside. Callers
// keep each group's draws consecutive in scopes; a group interrupted by
// other content is closed and opened again. Groups nest.
func (t *Tree) PlanGroups(p *Plan, maxDepth int, scopes []ID, group func(ID) bool) {
	maxDepth = max(1, min(maxDepth, MaxDepth))

	p.Events = p.Events[:0]
	p.Clamped = p.Clamped[:0]
	p.MaxRef = 0
	p.stack = p.stack[:0]
	p.layers = p.layers[:0]
	p.seen = resize(p.seen, len(t.parent))
	clear(p.seen)

	for i := 0; i < len(scopes); {
		scope := scopes[i]
		end := i + 1
		for end < len(scopes) && scopes[end] == scope {
			end++
		}
		if group != nil {
			t.groups(p, scope, group)
			t.switchLayers(p, maxDepth)
		}
		t.enter(p, t.effective(p, scope, maxDepth))
		p.Events = append(p.Events, Event{Kind: Content, Node: scope, Ref: p.depth(), Start: i, End: end})
		i = end
	}
	p.chain = p.chain[:0]
	t.switchLayers(p, maxDepth)
	for len(p.stack) > 0 {
		p.pop()
	}
	slices.Sort(p.Clamped)
}

// groups sets p.chain to the group nodes enclosing id, outermost first.
func (t *Tree) groups(p *Plan, id ID, group func(ID) bool) {
	p.chain = p.chain[:0]
	for ; id != None; id = t.parent[id] {
		if group(id) {
			p.chain = append(p.chain, id)
		}
	}
	slices.Reverse(p.chain)
}

// switchLayers closes the open groups missing from p.chain and opens the
// rest of the chain.
func (t *Tree) switchLayers(p *Plan, maxDepth int) {
	common := 0
	for common < len(p.layers) && common < len(p.chain) && p.layers[common].node == p.chain[common] {
		common++
	}
	for len(p.layers) > common {
		top := p.layers[len(p.layers)-1]
		for len(p.stack) > top.base {
			p.pop()
		}
		p.layers = p.layers[:len(p.layers)-1]
		p.Events = append(p.Events, Event{Kind: EndGroup, Node: top.node, Ref: top.ref})
	}
	for _, g := range p.chain[common:] {
		t.enter(p, t.effective(p, t.parent[g], maxDepth))
		ref := p.depth()
		p.Events = append(p.Events, Event{Kind: BeginGroup, Node: g, Ref: ref})
		p.layers = append(p.layers, layer{node: g, base: len(p.stack), ref: ref})
	}
}

// effective returns the deepest unclamped ancestor-or-self of id, recording
// the clamped nodes passed on the way.
func (t *Tree) effective(p *Plan, id ID, maxDepth int) ID {
	for id != None && t.depth[id] > maxDepth {
		if !p.seen[id] {
			p.seen[id] = true
			p.Clamped = append(p.Clamped, id)
		}
		id = t.parent[id]
	}
	return id
}

// enter makes the masks of the current layer equal the path from the
// layer's anchor down to target. A target outside the layer's subtree, left
// there by clamping, gets no masks.
func (t *Tree) enter(p *Plan, target ID) {
	base, anchor := 0, None
	if n := len(p.layers); n > 0 {
		base, anchor = p.layers[n-1].base, t.parent[p.layers[n-1].node]
	}
	p.path = p.path[:0]
	for id := target; id != anchor; id = t.parent[id] {
		if id == None {
			p.path = p.path[:0]
			break
		}
		p.path = append(p.path, id)
	}
	slices.Reverse(p.path)

	common := 0
	for common < len(p.stack)-base && common < len(p.path) && p.stack[base+common] == p.path[common] {
		common++
	}
	for len(p.stack) > base+common {
		p.pop()
	}
	for _, id := range p.path[common:] {
		ref := p.depth()
		p.Events = append(p.Events, Event{Kind: Push, Node: id, Ref: ref})
		p.stack = append(p.stack, id)
		p.MaxRef = max(p.MaxRef, ref+1)
	}
}

// depth is the number of masks pushed in the current layer.
func (p *Plan) depth() uint32 {
	base := 0
	if n := len(p.layers); n > 0 {
		base = p.layers[n-1].base
	}
	return uint32(len(p.stack) - base) //nolint:gosec // G115: bounded by MaxDepth
}

func (p *Plan) pop() {
	id := p.stack[len(p.stack)-1]
	p.Events = append(p.Events, Event{Kind: Pop, Node: id, Ref: p.depth()})
	p.stack = p.stack[:len(p.stack)-1]
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
