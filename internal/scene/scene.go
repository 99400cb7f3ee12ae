// Package scene holds the queue of shape instances and clip nodes accumulated
// between two frames.
package scene

import (
	"errors"
	"fmt"

	"github.com/gogpu/strata/internal/cliptree"
	"github.com/gogpu/strata/internal/color"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/tessellate"
	"github.com/gogpu/strata/internal/xform"
)

// Queue errors.
var (
	ErrUnknownInstance = errors.New("strata: unknown instance")
	ErrUnknownClip     = errors.New("strata: unknown clip")
)

// ID identifies an instance within one queue generation.
type ID uint32

// Geometry is a shape's tessellation input and, once tessellated, its mesh.
// Cached shapes share one Geometry between queue generations.
type Geometry struct {
	Input tessellate.Input
	Mesh  *tessellate.Mesh
	// Err is the tessellation diagnostic, if any.
	Err error
}

// Pending reports whether g still needs tessellating.
func (g *Geometry) Pending() bool { return g.Mesh == nil }

// Instance is one queued shape draw.
type Instance struct {
	Geometry   *Geometry
	Transform  xform.Mat4
	Color      color.Premul
	Stroke     color.Premul
	Background frame.TextureID
	Foreground frame.TextureID
	Clip       cliptree.ID
	// Order is the draw order, unique and increasing within a generation.
	Order uint32

	removed bool
}

// Removed reports whether the instance was removed from the queue.
func (i *Instance) Removed() bool { return i.removed }

// Clip is a clip node's shape and transform.
type Clip struct {
	Geometry  *Geometry
	Transform xform.Mat4
}

// Queue is the ordered collection of instances plus the clip tree for one
// accumulation period. It is not safe for concurrent use.
type Queue struct {
	instances []Instance
	clips     []Clip
	tree      cliptree.Tree
	live      int
}

// Add appends inst, assigning its draw order, and returns its ID.
func (q *Queue) Add(inst Instance) (ID, error) {
	if inst.Clip != cliptree.None && !q.tree.Valid(inst.Clip) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownClip, inst.Clip)
	}
	id := ID(len(q.instances)) //nolint:gosec // G115: instance count fits uint32
	inst.Order = uint32(id)
	inst.removed = false
	q.instances = append(q.instances, inst)
	q.live++
	return id, nil
}

// AddClip creates a clip node under parent (cliptree.None for a root).
func (q *Queue) AddClip(parent cliptree.ID, c Clip) (cliptree.ID, error) {
	id, err := q.tree.Add(parent)
	if err != nil {
		return cliptree.None, fmt.Errorf("%w: parent %d", ErrUnknownClip, parent)
	}
	q.clips = append(q.clips, c)
	return id, nil
}

// Instance returns the live instance with the given id.
func (q *Queue) Instance(id ID) (*Instance, error) {
	if int(id) >= len(q.instances) || q.instances[id].removed {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstance, id)
	}
	return &q.instances[id], nil
}

// Clip returns the clip node with the given id.
func (q *Queue) Clip(id cliptree.ID) (*Clip, error) {
	if !q.tree.Valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClip, id)
	}
	return &q.clips[id], nil
}

// Remove drops an instance. Its draw order is not reused.
func (q *Queue) Remove(id ID) error {
	inst, err := q.Instance(id)
	if err != nil {
		return err
	}
	inst.removed = true
	inst.Geometry = nil
	q.live--
	return nil
}

// Len returns the number of live instances.
func (q *Queue) Len() int { return q.live }

// Instances returns all instances in insertion order, including removed ones.
func (q *Queue) Instances() []Instance { return q.instances }

// Clips returns the clip nodes indexed by cliptree.ID.
func (q *Queue) Clips() []Clip { return q.clips }

// Tree returns the clip tree.
func (q *Queue) Tree() *cliptree.Tree { return &q.tree }

// Pending returns every distinct geometry still awaiting tessellation, in
// submission order: instances first, then clips.
func (q *Queue) Pending() []*Geometry {
	var out []*Geometry
	seen := make(map[*Geometry]struct{})
	add := func(g *Geometry) {
		if g == nil || !g.Pending() {
			return
		}
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	for i := range q.instances {
		add(q.instances[i].Geometry)
	}
	for i := range q.clips {
		add(q.clips[i].Geometry)
	}
	return out
}

// Reset clears the queue and the clip tree, keeping allocated storage. Draw
// orders restart from zero.
func (q *Queue) Reset() {
	clear(q.instances)
	clear(q.clips)
	q.instances = q.instances[:0]
	q.clips = q.clips[:0]
	q.tree.Reset()
	q.live = 0
}
