// Package cliptree plans stencil masking for a forest of clip regions.
//
// A node's visible region is the intersection of its own shape with every
// ancestor's. Plan follows the draws in submission order: on each change of
// clip scope it pops masks (stencil Equal node-ref, DecrementClamp) down to
// the common ancestor and pushes masks (Equal parent-ref, IncrementClamp)
// up to the new scope. A node's reference is its depth, so siblings reuse
// the same values and stencil usage is bounded by the maximum depth, not
// the node count.
//
// PlanGroups additionally wraps the content under group nodes in offscreen
// layers. Each layer has its own stencil; the group node's mask is pushed
// inside the layer and the layer composites under its parent's reference.
package cliptree

import (
	"errors"
	"fmt"
)

// ID identifies a clip node. Nodes are numbered densely from 0 in creation
// order.
type ID int32

// None is the absent clip: content clipped only by the viewport.
const None ID = -1

// ErrUnknownParent is returned by Add when the parent does not exist.
var ErrUnknownParent = errors.New("cliptree: unknown parent")

// MaxDepth is the deepest nesting an 8-bit stencil buffer can represent.
const MaxDepth = 255

// Tree is an arena-allocated clip forest. Since a parent must exist before its
// child, parent IDs are always smaller than child IDs and cycles cannot occur.
type Tree struct {
	parent []ID
	depth  []int
}

// Add creates a node under parent (None for a root) and returns its ID.
func (t *Tree) Add(parent ID) (ID, error) {
	d := 1
	if parent != None {
		if !t.Valid(parent) {
			return None, fmt.Errorf("%w: %d", ErrUnknownParent, parent)
		}
		d = t.depth[parent] + 1
	}
	id := ID(len(t.parent)) //nolint:gosec // G115: node count fits int32
	t.parent = append(t.parent, parent)
	t.depth = append(t.depth, d)
	return id, nil
}

// Valid reports whether id names an existing node.
func (t *Tree) Valid(id ID) bool {
	return id >= 0 && int(id) < len(t.parent)
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.parent) }

// Parent returns the parent of id, or None for a root.
func (t *Tree) Parent(id ID) ID { return t.parent[id] }

// Depth returns the nesting depth of id; roots have depth 1.
func (t *Tree) Depth(id ID) int { return t.depth[id] }

// Reset removes all nodes, keeping the allocated storage.
func (t *Tree) Reset() {
	t.parent = t.parent[:0]
	t.depth = t.depth[:0]
}
