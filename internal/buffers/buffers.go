// Package buffers implements the growth policy and CPU shadow storage of the
// renderer's persistent vertex, index and instance buffers.
//
// Buffers only grow, geometrically, and only between frames. A Persistent
// keeps a CPU copy of its contents so a backend that must reallocate its
// device buffer can re-upload everything written so far.
package buffers

import "unsafe"

// MinCapacity is the smallest capacity a buffer is allocated with.
const MinCapacity = 4 << 10

// Align is the size granularity of device buffers (COPY_BUFFER_ALIGNMENT).
const Align = 4

// Grow returns the capacity a buffer of the given capacity needs to hold
// needed bytes, and whether that requires a reallocation. Capacities double
// from MinCapacity until they fit.
func Grow(capacity, needed uint64) (uint64, bool) {
	if capacity >= needed && capacity > 0 {
		return capacity, false
	}
	c := max(capacity, MinCapacity)
	for c < needed {
		c *= 2
	}
	return alignUp(c), true
}

func alignUp(n uint64) uint64 {
	return (n + Align - 1) &^ (Align - 1)
}

// Persistent is the CPU side of a growable device buffer.
type Persistent struct {
	label  string
	shadow []byte
	used   uint64
	grows  int
}

// New returns an empty buffer. No storage is allocated until Reserve.
func New(label string) *Persistent {
	return &Persistent{label: label}
}

// Label returns the debug label.
func (p *Persistent) Label() string { return p.label }

// Capacity returns the allocated size in bytes.
func (p *Persistent) Capacity() uint64 { return uint64(len(p.shadow)) }

// Used returns the number of bytes written by the last Stage.
func (p *Persistent) Used() uint64 { return p.used }

// Grows returns how many times the buffer was reallocated.
func (p *Persistent) Grows() int { return p.grows }

// Reserve makes room for n bytes, preserving existing contents, and reports
// whether the capacity changed.
func (p *Persistent) Reserve(n uint64) bool {
	c, grow := Grow(p.Capacity(), n)
	if !grow {
		return false
	}
	next := make([]byte, c)
	copy(next, p.shadow)
	p.shadow = next
	p.grows++
	return true
}

// Stage copies data to the start of the buffer, growing it first if needed.
// It reports whether the buffer grew.
func (p *Persistent) Stage(data []byte) bool {
	grew := p.Reserve(uint64(len(data)))
	copy(p.shadow, data)
	p.used = uint64(len(data))
	return grew
}

// Contents returns the whole shadow copy, Capacity bytes long.
func (p *Persistent) Contents() []byte { return p.shadow }

// Staged returns the bytes written by the last Stage, padded to Align.
func (p *Persistent) Staged() []byte {
	return p.shadow[:min(alignUp(p.used), p.Capacity())]
}

// Bytes reinterprets a slice of plain-old-data values as bytes without
// copying. T must not contain pointers.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero))) //nolint:gosec // POD reinterpretation
}
