//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/buffers"
	"github.com/gogpu/wgpu/hal"
)

// gpuBuffer is a persistent device buffer with a CPU shadow copy. It grows
// geometrically between frames and is never shrunk.
type gpuBuffer struct {
	shadow *buffers.Persistent
	usage  gputypes.BufferUsage

	buf  hal.Buffer
	size uint64
}

func newGPUBuffer(label string, usage gputypes.BufferUsage) *gpuBuffer {
	return &gpuBuffer{
		shadow: buffers.New(label),
		usage:  usage | gputypes.BufferUsageCopyDst,
	}
}

// upload stages data into the shadow copy and writes it to the device
// buffer, recreating the device buffer when the shadow grew. Data already
// written by earlier frames is carried over, so a grown buffer never holds
// stale or missing ranges.
func (b *gpuBuffer) upload(device hal.Device, queue hal.Queue, data []byte) error {
	b.shadow.Stage(data)
	if need := b.shadow.Capacity(); b.buf == nil || need > b.size {
		if err := b.recreate(device, need); err != nil {
			return err
		}
		// The new buffer starts empty; restore the whole shadow.
		if err := queue.WriteBuffer(b.buf, 0, b.shadow.Contents()); err != nil {
			return fmt.Errorf("write %s: %w", b.shadow.Label(), err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	if err := queue.WriteBuffer(b.buf, 0, b.shadow.Staged()); err != nil {
		return fmt.Errorf("write %s: %w", b.shadow.Label(), err)
	}
	return nil
}

func (b *gpuBuffer) recreate(device hal.Device, size uint64) error {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.shadow.Label(),
		Size:  size,
		Usage: b.usage,
	})
	if err != nil {
		return mapError("create "+b.shadow.Label(), err)
	}
	if b.buf != nil {
		device.DestroyBuffer(b.buf)
	}
	slogger().Debug("gpu buffer grown", "label", b.shadow.Label(), "from", b.size, "to", size)
	b.buf, b.size = buf, size
	return nil
}

func (b *gpuBuffer) destroy(device hal.Device) {
	if b.buf != nil {
		device.DestroyBuffer(b.buf)
		b.buf, b.size = nil, 0
	}
}
