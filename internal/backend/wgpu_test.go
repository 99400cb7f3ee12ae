//go:build !nogpu

package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/gpu"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

type noopProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p noopProvider) HalDevice() any { return p.device }
func (p noopProvider) HalQueue() any  { return p.queue }

func newNoopProvider(t *testing.T) noopProvider {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	openDev, err := instance.EnumerateAdapters(nil)[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return noopProvider{openDev.Device, openDev.Queue}
}

func TestChoosePrefersGPUWithDevice(t *testing.T) {
	p := newNoopProvider(t)
	if got := Choose(Target{Device: p}); got != WGPU {
		t.Errorf("Choose(with device) = %q, want %q", got, WGPU)
	}
	if got := Choose(Target{}); got != Software {
		t.Errorf("Choose(without device) = %q, want %q", got, Software)
	}

	b, err := Open(Auto, Target{Width: 16, Height: 16, Device: p})
	if err != nil {
		t.Fatalf("Open(auto) error = %v", err)
	}
	defer b.Close()
	if b.Name() != gpu.Name {
		t.Errorf("Name() = %q, want %q", b.Name(), gpu.Name)
	}
}

func TestOpenGPUErrors(t *testing.T) {
	if _, err := Open(WGPU, Target{Width: 4, Height: 4}); !errors.Is(err, ErrNeedsDevice) {
		t.Errorf("Open(wgpu, no device) = %v, want ErrNeedsDevice", err)
	}
	p := newNoopProvider(t)
	if _, err := Open(WGPU, Target{Width: 4, Height: 4, Device: p, Surface: "window"}); err == nil {
		t.Error("expected error for a non-hal surface")
	}
	if _, err := Open(WGPU, Target{Width: 4, Height: 4, Device: struct{}{}}); !errors.Is(err, gpu.ErrNoDevice) {
		t.Errorf("Open(wgpu, bad provider) = %v, want gpu.ErrNoDevice", err)
	}
}
