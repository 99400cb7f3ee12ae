package strata

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/strata/internal/frame"
)

// gathered returns the value of each sample of the named family, keyed by
// its first label value ("" when unlabeled).
func gathered(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			key := ""
			if labels := m.GetLabel(); len(labels) > 0 {
				key = labels[0].GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetricsObserveFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(Target{Width: 16, Height: 16}, DefaultConfig(), WithMetrics(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	clip, err := r.AddClip(NewRect(XYWH(0, 0, 8, 8)), NoClip)
	require.NoError(t, err)
	_, err = r.AddShape(NewRect(XYWH(0, 0, 16, 16)), clip, 3)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, r.Render(context.Background()))
	}

	assert.Equal(t, 3.0, gathered(t, reg, "strata_frames_total")[""])
	assert.Equal(t, 3.0, gathered(t, reg, "strata_frame_duration_seconds")[""])
	assert.Equal(t, 1.0, gathered(t, reg, "strata_frame_instances")[""])
	assert.Equal(t, 3.0, gathered(t, reg, "strata_diagnostics_total")["unknown_texture"])

	phases := gathered(t, reg, "strata_frame_phase_seconds")
	for _, p := range []string{"tessellate", "prepare", "execute"} {
		assert.Equal(t, 3.0, phases[p], p)
	}
	switches := gathered(t, reg, "strata_pipeline_switches_total")
	assert.Equal(t, 3.0, switches["stencil_increment"])
	assert.Equal(t, 3.0, switches["stencil_decrement"])
	assert.Equal(t, 3.0, gathered(t, reg, "strata_rolling_fps")[""])
}

func TestMetricsCountFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, fb := newFake(t, WithMetrics(reg))

	fb.err = frame.ErrSurfaceTransient
	require.ErrorIs(t, r.Render(context.Background()), ErrSurfaceTransient)
	fb.err = frame.ErrSurfaceLost
	require.ErrorIs(t, r.Render(context.Background()), ErrSurfaceLost)

	failures := gathered(t, reg, "strata_frame_failures_total")
	assert.Equal(t, 1.0, failures["transient"])
	assert.Equal(t, 1.0, failures["surface_lost"])
	assert.Zero(t, gathered(t, reg, "strata_frames_total")[""])
	assert.Zero(t, r.PresentedFrames())
}

func TestMetricsUnregisterOnClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(Target{Width: 4, Height: 4}, DefaultConfig(), WithMetrics(reg))
	require.NoError(t, err)

	_, err = New(Target{Width: 4, Height: 4}, DefaultConfig(), WithMetrics(reg))
	require.Error(t, err, "second renderer on one registry")

	require.NoError(t, r.Close())
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	r2, err := New(Target{Width: 4, Height: 4}, DefaultConfig(), WithMetrics(reg))
	require.NoError(t, err)
	require.NoError(t, r2.Close())
}

func TestLoopMetricsRollingWindow(t *testing.T) {
	var m loopMetrics
	base := time.Unix(1000, 0)
	for i := range 10 {
		start := base.Add(time.Duration(i) * 200 * time.Millisecond)
		m.record(start, start.Add(10*time.Millisecond))
	}

	assert.Equal(t, uint64(10), m.count())
	assert.Equal(t, 10*time.Millisecond, m.averageDuration())
	assert.Equal(t, 10*time.Millisecond, m.rollingDuration())
	// Frames present every 200ms; the last second holds six of them.
	assert.Equal(t, 6.0, m.rollingFPS())
	assert.InDelta(t, 10/1.81, m.averageFPS(), 1e-9)

	m.reset()
	assert.Zero(t, m.count())
	assert.Zero(t, m.averageFPS())
	assert.Zero(t, m.rollingFPS())
	assert.Zero(t, m.rollingDuration())
}

func TestLoopMetricsSampleCap(t *testing.T) {
	var m loopMetrics
	now := time.Unix(0, 0)
	for range maxRollingSamples + 10 {
		m.record(now, now)
	}
	assert.Equal(t, float64(maxRollingSamples), m.rollingFPS())
	assert.Equal(t, uint64(maxRollingSamples+10), m.count())
}

func TestRendererLoopMetrics(t *testing.T) {
	r := newSoftware(t, 8, DefaultConfig())
	for range 2 {
		require.NoError(t, r.Render(context.Background()))
	}
	assert.Equal(t, uint64(2), r.PresentedFrames())
	assert.Equal(t, 2.0, r.RollingFPS())
	assert.Positive(t, r.AverageRenderDuration())
	assert.Positive(t, r.RollingRenderDuration())

	r.ResetMetrics()
	assert.Zero(t, r.PresentedFrames())
	assert.Zero(t, r.AverageFPS())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "clip_depth_exceeded", diagnosticLabel(ErrClipDepthExceeded))
	assert.Equal(t, "tessellation_degenerate", diagnosticLabel(ErrTessellationDegenerate))
	assert.Equal(t, "unknown_texture", diagnosticLabel(ErrUnknownTextureReference))
	assert.Equal(t, "out_of_memory", failureLabel(ErrSurfaceOutOfMemory))
	assert.Equal(t, "other", failureLabel(context.Canceled))
}

func TestPipelineSwitchesAdd(t *testing.T) {
	s := PipelineSwitches{ToLeafDraw: 1, Total: 1}
	s.Add(PipelineSwitches{ToStencilIncrement: 2, ToStencilDecrement: 2, ToComposite: 1, ToEffect: 1, Total: 6})
	assert.Equal(t, PipelineSwitches{ToStencilIncrement: 2, ToStencilDecrement: 2, ToLeafDraw: 1, ToComposite: 1, ToEffect: 1, Total: 7}, s)
}
