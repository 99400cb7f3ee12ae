package strata

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineSwitches counts pipeline changes issued in one frame.
type PipelineSwitches struct {
	ToStencilIncrement int
	ToStencilDecrement int
	ToLeafDraw         int
	ToComposite        int
	ToEffect           int
	Total              int
}

// Add merges o into s.
func (s *PipelineSwitches) Add(o PipelineSwitches) {
	s.ToStencilIncrement += o.ToStencilIncrement
	s.ToStencilDecrement += o.ToStencilDecrement
	s.ToLeafDraw += o.ToLeafDraw
	s.ToComposite += o.ToComposite
	s.ToEffect += o.ToEffect
	s.Total += o.Total
}

// PhaseTimings is the wall-clock breakdown of one Render call.
type PhaseTimings struct {
	// Tessellate covers shapes added since the previous frame.
	Tessellate time.Duration
	// Prepare covers batching and building the frame plan.
	Prepare time.Duration
	// Execute covers upload, encoding, submission, the GPU wait and present.
	Execute time.Duration
	Total   time.Duration
}

// FrameStats describes the most recent successful frame.
type FrameStats struct {
	Backend     string
	Instances   int
	Triangles   int
	Commands    int
	Tessellated int
	// MaxClipRef is the deepest stencil reference used.
	MaxClipRef  uint32
	// Effects counts group and backdrop effect runs.
	Effects     int
	Switches    PipelineSwitches
	Timings     PhaseTimings
	Diagnostics []Diagnostic
}

const (
	rollingWindow     = time.Second
	maxRollingSamples = 16384
)

type loopSample struct {
	presented time.Time
	duration  time.Duration
}

// loopMetrics tracks render-loop throughput over all frames and over a
// rolling one second window. It is read by metric scrapes, hence the lock.
type loopMetrics struct {
	mu            sync.Mutex
	frames        uint64
	total         time.Duration
	firstStart    time.Time
	lastPresented time.Time
	window        []loopSample
	windowTotal   time.Duration
}

func (m *loopMetrics) record(start, presented time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := presented.Sub(start)
	if m.frames == 0 {
		m.firstStart = start
	}
	m.lastPresented = presented
	m.frames++
	m.total += d

	if len(m.window) == maxRollingSamples {
		m.dropOldest()
	}
	m.window = append(m.window, loopSample{presented: presented, duration: d})
	m.windowTotal += d
	for len(m.window) > 0 && presented.Sub(m.window[0].presented) > rollingWindow {
		m.dropOldest()
	}
}

func (m *loopMetrics) dropOldest() {
	m.windowTotal -= m.window[0].duration
	m.window = m.window[1:]
}

func (m *loopMetrics) averageFPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := m.lastPresented.Sub(m.firstStart).Seconds()
	if m.frames == 0 || elapsed <= 0 {
		return 0
	}
	return float64(m.frames) / elapsed
}

func (m *loopMetrics) averageDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frames == 0 {
		return 0
	}
	return m.total / time.Duration(m.frames) //nolint:gosec // G115: frame count fits int64
}

func (m *loopMetrics) rollingFPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(len(m.window))
}

func (m *loopMetrics) rollingDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.window) == 0 {
		return 0
	}
	return m.windowTotal / time.Duration(len(m.window))
}

func (m *loopMetrics) count() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *loopMetrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames, m.total, m.windowTotal = 0, 0, 0
	m.firstStart, m.lastPresented = time.Time{}, time.Time{}
	m.window = m.window[:0]
}

// collectors are the Prometheus metrics of one renderer.
type collectors struct {
	reg         prometheus.Registerer
	all         []prometheus.Collector
	frames      prometheus.Counter
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
	phases      *prometheus.HistogramVec
	instances   prometheus.Gauge
	triangles   prometheus.Gauge
	commands    prometheus.Gauge
	switches    *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	rollingFPS  prometheus.GaugeFunc
}

func newCollectors(reg prometheus.Registerer, loop *loopMetrics) (*collectors, error) {
	c := &collectors{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strata_frames_total",
			Help: "Frames rendered successfully.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_frame_failures_total",
			Help: "Frames that failed, by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_frame_duration_seconds",
			Help:    "Wall-clock duration of Render.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		phases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strata_frame_phase_seconds",
			Help:    "Duration of each Render phase.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"phase"}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strata_frame_instances",
			Help: "Instances drawn in the last frame.",
		}),
		triangles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strata_frame_triangles",
			Help: "Triangles drawn in the last frame.",
		}),
		commands: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strata_frame_commands",
			Help: "Batched draw commands in the last frame.",
		}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_pipeline_switches_total",
			Help: "Pipeline changes, by target pipeline.",
		}, []string{"pipeline"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_diagnostics_total",
			Help: "Absorbed frame diagnostics, by kind.",
		}, []string{"kind"}),
		rollingFPS: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "strata_rolling_fps",
			Help: "Frames presented in the last second.",
		}, loop.rollingFPS),
	}
	c.reg = reg
	for _, col := range []prometheus.Collector{
		c.frames, c.failures, c.duration, c.phases, c.instances,
		c.triangles, c.commands, c.switches, c.diagnostics, c.rollingFPS,
	} {
		if err := reg.Register(col); err != nil {
			c.unregister()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		c.all = append(c.all, col)
	}
	return c, nil
}

func (c *collectors) unregister() {
	if c == nil {
		return
	}
	for _, col := range c.all {
		c.reg.Unregister(col)
	}
	c.all = nil
}

func (c *collectors) observe(s *FrameStats) {
	if c == nil {
		return
	}
	c.frames.Inc()
	c.duration.Observe(s.Timings.Total.Seconds())
	c.phases.WithLabelValues("tessellate").Observe(s.Timings.Tessellate.Seconds())
	c.phases.WithLabelValues("prepare").Observe(s.Timings.Prepare.Seconds())
	c.phases.WithLabelValues("execute").Observe(s.Timings.Execute.Seconds())
	c.instances.Set(float64(s.Instances))
	c.triangles.Set(float64(s.Triangles))
	c.commands.Set(float64(s.Commands))
	c.switches.WithLabelValues("stencil_increment").Add(float64(s.Switches.ToStencilIncrement))
	c.switches.WithLabelValues("stencil_decrement").Add(float64(s.Switches.ToStencilDecrement))
	c.switches.WithLabelValues("leaf_draw").Add(float64(s.Switches.ToLeafDraw))
	c.switches.WithLabelValues("composite").Add(float64(s.Switches.ToComposite))
	c.switches.WithLabelValues("effect").Add(float64(s.Switches.ToEffect))
	for _, d := range s.Diagnostics {
		c.diagnostics.WithLabelValues(diagnosticLabel(d.Kind)).Inc()
	}
}

func (c *collectors) fail(err error) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(failureLabel(err)).Inc()
}

func diagnosticLabel(kind error) string {
	switch {
	case errors.Is(kind, ErrTessellationDegenerate):
		return "tessellation_degenerate"
	case errors.Is(kind, ErrClipDepthExceeded):
		return "clip_depth_exceeded"
	case errors.Is(kind, ErrUnknownTextureReference):
		return "unknown_texture"
	default:
		return "other"
	}
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrSurfaceOutOfMemory):
		return "out_of_memory"
	case errors.Is(err, ErrSurfaceLost):
		return "surface_lost"
	case errors.Is(err, ErrSurfaceTransient):
		return "transient"
	default:
		return "other"
	}
}
