package strata

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Renderer during creation. Options override the
// matching Config fields.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	r, err := strata.New(target, strata.DefaultConfig(),
//	    strata.WithBackend(strata.BackendSoftware),
//	    strata.WithMetrics(reg))
type Option func(*options)

type options struct {
	backend  string
	workers  int
	registry prometheus.Registerer
}

func (c Config) options() options {
	return options{backend: c.Backend, workers: c.Workers}
}

// WithBackend selects a backend by name ("auto", "wgpu", "software").
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithWorkers bounds tessellation and software rasterization parallelism.
// Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = max(n, 0)
	}
}

// WithMetrics registers the renderer's Prometheus collectors on reg.
// Without it no collectors are created.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}
