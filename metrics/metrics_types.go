// Package metrics counts repackaging work in a private Prometheus registry.
// A batch job has no scrape endpoint, so the registry is flushed to a
// node-exporter textfile when the run ends.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the repackager's collectors.
type Registry struct {
	// Transcode metrics
	TranscodesTotal        *prometheus.CounterVec
	TranscodeBytesTotal    prometheus.Counter
	TranscodeDuration      prometheus.Histogram
	TranscodeFailuresTotal *prometheus.CounterVec

	// Granule metrics
	GranulesTotal *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
	LastRunOrbit  prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.Mutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every collector registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initTranscodeMetrics()
	r.initGranuleMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
