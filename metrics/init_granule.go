package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGranuleMetrics() {
	r.GranulesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "terra_granules_total",
			Help: "Input granules processed per instrument",
		},
		[]string{"instrument", "status"},
	)

	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "terra_runs_total",
			Help: "Repackaging runs by outcome",
		},
		[]string{"status"},
	)

	r.LastRunOrbit = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "terra_last_run_orbit",
			Help: "Orbit number of the most recent run",
		},
	)
}
