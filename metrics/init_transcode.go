package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTranscodeMetrics() {
	r.TranscodesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "terra_transcodes_total",
			Help: "Total number of array transcodes",
		},
		[]string{"status"},
	)

	r.TranscodeBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "terra_transcode_bytes_total",
			Help: "Bytes written by successful transcodes",
		},
	)

	r.TranscodeDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "terra_transcode_duration_seconds",
			Help:    "Array transcode duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	r.TranscodeFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "terra_transcode_failures_total",
			Help: "Failed transcodes by error kind",
		},
		[]string{"kind"},
	)
}
