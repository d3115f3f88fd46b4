package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/richielo/basicFusion/errkind"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

func status(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusOK
}

// RecordTranscode records one array transcode. It satisfies
// transcode.Recorder.
func (r *Registry) RecordTranscode(d time.Duration, bytes int, err error) {
	r.TranscodesTotal.WithLabelValues(status(err)).Inc()
	r.TranscodeDuration.Observe(d.Seconds())
	if err != nil {
		r.TranscodeFailuresTotal.WithLabelValues(errkind.KindOf(err).Label()).Inc()
		return
	}
	if bytes > 0 {
		r.TranscodeBytesTotal.Add(float64(bytes))
	}
}

// RecordGranule records one input granule for an instrument.
func (r *Registry) RecordGranule(instrument string, err error) {
	r.GranulesTotal.WithLabelValues(instrument, status(err)).Inc()
}

// RecordRun records the outcome of a whole repackaging run.
func (r *Registry) RecordRun(orbit uint32, err error) {
	r.RunsTotal.WithLabelValues(status(err)).Inc()
	r.LastRunOrbit.Set(float64(orbit))
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter's textfile collector. The write goes through a temporary
// file and a rename.
func (r *Registry) WriteTextfile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errkind.E(errkind.IOError, "write metrics", path, err)
	}
	return nil
}
