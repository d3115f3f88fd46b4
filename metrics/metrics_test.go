package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richielo/basicFusion/errkind"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.NotNil(t, r.TranscodesTotal)
	assert.NotNil(t, r.TranscodeDuration)
	assert.NotNil(t, r.GranulesTotal)
	assert.NotNil(t, r.GetPrometheusRegistry())
}

func TestDefaultRegistry(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}

func TestRecordTranscode(t *testing.T) {
	r := NewRegistry()

	r.RecordTranscode(10*time.Millisecond, 800, nil)
	r.RecordTranscode(20*time.Millisecond, 200, nil)
	r.RecordTranscode(time.Millisecond, 0, errkind.E(errkind.ShapeError, "transcode", "/x", nil))
	r.RecordTranscode(time.Millisecond, 0, errkind.E(errkind.NotFound, "transcode", "/y", nil))
	r.RecordTranscode(time.Millisecond, 0, errkind.E(errkind.NotFound, "transcode", "/z", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.TranscodesTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.TranscodesTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1000.0, testutil.ToFloat64(r.TranscodeBytesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TranscodeFailuresTotal.WithLabelValues("shape")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.TranscodeFailuresTotal.WithLabelValues("not_found")))

	var m dto.Metric
	require.NoError(t, r.TranscodeDuration.Write(&m))
	assert.Equal(t, uint64(5), m.GetHistogram().GetSampleCount())
}

func TestRecordGranuleAndRun(t *testing.T) {
	r := NewRegistry()
	r.RecordGranule("MOPITT", nil)
	r.RecordGranule("MOPITT", nil)
	r.RecordGranule("CERES", assert.AnError)
	r.RecordRun(69400, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.GranulesTotal.WithLabelValues("MOPITT", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.GranulesTotal.WithLabelValues("CERES", StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 69400.0, testutil.ToFloat64(r.LastRunOrbit))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.RecordTranscode(time.Millisecond, 8, nil)

	p := filepath.Join(t.TempDir(), "terra.prom")
	require.NoError(t, r.WriteTextfile(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `terra_transcodes_total{status="ok"} 1`)

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "terra.prom"))
	assert.ErrorIs(t, err, errkind.IOError)
}

func TestMetricNamesPrefixed(t *testing.T) {
	r := NewRegistry()
	r.RecordTranscode(time.Millisecond, 1, nil)
	r.RecordTranscode(time.Millisecond, 0, assert.AnError)
	r.RecordGranule("MODIS", nil)
	r.RecordRun(1, nil)

	families, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, f := range families {
		assert.True(t, strings.HasPrefix(f.GetName(), "terra_"), f.GetName())
	}
}
