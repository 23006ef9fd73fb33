package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationMetrics(t *testing.T) {
	initialGenerated := testutil.ToFloat64(framesGeneratedTotal)
	initialRendered := testutil.ToFloat64(framesRenderedTotal)
	initialSwaps := testutil.ToFloat64(transformsTotal.WithLabelValues("swap"))

	AddFramesGenerated(10)
	IncrementFramesRendered()
	IncrementFramesRendered()
	IncrementTransform("swap")

	assert.Equal(t, initialGenerated+10, testutil.ToFloat64(framesGeneratedTotal))
	assert.Equal(t, initialRendered+2, testutil.ToFloat64(framesRenderedTotal))
	assert.Equal(t, initialSwaps+1, testutil.ToFloat64(transformsTotal.WithLabelValues("swap")))
}

func TestRecordFrameScanned(t *testing.T) {
	initialScanned := testutil.ToFloat64(framesScannedTotal)
	initialEmpty := testutil.ToFloat64(framesWithoutCodeTotal)

	RecordFrameScanned(1)
	RecordFrameScanned(0)
	RecordFrameScanned(2)

	assert.Equal(t, initialScanned+3, testutil.ToFloat64(framesScannedTotal))
	assert.Equal(t, initialEmpty+1, testutil.ToFloat64(framesWithoutCodeTotal))
}

func TestPayloadMetrics(t *testing.T) {
	initialDecoded := testutil.ToFloat64(payloadsDecodedTotal)
	initialMalformed := testutil.ToFloat64(payloadErrorsTotal.WithLabelValues("malformed"))

	IncrementPayloadDecoded()
	IncrementPayloadError("malformed")
	IncrementPayloadError("malformed")

	assert.Equal(t, initialDecoded+1, testutil.ToFloat64(payloadsDecodedTotal))
	assert.Equal(t, initialMalformed+2, testutil.ToFloat64(payloadErrorsTotal.WithLabelValues("malformed")))
}

func TestSetReconciliation(t *testing.T) {
	SetReconciliation(10, 3, 2)

	assert.Equal(t, float64(10), testutil.ToFloat64(expectedFrames))
	assert.Equal(t, float64(3), testutil.ToFloat64(missingFrames))
	assert.Equal(t, float64(2), testutil.ToFloat64(outOfOrderFrames))

	SetReconciliation(1, 0, 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(missingFrames))
}

func TestObserveRun(t *testing.T) {
	ObserveRun("scan", "ok", 250*time.Millisecond)

	observer, err := runDuration.GetMetricWithLabelValues("scan", "ok")
	require.NoError(t, err)

	metric := &dto.Metric{}
	require.NoError(t, observer.(prometheus.Histogram).Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(1))
}

func TestWriteTextfile(t *testing.T) {
	assert.NoError(t, WriteTextfile(""))

	IncrementAnomaly("duplicate")

	path := filepath.Join(t.TempDir(), "framecheck.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "framecheck_anomalies_total")
	assert.Contains(t, string(data), `kind="duplicate"`)
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
