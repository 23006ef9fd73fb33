package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation metrics
	framesGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_frames_generated_total",
		Help: "Total payload records generated",
	})

	framesRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_frames_rendered_total",
		Help: "Total frames rendered and written to video",
	})

	transformsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_transforms_total",
		Help: "Total sequence transformations applied",
	}, []string{"kind"})

	// Scan metrics
	framesScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_frames_scanned_total",
		Help: "Total video frames scanned",
	})

	framesWithoutCodeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_frames_without_code_total",
		Help: "Total scanned frames in which no QR code was detected",
	})

	payloadsDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_payloads_decoded_total",
		Help: "Total payloads decoded from scanned frames",
	})

	payloadErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_payload_errors_total",
		Help: "Total payloads that failed to decode",
	}, []string{"reason"})

	// Reconciliation results of the last run
	expectedFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecheck_expected_frames",
		Help: "Total frame count declared by the sync record",
	})

	missingFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecheck_missing_frames",
		Help: "Frame indices never observed",
	})

	outOfOrderFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecheck_out_of_order_frames",
		Help: "Frames observed at a playback position other than the declared one",
	})

	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_anomalies_total",
		Help: "Anomalous frame records by kind",
	}, []string{"kind"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecheck_run_duration_seconds",
		Help:    "Run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
	}, []string{"command", "outcome"})
)

// AddFramesGenerated adds n to the generated records counter
func AddFramesGenerated(n int) {
	framesGeneratedTotal.Add(float64(n))
}

// IncrementFramesRendered increments the rendered frame counter
func IncrementFramesRendered() {
	framesRenderedTotal.Inc()
}

// IncrementTransform counts a shuffle swap or a deletion
func IncrementTransform(kind string) {
	transformsTotal.WithLabelValues(kind).Inc()
}

// RecordFrameScanned counts a scanned frame and how many codes it carried
func RecordFrameScanned(codes int) {
	framesScannedTotal.Inc()
	if codes == 0 {
		framesWithoutCodeTotal.Inc()
	}
}

// IncrementPayloadDecoded increments the decoded payload counter
func IncrementPayloadDecoded() {
	payloadsDecodedTotal.Inc()
}

// IncrementPayloadError increments the payload error counter for reason
func IncrementPayloadError(reason string) {
	payloadErrorsTotal.WithLabelValues(reason).Inc()
}

// SetReconciliation records the outcome of a reconciliation
func SetReconciliation(expected, missing, outOfOrder int) {
	expectedFrames.Set(float64(expected))
	missingFrames.Set(float64(missing))
	outOfOrderFrames.Set(float64(outOfOrder))
}

// IncrementAnomaly counts an anomalous frame record
func IncrementAnomaly(kind string) {
	anomaliesTotal.WithLabelValues(kind).Inc()
}

// ObserveRun records how long a command took
func ObserveRun(command, outcome string, d time.Duration) {
	runDuration.WithLabelValues(command, outcome).Observe(d.Seconds())
}

// WriteTextfile writes the default registry to path in the text exposition
// format, for the node_exporter textfile collector. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
