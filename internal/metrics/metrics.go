// Package metrics holds the Prometheus collectors of an extraction run.
// The tool is a batch job, so the registry is written to a textfile for the
// node-exporter textfile collector instead of being served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ShapesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcrop",
		Subsystem: "extract",
		Name:      "shapes_total",
		Help:      "Total shapes processed by outcome and reason",
	}, []string{"outcome", "reason"})

	LowConfidenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mapcrop",
		Subsystem: "extract",
		Name:      "low_confidence_total",
		Help:      "Total shapes whose coordinate reading fell outside the plausibility window",
	})

	CropDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mapcrop",
		Subsystem: "extract",
		Name:      "crop_duration_seconds",
		Help:      "Time spent cropping and encoding a single region",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
)

// RecordShape counts one finished shape
func RecordShape(outcome, reason string, lowConfidence bool) {
	if reason == "" {
		reason = "none"
	}
	ShapesTotal.WithLabelValues(outcome, reason).Inc()
	if lowConfidence {
		LowConfidenceTotal.Inc()
	}
}

// ObserveCrop records the duration since start
func ObserveCrop(start time.Time) {
	CropDuration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the default registry in the text exposition format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
