package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wavestore"

type metrics struct {
	changes  prometheus.Counter
	puddles  prometheus.Counter
	skipped  *prometheus.CounterVec
	duration prometheus.Histogram
}

// newMetrics registers on reg when it is not nil. Each registry can hold one
// set, callers running several ingesters share a registry at their own risk.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		changes: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "changes_total",
			Help:      "Value changes written to puddles.",
		}),
		puddles: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "puddles_flushed_total",
			Help:      "Puddles inserted into the store.",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "changes_skipped_total",
			Help:      "Value changes that are not stored, by kind.",
		}, []string{"kind"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall time of complete ingestions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}
