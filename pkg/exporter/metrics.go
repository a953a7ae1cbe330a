package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts exporter pipeline outcomes.
type Metrics struct {
	ExportedSpans prometheus.Counter
	DroppedSpans  prometheus.Counter
	ExportRetries prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExportedSpans: factory.NewCounter(prometheus.CounterOpts{
			Name: "opentrail_exported_spans_total",
			Help: "Number of spans successfully delivered to the sink.",
		}),
		DroppedSpans: factory.NewCounter(prometheus.CounterOpts{
			Name: "opentrail_dropped_spans_total",
			Help: "Number of spans dropped due to backpressure or delivery failure.",
		}),
		ExportRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "opentrail_export_retries_total",
			Help: "Number of export attempts retried after a sink failure.",
		}),
	}
}
