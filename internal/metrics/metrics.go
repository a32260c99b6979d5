package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	PushCount         prometheus.Counter
	DuplicateCount    prometheus.Counter
	FilteredCount     prometheus.Counter
	TriggerSuccesses  prometheus.Counter
	TriggerFailures   prometheus.Counter
	ProcessingTime    prometheus.Histogram
	ProcessedMessages prometheus.Gauge
	FailedTriggers    prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PushCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dag_trigger_gateway_push_count",
			Help: "Total number of push notifications received",
		}),
		DuplicateCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dag_trigger_gateway_duplicate_count",
			Help: "Total number of redeliveries absorbed by the dedup ledger",
		}),
		FilteredCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dag_trigger_gateway_filtered_count",
			Help: "Total number of claimed notifications rejected by the attribute filter",
		}),
		TriggerSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dag_trigger_gateway_trigger_successes",
			Help: "Total number of successful DAG run requests",
		}),
		TriggerFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dag_trigger_gateway_trigger_failures",
			Help: "Total number of failed DAG run requests",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dag_trigger_gateway_processing_duration_seconds",
			Help:    "Time spent processing push notifications",
			Buckets: prometheus.DefBuckets,
		}),
		ProcessedMessages: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dag_trigger_gateway_processed_messages",
			Help: "Number of message identifiers recorded in the dedup ledger",
		}),
		FailedTriggers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dag_trigger_gateway_failed_triggers",
			Help: "Number of trigger attempts recorded as failed",
		}),
	}
}
