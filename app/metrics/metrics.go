// Package metrics holds the Prometheus metrics of the channel registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "rss_rules"

// Extraction outcome labels.
const (
	OutcomeComplete = "complete"
	OutcomeEmpty    = "empty"
	OutcomeDegraded = "degraded"
)

type Metrics struct {
	TasksExecutedTotal  *prometheus.CounterVec
	TaskDurationSeconds *prometheus.HistogramVec
	TaskQueueDepth      prometheus.Gauge

	ExtractionsTotal     *prometheus.CounterVec
	ExtractedItemsTotal  *prometheus.CounterVec
	ChannelFailuresTotal *prometheus.CounterVec

	RegistrationsTotal *prometheus.CounterVec
}

// New creates and registers all metrics. A nil registerer means the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		TasksExecutedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "tasks",
				Name:      "executed_total",
				Help:      "Total number of executed tasks",
			},
			[]string{"type", "status"},
		),
		TaskDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "tasks",
				Name:      "duration_seconds",
				Help:      "Duration of task execution in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"type"},
		),
		TaskQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "tasks",
				Name:      "queue_depth",
				Help:      "Number of tasks waiting in the queue",
			},
		),
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "extractor",
				Name:      "passes_total",
				Help:      "Total number of extraction passes by outcome",
			},
			[]string{"channel", "outcome"},
		),
		ExtractedItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "extractor",
				Name:      "items_total",
				Help:      "Total number of items extracted",
			},
			[]string{"channel"},
		),
		ChannelFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "channels",
				Name:      "failures_total",
				Help:      "Total number of failed channel polls",
			},
			[]string{"channel"},
		),
		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "registry",
				Name:      "registrations_total",
				Help:      "Total number of channel registration attempts by result",
			},
			[]string{"result"},
		),
	}
}

// Outcome classifies an extraction pass.
func Outcome(items, missing int) string {
	switch {
	case items == 0:
		return OutcomeEmpty
	case missing > 0:
		return OutcomeDegraded
	default:
		return OutcomeComplete
	}
}
