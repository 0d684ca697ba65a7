// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeCreated    = "created"
	OutcomeUpdated    = "updated"
	OutcomeFailed     = "failed"
	OutcomeNotApplied = "not_applied"
)

var (
	// UpsertsTotal tracks hierarchical upserts by entity and outcome
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "store",
			Name:      "upserts_total",
			Help:      "Total number of hierarchical upserts by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	// UpsertDuration tracks how long a full upsert transaction takes
	UpsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "store",
			Name:      "upsert_duration_seconds",
			Help:      "Duration of hierarchical upserts in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity"},
	)

	// DeletedRowsTotal tracks rows removed through operator deletes
	DeletedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "store",
			Name:      "deleted_rows_total",
			Help:      "Total number of composite entities deleted by filter",
		},
		[]string{"entity"},
	)

	// EventsPublishedTotal tracks change notifications handed to sinks
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of change notifications published by sink and status",
		},
		[]string{"sink", "event_type", "status"},
	)
)

// ObserveUpsert records the outcome and duration of one upsert.
func ObserveUpsert(entity string, outcome string, seconds float64) {
	UpsertsTotal.WithLabelValues(entity, outcome).Inc()
	UpsertDuration.WithLabelValues(entity).Observe(seconds)
}
