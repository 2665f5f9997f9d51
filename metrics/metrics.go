// Package metrics exposes Prometheus counters for the ingestion pipeline,
// served on the diagnostics HTTP server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsReceived counts raw datagrams pulled off the socket.
	DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qsolog_datagrams_received_total",
		Help: "Raw broadcast datagrams received.",
	})

	// EventsProcessed counts decoded events by outcome.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qsolog_events_processed_total",
		Help: "Decoded events by processing outcome.",
	}, []string{"outcome"})

	// QueueDepth reports the current backlog between receiver and consumer.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qsolog_queue_depth",
		Help: "Payloads waiting in the bounded receive queue.",
	})

	// SeenSetSize reports the dedup guard's current key count.
	SeenSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qsolog_seen_set_size",
		Help: "Idempotency keys currently held by the dedup guard.",
	})
)

// Outcome labels for EventsProcessed.
const (
	OutcomeApplied       = "applied"
	OutcomeReplaced      = "replaced"
	OutcomeDuplicate     = "duplicate"
	OutcomeRejected      = "rejected"
	OutcomeDeleted       = "deleted"
	OutcomeDeleteMiss    = "delete_miss"
	OutcomeInformational = "informational"
	OutcomeUnrecognized  = "unrecognized"
	OutcomePersistError  = "persist_error"
)
