// Package metrics exposes Prometheus instrumentation for the
// aggregation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceivedTotal counts dequeue attempts, before the dedup check.
	EventsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_events_received_total",
			Help: "Total number of events dequeued for processing.",
		},
	)

	// EventsUniqueTotal counts first-insert outcomes per topic.
	EventsUniqueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_events_unique_total",
			Help: "Total number of events accepted as unique.",
		},
		[]string{"topic"},
	)

	// EventsDuplicateTotal counts duplicate deliveries dropped.
	EventsDuplicateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_events_duplicate_total",
			Help: "Total number of duplicate events dropped.",
		},
	)

	// StoreFailuresTotal counts events dropped because the dedup store
	// was unavailable.
	StoreFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_store_failures_total",
			Help: "Total number of events dropped on dedup store errors.",
		},
	)

	// QueueDepth tracks the number of events waiting in the queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_queue_depth",
			Help: "Number of events currently buffered in the event queue.",
		},
	)

	// PublishRejectedTotal counts publish submissions rejected because
	// the queue was full.
	PublishRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_publish_rejected_total",
			Help: "Total number of events rejected at ingestion due to a full queue.",
		},
	)
)
