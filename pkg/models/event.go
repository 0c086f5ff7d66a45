package models

import (
	"fmt"
	"time"
)

// Event represents a single log event submitted for aggregation.
// The pair (Topic, EventID) is the event's identity for deduplication;
// payload and timestamps are carried along but never compared.
type Event struct {
	Topic      string                 `json:"topic" binding:"required"`
	EventID    string                 `json:"event_id" binding:"required"`
	Source     string                 `json:"source"`
	Timestamp  time.Time              `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	ReceivedAt time.Time              `json:"received_at,omitempty"`
}

// DedupKey returns the canonical identity string for the event.
func (e *Event) DedupKey() string {
	return fmt.Sprintf("%s:%s", e.Topic, e.EventID)
}

// EventBatch is the body of a publish request.
type EventBatch struct {
	Events []Event `json:"events"`
}

// StoredEvent is the durable record of a uniquely processed event.
// Rows are append-only; the existence of a row is the only fact the
// system relies on to suppress duplicates across restarts.
type StoredEvent struct {
	Topic       string                 `json:"topic"`
	EventID     string                 `json:"event_id"`
	Source      string                 `json:"source"`
	Timestamp   time.Time              `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// StatsSnapshot is a point-in-time view of the aggregate counters.
// With a healthy store Received == UniqueProcessed + DuplicateDropped;
// StoreFailures accounts for events dropped because the dedup store
// was unreachable.
type StatsSnapshot struct {
	Received         uint64            `json:"received"`
	UniqueProcessed  uint64            `json:"unique_processed"`
	DuplicateDropped uint64            `json:"duplicate_dropped"`
	StoreFailures    uint64            `json:"store_failures"`
	Topics           map[string]uint64 `json:"topics_processed"`
}
