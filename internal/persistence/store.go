package persistence

import (
	"context"

	"github.com/logstream/aggregator/pkg/models"
)

// Store defines the interface for the durable deduplication store.
//
// TryMark is the correctness anchor of the whole service: it must be
// atomic with respect to concurrent and sequential callers, and a
// storage failure must surface as an error, never as a duplicate or
// as success.
type Store interface {
	// TryMark attempts to record the event's (topic, event_id) identity.
	// Returns true when this call performed the insert (the event is
	// unique), false when the identity already existed (duplicate).
	// Two calls with the same identity never both return true, even
	// across process restarts.
	TryMark(ctx context.Context, event *models.Event) (bool, error)

	// ListEvents returns the uniquely processed events, optionally
	// filtered by topic. An empty topic returns all events.
	ListEvents(ctx context.Context, topic string) ([]models.StoredEvent, error)

	// CountEvents returns the number of dedup rows in the store.
	CountEvents(ctx context.Context) (int64, error)

	// LoadStats returns the persisted counter snapshot, or nil when
	// none has been saved yet.
	LoadStats(ctx context.Context) (*models.StatsSnapshot, error)

	// SaveStats persists the counter snapshot. Best effort; counters
	// remain correct without it because they derive from TryMark
	// outcomes.
	SaveStats(ctx context.Context, snapshot *models.StatsSnapshot) error

	// Reset deletes all dedup rows and the persisted stats. Exposed
	// only through the administrative reset endpoint.
	Reset(ctx context.Context) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
