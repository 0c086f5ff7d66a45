// Package aggregate holds the process-wide counters derived from the
// consumer worker's dedup outcomes. The worker is the only writer;
// read surfaces obtain a snapshot and tolerate slightly-stale values.
package aggregate

import (
	"sync"
	"sync/atomic"

	"github.com/logstream/aggregator/pkg/models"
)

// State holds the aggregate counters. Counter reads are lock-free;
// the per-topic map is guarded because snapshots copy it.
type State struct {
	received         atomic.Uint64
	uniqueProcessed  atomic.Uint64
	duplicateDropped atomic.Uint64
	storeFailures    atomic.Uint64

	mu     sync.Mutex
	topics map[string]uint64
}

// New creates an empty aggregate state.
func New() *State {
	return &State{
		topics: make(map[string]uint64),
	}
}

// MarkReceived records a dequeue attempt, before the dedup check.
func (s *State) MarkReceived() {
	s.received.Add(1)
}

// MarkUnique records a first-insert outcome for the given topic.
func (s *State) MarkUnique(topic string) {
	s.uniqueProcessed.Add(1)

	s.mu.Lock()
	s.topics[topic]++
	s.mu.Unlock()
}

// MarkDuplicate records a duplicate-dropped outcome.
func (s *State) MarkDuplicate() {
	s.duplicateDropped.Add(1)
}

// MarkStoreFailure records an event dropped because the dedup store
// was unavailable.
func (s *State) MarkStoreFailure() {
	s.storeFailures.Add(1)
}

// Snapshot returns a consistent-enough copy of the counters for the
// read surfaces.
func (s *State) Snapshot() models.StatsSnapshot {
	s.mu.Lock()
	topics := make(map[string]uint64, len(s.topics))
	for topic, count := range s.topics {
		topics[topic] = count
	}
	s.mu.Unlock()

	return models.StatsSnapshot{
		Received:         s.received.Load(),
		UniqueProcessed:  s.uniqueProcessed.Load(),
		DuplicateDropped: s.duplicateDropped.Load(),
		StoreFailures:    s.storeFailures.Load(),
		Topics:           topics,
	}
}

// Restore replaces the counters with a previously saved snapshot.
// Called once at startup, before the worker starts.
func (s *State) Restore(snapshot models.StatsSnapshot) {
	s.received.Store(snapshot.Received)
	s.uniqueProcessed.Store(snapshot.UniqueProcessed)
	s.duplicateDropped.Store(snapshot.DuplicateDropped)
	s.storeFailures.Store(snapshot.StoreFailures)

	s.mu.Lock()
	s.topics = make(map[string]uint64, len(snapshot.Topics))
	for topic, count := range snapshot.Topics {
		s.topics[topic] = count
	}
	s.mu.Unlock()
}

// Reset zeroes all counters.
func (s *State) Reset() {
	s.Restore(models.StatsSnapshot{})
}
