package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logstream/aggregator/pkg/models"
)

// TestStateCounters verifies each mark lands on the right counter and
// that the received invariant holds once every event has resolved.
func TestStateCounters(t *testing.T) {
	s := New()

	for i := 0; i < 5; i++ {
		s.MarkReceived()
	}
	s.MarkUnique("user.login")
	s.MarkUnique("user.login")
	s.MarkUnique("user.logout")
	s.MarkDuplicate()
	s.MarkStoreFailure()

	snapshot := s.Snapshot()
	assert.Equal(t, uint64(5), snapshot.Received)
	assert.Equal(t, uint64(3), snapshot.UniqueProcessed)
	assert.Equal(t, uint64(1), snapshot.DuplicateDropped)
	assert.Equal(t, uint64(1), snapshot.StoreFailures)
	assert.Equal(t, uint64(2), snapshot.Topics["user.login"])
	assert.Equal(t, uint64(1), snapshot.Topics["user.logout"])

	assert.Equal(t, snapshot.Received,
		snapshot.UniqueProcessed+snapshot.DuplicateDropped+snapshot.StoreFailures)
}

// TestSnapshotIsCopy verifies mutating a snapshot's topic map does not
// leak back into the state.
func TestSnapshotIsCopy(t *testing.T) {
	s := New()
	s.MarkUnique("t1")

	snapshot := s.Snapshot()
	snapshot.Topics["t1"] = 99

	assert.Equal(t, uint64(1), s.Snapshot().Topics["t1"])
}

// TestRestore verifies counters resume from a persisted snapshot.
func TestRestore(t *testing.T) {
	s := New()
	s.Restore(models.StatsSnapshot{
		Received:         100,
		UniqueProcessed:  80,
		DuplicateDropped: 20,
		Topics:           map[string]uint64{"t1": 80},
	})

	s.MarkReceived()
	s.MarkDuplicate()

	snapshot := s.Snapshot()
	assert.Equal(t, uint64(101), snapshot.Received)
	assert.Equal(t, uint64(80), snapshot.UniqueProcessed)
	assert.Equal(t, uint64(21), snapshot.DuplicateDropped)
	assert.Equal(t, uint64(80), snapshot.Topics["t1"])
}

// TestReset verifies all counters return to zero.
func TestReset(t *testing.T) {
	s := New()
	s.MarkReceived()
	s.MarkUnique("t1")

	s.Reset()

	snapshot := s.Snapshot()
	assert.Equal(t, uint64(0), snapshot.Received)
	assert.Equal(t, uint64(0), snapshot.UniqueProcessed)
	assert.Empty(t, snapshot.Topics)
}
