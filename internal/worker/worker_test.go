package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logstream/aggregator/internal/aggregate"
	"github.com/logstream/aggregator/internal/queue"
	"github.com/logstream/aggregator/pkg/logger"
	"github.com/logstream/aggregator/pkg/models"
)

// fakeStore is an in-memory Store recording the order of TryMark
// calls. A shared instance across two workers simulates durable
// storage surviving a crash.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]struct{}
	order   []string
	markErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]struct{})}
}

func (f *fakeStore) TryMark(ctx context.Context, event *models.Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return false, f.markErr
	}

	key := event.DedupKey()
	f.order = append(f.order, key)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	f.rows[key] = struct{}{}
	return true, nil
}

func (f *fakeStore) ListEvents(ctx context.Context, topic string) ([]models.StoredEvent, error) {
	return nil, nil
}

func (f *fakeStore) CountEvents(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeStore) LoadStats(ctx context.Context) (*models.StatsSnapshot, error) {
	return nil, nil
}

func (f *fakeStore) SaveStats(ctx context.Context, snapshot *models.StatsSnapshot) error {
	return nil
}

func (f *fakeStore) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[string]struct{})
	f.order = nil
	return nil
}

func (f *fakeStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (f *fakeStore) markOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := make([]string, len(f.order))
	copy(order, f.order)
	return order
}

func makeEvent(topic, id string) *models.Event {
	return &models.Event{
		Topic:     topic,
		EventID:   id,
		Source:    "unit-test",
		Timestamp: time.Now().UTC(),
	}
}

func drained(state *aggregate.State, q *queue.Queue, expected uint64) func() bool {
	return func() bool {
		return state.Snapshot().Received >= expected && q.Len() == 0
	}
}

// TestWorkerDedupScenario submits 5000 events of which 1000 are exact
// duplicates and verifies the exactly-once aggregate view.
func TestWorkerDedupScenario(t *testing.T) {
	const (
		total      = 5000
		uniqueKeys = 4000
	)

	unique := make([]*models.Event, 0, uniqueKeys)
	for i := 0; i < uniqueKeys; i++ {
		unique = append(unique, makeEvent("t1", fmt.Sprintf("e%04d", i)))
	}

	events := make([]*models.Event, 0, total)
	events = append(events, unique...)
	for i := 0; i < total-uniqueKeys; i++ {
		events = append(events, unique[rand.Intn(uniqueKeys)])
	}
	rand.Shuffle(len(events), func(i, j int) {
		events[i], events[j] = events[j], events[i]
	})

	q := queue.New(total)
	store := newFakeStore()
	state := aggregate.New()
	w := New(q, store, state, logger.New("error"))

	for _, event := range events {
		require.NoError(t, q.Enqueue(event))
	}

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.Eventually(t, drained(state, q, total), 10*time.Second, 10*time.Millisecond)

	snapshot := state.Snapshot()
	assert.Equal(t, uint64(total), snapshot.Received)
	assert.Equal(t, uint64(uniqueKeys), snapshot.UniqueProcessed)
	assert.Equal(t, uint64(total-uniqueKeys), snapshot.DuplicateDropped)
	assert.Equal(t, uint64(0), snapshot.StoreFailures)
	assert.Equal(t, uint64(uniqueKeys), snapshot.Topics["t1"])
	assert.Equal(t, snapshot.Received, snapshot.UniqueProcessed+snapshot.DuplicateDropped)

	rows, err := store.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(uniqueKeys), rows)
}

// TestWorkerReplayAfterCrash replays previously seen events through a
// fresh worker and queue (store preserved, in-memory state lost) and
// expects zero additional unique increments.
func TestWorkerReplayAfterCrash(t *testing.T) {
	const count = 100

	store := newFakeStore()

	q1 := queue.New(count)
	state1 := aggregate.New()
	w1 := New(q1, store, state1, logger.New("error"))
	require.NoError(t, w1.Start(context.Background()))

	for i := 0; i < count; i++ {
		require.NoError(t, q1.Enqueue(makeEvent("t1", fmt.Sprintf("e%d", i))))
	}
	require.Eventually(t, drained(state1, q1, count), 5*time.Second, 10*time.Millisecond)
	require.NoError(t, w1.Stop(context.Background()))
	assert.Equal(t, uint64(count), state1.Snapshot().UniqueProcessed)

	// Crash: queue and counters are gone, the store is not.
	q2 := queue.New(count)
	state2 := aggregate.New()
	w2 := New(q2, store, state2, logger.New("error"))
	require.NoError(t, w2.Start(context.Background()))
	defer w2.Stop(context.Background())

	for i := 0; i < count; i++ {
		require.NoError(t, q2.Enqueue(makeEvent("t1", fmt.Sprintf("e%d", i))))
	}
	require.Eventually(t, drained(state2, q2, count), 5*time.Second, 10*time.Millisecond)

	snapshot := state2.Snapshot()
	assert.Equal(t, uint64(0), snapshot.UniqueProcessed)
	assert.Equal(t, uint64(count), snapshot.DuplicateDropped)

	rows, err := store.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(count), rows)
}

// TestWorkerIdleOnEmptyQueue verifies no counter moves while the
// queue stays empty.
func TestWorkerIdleOnEmptyQueue(t *testing.T) {
	q := queue.New(10)
	state := aggregate.New()
	w := New(q, newFakeStore(), state, logger.New("error"))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	time.Sleep(100 * time.Millisecond)

	snapshot := state.Snapshot()
	assert.Equal(t, uint64(0), snapshot.Received)
	assert.Equal(t, uint64(0), snapshot.UniqueProcessed)
	assert.Equal(t, uint64(0), snapshot.DuplicateDropped)
}

// TestWorkerStoreFailurePolicy verifies a store error is counted
// separately and conflated with neither outcome.
func TestWorkerStoreFailurePolicy(t *testing.T) {
	q := queue.New(10)
	store := newFakeStore()
	store.markErr = fmt.Errorf("connection refused")
	state := aggregate.New()
	w := New(q, store, state, logger.New("error"))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, q.Enqueue(makeEvent("t1", "e1")))

	require.Eventually(t, func() bool {
		return state.Snapshot().StoreFailures == 1
	}, 5*time.Second, 10*time.Millisecond)

	snapshot := state.Snapshot()
	assert.Equal(t, uint64(1), snapshot.Received)
	assert.Equal(t, uint64(0), snapshot.UniqueProcessed)
	assert.Equal(t, uint64(0), snapshot.DuplicateDropped)
	assert.Equal(t, snapshot.Received,
		snapshot.UniqueProcessed+snapshot.DuplicateDropped+snapshot.StoreFailures)
}

// TestWorkerFIFOProcessing verifies events hit the dedup store in
// arrival order.
func TestWorkerFIFOProcessing(t *testing.T) {
	const count = 20

	q := queue.New(count)
	store := newFakeStore()
	state := aggregate.New()
	w := New(q, store, state, logger.New("error"))

	expected := make([]string, 0, count)
	for i := 0; i < count; i++ {
		event := makeEvent("t1", fmt.Sprintf("e%02d", i))
		expected = append(expected, event.DedupKey())
		require.NoError(t, q.Enqueue(event))
	}

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.Eventually(t, drained(state, q, count), 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, expected, store.markOrder())
}

// TestWorkerLifecycle covers double-start and stop semantics.
func TestWorkerLifecycle(t *testing.T) {
	q := queue.New(10)
	w := New(q, newFakeStore(), aggregate.New(), logger.New("error"))

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	assert.NoError(t, w.Stop(context.Background()))
	assert.NoError(t, w.Stop(context.Background()))
}
