// Package worker contains the single consumer loop that drains the
// event queue and applies the idempotency check.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logstream/aggregator/internal/aggregate"
	"github.com/logstream/aggregator/internal/metrics"
	"github.com/logstream/aggregator/internal/persistence"
	"github.com/logstream/aggregator/internal/queue"
	"github.com/logstream/aggregator/pkg/models"
)

// Worker is the sole reader of the event queue and the sole writer of
// the aggregate counters. Every dequeued event resolves synchronously
// to exactly one outcome: unique, duplicate, or store failure. Events
// whose dedup check fails with a storage error are dropped and
// counted; they are not requeued (a down store would otherwise spin
// the loop and break FIFO for the events behind them).
type Worker struct {
	queue  *queue.Queue
	store  persistence.Store
	state  *aggregate.State
	logger *logrus.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

// New creates a worker over the given queue, store, and counters.
func New(q *queue.Queue, store persistence.Store, state *aggregate.State, logger *logrus.Logger) *Worker {
	return &Worker{
		queue:  q,
		store:  store,
		state:  state,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins draining the queue in a background goroutine.
func (w *Worker) Start(ctx context.Context) error {
	if w.isRunning {
		return fmt.Errorf("worker is already running")
	}
	w.isRunning = true

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.Info("Starting consumer worker")
	go w.run(runCtx)

	return nil
}

// Stop cancels the dequeue wait and blocks until the in-flight event,
// if any, has resolved. The dedup store connection is not released
// until the worker has drained mid-processing work.
func (w *Worker) Stop(ctx context.Context) error {
	if !w.isRunning {
		return nil
	}
	w.isRunning = false

	w.logger.Info("Stopping consumer worker")
	w.cancel()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for worker to stop")
	}
}

// run is the processing loop. It suspends on Dequeue while the queue
// is empty and exits when the context is cancelled.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("Consumer worker started, waiting for events")

	for {
		event, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Info("Consumer worker stopped")
			return
		}

		// The in-flight event completes even if shutdown begins while
		// the durable write is awaited.
		w.processEvent(context.Background(), event)
		metrics.QueueDepth.Set(float64(w.queue.Len()))
	}
}

// processEvent applies the idempotency check and updates the counters.
func (w *Worker) processEvent(ctx context.Context, event *models.Event) {
	w.state.MarkReceived()
	metrics.EventsReceivedTotal.Inc()

	log := w.logger.WithFields(logrus.Fields{
		"topic":    event.Topic,
		"event_id": event.EventID,
	})

	unique, err := w.store.TryMark(ctx, event)
	if err != nil {
		w.state.MarkStoreFailure()
		metrics.StoreFailuresTotal.Inc()
		log.WithError(err).Error("Dedup store unavailable, event dropped")
		return
	}

	if !unique {
		w.state.MarkDuplicate()
		metrics.EventsDuplicateTotal.Inc()
		log.Debug("Dropped duplicate event")
		return
	}

	w.state.MarkUnique(event.Topic)
	metrics.EventsUniqueTotal.WithLabelValues(event.Topic).Inc()
	log.Debug("Processed unique event")
}
