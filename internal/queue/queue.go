// Package queue provides the in-process FIFO buffer between the
// ingestion handlers and the single consumer worker.
package queue

import (
	"context"
	"errors"

	"github.com/logstream/aggregator/pkg/models"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
// The ingestion surface translates it into a retryable rejection
// instead of blocking the caller.
var ErrQueueFull = errors.New("queue is full")

// Queue is a bounded FIFO event buffer. Enqueue never blocks;
// Dequeue suspends the caller until an event arrives or the context
// is cancelled. Ordering is exactly the order of Enqueue calls.
type Queue struct {
	events chan *models.Event
}

// New creates a queue with the given capacity. A non-positive
// capacity falls back to a single slot.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		events: make(chan *models.Event, capacity),
	}
}

// Enqueue adds an event to the tail of the queue without blocking.
// Returns ErrQueueFull when the queue is at capacity; events are
// never silently dropped.
func (q *Queue) Enqueue(event *models.Event) error {
	select {
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue removes and returns the event at the head of the queue,
// blocking while the queue is empty. Returns the context error when
// ctx is cancelled before an event becomes available.
func (q *Queue) Dequeue(ctx context.Context) (*models.Event, error) {
	select {
	case event := <-q.events:
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of events currently buffered.
func (q *Queue) Len() int {
	return len(q.events)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.events)
}
