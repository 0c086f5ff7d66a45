package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logstream/aggregator/internal/metrics"
	"github.com/logstream/aggregator/internal/queue"
	"github.com/logstream/aggregator/pkg/models"
)

// handlePublish accepts a batch of events and enqueues them without
// waiting for processing. The response acknowledges acceptance only;
// dedup outcomes are visible later through /stats and /events.
func (s *Server) handlePublish(c *gin.Context) {
	var batch models.EventBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for i := range batch.Events {
		if err := s.validator.ValidateEvent(&batch.Events[i]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	accepted := 0
	now := time.Now().UTC()
	for i := range batch.Events {
		event := batch.Events[i]
		event.ReceivedAt = now

		if err := s.queue.Enqueue(&event); errors.Is(err, queue.ErrQueueFull) {
			metrics.PublishRejectedTotal.Inc()
			s.logger.WithField("accepted", accepted).Warn("Queue full, rejecting batch remainder")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":    "queue full, try again later",
				"accepted": accepted,
			})
			return
		}
		accepted++
	}

	metrics.QueueDepth.Set(float64(s.queue.Len()))

	c.JSON(http.StatusAccepted, gin.H{
		"status": "accepted",
		"count":  accepted,
	})
}

// handleStats returns the aggregate counters plus queue and uptime
// gauges. Values may trail processing slightly; the worker is the
// only writer.
func (s *Server) handleStats(c *gin.Context) {
	snapshot := s.state.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"received":          snapshot.Received,
		"unique_processed":  snapshot.UniqueProcessed,
		"duplicate_dropped": snapshot.DuplicateDropped,
		"store_failures":    snapshot.StoreFailures,
		"topics_processed":  snapshot.Topics,
		"queue_size":        s.queue.Len(),
		"uptime_seconds":    time.Since(s.startTime).Round(time.Millisecond).Seconds(),
	})
}

// handleEvents lists the uniquely processed events, optionally
// filtered by topic.
func (s *Server) handleEvents(c *gin.Context) {
	topic := c.Query("topic")

	events, err := s.store.ListEvents(c.Request.Context(), topic)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	if events == nil {
		events = []models.StoredEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// handleReset clears the dedup rows and zeroes the counters.
func (s *Server) handleReset(c *gin.Context) {
	s.logger.Warn("Resetting dedup store and aggregate counters")

	if err := s.store.Reset(c.Request.Context()); err != nil {
		s.logger.WithError(err).Error("Failed to reset dedup store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset store"})
		return
	}

	s.state.Reset()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "operational stats and deduplication keys have been reset",
	})
}
