package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logstream/aggregator/internal/persistence"
	"github.com/logstream/aggregator/internal/queue"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Healthy   bool                       `json:"healthy"`
	Timestamp time.Time                  `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthChecker performs health checks on the dedup store and the
// event queue.
type HealthChecker struct {
	store  persistence.Store
	queue  *queue.Queue
	logger *logrus.Logger
}

// New creates a new HealthChecker instance
func New(store persistence.Store, q *queue.Queue, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		store:  store,
		queue:  q,
		logger: logger,
	}
}

// Check performs health checks on all components
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Healthy:   true,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]ComponentHealth),
	}

	storeHealth := h.checkStore(ctx)
	status.Checks["dedup_store"] = storeHealth
	if !storeHealth.Healthy {
		status.Healthy = false
	}

	queueHealth := h.checkQueue()
	status.Checks["event_queue"] = queueHealth
	if !queueHealth.Healthy {
		status.Healthy = false
	}

	h.logger.WithFields(logrus.Fields{
		"healthy":       status.Healthy,
		"store_healthy": storeHealth.Healthy,
		"store_latency": storeHealth.Latency,
		"queue_healthy": queueHealth.Healthy,
	}).Debug("Health check completed")

	return status
}

// checkStore verifies the dedup store is reachable.
func (h *HealthChecker) checkStore(ctx context.Context) ComponentHealth {
	start := time.Now()

	storeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := h.store.HealthCheck(storeCtx)
	latency := time.Since(start)

	if err != nil {
		h.logger.WithError(err).Error("Dedup store health check failed")
		return ComponentHealth{
			Healthy: false,
			Latency: latency,
			Error:   err.Error(),
		}
	}

	return ComponentHealth{
		Healthy: true,
		Latency: latency,
	}
}

// checkQueue reports unhealthy when the queue is saturated, since a
// full queue means ingestion is rejecting events.
func (h *HealthChecker) checkQueue() ComponentHealth {
	start := time.Now()

	healthy := h.queue.Len() < h.queue.Cap()
	health := ComponentHealth{
		Healthy: healthy,
		Latency: time.Since(start),
	}
	if !healthy {
		health.Error = "event queue is full"
	}

	return health
}

// IsHealthy returns a simple boolean health status
func (h *HealthChecker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy
}
