// Package api provides the HTTP surface: the fire-and-forget publish
// endpoint and the read-side projections over the aggregate state.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/logstream/aggregator/internal/aggregate"
	"github.com/logstream/aggregator/internal/health"
	"github.com/logstream/aggregator/internal/persistence"
	"github.com/logstream/aggregator/internal/queue"
	"github.com/logstream/aggregator/internal/validator"
)

// Server bundles the handler dependencies.
type Server struct {
	queue     *queue.Queue
	store     persistence.Store
	state     *aggregate.State
	validator *validator.Validator
	health    *health.HealthChecker
	logger    *logrus.Logger
	startTime time.Time
}

// NewServer creates the handler set.
func NewServer(q *queue.Queue, store persistence.Store, state *aggregate.State, v *validator.Validator, h *health.HealthChecker, logger *logrus.Logger) *Server {
	return &Server{
		queue:     q,
		store:     store,
		state:     state,
		validator: v,
		health:    h,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.POST("/publish", s.handlePublish)
	router.GET("/stats", s.handleStats)
	router.GET("/events", s.handleEvents)
	router.POST("/reset-stats", s.handleReset)
	router.GET("/reset-stats", s.handleReset)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// requestLogger emits a structured log line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("HTTP request")
	}
}

// handleHealth reports component health.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.Check(c.Request.Context())
	if status.Healthy {
		c.JSON(http.StatusOK, status)
	} else {
		c.JSON(http.StatusServiceUnavailable, status)
	}
}
