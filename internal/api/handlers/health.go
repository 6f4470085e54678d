package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-coverage/internal/types"
)

const serviceName = "lineup-coverage-service"

// Pinger is satisfied by the portfolio cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter is satisfied by the websocket hub
type ConnectionCounter interface {
	GetConnectionCount() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cache  Pinger
	hub    ConnectionCounter
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler. cache is nil when caching
// is disabled.
func NewHealthHandler(cache Pinger, hub ConnectionCounter, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		cache:  cache,
		hub:    hub,
		logger: logger,
	}
}

// GetHealth reports service health. An unreachable cache is degraded, not
// unhealthy.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	checks := map[string]string{
		"engine": "healthy",
		"cache":  h.checkCache(c.Request.Context()),
	}
	if h.hub != nil {
		checks["websocket_clients"] = strconv.Itoa(h.hub.GetConnectionCount())
	}

	status := "healthy"
	if checks["cache"] == "unhealthy" {
		status = "degraded"
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusPartialContent
	}

	c.JSON(statusCode, types.HealthStatus{
		Status:    status,
		Service:   serviceName,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}

// GetReady reports whether the service can accept work
func (h *HealthHandler) GetReady(c *gin.Context) {
	cacheStatus := h.checkCache(c.Request.Context())
	ready := cacheStatus != "unhealthy"

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, types.HealthStatus{
		Status:    status,
		Service:   serviceName,
		Timestamp: time.Now(),
		Checks:    map[string]string{"cache": cacheStatus},
	})
}

func (h *HealthHandler) checkCache(ctx context.Context) string {
	if h.cache == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.cache.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Cache health check failed")
		return "unhealthy"
	}
	return "healthy"
}
