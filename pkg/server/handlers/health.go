package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	client rightsgraph.RightsGraph
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(client rightsgraph.RightsGraph) *HealthHandler {
	return &HealthHandler{client: client}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "rightsgraph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready - verifies the store answers reads
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	status := "ready"
	code := http.StatusOK

	// A lookup against a key that cannot exist still exercises the store;
	// not-found is the healthy answer.
	_, err := h.client.FindNodeByExternalID(c.Request.Context(), "health", "probe")
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   "rightsgraph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "alive",
		"go_version": GoVersion,
	})
}
