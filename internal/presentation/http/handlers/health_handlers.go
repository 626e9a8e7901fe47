package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/container"
)

// HealthHandlers exposes liveness and readiness probes
type HealthHandlers struct {
	container *container.Container
}

// NewHealthHandlers creates health handlers
func NewHealthHandlers(c *container.Container) *HealthHandlers {
	return &HealthHandlers{container: c}
}

// GetHealth handles GET /api/v1/health
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	analyticsReady := false
	select {
	case <-h.container.AnalyticsClient.Ready():
		analyticsReady = true
	default:
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"analytics": gin.H{
			"enabled": h.container.AnalyticsClient.Enabled(),
			"ready":   analyticsReady,
		},
		"personalize": gin.H{
			"configured":   h.container.EdgeClient.ProjectUID() != "",
			"liveSessions": h.container.SessionStore.Len(),
		},
		"events": gin.H{
			"queued": h.container.EventService.QueueLen(),
		},
	})
}
