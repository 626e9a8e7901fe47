package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// EventHandlers contains behavioral event HTTP handlers
type EventHandlers struct {
	eventService *services.EventService
	logger       *logging.ChanneledLogger
}

// NewEventHandlers creates event handlers with injected dependencies
func NewEventHandlers(eventService *services.EventService, logger *logging.ChanneledLogger) *EventHandlers {
	return &EventHandlers{
		eventService: eventService,
		logger:       logger,
	}
}

type eventRequest struct {
	Event   string         `json:"event" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// PostEvent handles POST /api/v1/events - queues a behavioral event.
// Always answers 202: event delivery is best effort and never blocks
// or fails the caller.
func (h *EventHandlers) PostEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event name is required"})
		return
	}

	payload := map[string]any{"event": req.Event, "_uid": eventUID(c)}
	for k, v := range req.Payload {
		if k == "event" || k == "_uid" {
			continue
		}
		payload[k] = v
	}
	h.eventService.Enqueue(payload)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// PostBeacon handles POST /api/v1/events/beacon - the page-unload path.
// The raw body is forwarded synchronously; the response is always 204
// because the sender is already gone.
func (h *EventHandlers) PostBeacon(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	h.eventService.SendBeacon(c.Request.Context(), body)
	c.Status(http.StatusNoContent)
}
