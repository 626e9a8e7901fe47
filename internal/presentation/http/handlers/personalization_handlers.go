package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/messaging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/presentation/http/middleware"
)

// PersonalizationHandlers contains segment, flag, and variant HTTP
// handlers plus the live flag stream
type PersonalizationHandlers struct {
	personalizationService *services.PersonalizationService
	broadcaster            *messaging.FlagBroadcaster
	upgrader               websocket.Upgrader
	logger                 *logging.ChanneledLogger
}

// NewPersonalizationHandlers creates personalization handlers with
// injected dependencies
func NewPersonalizationHandlers(personalizationService *services.PersonalizationService, broadcaster *messaging.FlagBroadcaster, logger *logging.ChanneledLogger) *PersonalizationHandlers {
	return &PersonalizationHandlers{
		personalizationService: personalizationService,
		broadcaster:            broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// GetFlags handles GET /api/v1/personalization/flags - resolves the
// visitor's segment flags and winning banner variant
func (h *PersonalizationHandlers) GetFlags(c *gin.Context) {
	flags := h.personalizationService.Flags(c.Request.Context(), middleware.SegmentRequestFrom(c))
	c.JSON(http.StatusOK, gin.H{
		"flags":  flags,
		"banner": flags.Banner(),
	})
}

// PostRefresh handles POST /api/v1/personalization/refresh -
// re-resolves segments and re-initializes the edge session
func (h *PersonalizationHandlers) PostRefresh(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	flags := h.personalizationService.RefreshForUser(c.Request.Context(), identity, middleware.SegmentRequestFrom(c))
	c.JSON(http.StatusOK, gin.H{
		"flags":          flags,
		"banner":         flags.Banner(),
		"variantAliases": h.personalizationService.GetVariantAliases(identity.UserID),
	})
}

// GetBanner handles GET /api/v1/personalization/banner - just the
// winning banner variant for the campaign slot
func (h *PersonalizationHandlers) GetBanner(c *gin.Context) {
	flags := h.personalizationService.Flags(c.Request.Context(), middleware.SegmentRequestFrom(c))
	c.JSON(http.StatusOK, gin.H{"banner": flags.Banner()})
}

// GetVariants handles GET /api/v1/personalization/variants - resolves
// the visitor's segments and active variant aliases in one round trip,
// initializing the edge session when the visitor is authenticated
func (h *PersonalizationHandlers) GetVariants(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	flags, aliases := h.personalizationService.SegmentsAndVariants(c.Request.Context(), identity, middleware.SegmentRequestFrom(c))
	c.JSON(http.StatusOK, gin.H{
		"segments":           flags.Segments,
		"variantAliases":     aliases,
		"hasPersonalization": len(aliases) > 0,
	})
}

type conversionRequest struct {
	EventKey string `json:"eventKey" binding:"required"`
}

// PostConversion handles POST /api/v1/personalization/convert - reports
// a conversion event against the user's experience assignment
func (h *PersonalizationHandlers) PostConversion(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventKey is required"})
		return
	}

	identity := middleware.GetIdentity(c)
	h.personalizationService.Conversion(c.Request.Context(), identity.UserID, req.EventKey)
	c.JSON(http.StatusAccepted, gin.H{"status": "reported"})
}

// StreamFlags handles GET /api/v1/personalization/stream - upgrades to
// a websocket that receives flag updates for the authenticated user
func (h *PersonalizationHandlers) StreamFlags(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "redirect": "/login"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Stream().Error("Websocket upgrade failed", "userId", identity.UserID, "error", err.Error())
		return
	}

	client := &messaging.FlagClient{
		Conn:   conn,
		UserID: identity.UserID,
		Send:   make(chan []byte, 8),
	}
	h.broadcaster.Register(client)
	go h.broadcaster.WritePump(client)
	go h.broadcaster.ReadPump(client)
}
