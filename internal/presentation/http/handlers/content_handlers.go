package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/cms"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/presentation/http/middleware"
)

// ContentHandlers contains all CMS content HTTP handlers
type ContentHandlers struct {
	contentService *services.ContentService
	eventService   *services.EventService
	logger         *logging.ChanneledLogger
}

// NewContentHandlers creates content handlers with injected dependencies
func NewContentHandlers(contentService *services.ContentService, eventService *services.EventService, logger *logging.ChanneledLogger) *ContentHandlers {
	return &ContentHandlers{
		contentService: contentService,
		eventService:   eventService,
		logger:         logger,
	}
}

// eventUID keys behavioral events to the authenticated user, or to the
// stable anonymous visitor id minted by VisitorMiddleware. Anonymous
// activity has to accrue to one profile or the segments never form.
func eventUID(c *gin.Context) string {
	if identity := middleware.GetIdentity(c); !identity.IsAnonymous() {
		return identity.UserID
	}
	return middleware.GetVisitorUID(c)
}

// GetPage handles GET /api/v1/content/pages/*url - fetches a page with
// resolved references, personalized for the authenticated visitor
func (h *ContentHandlers) GetPage(c *gin.Context) {
	pageURL := c.Param("url")
	if pageURL == "" {
		pageURL = "/"
	}

	identity := middleware.GetIdentity(c)
	page, err := h.contentService.GetPage(c.Request.Context(), identity, middleware.SegmentRequestFrom(c), pageURL)
	if err != nil {
		h.logger.Content().Error("Page fetch failed", "url", pageURL, "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	h.eventService.PageView(eventUID(c), pageURL, page.Title())
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// GetStocks handles GET /api/v1/content/stocks - paginated stock list
// with sector names resolved
func (h *ContentHandlers) GetStocks(c *gin.Context) {
	if symbols := c.Query("symbols"); symbols != "" {
		stocks, err := h.contentService.GetStocksBySymbols(c.Request.Context(), strings.Split(symbols, ","))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stocks": stocks, "count": len(stocks)})
		return
	}

	opts := cms.StockListOptions{
		Sector: c.Query("sector"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		opts.Limit = limit
	}
	if skip, err := strconv.Atoi(c.Query("skip")); err == nil {
		opts.Skip = skip
	}

	list, err := h.contentService.GetAllStocks(c.Request.Context(), opts)
	if err != nil {
		h.logger.Content().Error("Stock list fetch failed", "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetStock handles GET /api/v1/content/stocks/:symbol - personalized
// for visitors with active variants
func (h *ContentHandlers) GetStock(c *gin.Context) {
	symbol := c.Param("symbol")
	identity := middleware.GetIdentity(c)
	stock, err := h.contentService.GetStock(c.Request.Context(), identity, middleware.SegmentRequestFrom(c), symbol)
	if err != nil {
		h.logger.Content().Error("Stock fetch failed", "symbol", symbol, "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}
	if stock == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stock not found"})
		return
	}

	h.eventService.StockView(eventUID(c), symbol)
	c.JSON(http.StatusOK, gin.H{"stock": stock})
}

// GetSectors handles GET /api/v1/content/sectors
func (h *ContentHandlers) GetSectors(c *gin.Context) {
	sectors, err := h.contentService.GetAllSectors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}

// GetSector handles GET /api/v1/content/sectors/:uid
func (h *ContentHandlers) GetSector(c *gin.Context) {
	sector, err := h.contentService.GetSector(c.Request.Context(), c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}
	if sector == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sector not found"})
		return
	}

	h.eventService.SectorInterest(eventUID(c), sector.Title(), "view")
	c.JSON(http.StatusOK, gin.H{"sector": sector})
}

// GetChrome handles GET /api/v1/content/chrome - navbar and footer in
// one round trip, each independently degrading to null
func (h *ContentHandlers) GetChrome(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"navbar": h.contentService.GetNavbar(ctx),
		"footer": h.contentService.GetFooter(ctx),
	})
}

// GetEntry handles GET /api/v1/content/entries/:type/:uid - generic
// personalized entry fetch
func (h *ContentHandlers) GetEntry(c *gin.Context) {
	contentType := c.Param("type")
	uid := c.Param("uid")

	identity := middleware.GetIdentity(c)
	entry, err := h.contentService.GetEntry(c.Request.Context(), identity, middleware.SegmentRequestFrom(c), contentType, uid, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "content unavailable"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}
