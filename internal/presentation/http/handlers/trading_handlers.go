package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/trading"
	"github.com/stockapp/stockapp-go/internal/presentation/http/middleware"
)

// TradingHandlers proxies trading and wallet operations to the backend
// and attaches the behavioral events the analytics segments are built
// from
type TradingHandlers struct {
	tradingClient          *trading.Client
	eventService           *services.EventService
	personalizationService *services.PersonalizationService
	logger                 *logging.ChanneledLogger
}

// NewTradingHandlers creates trading handlers with injected dependencies
func NewTradingHandlers(tradingClient *trading.Client, eventService *services.EventService, personalizationService *services.PersonalizationService, logger *logging.ChanneledLogger) *TradingHandlers {
	return &TradingHandlers{
		tradingClient:          tradingClient,
		eventService:           eventService,
		personalizationService: personalizationService,
		logger:                 logger,
	}
}

// refreshFlags re-resolves segments after an action that can move the
// user between audiences, off the request path. Refreshed flags reach
// the client over the websocket stream.
func (h *TradingHandlers) refreshFlags(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity.IsAnonymous() {
		return
	}
	req := middleware.SegmentRequestFrom(c)
	go h.personalizationService.RefreshForUser(context.Background(), identity, req)
}

func respondRaw(c *gin.Context, body json.RawMessage, err error) {
	if err != nil {
		respondBackendError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

type orderRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required"`
	Price    float64 `json:"price"`
}

// PostBuy handles POST /api/v1/trading/buy
func (h *TradingHandlers) PostBuy(c *gin.Context) {
	h.order(c, "buy")
}

// PostSell handles POST /api/v1/trading/sell
func (h *TradingHandlers) PostSell(c *gin.Context) {
	h.order(c, "sell")
}

func (h *TradingHandlers) order(c *gin.Context, action string) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and quantity are required"})
		return
	}

	token := middleware.GetToken(c)
	var body json.RawMessage
	var err error
	if action == "buy" {
		body, err = h.tradingClient.Buy(c.Request.Context(), token, req.Symbol, req.Quantity)
	} else {
		body, err = h.tradingClient.Sell(c.Request.Context(), token, req.Symbol, req.Quantity)
	}
	if err != nil {
		respondBackendError(c, err)
		return
	}

	identity := middleware.GetIdentity(c)
	h.eventService.StockTransaction(identity.UserID, action, req.Symbol, req.Quantity, req.Price)
	h.refreshFlags(c)
	c.Data(http.StatusOK, "application/json", body)
}

// GetHoldings handles GET /api/v1/trading/holdings
func (h *TradingHandlers) GetHoldings(c *gin.Context) {
	body, err := h.tradingClient.Holdings(c.Request.Context(), middleware.GetToken(c))
	respondRaw(c, body, err)
}

// GetPortfolio handles GET /api/v1/trading/portfolio
func (h *TradingHandlers) GetPortfolio(c *gin.Context) {
	body, err := h.tradingClient.Portfolio(c.Request.Context(), middleware.GetToken(c))
	respondRaw(c, body, err)
}

// GetWallet handles GET /api/v1/wallet
func (h *TradingHandlers) GetWallet(c *gin.Context) {
	body, err := h.tradingClient.Balance(c.Request.Context(), middleware.GetToken(c))
	respondRaw(c, body, err)
}

type walletRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// PostDeposit handles POST /api/v1/wallet/deposit
func (h *TradingHandlers) PostDeposit(c *gin.Context) {
	h.walletOp(c, "deposit")
}

// PostWithdraw handles POST /api/v1/wallet/withdraw
func (h *TradingHandlers) PostWithdraw(c *gin.Context) {
	h.walletOp(c, "withdraw")
}

func (h *TradingHandlers) walletOp(c *gin.Context, action string) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	token := middleware.GetToken(c)
	var body json.RawMessage
	var err error
	if action == "deposit" {
		body, err = h.tradingClient.Deposit(c.Request.Context(), token, req.Amount)
	} else {
		body, err = h.tradingClient.Withdraw(c.Request.Context(), token, req.Amount)
	}
	if err != nil {
		respondBackendError(c, err)
		return
	}

	identity := middleware.GetIdentity(c)
	h.eventService.WalletTransaction(identity.UserID, action, req.Amount)
	h.refreshFlags(c)
	c.Data(http.StatusOK, "application/json", body)
}

// GetTransactions handles GET /api/v1/wallet/transactions
func (h *TradingHandlers) GetTransactions(c *gin.Context) {
	body, err := h.tradingClient.Transactions(c.Request.Context(), middleware.GetToken(c))
	respondRaw(c, body, err)
}

// GetRecentStocks handles GET /api/v1/user/recent-stocks
func (h *TradingHandlers) GetRecentStocks(c *gin.Context) {
	body, err := h.tradingClient.RecentStocks(c.Request.Context(), middleware.GetToken(c))
	respondRaw(c, body, err)
}

// PostTrackStock handles POST /api/v1/user/recent-stocks/:symbol
func (h *TradingHandlers) PostTrackStock(c *gin.Context) {
	body, err := h.tradingClient.TrackStock(c.Request.Context(), middleware.GetToken(c), c.Param("symbol"))
	respondRaw(c, body, err)
}

// DeleteRecentStocks handles DELETE /api/v1/user/recent-stocks
func (h *TradingHandlers) DeleteRecentStocks(c *gin.Context) {
	body, err := h.tradingClient.ClearRecentStocks(c.Request.Context(), middleware.GetToken(c))
	respondRaw(c, body, err)
}
