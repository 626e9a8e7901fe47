package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// Event names emitted to the analytics collection stream.
const (
	EventIdentify          = "identify"
	EventClearUser         = "clear_user"
	EventPageView          = "page_view"
	EventClick             = "click"
	EventStockView         = "stock_view"
	EventSectorInterest    = "sector_interest"
	EventStockTransaction  = "stock_transaction"
	EventWalletTransaction = "wallet_transaction"
	EventSearch            = "search_query"
	EventFilter            = "filter_apply"
	EventNavigation        = "navigation_click"
	EventSessionStart      = "session_start"
	EventSessionEnd        = "session_end"
)

// EventService queues behavioral events and delivers them to the
// analytics stream once the collection endpoint is ready. Delivery is
// best effort by contract: a full queue or a permanently unready
// endpoint drops events without surfacing errors to callers.
type EventService struct {
	analytics     *lytics.Client
	queue         chan map[string]any
	maxAttempts   int
	retryInterval time.Duration
	logger        *logging.ChanneledLogger
}

// NewEventService creates an event service. Call Start to launch the
// delivery worker.
func NewEventService(analytics *lytics.Client, queueSize, maxAttempts int, retryInterval time.Duration, logger *logging.ChanneledLogger) *EventService {
	return &EventService{
		analytics:     analytics,
		queue:         make(chan map[string]any, queueSize),
		maxAttempts:   maxAttempts,
		retryInterval: retryInterval,
		logger:        logger,
	}
}

// Start launches the delivery worker. This should be run once at
// startup.
func (s *EventService) Start(ctx context.Context) {
	go s.worker(ctx)
}

// QueueLen reports how many events are waiting for delivery.
func (s *EventService) QueueLen() int {
	return len(s.queue)
}

// Enqueue adds an event to the delivery queue. It never blocks: when
// the queue is full the event is dropped.
func (s *EventService) Enqueue(payload map[string]any) {
	if !s.analytics.Enabled() {
		return
	}
	select {
	case s.queue <- payload:
	default:
		s.logger.Events().Warn("Event queue full, dropping event", "event", payload["event"])
	}
}

func (s *EventService) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.queue:
			s.deliver(ctx, payload)
		}
	}
}

// deliver waits for the endpoint within the bounded retry window and
// sends the event once. Events that outlive the window are dropped, as
// are events the endpoint rejects.
func (s *EventService) deliver(ctx context.Context, payload map[string]any) {
	window, cancel := context.WithTimeout(ctx, time.Duration(s.maxAttempts)*s.retryInterval)
	defer cancel()

	if !s.analytics.WaitReady(window) {
		s.logger.Events().Debug("Analytics never ready, dropping event", "event", payload["event"])
		return
	}
	if err := s.analytics.Send(window, payload); err != nil {
		s.logger.Events().Warn("Event delivery failed", "event", payload["event"], "error", err.Error())
	}
}

func basePayload(event, userID string) map[string]any {
	return map[string]any{
		"event": event,
		"_uid":  userID,
		"ts":    time.Now().UTC().Format(time.RFC3339),
	}
}

// Identify links the anonymous visitor to an authenticated user.
func (s *EventService) Identify(userID, email, name string) {
	payload := basePayload(EventIdentify, userID)
	payload["email"] = email
	payload["name"] = name
	s.Enqueue(payload)
}

// ClearUser detaches the visitor from the previously identified user.
func (s *EventService) ClearUser(userID string) {
	s.Enqueue(basePayload(EventClearUser, userID))
}

// PageView records a route navigation.
func (s *EventService) PageView(uid, path, title string) {
	payload := basePayload(EventPageView, uid)
	payload["path"] = path
	payload["title"] = title
	s.Enqueue(payload)
}

// Click records an interaction with a named element.
func (s *EventService) Click(uid, element string) {
	payload := basePayload(EventClick, uid)
	payload["element"] = element
	s.Enqueue(payload)
}

// StockView records a stock detail view.
func (s *EventService) StockView(uid, symbol string) {
	payload := basePayload(EventStockView, uid)
	payload["symbol"] = symbol
	s.Enqueue(payload)
}

// SectorInterest records an interaction with a sector.
func (s *EventService) SectorInterest(uid, sector, interaction string) {
	payload := basePayload(EventSectorInterest, uid)
	payload["sector"] = sector
	payload["interaction_type"] = interaction
	s.Enqueue(payload)
}

// StockTransaction records a completed buy or sell.
func (s *EventService) StockTransaction(userID, action, symbol string, quantity, price float64) {
	payload := basePayload(EventStockTransaction, userID)
	payload["action"] = action
	payload["symbol"] = symbol
	payload["quantity"] = quantity
	payload["price"] = price
	s.Enqueue(payload)
}

// WalletTransaction records a deposit or withdrawal.
func (s *EventService) WalletTransaction(userID, action string, amount float64) {
	payload := basePayload(EventWalletTransaction, userID)
	payload["action"] = action
	payload["amount"] = amount
	s.Enqueue(payload)
}

// Search records a search query.
func (s *EventService) Search(uid, query string) {
	payload := basePayload(EventSearch, uid)
	payload["query"] = query
	s.Enqueue(payload)
}

// Filter records an applied list filter.
func (s *EventService) Filter(uid, filterType, filterValue string) {
	payload := basePayload(EventFilter, uid)
	payload["filter_type"] = filterType
	payload["filter_value"] = filterValue
	s.Enqueue(payload)
}

// Navigation records a menu navigation click.
func (s *EventService) Navigation(uid, menuItem, url string) {
	payload := basePayload(EventNavigation, uid)
	payload["menu_item"] = menuItem
	payload["url"] = url
	s.Enqueue(payload)
}

// SessionStart marks the beginning of a visit.
func (s *EventService) SessionStart(uid string) {
	s.Enqueue(basePayload(EventSessionStart, uid))
}

// SendBeacon forwards an already-encoded payload straight to the
// collection endpoint, bypassing the queue. This serves the page-unload
// path where the browser cannot wait for queued delivery. When the
// synchronous send fails the decoded payload falls back to the queue,
// so the collector receives the same event either way.
func (s *EventService) SendBeacon(ctx context.Context, body []byte) {
	if !s.analytics.Enabled() {
		return
	}
	if err := s.analytics.SendRaw(ctx, body); err != nil {
		var payload map[string]any
		if uerr := json.Unmarshal(body, &payload); uerr != nil {
			s.logger.Events().Warn("Beacon payload unreadable, dropping", "error", uerr.Error())
			return
		}
		s.logger.Events().Debug("Beacon send failed, queueing fallback", "error", err.Error())
		s.Enqueue(payload)
	}
}
