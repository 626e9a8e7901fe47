package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/cms"
	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/personalize"
	"github.com/stockapp/stockapp-go/internal/infrastructure/trading"
	"github.com/stockapp/stockapp-go/internal/presentation/http/middleware"
	"github.com/stockapp/stockapp-go/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func disabledEventService() *services.EventService {
	logger := logging.NewDiscardLogger()
	client := lytics.NewClient("http://127.0.0.1:0", "http://127.0.0.1:0", "", time.Second, logger)
	return services.NewEventService(client, 4, 1, 10*time.Millisecond, logger)
}

func idlePersonalizationService() *services.PersonalizationService {
	logger := logging.NewDiscardLogger()
	analytics := lytics.NewClient("http://127.0.0.1:0", "http://127.0.0.1:0", "", time.Second, logger)
	segments := services.NewSegmentService(analytics, 10*time.Millisecond, logger)
	edge := personalize.NewEdgeClient("http://127.0.0.1:0", "", time.Second, logger)
	store := personalize.NewSessionStore(edge, time.Hour, logger)
	return services.NewPersonalizationService(segments, store, nil, logger)
}

func authToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(config.JWTSecret))
	require.NoError(t, err)
	return signed
}

func TestPostEvent_AlwaysAccepted(t *testing.T) {
	h := NewEventHandlers(disabledEventService(), logging.NewDiscardLogger())
	r := gin.New()
	r.POST("/events", h.PostEvent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events",
		bytes.NewBufferString(`{"event":"page_view","payload":{"path":"/stocks"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestPostEvent_MissingNameRejected(t *testing.T) {
	h := NewEventHandlers(disabledEventService(), logging.NewDiscardLogger())
	r := gin.New()
	r.POST("/events", h.PostEvent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"payload":{}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostBeacon_AlwaysNoContent(t *testing.T) {
	h := NewEventHandlers(disabledEventService(), logging.NewDiscardLogger())
	r := gin.New()
	r.POST("/beacon", h.PostBeacon)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/beacon", bytes.NewBufferString(`{"event":"session_end"}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func tradingRouter(t *testing.T, backendStatus int, backendBody string) *gin.Engine {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(backendStatus)
		_, _ = w.Write([]byte(backendBody))
	}))
	t.Cleanup(backend.Close)

	logger := logging.NewDiscardLogger()
	client := trading.NewClient(backend.URL, time.Second, logger)
	h := NewTradingHandlers(client, disabledEventService(), idlePersonalizationService(), logger)

	r := gin.New()
	group := r.Group("/", middleware.RequireAuth())
	group.GET("/holdings", h.GetHoldings)
	group.POST("/buy", h.PostBuy)
	return r
}

func TestGetHoldings_ExpiredBackendTokenForcesLogout(t *testing.T) {
	r := tradingRouter(t, http.StatusUnauthorized, `{"message":"jwt expired"}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/holdings", nil)
	req.Header.Set("Authorization", "Bearer "+authToken(t, "u-1"))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
}

func TestGetHoldings_BackendBodyPassesThrough(t *testing.T) {
	r := tradingRouter(t, http.StatusOK, `{"data":{"holdings":[{"symbol":"AAPL","quantity":3}]}}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/holdings", nil)
	req.Header.Set("Authorization", "Bearer "+authToken(t, "u-1"))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"AAPL"`)
}

func TestPostBuy_BackendErrorStatusPreserved(t *testing.T) {
	r := tradingRouter(t, http.StatusUnprocessableEntity, `{"message":"insufficient funds"}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/buy",
		bytes.NewBufferString(`{"symbol":"AAPL","quantity":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken(t, "u-1"))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient funds")
}

func TestPostBuy_ValidationBeforeBackend(t *testing.T) {
	r := tradingRouter(t, http.StatusOK, `{}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/buy", bytes.NewBufferString(`{"symbol":"AAPL"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken(t, "u-1"))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type eventCapture struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (e *eventCapture) add(p map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payloads = append(e.payloads, p)
}

func (e *eventCapture) waitFor(t *testing.T, n int) []map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		got := append([]map[string]any(nil), e.payloads...)
		e.mu.Unlock()
		if len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event never reached the collector")
	return nil
}

// liveEventService delivers to an in-process collector that is ready
// from the first request.
func liveEventService(t *testing.T) (*services.EventService, *eventCapture) {
	t.Helper()
	capture := &eventCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ping" {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if json.Unmarshal(body, &payload) == nil {
			capture.add(payload)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := logging.NewDiscardLogger()
	client := lytics.NewClient(server.URL, server.URL, "stock_app", time.Second, logger)
	client.StartHandshake(ctx, 10*time.Millisecond, 10)
	svc := services.NewEventService(client, 16, 5, 50*time.Millisecond, logger)
	svc.Start(ctx)
	return svc, capture
}

func TestGetPage_AnonymousEventKeysToVisitorCookie(t *testing.T) {
	cmsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[{"uid":"p-1","title":"Home"}]}`))
	}))
	t.Cleanup(cmsServer.Close)

	logger := logging.NewDiscardLogger()
	cmsClient := cms.NewClient(cmsServer.URL, "key", "token", "production", time.Second, logger)
	contentService := services.NewContentService(cmsClient, idlePersonalizationService(), logger)
	eventService, capture := liveEventService(t)

	h := NewContentHandlers(contentService, eventService, logger)
	r := gin.New()
	r.Use(middleware.VisitorMiddleware(), middleware.IdentityMiddleware())
	r.GET("/pages/*url", h.GetPage)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pages/home", nil)
	req.AddCookie(&http.Cookie{Name: lytics.CookieVisitor, Value: "vis-123"})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	got := capture.waitFor(t, 1)
	assert.Equal(t, services.EventPageView, got[0]["event"])
	assert.Equal(t, "vis-123", got[0]["_uid"], "anonymous events key to the visitor id")
}

func TestGetBanner_CookieSegmentsPickWinningVariant(t *testing.T) {
	h := NewPersonalizationHandlers(idlePersonalizationService(), nil, logging.NewDiscardLogger())
	r := gin.New()
	r.GET("/banner", h.GetBanner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/banner", nil)
	req.AddCookie(&http.Cookie{Name: lytics.CookieSegments, Value: "high_value_traders,new_stock_app_users"})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"banner":"high_value_trader"`)
}
