package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// fakeAnalytics answers the ping and segment lookup endpoints.
func fakeAnalytics(t *testing.T, segments string, lookups *int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/ping":
			w.WriteHeader(http.StatusOK)
		default:
			if lookups != nil {
				*lookups++
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"segments":` + segments + `}}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func readyAnalyticsClient(t *testing.T, serverURL string) *lytics.Client {
	t.Helper()
	client := lytics.NewClient(serverURL, serverURL, "stock_app", 2*time.Second, logging.NewDiscardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	client.StartHandshake(ctx, 10*time.Millisecond, 10)
	if !client.WaitReady(ctx) {
		t.Fatal("analytics client never became ready")
	}
	return client
}

func TestGetSegments_CookieFastPathSkipsNetwork(t *testing.T) {
	lookups := 0
	server := fakeAnalytics(t, `["window_shoppers"]`, &lookups)
	svc := NewSegmentService(readyAnalyticsClient(t, server.URL), time.Second, logging.NewDiscardLogger())

	cookie := url.QueryEscape(`["high_value_traders","mobile_stock_users"]`)
	segments := svc.GetSegments(context.Background(), SegmentRequest{SegsCookie: cookie, VisitorUID: "v-1"})

	assert.Equal(t, []string{"high_value_traders", "mobile_stock_users"}, segments)
	assert.Zero(t, lookups, "cookie fast path must not query the analytics API")
}

func TestGetSegments_CommaJoinedCookie(t *testing.T) {
	server := fakeAnalytics(t, `[]`, nil)
	svc := NewSegmentService(readyAnalyticsClient(t, server.URL), time.Second, logging.NewDiscardLogger())

	segments := svc.GetSegments(context.Background(), SegmentRequest{SegsCookie: "new_stock_app_users, at_risk_stock_users"})
	assert.Equal(t, []string{"new_stock_app_users", "at_risk_stock_users"}, segments)
}

func TestGetSegments_APILookupWhenNoCookie(t *testing.T) {
	server := fakeAnalytics(t, `["returning_stock_visitors"]`, nil)
	svc := NewSegmentService(readyAnalyticsClient(t, server.URL), time.Second, logging.NewDiscardLogger())

	segments := svc.GetSegments(context.Background(), SegmentRequest{VisitorUID: "v-9"})
	assert.Equal(t, []string{"returning_stock_visitors"}, segments)
}

func TestGetSegments_DegradesToEmptyWhenNeverReady(t *testing.T) {
	// No handshake started: the client never becomes ready.
	client := lytics.NewClient("http://127.0.0.1:0", "http://127.0.0.1:0", "stock_app", time.Second, logging.NewDiscardLogger())
	svc := NewSegmentService(client, 50*time.Millisecond, logging.NewDiscardLogger())

	start := time.Now()
	segments := svc.GetSegments(context.Background(), SegmentRequest{VisitorUID: "v-1"})

	assert.Empty(t, segments)
	assert.NotNil(t, segments, "degraded result is the empty set, not nil")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "degrade must honor the ceiling")
}

func TestGetSegments_DegradesToEmptyOnLookupError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ping" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	svc := NewSegmentService(readyAnalyticsClient(t, server.URL), time.Second, logging.NewDiscardLogger())

	segments := svc.GetSegments(context.Background(), SegmentRequest{VisitorUID: "v-1"})
	assert.Empty(t, segments)
	assert.NotNil(t, segments)
}

func TestGetFlags_DerivesBannerPrecedence(t *testing.T) {
	server := fakeAnalytics(t, `["high_value_traders","new_stock_app_users"]`, nil)
	svc := NewSegmentService(readyAnalyticsClient(t, server.URL), time.Second, logging.NewDiscardLogger())

	flags := svc.GetFlags(context.Background(), SegmentRequest{VisitorUID: "v-1"})
	assert.True(t, flags.IsHighValueTrader)
	assert.True(t, flags.IsNewUser)
	assert.Equal(t, session.BannerHighValueTrader, flags.Banner())
}
