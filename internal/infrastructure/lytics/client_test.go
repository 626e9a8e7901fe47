package lytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

func TestStartHandshake_BecomesReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, "stream", time.Second, logging.NewDiscardLogger())
	client.StartHandshake(context.Background(), 10*time.Millisecond, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, client.WaitReady(ctx))
}

func TestStartHandshake_RetriesUntilEndpointAppears(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, "stream", time.Second, logging.NewDiscardLogger())
	client.StartHandshake(context.Background(), 5*time.Millisecond, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.True(t, client.WaitReady(ctx))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestWaitReady_DisabledClientTimesOut(t *testing.T) {
	client := NewClient("http://localhost:0", "http://localhost:0", "", time.Second, logging.NewDiscardLogger())
	client.StartHandshake(context.Background(), time.Millisecond, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, client.WaitReady(ctx))
}

func TestWaitReady_BoundedWhenNeverReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, "stream", time.Second, logging.NewDiscardLogger())
	client.StartHandshake(context.Background(), time.Millisecond, 2)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, client.WaitReady(ctx))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSend_PostsToStream(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, "stockapp_web", time.Second, logging.NewDiscardLogger())
	err := client.Send(context.Background(), map[string]any{"_e": "stock_view", "stock_symbol": "TCS"})
	require.NoError(t, err)

	assert.Equal(t, "/collect/json/stockapp_web", gotPath)
	assert.Equal(t, "stock_view", gotPayload["_e"])
}

func TestGetSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/entity/user/_uid/abc123", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"segments": []string{"high_value_traders", "window_shoppers"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, "stream", time.Second, logging.NewDiscardLogger())
	segments, err := client.GetSegments(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"high_value_traders", "window_shoppers"}, segments)
}

func TestGetSegments_ErrorPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, "stream", time.Second, logging.NewDiscardLogger())

	_, err := client.GetSegments(context.Background(), "abc123")
	assert.Error(t, err)

	_, err = client.GetSegments(context.Background(), "")
	assert.Error(t, err)
}
