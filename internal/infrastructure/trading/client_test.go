package trading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

type recordedCall struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newFakeBackend(t *testing.T, status int, response string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		calls = append(calls, call)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, 2*time.Second, logging.NewDiscardLogger())
}

func TestLoginDecodesTokenAndUser(t *testing.T) {
	server, calls := newFakeBackend(t, http.StatusOK,
		`{"data":{"token":"tok-1","user":{"_id":"u-42","name":"Dana","email":"dana@example.com"}}}`)

	result, err := newTestClient(server.URL).Login(context.Background(), "dana@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", result.Token)
	assert.Equal(t, "u-42", result.User.UserID())
	assert.Equal(t, "Dana", result.User.Name)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/api/auth/login", call.path)
	assert.Equal(t, "dana@example.com", call.body["email"])
	assert.Empty(t, call.auth, "login must not carry a bearer token")
}

func TestUserIDPrefersPlainID(t *testing.T) {
	u := &User{ID: "plain", AltID: "mongo"}
	assert.Equal(t, "plain", u.UserID())

	u = &User{AltID: "mongo"}
	assert.Equal(t, "mongo", u.UserID())
}

func TestUnauthorizedMapsToErrAuthExpired(t *testing.T) {
	server, _ := newFakeBackend(t, http.StatusUnauthorized, `{"message":"jwt expired"}`)

	_, err := newTestClient(server.URL).Holdings(context.Background(), "stale-token")
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestBackendErrorCarriesStatusAndBody(t *testing.T) {
	server, _ := newFakeBackend(t, http.StatusUnprocessableEntity, `{"message":"insufficient funds"}`)

	_, err := newTestClient(server.URL).Buy(context.Background(), "tok", "AAPL", 5)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "insufficient funds")
}

func TestAuthenticatedCallsCarryBearerToken(t *testing.T) {
	server, calls := newFakeBackend(t, http.StatusOK, `{"data":{}}`)
	client := newTestClient(server.URL)

	_, err := client.Deposit(context.Background(), "tok-9", 250)
	require.NoError(t, err)
	_, err = client.Portfolio(context.Background(), "tok-9")
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	for _, call := range *calls {
		assert.Equal(t, "Bearer tok-9", call.auth)
	}
	assert.Equal(t, "/api/wallet/deposit", (*calls)[0].path)
	assert.EqualValues(t, 250, (*calls)[0].body["amount"])
	assert.Equal(t, "/api/trading/portfolio", (*calls)[1].path)
}

func TestTrackStockUppercasesSymbolInPath(t *testing.T) {
	server, calls := newFakeBackend(t, http.StatusOK, `{"data":{}}`)

	_, err := newTestClient(server.URL).TrackStock(context.Background(), "tok", "tsla")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Equal(t, "/api/user/recent-stocks/TSLA", (*calls)[0].path)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
}

func TestClearRecentStocksUsesDelete(t *testing.T) {
	server, calls := newFakeBackend(t, http.StatusOK, `{"data":{}}`)

	_, err := newTestClient(server.URL).ClearRecentStocks(context.Background(), "tok")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.Equal(t, "/api/user/recent-stocks", (*calls)[0].path)
}

func TestMeWithoutUserIsAnError(t *testing.T) {
	server, _ := newFakeBackend(t, http.StatusOK, `{"data":{}}`)

	_, err := newTestClient(server.URL).Me(context.Background(), "tok")
	assert.Error(t, err)
}
