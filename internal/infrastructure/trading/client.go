// Package trading provides the bearer-token client for the trading and
// wallet REST backend. The backend is an external collaborator; bodies
// pass through as raw JSON wherever the product just relays them.
package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// ErrAuthExpired signals a 401 from the backend. This is the one error
// class that produces a visible navigation side effect: the stored
// token is cleared and the client is redirected to the login route.
var ErrAuthExpired = errors.New("authentication expired")

// APIError carries a non-2xx, non-401 backend response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trading api returned %d: %s", e.StatusCode, e.Body)
}

// User is the backend's user record. Some deployments key it as id,
// others as _id; UserID resolves whichever is present.
type User struct {
	ID        string `json:"id,omitempty"`
	AltID     string `json:"_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// UserID returns the user's identifier regardless of which key the
// backend used.
func (u *User) UserID() string {
	if u.ID != "" {
		return u.ID
	}
	return u.AltID
}

// AuthResult is the outcome of login/signup: a bearer token plus the
// authenticated user.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Client talks to the trading/wallet backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.ChanneledLogger
}

// NewClient creates a trading backend client.
func NewClient(baseURL string, timeout time.Duration, logger *logging.ChanneledLogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trading request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read trading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Trading().Warn("Backend rejected token", "path", path)
		return nil, ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Trading().Warn("Backend error", "path", path, "status", resp.StatusCode, "duration", time.Since(start))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Trading().Debug("Backend call", "method", method, "path", path, "duration", time.Since(start))
	return respBody, nil
}

type authEnvelope struct {
	Data struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	} `json:"data"`
}

// Login authenticates a user against the backend.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return decodeAuth(body)
}

// Signup registers a new user.
func (c *Client) Signup(ctx context.Context, name, email, password, phone string) (*AuthResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"phone":    phone,
	})
	if err != nil {
		return nil, err
	}
	return decodeAuth(body)
}

func decodeAuth(body json.RawMessage) (*AuthResult, error) {
	var envelope authEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if envelope.Data.User == nil {
		return nil, fmt.Errorf("auth response carried no user")
	}
	return &AuthResult{Token: envelope.Data.Token, User: envelope.Data.User}, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	var envelope authEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode me response: %w", err)
	}
	if envelope.Data.User == nil {
		return nil, fmt.Errorf("me response carried no user")
	}
	return envelope.Data.User, nil
}

// Buy places a buy order.
func (c *Client) Buy(ctx context.Context, token, symbol string, quantity float64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/trading/buy", token, map[string]any{"symbol": symbol, "quantity": quantity})
}

// Sell places a sell order.
func (c *Client) Sell(ctx context.Context, token, symbol string, quantity float64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/trading/sell", token, map[string]any{"symbol": symbol, "quantity": quantity})
}

// Holdings returns the user's current holdings.
func (c *Client) Holdings(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/trading/holdings", token, nil)
}

// Portfolio returns the user's portfolio summary.
func (c *Client) Portfolio(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/trading/portfolio", token, nil)
}

// Balance returns the wallet balance.
func (c *Client) Balance(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/wallet", token, nil)
}

// Deposit adds funds to the wallet.
func (c *Client) Deposit(ctx context.Context, token string, amount float64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/wallet/deposit", token, map[string]any{"amount": amount})
}

// Withdraw removes funds from the wallet.
func (c *Client) Withdraw(ctx context.Context, token string, amount float64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/wallet/withdraw", token, map[string]any{"amount": amount})
}

// Transactions returns the wallet transaction history.
func (c *Client) Transactions(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/wallet/transactions", token, nil)
}

// RecentStocks returns the user's recently viewed stocks.
func (c *Client) RecentStocks(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/user/recent-stocks", token, nil)
}

// TrackStock records a stock view against the user.
func (c *Client) TrackStock(ctx context.Context, token, symbol string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/user/recent-stocks/"+strings.ToUpper(symbol), token, nil)
}

// ClearRecentStocks clears the user's recently viewed stocks.
func (c *Client) ClearRecentStocks(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, "/api/user/recent-stocks", token, nil)
}
