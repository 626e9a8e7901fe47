// Package lytics provides the behavioral-analytics edge client: event
// collection and visitor segment lookup. The vendor endpoint comes up
// asynchronously, so readiness is an explicit channel and every caller
// is expected to wait with a bound or degrade.
package lytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// Cookie names written by the analytics tag on the product's domain.
const (
	CookieSegments = "ly_segs" // comma-joined segment tags, same-origin fast path
	CookieVisitor  = "seerid"  // anonymous visitor uid
)

// Client talks to the analytics collection and personalization APIs.
// A zero stream key disables the client entirely: it never becomes
// ready and every consumer degrades to its default.
type Client struct {
	apiURL     string
	collectURL string
	stream     string
	httpClient *http.Client
	logger     *logging.ChanneledLogger

	ready     chan struct{}
	readyOnce sync.Once
}

// NewClient creates an analytics client. Call StartHandshake to begin
// the asynchronous readiness probe.
func NewClient(apiURL, collectURL, stream string, timeout time.Duration, logger *logging.ChanneledLogger) *Client {
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		collectURL: strings.TrimRight(collectURL, "/"),
		stream:     stream,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Enabled reports whether a stream key is configured at all.
func (c *Client) Enabled() bool {
	return c.stream != ""
}

// Ready returns a channel closed once the analytics endpoint has
// answered the handshake. It never closes for a disabled client.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// WaitReady blocks until the client is ready or ctx is done, and
// reports which happened.
func (c *Client) WaitReady(ctx context.Context) bool {
	select {
	case <-c.ready:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// StartHandshake probes the analytics API at a fixed interval up to a
// bounded number of attempts, then gives up. Consumers that waited on
// Ready observe their own timeouts; the probe itself never errors out
// of the process.
func (c *Client) StartHandshake(ctx context.Context, interval time.Duration, maxAttempts int) {
	if !c.Enabled() {
		c.logger.Segments().Info("Analytics client disabled: no stream configured")
		return
	}

	go func() {
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if err := c.ping(ctx); err == nil {
				c.logger.Segments().Info("Analytics client ready", "attempts", attempt)
				c.markReady()
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
		c.logger.Segments().Warn("Analytics client never became ready", "attempts", maxAttempts)
	}()
}

func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/api/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analytics ping returned %d", resp.StatusCode)
	}
	return nil
}

// Send posts one event payload to the collection stream.
func (c *Client) Send(ctx context.Context, payload map[string]any) error {
	if !c.Enabled() {
		return fmt.Errorf("analytics client disabled")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	return c.post(ctx, fmt.Sprintf("%s/collect/json/%s", c.collectURL, c.stream), body)
}

// SendRaw forwards an already-encoded payload (the beacon path) to the
// collection stream.
func (c *Client) SendRaw(ctx context.Context, body []byte) error {
	if !c.Enabled() {
		return fmt.Errorf("analytics client disabled")
	}
	return c.post(ctx, fmt.Sprintf("%s/collect/json/%s", c.collectURL, c.stream), body)
}

func (c *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analytics collect returned %d", resp.StatusCode)
	}
	return nil
}

type entityResponse struct {
	Data struct {
		Segments []string `json:"segments"`
	} `json:"data"`
}

// GetSegments queries the personalization API for the visitor's current
// segment membership.
func (c *Client) GetSegments(ctx context.Context, visitorUID string) ([]string, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("analytics client disabled")
	}
	if visitorUID == "" {
		return nil, fmt.Errorf("visitor uid required for segment lookup")
	}

	url := fmt.Sprintf("%s/api/entity/user/_uid/%s?fields=segments", c.apiURL, visitorUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("segment lookup returned %d", resp.StatusCode)
	}

	var decoded entityResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode segment response: %w", err)
	}
	return decoded.Data.Segments, nil
}
