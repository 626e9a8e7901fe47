// Package cms provides the delivery-API client for CMS content entries,
// including variant-aware fetches for personalized content.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stockapp/stockapp-go/internal/domain/entities/content"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// FetchError carries the status code and response body of a non-2xx
// delivery-API response. Callers decide whether to retry or fall back.
type FetchError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("cms fetch failed: status %d on %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// Client fetches structured content entries from the CMS delivery API.
type Client struct {
	baseURL       string
	apiKey        string
	deliveryToken string
	environment   string
	httpClient    *http.Client
	logger        *logging.ChanneledLogger
}

// NewClient creates a delivery-API client for one stack environment.
func NewClient(baseURL, apiKey, deliveryToken, environment string, timeout time.Duration, logger *logging.ChanneledLogger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		deliveryToken: deliveryToken,
		environment:   environment,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Response is the delivery-API response envelope: single-entry requests
// return {entry}, listing requests return {entries, count}.
type Response struct {
	Entry   content.Entry   `json:"entry"`
	Entries []content.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// Fetch performs a delivery-API request. The deployment environment is
// always injected exactly once; structured filters under the "query"
// key are serialized as a single JSON-encoded parameter; a non-empty
// alias list is joined into the variants parameter.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]any, variantAliases []string) (*Response, error) {
	values := url.Values{}
	for key, value := range params {
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			values.Set(key, v)
		case int:
			values.Set(key, strconv.Itoa(v))
		default:
			if key == "query" {
				encoded, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("failed to encode query filter: %w", err)
				}
				values.Set(key, string(encoded))
			} else {
				values.Set(key, fmt.Sprint(v))
			}
		}
	}

	values.Set("environment", c.environment)

	if len(variantAliases) > 0 {
		values.Set("variants", strings.Join(variantAliases, ","))
	}

	requestURL := c.baseURL + endpoint + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cms request: %w", err)
	}
	req.Header.Set("api_key", c.apiKey)
	req.Header.Set("access_token", c.deliveryToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Content().Warn("CMS API error", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body), Endpoint: endpoint}
	}

	var decoded Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode cms response: %w", err)
	}

	c.logger.Content().Debug("CMS fetch", "endpoint", endpoint, "variants", len(variantAliases), "duration", time.Since(start))
	return &decoded, nil
}

// GetEntry fetches a single entry by content type and uid.
func (c *Client) GetEntry(ctx context.Context, contentType, uid string, params map[string]any, variantAliases []string) (content.Entry, error) {
	resp, err := c.Fetch(ctx, fmt.Sprintf("/content_types/%s/entries/%s", contentType, uid), params, variantAliases)
	if err != nil {
		return nil, err
	}
	return resp.Entry, nil
}

// GetEntries fetches all entries of a content type matching params.
func (c *Client) GetEntries(ctx context.Context, contentType string, params map[string]any, variantAliases []string) ([]content.Entry, error) {
	resp, err := c.Fetch(ctx, fmt.Sprintf("/content_types/%s/entries", contentType), params, variantAliases)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// GetEntryByURL fetches the first entry whose url field matches.
// Returns nil when nothing matches.
func (c *Client) GetEntryByURL(ctx context.Context, contentType, pageURL string, variantAliases []string) (content.Entry, error) {
	entries, err := c.GetEntries(ctx, contentType, map[string]any{
		"query": map[string]any{"url": pageURL},
	}, variantAliases)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// GetPage fetches the page entry matching the url slug and resolves its
// embedded relationships inline: the single hero-section reference and
// the featured-stock list (batch-fetched in one round trip, order of
// the references preserved). Returns nil, nil when no page matches.
func (c *Client) GetPage(ctx context.Context, pageURL string, variantAliases []string) (content.Entry, error) {
	page, err := c.GetEntryByURL(ctx, content.TypePage, pageURL, variantAliases)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	resolved := page.Clone()

	if heroUID := page.FirstReferenceUID(content.FieldHeroSection); heroUID != "" {
		hero, err := c.GetEntry(ctx, content.TypeHeroSection, heroUID, nil, variantAliases)
		if err != nil {
			return nil, err
		}
		resolved[content.FieldHeroSectionData] = hero
	}

	if stockUIDs := page.ReferenceUIDs(content.FieldFeaturedStocks); len(stockUIDs) > 0 {
		stocks, err := c.GetEntries(ctx, content.TypeStock, map[string]any{
			"query": map[string]any{"uid": map[string]any{"$in": stockUIDs}},
		}, variantAliases)
		if err != nil {
			return nil, err
		}
		resolved[content.FieldFeaturedStocksData] = orderByUID(stocks, stockUIDs)
	}

	return resolved, nil
}

// orderByUID re-sorts fetched entries into the order their uids were
// requested; the CMS does not guarantee $in result order.
func orderByUID(entries []content.Entry, uids []string) []content.Entry {
	byUID := make(map[string]content.Entry, len(entries))
	for _, entry := range entries {
		byUID[entry.UID()] = entry
	}
	ordered := make([]content.Entry, 0, len(entries))
	for _, uid := range uids {
		if entry, ok := byUID[uid]; ok {
			ordered = append(ordered, entry)
		}
	}
	return ordered
}

// GetStock fetches a stock by symbol, exact match after uppercasing.
// Returns nil when the symbol is unknown.
func (c *Client) GetStock(ctx context.Context, symbol string) (content.Entry, error) {
	entries, err := c.GetEntries(ctx, content.TypeStock, map[string]any{
		"query": map[string]any{"symbol": strings.ToUpper(symbol)},
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// GetStocksBySymbols batch-fetches stocks by symbol.
func (c *Client) GetStocksBySymbols(ctx context.Context, symbols []string) ([]content.Entry, error) {
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}
	return c.GetEntries(ctx, content.TypeStock, map[string]any{
		"query": map[string]any{"symbol": map[string]any{"$in": upper}},
	}, nil)
}

// StockListOptions controls pagination and filtering of GetAllStocks.
type StockListOptions struct {
	Limit  int
	Skip   int
	Sector string
}

// GetAllStocks returns a paginated stock listing joined with the full
// sector listing, each stock annotated with its resolved sector_name
// ("Unknown" when the referenced sector is missing). The two listings
// are fetched concurrently.
func (c *Client) GetAllStocks(ctx context.Context, opts StockListOptions) (*content.StockList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	params := map[string]any{
		"limit": limit,
		"skip":  opts.Skip,
	}
	if opts.Sector != "" {
		params["query"] = map[string]any{"sector": opts.Sector}
	}

	var (
		wg         sync.WaitGroup
		stocksResp *Response
		sectors    []content.Entry
		stocksErr  error
		sectorsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		stocksResp, stocksErr = c.Fetch(ctx, "/content_types/stock/entries", params, nil)
	}()
	go func() {
		defer wg.Done()
		sectors, sectorsErr = c.GetEntries(ctx, content.TypeSector, nil, nil)
	}()
	wg.Wait()

	if stocksErr != nil {
		return nil, stocksErr
	}
	if sectorsErr != nil {
		return nil, sectorsErr
	}

	sectorTitles := make(map[string]string, len(sectors))
	for _, sector := range sectors {
		sectorTitles[sector.UID()] = sector.Title()
	}

	enriched := make([]content.Entry, 0, len(stocksResp.Entries))
	for _, stock := range stocksResp.Entries {
		annotated := stock.Clone()
		name := content.UnknownSector
		if sectorUID := stock.FirstReferenceUID(content.FieldSector); sectorUID != "" {
			if title, ok := sectorTitles[sectorUID]; ok {
				name = title
			}
		}
		annotated[content.FieldSectorName] = name
		if logo := content.AssetURL(stock["logo"]); logo != "" {
			annotated["logo_url"] = logo
		}
		enriched = append(enriched, annotated)
	}

	count := stocksResp.Count
	if count == 0 {
		count = len(enriched)
	}

	return &content.StockList{Stocks: enriched, Count: count}, nil
}

// GetAllSectors returns every sector entry.
func (c *Client) GetAllSectors(ctx context.Context) ([]content.Entry, error) {
	return c.GetEntries(ctx, content.TypeSector, nil, nil)
}

// GetSector fetches a sector by uid.
func (c *Client) GetSector(ctx context.Context, uid string) (content.Entry, error) {
	return c.GetEntry(ctx, content.TypeSector, uid, nil, nil)
}

// GetNavbar returns the site navbar entry, or nil when none exists.
func (c *Client) GetNavbar(ctx context.Context) (content.Entry, error) {
	return c.firstEntry(ctx, content.TypeNavbar)
}

// GetFooter returns the site footer entry, or nil when none exists.
func (c *Client) GetFooter(ctx context.Context) (content.Entry, error) {
	return c.firstEntry(ctx, content.TypeFooter)
}

// GetHeroSection returns the default hero-section entry used when a
// page carries no hero reference of its own.
func (c *Client) GetHeroSection(ctx context.Context) (content.Entry, error) {
	return c.firstEntry(ctx, content.TypeHeroSection)
}

func (c *Client) firstEntry(ctx context.Context, contentType string) (content.Entry, error) {
	entries, err := c.GetEntries(ctx, contentType, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}
