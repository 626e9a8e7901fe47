// Package personalize provides the experimentation edge-SDK client and
// the per-visitor personalization session built on top of it.
package personalize

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

// ErrNotConfigured is returned when no project uid is configured; the
// session treats it like every other init failure and stays down.
var ErrNotConfigured = errors.New("personalize project uid not configured")

// variantAliasPrefix is the CMS-side naming convention for variant
// aliases derived from experience/variant short uids.
const variantAliasPrefix = "cs_personalize"

// Experience is one running experience and the variant this visitor is
// assigned to. A nil ActiveVariantShortUID means the visitor fell
// outside every audience.
type Experience struct {
	ShortUID              string  `json:"shortUid"`
	ActiveVariantShortUID *string `json:"activeVariantShortUid"`
}

// Manifest is the edge API's per-visitor experience assignment.
type Manifest struct {
	Experiences []Experience `json:"experiences"`
}

// VariantAliases derives the ordered content-variant alias list from
// the manifest. Experiences without an active variant contribute
// nothing; an empty list is the valid no-personalization state.
func (m *Manifest) VariantAliases() []string {
	aliases := make([]string, 0, len(m.Experiences))
	for _, exp := range m.Experiences {
		if exp.ActiveVariantShortUID == nil || *exp.ActiveVariantShortUID == "" {
			continue
		}
		aliases = append(aliases, fmt.Sprintf("%s_%s_%s", variantAliasPrefix, exp.ShortUID, *exp.ActiveVariantShortUID))
	}
	return aliases
}

// EdgeClient talks to the personalization edge API.
type EdgeClient struct {
	edgeURL    string
	projectUID string
	httpClient *http.Client
	logger     *logging.ChanneledLogger
}

// NewEdgeClient creates an edge client for one personalization project.
func NewEdgeClient(edgeURL, projectUID string, timeout time.Duration, logger *logging.ChanneledLogger) *EdgeClient {
	return &EdgeClient{
		edgeURL:    strings.TrimRight(edgeURL, "/"),
		projectUID: projectUID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ProjectUID returns the configured project uid, empty when the
// personalization platform is not configured.
func (c *EdgeClient) ProjectUID() string {
	return c.projectUID
}

// PushAttributes sets the visitor's live attributes on the edge before
// the manifest is computed.
func (c *EdgeClient) PushAttributes(ctx context.Context, userID string, attributes map[string]any) error {
	body, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("failed to encode live attributes: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.edgeURL+"/user-attributes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("user-attributes push returned %d", resp.StatusCode)
	}
	return nil
}

// FetchManifest retrieves the visitor's experience assignment.
func (c *EdgeClient) FetchManifest(ctx context.Context, userID string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.edgeURL+"/manifest", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, userID)

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
		return nil, fmt.Errorf("manifest fetch returned %d", resp.StatusCode)
	}

	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// TriggerEvent reports a conversion-style event key to the edge.
func (c *EdgeClient) TriggerEvent(ctx context.Context, userID, eventKey string) error {
	body, err := json.Marshal(map[string]string{"eventKey": eventKey})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.edgeURL+"/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("event trigger returned %d", resp.StatusCode)
	}
	return nil
}

func (c *EdgeClient) setHeaders(req *http.Request, userID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-project-uid", c.projectUID)
	if userID != "" {
		req.Header.Set("x-cs-personalize-user-uid", userID)
	}
}
