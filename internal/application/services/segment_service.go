// Package services provides personalization, segment, event, auth, and
// content orchestration on top of the infrastructure clients.
package services

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/resilience"
)

// SegmentRequest carries the per-request inputs for a segment lookup:
// the analytics cookies as received from the browser.
type SegmentRequest struct {
	SegsCookie string // raw ly_segs cookie value, "" when absent
	VisitorUID string // seerid cookie value, "" when absent
}

// SegmentService resolves a visitor's segment membership. The cookie
// fast path answers without any network call; otherwise the analytics
// API is queried under a hard time ceiling. Every failure mode degrades
// to the empty segment set, never an error surfaced to the caller.
type SegmentService struct {
	analytics *lytics.Client
	timeout   time.Duration
	logger    *logging.ChanneledLogger
}

// NewSegmentService creates a segment service with its dependencies.
func NewSegmentService(analytics *lytics.Client, timeout time.Duration, logger *logging.ChanneledLogger) *SegmentService {
	return &SegmentService{
		analytics: analytics,
		timeout:   timeout,
		logger:    logger,
	}
}

// GetSegments returns the visitor's segment tags. The contract is
// total: the slice is empty on every failure path, never nil with an
// error.
func (s *SegmentService) GetSegments(ctx context.Context, req SegmentRequest) []string {
	if req.SegsCookie != "" {
		segments := parseSegmentsCookie(req.SegsCookie)
		s.logger.Segments().Debug("Segments from cookie fast path", "count", len(segments))
		return segments
	}

	return resilience.Degrade(s.logger.Segments(), "segment lookup", []string{}, func() ([]string, error) {
		deadline, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if !s.analytics.WaitReady(deadline) {
			s.logger.Segments().Debug("Analytics not ready within ceiling, degrading to empty segments")
			return []string{}, nil
		}

		segments, err := s.analytics.GetSegments(deadline, req.VisitorUID)
		if err != nil {
			return nil, err
		}
		if segments == nil {
			segments = []string{}
		}
		return segments, nil
	})
}

// GetFlags resolves segments and derives the boolean flag view in one
// call.
func (s *SegmentService) GetFlags(ctx context.Context, req SegmentRequest) session.Flags {
	return session.FlagsFromSegments(s.GetSegments(ctx, req))
}

// parseSegmentsCookie decodes the analytics tag's segment cookie. The
// tag writes a URL-encoded JSON array; older tags wrote a bare
// comma-joined list. Both shapes are accepted.
func parseSegmentsCookie(raw string) []string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return []string{}
	}

	if strings.HasPrefix(decoded, "[") {
		var segments []string
		if err := json.Unmarshal([]byte(decoded), &segments); err == nil {
			return segments
		}
	}

	parts := strings.Split(decoded, ",")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
