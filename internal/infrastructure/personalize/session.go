package personalize

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// InitConfig is the request shape of a session initialization.
type InitConfig struct {
	Identity       session.VisitorIdentity
	LiveAttributes map[string]any
}

// Handle is an initialized session's view of the edge manifest.
type Handle struct {
	Experiences []Experience
	aliases     []string
}

// VariantAliases returns a copy of the alias list for this handle.
func (h *Handle) VariantAliases() []string {
	out := make([]string, len(h.aliases))
	copy(out, h.aliases)
	return out
}

// Session owns the lifecycle of one visitor's personalization state.
// Identity changes always tear down and reinitialize; concurrent inits
// are serialized by a generation counter so a reader observes either a
// fully consistent state or none.
type Session struct {
	mu          sync.Mutex
	edge        *EdgeClient
	logger      *logging.ChanneledLogger
	initialized bool
	handle      *Handle
	identity    session.VisitorIdentity
	shape       string
	generation  uint64
}

// NewSession creates an uninitialized session.
func NewSession(edge *EdgeClient, logger *logging.ChanneledLogger) *Session {
	return &Session{edge: edge, logger: logger}
}

// shapeOf fingerprints an init request so an identical repeat can be
// answered idempotently. JSON object keys marshal sorted, so the
// fingerprint is stable across equal maps.
func shapeOf(cfg InitConfig) string {
	encoded, err := json.Marshal(struct {
		UserID         string         `json:"userId"`
		Email          string         `json:"email"`
		LiveAttributes map[string]any `json:"liveAttributes"`
	}{cfg.Identity.UserID, cfg.Identity.Email, cfg.LiveAttributes})
	if err != nil {
		return ""
	}
	return string(encoded)
}

// Init initializes the session for the given identity and attributes.
// Identical repeat requests return the existing handle without touching
// the edge. A different identity tears the session down first. Every
// failure path logs and returns nil; callers continue unpersonalized.
func (s *Session) Init(ctx context.Context, cfg InitConfig) *Handle {
	if s.edge == nil || s.edge.ProjectUID() == "" {
		s.logger.Personalize().Error("Session init skipped", "error", ErrNotConfigured.Error())
		return nil
	}

	requestShape := shapeOf(cfg)

	s.mu.Lock()
	if s.initialized && s.handle != nil {
		if requestShape == s.shape {
			handle := s.handle
			s.mu.Unlock()
			return handle
		}
		// New identity or attributes: mark torn down before the edge
		// round trip so no reader sees a half-applied state.
		s.logger.Personalize().Info("Reinitializing session", "previousUser", s.identity.UserID, "nextUser", cfg.Identity.UserID)
		s.initialized = false
		s.handle = nil
	}
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	if len(cfg.LiveAttributes) > 0 {
		if err := s.edge.PushAttributes(ctx, cfg.Identity.UserID, cfg.LiveAttributes); err != nil {
			s.logger.Personalize().Error("Failed to push live attributes", "userId", cfg.Identity.UserID, "error", err.Error())
			return nil
		}
	}

	manifest, err := s.edge.FetchManifest(ctx, cfg.Identity.UserID)
	if err != nil {
		s.logger.Personalize().Error("Failed to initialize session", "userId", cfg.Identity.UserID, "error", err.Error())
		return nil
	}

	handle := &Handle{
		Experiences: manifest.Experiences,
		aliases:     manifest.VariantAliases(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// A newer init superseded this one while the edge call was in
		// flight; its result must not overwrite the fresher state.
		s.logger.Personalize().Debug("Discarding stale session init", "userId", cfg.Identity.UserID)
		return nil
	}

	s.initialized = true
	s.handle = handle
	s.identity = cfg.Identity
	s.shape = requestShape

	s.logger.Personalize().Info("Session initialized", "userId", cfg.Identity.UserID, "experiences", len(handle.Experiences), "variantAliases", len(handle.aliases))
	return handle
}

// Teardown unconditionally drops the session state.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.initialized = false
	s.handle = nil
	s.shape = ""
	s.identity = session.VisitorIdentity{}
}

// Initialized reports whether the session currently holds a handle.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Identity returns the identity the session was initialized for.
func (s *Session) Identity() session.VisitorIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// GetVariantAliases returns the variant aliases currently applicable to
// the visitor. The empty list is the valid no-personalization state and
// is returned whenever the session is uninitialized.
func (s *Session) GetVariantAliases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.handle == nil {
		return []string{}
	}
	return s.handle.VariantAliases()
}

// Experiences returns the current experience assignment, empty when
// uninitialized.
func (s *Session) Experiences() []Experience {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.handle == nil {
		return []Experience{}
	}
	out := make([]Experience, len(s.handle.Experiences))
	copy(out, s.handle.Experiences)
	return out
}

// Convert reports a conversion event key to the edge. It is a no-op
// error for sessions that never came up: conversions only make sense
// against a live experience assignment.
func (s *Session) Convert(ctx context.Context, eventKey string) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotConfigured
	}
	userID := s.identity.UserID
	s.mu.Unlock()

	return s.edge.TriggerEvent(ctx, userID, eventKey)
}
