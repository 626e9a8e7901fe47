package services

import (
	"context"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/messaging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/personalize"
)

// PersonalizationService binds segment resolution to edge session
// lifecycle: it resolves the visitor's segments, derives the flag view,
// feeds the flags to the personalization edge as live attributes, and
// exposes the resulting variant aliases. Every path degrades to the
// unpersonalized default rather than erroring.
type PersonalizationService struct {
	segments    *SegmentService
	store       *personalize.SessionStore
	broadcaster *messaging.FlagBroadcaster
	logger      *logging.ChanneledLogger
}

// NewPersonalizationService creates a personalization service with its
// dependencies. The broadcaster may be nil in contexts without live
// connections.
func NewPersonalizationService(segments *SegmentService, store *personalize.SessionStore, broadcaster *messaging.FlagBroadcaster, logger *logging.ChanneledLogger) *PersonalizationService {
	return &PersonalizationService{
		segments:    segments,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// liveAttributes builds the attribute map the edge audiences are
// defined against: the raw segment tags, the visitor's email, and the
// derived flag view.
func liveAttributes(identity session.VisitorIdentity, flags session.Flags) map[string]any {
	attrs := map[string]any{
		"segments":           flags.Segments,
		"isHighValueTrader":  flags.IsHighValueTrader,
		"isActiveTrader":     flags.IsActiveTrader,
		"isNewUser":          flags.IsNewUser,
		"isAtRisk":           flags.IsAtRisk,
		"isWindowShopper":    flags.IsWindowShopper,
		"isReturningVisitor": flags.IsReturningVisitor,
		"isRegistered":       flags.IsRegistered,
		"isMobileUser":       flags.IsMobileUser,
	}
	if identity.Email != "" {
		attrs["email"] = identity.Email
	}
	return attrs
}

// InitForUser resolves segments for the visitor and (re)initializes the
// user's edge session with the derived flags. It returns the flag view
// regardless of whether the edge came up.
func (s *PersonalizationService) InitForUser(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest) session.Flags {
	flags := s.segments.GetFlags(ctx, req)
	if identity.IsAnonymous() {
		return flags
	}

	sess := s.store.ForUser(identity.UserID)
	handle := sess.Init(ctx, personalize.InitConfig{
		Identity:       identity,
		LiveAttributes: liveAttributes(identity, flags),
	})

	var aliases []string
	if handle != nil {
		aliases = handle.VariantAliases()
	}
	if s.broadcaster != nil {
		s.broadcaster.PushFlags(identity.UserID, flags, aliases)
	}
	return flags
}

// RefreshForUser unconditionally tears down the user's edge session
// before re-resolving segments and re-initializing. Used after actions
// that may change segment membership, where the idempotent init path
// would skip the attribute push.
func (s *PersonalizationService) RefreshForUser(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest) session.Flags {
	if !identity.IsAnonymous() {
		s.store.Invalidate(identity.UserID)
	}
	return s.InitForUser(ctx, identity, req)
}

// SegmentsAndVariants resolves the visitor's segments and, for
// authenticated users, initializes the edge session and returns the
// active variant aliases alongside.
func (s *PersonalizationService) SegmentsAndVariants(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest) (session.Flags, []string) {
	flags := s.InitForUser(ctx, identity, req)
	return flags, s.GetVariantAliases(identity.UserID)
}

// GetVariantAliases returns the active variant aliases for a user, or
// the empty slice when the user has no live edge session.
func (s *PersonalizationService) GetVariantAliases(userID string) []string {
	if userID == "" {
		return []string{}
	}
	return s.store.ForUser(userID).GetVariantAliases()
}

// Flags resolves the current flag view without touching the edge
// session.
func (s *PersonalizationService) Flags(ctx context.Context, req SegmentRequest) session.Flags {
	return s.segments.GetFlags(ctx, req)
}

// Conversion reports a conversion event key against the user's live
// experience assignment. Failures are logged, not surfaced: conversion
// tracking never blocks the action that triggered it.
func (s *PersonalizationService) Conversion(ctx context.Context, userID, eventKey string) {
	if userID == "" || eventKey == "" {
		return
	}
	if err := s.store.ForUser(userID).Convert(ctx, eventKey); err != nil {
		s.logger.Personalize().Debug("Conversion event not delivered", "userId", userID, "eventKey", eventKey, "error", err.Error())
	}
}

// Invalidate tears down a user's edge session, typically on logout.
func (s *PersonalizationService) Invalidate(userID string) {
	if userID == "" {
		return
	}
	s.store.Invalidate(userID)
	s.logger.Personalize().Debug("Personalization session invalidated", "userId", userID)
}
