package services

import (
	"context"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/trading"
)

// AuthService proxies authentication to the trading backend and keeps
// the personalization side effects attached: a successful login or
// signup identifies the visitor and spins up their edge session, and a
// logout clears both.
type AuthService struct {
	trading         *trading.Client
	events          *EventService
	personalization *PersonalizationService
	logger          *logging.ChanneledLogger
}

// NewAuthService creates an auth service with its dependencies.
func NewAuthService(client *trading.Client, events *EventService, personalization *PersonalizationService, logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{
		trading:         client,
		events:          events,
		personalization: personalization,
		logger:          logger,
	}
}

func (s *AuthService) afterAuth(ctx context.Context, user *trading.User, req SegmentRequest) session.Flags {
	identity := session.VisitorIdentity{UserID: user.UserID(), Email: user.Email}
	s.events.Identify(identity.UserID, user.Email, user.Name)
	return s.personalization.InitForUser(ctx, identity, req)
}

// Login authenticates against the backend and initializes the user's
// personalization session. The returned flags reflect the visitor's
// segments at login time.
func (s *AuthService) Login(ctx context.Context, email, password string, req SegmentRequest) (*trading.AuthResult, session.Flags, error) {
	result, err := s.trading.Login(ctx, email, password)
	if err != nil {
		return nil, session.Flags{}, err
	}
	s.logger.Auth().Info("User logged in", "userId", result.User.UserID())
	flags := s.afterAuth(ctx, result.User, req)
	return result, flags, nil
}

// Signup registers a user and initializes their personalization
// session.
func (s *AuthService) Signup(ctx context.Context, name, email, password, phone string, req SegmentRequest) (*trading.AuthResult, session.Flags, error) {
	result, err := s.trading.Signup(ctx, name, email, password, phone)
	if err != nil {
		return nil, session.Flags{}, err
	}
	s.logger.Auth().Info("User signed up", "userId", result.User.UserID())
	flags := s.afterAuth(ctx, result.User, req)
	return result, flags, nil
}

// Restore validates a stored token on page load and re-attaches the
// personalization session. A rejected token surfaces
// trading.ErrAuthExpired so the handler can force a logout.
func (s *AuthService) Restore(ctx context.Context, token string, req SegmentRequest) (*trading.User, session.Flags, error) {
	user, err := s.trading.Me(ctx, token)
	if err != nil {
		return nil, session.Flags{}, err
	}
	flags := s.afterAuth(ctx, user, req)
	return user, flags, nil
}

// Logout tears down the user's personalization session and detaches
// the analytics identity. Token disposal is the client's job; the
// backend keeps no session state.
func (s *AuthService) Logout(userID string) {
	if userID == "" {
		return
	}
	s.events.ClearUser(userID)
	s.personalization.Invalidate(userID)
	s.logger.Auth().Info("User logged out", "userId", userID)
}
