package personalize

import (
	"context"
	"sync"
	"time"

	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// SessionStore keeps one Session per known user, evicting idle entries
// after a TTL. Anonymous visitors never reach the store; they have no
// personalization session at all.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*storeEntry
	edge     *EdgeClient
	logger   *logging.ChanneledLogger
	ttl      time.Duration
}

type storeEntry struct {
	session    *Session
	lastAccess time.Time
}

// NewSessionStore creates an empty per-user session store.
func NewSessionStore(edge *EdgeClient, ttl time.Duration, logger *logging.ChanneledLogger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*storeEntry),
		edge:     edge,
		logger:   logger,
		ttl:      ttl,
	}
}

// ForUser returns the user's session, creating an uninitialized one on
// first access.
func (st *SessionStore) ForUser(userID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry, exists := st.sessions[userID]
	if !exists {
		entry = &storeEntry{session: NewSession(st.edge, st.logger)}
		st.sessions[userID] = entry
		st.logger.Personalize().Debug("Session created", "userId", userID)
	}
	entry.lastAccess = time.Now().UTC()
	return entry.session
}

// Invalidate drops a user's session entirely (logout).
func (st *SessionStore) Invalidate(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if entry, exists := st.sessions[userID]; exists {
		entry.session.Teardown()
		delete(st.sessions, userID)
		st.logger.Personalize().Debug("Session invalidated", "userId", userID)
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StartCleanup evicts idle sessions on a fixed interval until ctx is
// canceled.
func (st *SessionStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.evictExpired()
			}
		}
	}()
}

func (st *SessionStore) evictExpired() {
	cutoff := time.Now().UTC().Add(-st.ttl)
	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for userID, entry := range st.sessions {
		if entry.lastAccess.Before(cutoff) {
			entry.session.Teardown()
			delete(st.sessions, userID)
			evicted++
		}
	}
	if evicted > 0 {
		st.logger.Personalize().Info("Evicted idle sessions", "count", evicted, "remaining", len(st.sessions))
	}
}
