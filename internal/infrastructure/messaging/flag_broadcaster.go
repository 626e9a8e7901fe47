// Package messaging pushes personalization state to connected browsers
// over websockets so a tab can react when the visitor's segments change
// mid-session.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

// FlagClient represents a single connected browser tab for one user.
type FlagClient struct {
	Conn   *websocket.Conn
	UserID string
	Send   chan []byte
}

// FlagPayload is the message pushed to the frontend whenever segment
// flags are recomputed for a user.
type FlagPayload struct {
	Type    string         `json:"type"`
	UserID  string         `json:"userId"`
	Flags   session.Flags  `json:"flags"`
	Banner  string         `json:"banner"`
	At      time.Time      `json:"at"`
	Aliases []string       `json:"variantAliases,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// FlagBroadcaster manages connected clients keyed by user and fans out
// flag updates to every tab that user has open.
type FlagBroadcaster struct {
	userClients map[string]map[*FlagClient]bool
	register    chan *FlagClient
	unregister  chan *FlagClient
	logger      *logging.ChanneledLogger
	mu          sync.RWMutex
}

// NewFlagBroadcaster creates a new broadcaster instance.
func NewFlagBroadcaster(logger *logging.ChanneledLogger) *FlagBroadcaster {
	return &FlagBroadcaster{
		userClients: make(map[string]map[*FlagClient]bool),
		register:    make(chan *FlagClient),
		unregister:  make(chan *FlagClient),
		logger:      logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *FlagBroadcaster) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.userClients[client.UserID]; !ok {
				b.userClients[client.UserID] = make(map[*FlagClient]bool)
			}
			b.userClients[client.UserID][client] = true
			b.mu.Unlock()
			b.logger.Stream().Debug("Flag client registered", "userId", client.UserID)

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.userClients[client.UserID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.userClients, client.UserID)
					}
				}
			}
			b.mu.Unlock()
			b.logger.Stream().Debug("Flag client unregistered", "userId", client.UserID)
		}
	}
}

// Register queues a client for registration.
func (b *FlagBroadcaster) Register(client *FlagClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *FlagBroadcaster) Unregister(client *FlagClient) {
	b.unregister <- client
}

// ClientCount returns the number of open connections for a user.
func (b *FlagBroadcaster) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.userClients[userID])
}

// PushFlags sends the freshly computed flags to every connected tab of
// the given user. Slow clients are skipped rather than blocked on.
func (b *FlagBroadcaster) PushFlags(userID string, flags session.Flags, aliases []string) {
	payload := FlagPayload{
		Type:    "personalization_flags",
		UserID:  userID,
		Flags:   flags,
		Banner:  string(flags.Banner()),
		At:      time.Now().UTC(),
		Aliases: aliases,
	}
	message, err := json.Marshal(payload)
	if err != nil {
		b.logger.Stream().Error("Failed to marshal flag payload", "userId", userID, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	clients, ok := b.userClients[userID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.Send <- message:
		default:
		}
	}
}

// WritePump drains a client's send channel onto its websocket
// connection. This should be run as a goroutine per connection.
func (b *FlagBroadcaster) WritePump(client *FlagClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump discards inbound frames and unregisters the client when the
// connection drops. This should be run as a goroutine per connection.
func (b *FlagBroadcaster) ReadPump(client *FlagClient) {
	defer func() {
		b.Unregister(client)
		client.Conn.Close()
	}()
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
