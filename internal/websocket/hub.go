package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// FriendLookup returns the ids of a user's friends.
type FriendLookup func(ctx context.Context, userID string) ([]string, error)

// Hub maintains the set of active clients and routes messages to them
type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool

	// Outbound messages addressed to one user
	broadcast chan *Message

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	mu sync.RWMutex

	// Presence changes are only announced to friends.
	friendsOf FriendLookup

	logger *zap.Logger
}

// Message represents a WebSocket message
type Message struct {
	UserID  string                 `json:"user_id,omitempty"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// SetFriendLookup enables friend presence events.
func (h *Hub) SetFriendLookup(fn FriendLookup) {
	h.friendsOf = fn
}

// IsOnline reports whether the user has at least one open connection.
func (h *Hub) IsOnline(userID string) bool {
	return h.GetClientCount(userID) > 0
}

// Run routes messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			isNew := len(h.clients[client.UserID]) == 0
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			total := len(h.clients[client.UserID])
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("user_id", client.UserID), zap.Int("connections", total))

			if isNew {
				go h.announcePresence(ctx, client.UserID, true)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			wasLast := false
			if clients, ok := h.clients[client.UserID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.UserID)
						wasLast = true
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("user_id", client.UserID))

			if wasLast {
				go h.announcePresence(ctx, client.UserID, false)
			}

		case message := <-h.broadcast:
			if h.deliver(message) {
				go h.announcePresence(ctx, message.UserID, false)
			}
		}
	}
}

// deliver reports whether dropping slow connections left the user offline.
func (h *Hub) deliver(message *Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[message.UserID]
	if !ok {
		return false
	}
	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow consumer; drop the connection.
			close(client.send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, message.UserID)
		h.logger.Debug("last connection dropped", zap.String("user_id", message.UserID))
		return true
	}
	return false
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastToUser sends a notification payload to every connection of userID
func (h *Hub) BroadcastToUser(userID string, payload map[string]interface{}) {
	h.send(&Message{
		UserID:  userID,
		Type:    "notification",
		Payload: payload,
	})
}

func (h *Hub) send(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", zap.String("user_id", message.UserID))
	}
}

// GetClientCount returns the number of connected clients for a user
func (h *Hub) GetClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// GetTotalClientCount returns the total number of connected clients
func (h *Hub) GetTotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}

func (h *Hub) announcePresence(ctx context.Context, userID string, online bool) {
	if h.friendsOf == nil {
		return
	}
	friendIDs, err := h.friendsOf(ctx, userID)
	if err != nil {
		h.logger.Warn("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, friendID := range friendIDs {
		if !h.IsOnline(friendID) {
			continue
		}
		h.send(&Message{
			UserID: friendID,
			Type:   "friend_presence",
			Payload: map[string]interface{}{
				"user_id": userID,
				"online":  online,
			},
		})
	}
}
