package broker

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/realtime/internal/logging"
)

// Hub tracks connected users and room membership. One connection per user
// at a time: a new connection for an already-connected user evicts the old
// one with an authoritative close, so the evicted client does not retry.
type Hub struct {
	logger *logging.Logger

	mu       sync.RWMutex
	clients  map[string]*Client
	rooms    map[string]map[string]struct{}
	lastSeen map[string]time.Time
}

// NewHub creates an empty hub
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

// Add registers a client, evicting any previous connection for the user
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	previous := h.clients[client.UserID()]
	h.clients[client.UserID()] = client
	h.lastSeen[client.UserID()] = time.Now()
	h.mu.Unlock()

	if previous != nil {
		h.logger.Info("evicting duplicate session", "user_id", client.UserID())
		previous.Close(websocket.ClosePolicyViolation, "duplicate session")
	}
}

// Remove unregisters a client. It reports false if the user has already
// been replaced by a newer connection, in which case nothing changes.
func (h *Hub) Remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.UserID()]
	if !ok || current != client {
		return false
	}

	delete(h.clients, client.UserID())
	h.lastSeen[client.UserID()] = time.Now()
	for _, members := range h.rooms {
		delete(members, client.UserID())
	}
	return true
}

// Get retrieves a connected user
func (h *Hub) Get(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	return client, ok
}

// Join adds a user to a room
func (h *Hub) Join(roomID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[userID] = struct{}{}
}

// RoomMembers returns the connected clients in a room
func (h *Hub) RoomMembers(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	clients := make([]*Client, 0, len(members))
	for userID := range members {
		if client, ok := h.clients[userID]; ok {
			clients = append(clients, client)
		}
	}
	return clients
}

// Broadcast delivers a message to every connected client
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Send(message)
	}
}

// Touch records activity for a user; driven by heartbeats
func (h *Hub) Touch(userID string) {
	h.mu.Lock()
	h.lastSeen[userID] = time.Now()
	h.mu.Unlock()
}

// LastSeen returns when the user was last active
func (h *Hub) LastSeen(userID string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.lastSeen[userID]
	return t, ok
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
