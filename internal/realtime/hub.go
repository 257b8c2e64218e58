package realtime

import (
	"encoding/json"
	"sync"
)

const (
	EventAppointment = "appointment"
	EventMessage     = "message"
)

// Event is one store change pushed to connected clients. Data carries the
// full updated document, so clients replace state instead of patching it.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one websocket subscriber. Staff clients see every event; user
// clients only see events scoped to their own account.
type Client struct {
	UserID string
	Staff  bool
	send   chan []byte
}

func (c *Client) Send() <-chan []byte {
	return c.send
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(userID string, staff bool) *Client {
	client := &Client{
		UserID: userID,
		Staff:  staff,
		send:   make(chan []byte, 32),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

// Unregister drops the client and closes its send channel. Safe to call more
// than once; only the first call closes.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers the event to staff clients and to the user it concerns.
// A client with a full buffer is skipped rather than blocking the watcher; a
// slow consumer misses an update, everyone else stays live.
func (h *Hub) Broadcast(event Event, userID string) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.Staff && client.UserID != userID {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}
