package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proveit/models"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one live-feed connection of a user.
type Client struct {
	Conn    *websocket.Conn
	UserID  string
	writeMu sync.Mutex
}

// SafeWriteJSON serializes writes; gorilla connections allow one writer at a time.
func (c *Client) SafeWriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// Message is the JSON frame pushed to live-feed clients.
type Message struct {
	Type      string       `json:"type"`
	AuthorID  string       `json:"authorId,omitempty"`
	Post      *models.Post `json:"post,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Hub tracks connected clients per user and delivers feed events to the
// users in each event's audience.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{}), logger: logger}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("live feed client registered", "userID", c.UserID, "clients", h.countLocked())
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	c.Conn.Close()
}

// Publish implements services.Publisher for a single instance.
func (h *Hub) Publish(ctx context.Context, ev models.FeedEvent) {
	msg := Message{Type: ev.Type, AuthorID: ev.AuthorID, Post: ev.Post, Timestamp: ev.Timestamp}

	var targets []*Client
	h.mu.RLock()
	for _, userID := range ev.Audience {
		for c := range h.clients[userID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.SafeWriteJSON(msg); err != nil {
			h.logger.Warn("live feed write failed", "userID", c.UserID, "error", err)
			go h.Unregister(c)
		}
	}
	h.logger.Debug("feed event delivered", "type", ev.Type, "clients", len(targets))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
