package hub

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"micro-twitter/domain/tweet"
	"micro-twitter/monitoring"
)

// NewPostEvent is the server->client push payload for a created tweet.
type NewPostEvent struct {
	Type string       `json:"type"`
	Post *tweet.Tweet `json:"post"`
}

// Hub owns the set of live push connections. The set is the only in-process
// shared mutable state in the service and is never exposed; register,
// unregister and broadcast are the whole surface.
//
// Delivery is fire and forget: FIFO per connection (one outbound channel, one
// writer), no ordering across connections, no acknowledgment. A connection
// that fails or cannot keep up is dropped without affecting the rest.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func New() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	monitoring.LiveConnections.Inc()
	logrus.WithField("connection", c.Id).Info("websocket connection registered")
}

// Unregister removes the client and closes its outbound channel. Idempotent:
// called from the read pump, the write pump and the broadcast path, in any
// order.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	monitoring.LiveConnections.Dec()
	logrus.WithField("connection", c.Id).Info("websocket connection unregistered")
}

// Count returns the number of currently registered connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastNewPost delivers a NEW_POST event to every registered connection.
func (h *Hub) BroadcastNewPost(t *tweet.Tweet) {
	raw, err := json.Marshal(NewPostEvent{Type: "NEW_POST", Post: t})
	if err != nil {
		logrus.WithError(err).Error("failed to encode push event")
		return
	}
	h.broadcast(raw, nil)
	monitoring.BroadcastsSent.Inc()
}

// Relay forwards an opaque inbound message verbatim to every connection except
// the origin. No envelope, no validation.
func (h *Hub) Relay(origin *Client, msg []byte) {
	h.broadcast(msg, origin)
}

func (h *Hub) broadcast(raw []byte, except *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c == except {
			continue
		}
		select {
		case c.send <- raw:
		default:
			// Slow consumer: dropping it beats blocking everyone else.
			logrus.WithField("connection", c.Id).Warn("dropping slow websocket consumer")
			h.unregisterLocked(c)
			_ = c.conn.Close()
		}
	}
}
