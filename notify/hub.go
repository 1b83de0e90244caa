// Package notify pushes interaction events to the users they target.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/metrics"
	"github.com/patra-app/matchrank/model"
)

// Event is what a subscriber receives
type Event struct {
	Type string    `json:"type"` // "like" | "superlike" | "info"
	From string    `json:"from,omitempty"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

// client is one websocket connection or in-process subscription
type client struct {
	userID string
	send   chan Event
}

// Hub fans events out to every connection a user has open
type Hub struct {
	clientsByUser map[string]map[*client]bool
	mu            sync.RWMutex
	bufferSize    int
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{
		clientsByUser: make(map[string]map[*client]bool),
		bufferSize:    16,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		if _, present := peers[c]; !present {
			return
		}
		delete(peers, c)
		close(c.send)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

// Subscribe returns a channel of events for userID and a cancel function
// that closes it.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	c := &client{userID: userID, send: make(chan Event, h.bufferSize)}
	h.register(c)
	return c.send, func() { h.unregister(c) }
}

// Connected returns how many subscriptions userID has open
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID])
}

// sendToUser delivers evt to every subscription of userID, dropping it for
// subscribers whose buffer is full. Returns the number of deliveries.
func (h *Hub) sendToUser(userID string, evt Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- evt:
			n++
		default:
			logging.Debug().Str("user_id", userID).Msg("dropping event for slow subscriber")
		}
	}
	return n
}

// Notify tells the target about a like or superlike. Dislikes are silent.
func (h *Hub) Notify(_ context.Context, in model.Interaction) error {
	if !in.Action.Positive() {
		return nil
	}
	n := h.sendToUser(in.TargetID, Event{Type: string(in.Action), From: in.ActorID, Ts: in.CreatedAt})
	metrics.NotificationsSent.Add(float64(n))
	return nil
}
