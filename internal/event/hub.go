// Package event provides an in-memory hub for per-user order events.
package event

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 64
	// AllUsers subscribes to the events of every user.
	AllUsers = "*"
)

// Type identifies the event category.
type Type string

const (
	// TypeTurn is emitted after every processed customer message.
	TypeTurn Type = "turn"
	// TypeOrderConfirmed is emitted when an order is confirmed and its session closed.
	TypeOrderConfirmed Type = "order_confirmed"
	// TypeSessionReset is emitted when a session is reset on request.
	TypeSessionReset Type = "session_reset"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type   Type            `json:"type"`
	UserID string          `json:"usuario_id"`
	At     time.Time       `json:"at"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// New builds an event with data marshaled as JSON.
func New(t Type, userID string, data any) Event {
	ev := Event{Type: t, UserID: userID, At: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Subscriber subscribes to user-scoped events.
type Subscriber interface {
	Subscribe(userID string, buffer int) (string, <-chan Event, func())
}

// Hub is an in-process pub/sub dispatcher keyed by user id.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: map[string]map[string]chan Event{},
	}
}

// Publish delivers event to subscribers of its user and of AllUsers.
// Slow subscribers miss events rather than block the conversation.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{userID, AllUsers} {
		for _, ch := range h.streams[key] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribe registers one subscriber under a user id (or AllUsers).
// It returns a stream ID, read-only event channel, and a cancel function.
func (h *Hub) Subscribe(userID string, buffer int) (string, <-chan Event, func()) {
	userID = strings.TrimSpace(userID)
	if h == nil || userID == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[userID]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[userID] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			streams := h.streams[userID]
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, userID)
			}
		})
	}

	return streamID, ch, cancel
}

// Subscribers reports how many streams are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.streams {
		n += len(s)
	}
	return n
}
