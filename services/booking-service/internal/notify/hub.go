// Package notify delivers real-time events to connected trainers and clients.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var ErrHubClosed = errors.New("notification hub closed")

type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// NewEvent marshals data into an event with a fresh id.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: uuid.NewString(), Type: eventType, Data: raw, At: time.Now().UTC()}, nil
}

// Hub is the registry of live subscribers on this replica, keyed by user id. A user may
// hold several subscriptions (one per open tab).
type Hub struct {
	buffer  int
	dropped atomic.Uint64

	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{buffer: buffer, subs: map[string]map[*Subscription]struct{}{}}
}

type Subscription struct {
	ID     string
	UserID string

	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Events is closed when the subscription is closed or the hub shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

func (h *Hub) Subscribe(userID string) (*Subscription, error) {
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    h,
		ch:     make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	set := h.subs[userID]
	if set == nil {
		set = map[*Subscription]struct{}{}
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.UserID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.UserID)
	}
	close(sub.ch)
}

// Publish hands ev to every subscription of userID and returns how many accepted it.
// Sends never block: a subscriber whose buffer is full misses the event. Channels are
// only closed under the write lock, so sending under the read lock is safe.
func (h *Hub) Publish(userID string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// Notify publishes to local subscribers only. It lets the hub stand in for the Redis relay
// in single-replica deployments.
func (h *Hub) Notify(_ context.Context, userID string, ev Event) error {
	h.Publish(userID, ev)
	return nil
}

func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Dropped counts events discarded because a subscriber was too slow.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription. Later Subscribe calls fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.subs, userID)
	}
}
