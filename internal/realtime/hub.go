package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Hub fans payloads out to subscribers of a website.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]map[*Subscription]struct{}
	dropped atomic.Int64
}

// Subscription receives payloads for one website until Close is called.
type Subscription struct {
	C         <-chan Payload
	ch        chan Payload
	websiteID uuid.UUID
	hub       *Hub
	once      sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe registers a buffered subscriber for websiteID.
func (h *Hub) Subscribe(websiteID uuid.UUID, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Payload, buffer)
	sub := &Subscription{C: ch, ch: ch, websiteID: websiteID, hub: h}

	h.mu.Lock()
	if h.subs[websiteID] == nil {
		h.subs[websiteID] = make(map[*Subscription]struct{})
	}
	h.subs[websiteID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set := h.subs[s.websiteID]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.websiteID)
			}
		}
		h.mu.Unlock()
		close(s.ch)
	})
}

// Broadcast delivers p to every subscriber of its website. Slow subscribers
// lose the message rather than block ingestion.
func (h *Hub) Broadcast(p Payload) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[p.WebsiteID] {
		select {
		case sub.ch <- p:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers reports the number of live subscriptions for websiteID.
func (h *Hub) Subscribers(websiteID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[websiteID])
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Publish satisfies the publisher interface by broadcasting in process. It is
// used when no PostgreSQL listener is running.
func (h *Hub) Publish(_ context.Context, p Payload) error {
	h.Broadcast(p)
	return nil
}
