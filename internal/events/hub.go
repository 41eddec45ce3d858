package events

import "sync"

// Hub fans task events out to live subscribers of a tenant. Delivery is
// best effort: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
}

type subscription struct {
	ch chan TaskEvent
}

// NewHub creates a hub whose subscribers buffer up to buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*subscription]struct{}), buffer: buffer}
}

// Subscribe registers a listener for tenantID. The returned cancel func
// must be called to release it; it closes the channel.
func (h *Hub) Subscribe(tenantID string) (<-chan TaskEvent, func()) {
	sub := &subscription{ch: make(chan TaskEvent, h.buffer)}

	h.mu.Lock()
	if h.subs[tenantID] == nil {
		h.subs[tenantID] = make(map[*subscription]struct{})
	}
	h.subs[tenantID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[tenantID], sub)
			if len(h.subs[tenantID]) == 0 {
				delete(h.subs, tenantID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Enqueue delivers event to every subscriber of its tenant without blocking.
// It reports false if any subscriber missed it.
func (h *Hub) Enqueue(event TaskEvent) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := true
	for sub := range h.subs[event.TenantID] {
		select {
		case sub.ch <- event:
		default:
			delivered = false
		}
	}
	return delivered
}

// Subscribers returns the number of live subscribers of tenantID
func (h *Hub) Subscribers(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tenantID])
}
