package notifier

import (
	"context"
	"sync"

	"github.com/jonymoraes/mediaserver/internal/metrics"
)

const defaultBuffer = 32

// Subscription receives the events of one room. C is closed by
// Unsubscribe or Hub.Close.
type Subscription struct {
	C    <-chan Event
	ch   chan Event
	room string
}

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

var _ Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener for room. An empty room receives every
// event. buffer <= 0 uses a default size.
func (h *Hub) Subscribe(room string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, room: room}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	metrics.SetNotifierListeners(len(h.subs))
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
		metrics.SetNotifierListeners(len(h.subs))
	}
}

// Publish never blocks: a subscriber whose buffer is full misses e.
func (h *Hub) Publish(_ context.Context, e Event) error {
	metrics.RecordNotifierEvent(string(e.Type))

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.room != "" && sub.room != e.Room {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			metrics.RecordNotifierDrop()
		}
	}
	return nil
}

// Listeners returns the number of active subscriptions.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everyone. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		close(sub.ch)
	}
	h.subs = make(map[*Subscription]struct{})
	h.closed = true
	metrics.SetNotifierListeners(0)
}
