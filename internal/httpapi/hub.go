package httpapi

import (
	"sync"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

const subscriberBuffer = 32

// EventHub fans engine notifications out to websocket subscribers. Publish
// never blocks: a subscriber that stops reading loses events rather than
// stalling the engine.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[chan engine.Notification]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: map[chan engine.Notification]struct{}{}}
}

func (h *EventHub) Publish(n engine.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *EventHub) Subscribe() chan engine.Notification {
	ch := make(chan engine.Notification, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan engine.Notification) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	h.mu.Unlock()
}

func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
