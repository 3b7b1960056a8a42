// ABOUTME: In-memory fan-out registry for predicate-scoped inbound event listeners
// ABOUTME: Publishes every inbound event to all matching subscribers without blocking

package channel

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber. Large enough
// that a waiter catching a single reply never drops it.
const subscriberBufferSize = 16

type subscriber struct {
	match func(*InboundEvent) bool
	ch    chan *InboundEvent
}

// Hub fans inbound events out to registered listeners. Each listener supplies
// a predicate; only matching events are delivered to it. Delivery to one
// listener never blocks delivery to the others.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
	logger *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]*subscriber),
		logger: logger.With("component", "hub"),
	}
}

// Subscribe registers a listener for events satisfying match. Returns the
// event channel and a subscription ID for Unsubscribe.
func (h *Hub) Subscribe(match func(*InboundEvent) bool) (<-chan *InboundEvent, string) {
	subID := uuid.New().String()
	ch := make(chan *InboundEvent, subscriberBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, subID
	}
	h.subs[subID] = &subscriber{match: match, ch: ch}
	h.mu.Unlock()

	h.logger.Debug("listener added", "sub_id", subID)
	return ch, subID
}

// Publish delivers an event to every subscriber whose predicate matches.
// Non-blocking: the event is dropped for subscribers whose channels are full.
//
// The read lock is held across the sends. Sends never block (select/default),
// and Unsubscribe and Close only close a channel under the write lock, so a
// send can never race a close.
func (h *Hub) Publish(evt *InboundEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.match != nil && !sub.match(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			h.logger.Debug("dropped event for slow listener", "sender", evt.Sender.ID)
		}
	}
}

// Unsubscribe removes a listener and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}

	delete(h.subs, id)
	close(sub.ch)

	h.logger.Debug("listener removed", "sub_id", id)
}

// Close shuts down the hub and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
