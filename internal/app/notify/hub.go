// Package notify fans coordinator events out to subscribers: the media
// session bridge, the control API's event stream, and anything else the
// host attaches.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yskmt/nagara/internal/app/player"
)

// Stream receives broadcast events for one subscriber.
type Stream interface {
	Send(player.Event) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Hub manages subscriptions and broadcasting.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a subscriber and returns its subscription id.
func (h *Hub) Subscribe(stream Stream) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	h.subscriptions[id] = &subscription{id: id, stream: stream}
	return id
}

// Unsubscribe removes a subscription.
func (h *Hub) Unsubscribe(subscriptionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscriptions, subscriptionID)
}

// NextSequenceNo returns the next sequence number.
func (h *Hub) NextSequenceNo() uint64 {
	h.sequenceNoMu.Lock()
	defer h.sequenceNoMu.Unlock()
	h.sequenceNo++
	return h.sequenceNo
}

// Broadcast delivers an event to all subscribers. Each send runs in its
// own goroutine with a timeout so one stuck subscriber cannot stall the
// player's event pump.
func (h *Hub) Broadcast(ev player.Event) {
	h.mu.RLock()
	subs := make([]*subscription, 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(ev)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				// Timeout - the subscriber misses this event
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close removes all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscriptions = make(map[string]*subscription)
}

// Pump forwards coordinator events into the hub until the channel
// closes or the context ends.
func (h *Hub) Pump(ctx context.Context, events <-chan player.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}
