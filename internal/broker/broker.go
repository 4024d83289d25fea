// Package broker provides an in-memory pub/sub mechanism scoped by session ID.
// It fans committed queue events out to SSE and WebSocket connections.
package broker

import (
	"log/slog"
	"sync"

	"github.com/queueit/backend/internal/queue"
)

// DefaultBuffer is the per-subscriber event buffer used when none is given.
const DefaultBuffer = 32

// Subscription is one connected client. Events arrives in publish order and
// is closed when the subscriber is dropped, unsubscribed or its session ends.
type Subscription struct {
	SessionID string
	events    chan queue.Event
}

// Events returns the subscriber's receive channel.
func (s *Subscription) Events() <-chan queue.Event {
	return s.events
}

// Broker is a session-scoped pub/sub hub. Publish never blocks: a subscriber
// whose buffer is full is dropped and must resynchronize from a snapshot.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// New creates a ready-to-use Broker with the given per-subscriber buffer.
func New(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber for the session.
func (b *Broker) Subscribe(sessionID string) *Subscription {
	id := queue.CanonicalID(sessionID)
	sub := &Subscription{SessionID: id, events: make(chan queue.Event, b.buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[id] == nil {
		b.subs[id] = make(map[*Subscription]struct{})
	}
	b.subs[id][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. It is safe to call
// for a subscriber that was already dropped.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broker) removeLocked(sub *Subscription) {
	subs, ok := b.subs[sub.SessionID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(b.subs, sub.SessionID)
	}
}

// Publish delivers ev to every subscriber of the session without blocking.
func (b *Broker) Publish(sessionID string, ev queue.Event) {
	id := queue.CanonicalID(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[id] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("dropping slow subscriber",
				slog.String("session_id", id),
				slog.String("event", string(ev.Kind())))
			b.removeLocked(sub)
		}
	}
}

// CloseSession drops every subscriber of the session.
func (b *Broker) CloseSession(sessionID string) {
	id := queue.CanonicalID(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[id] {
		b.removeLocked(sub)
	}
}

// Close drops every subscriber of every session.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for sub := range subs {
			b.removeLocked(sub)
		}
	}
}

// Subscribers returns how many clients are connected to the session.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[queue.CanonicalID(sessionID)])
}
