// Package bus implements the Streaming Bus: a per-session, per-turn fan-out
// of typed events to every subscribed transport. Each subscriber owns a
// bounded channel, so one slow subscriber can never block the others or
// the publisher.
package bus

import (
	"log/slog"
	"sync"

	"github.com/forgeline/forgeline/pkg/protocol"
)

// Event is one typed message on the bus, named after the protocol.Event*
// constants and scoped to a session; it carries no turn identifier.
type Event struct {
	Session string      `json:"session"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// defaultQueueSize bounds each subscriber's backlog. A slow subscriber
// must not block publishers; overflow drops the subscriber with an error
// event rather than blocking or silently losing events forever.
const defaultQueueSize = 64

// Subscription is one consumer's view of the bus: a bounded channel plus the
// means to stop receiving.
type Subscription struct {
	id      string
	session string
	ch      chan Event
	bus     *Bus
	once    sync.Once
}

// Events returns the channel of events for this subscription. The channel is
// closed when the subscription is cancelled or dropped for overflow.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes and releases the channel. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.session, s.id)
	})
}

// Bus is the per-process Streaming Bus. One Bus instance is shared by every
// transport; subscriptions are keyed by session id so publishers only need
// to know which session a turn belongs to.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription // session -> subscriberID -> sub
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[string]*Subscription)}
}

// Subscribe registers a new subscriber for session, returning a handle whose
// Events() channel receives every event published for that session until
// Close() is called or the subscriber overflows. A fresh connection is
// always a fresh subscription — there is no event replay; durable history
// (internal/session) is the catch-up path.
func (b *Bus) Subscribe(session, subscriberID string) *Subscription {
	sub := &Subscription{
		id:      subscriberID,
		session: session,
		ch:      make(chan Event, defaultQueueSize),
		bus:     b,
	}
	b.mu.Lock()
	if b.subs[session] == nil {
		b.subs[session] = make(map[string]*Subscription)
	}
	b.subs[session][subscriberID] = sub
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(session, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.subs[session]; ok {
		if sub, ok := m[subscriberID]; ok {
			close(sub.ch)
			delete(m, subscriberID)
		}
		if len(m) == 0 {
			delete(b.subs, session)
		}
	}
}

// Publish fans an event out to every subscriber of session. A subscriber
// whose queue is full is dropped (its channel closed after an error event is
// attempted, best-effort) rather than blocking this call.
func (b *Bus) Publish(session, name string, payload interface{}) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs[session]))
	for _, s := range b.subs[session] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	evt := Event{Session: session, Name: name, Payload: payload}
	for _, s := range subs {
		select {
		case s.ch <- evt:
		default:
			slog.Warn("bus.subscriber_overflow", "session", session, "subscriber", s.id, "event", name)
			b.dropOverflowing(s)
		}
	}
}

// dropOverflowing best-effort delivers a turn.error for overflow, then
// unsubscribes the offending subscriber so it stops accumulating backlog.
func (b *Bus) dropOverflowing(s *Subscription) {
	select {
	case s.ch <- Event{Session: s.session, Name: protocol.EventTurnError, Payload: protocol.TurnErrorPayload{
		Kind: "SubscriberOverflow", Error: "subscriber queue overflowed; dropped",
	}}:
	default:
	}
	s.Close()
}

// SubscriberCount reports the number of active subscribers for session
// (used by transports/tests to assert fan-out behavior).
func (b *Bus) SubscriberCount(session string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[session])
}
