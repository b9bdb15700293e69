// Package eventbus implements the bounded, drop-oldest fan-out described
// in SPEC_FULL.md §4.6: a single producer (Supervisor/Runners) feeds
// multiple consumers (SSE sessions, the Webhook Dispatcher) without ever
// blocking on a slow subscriber.
package eventbus

import (
	"sync"

	"github.com/ifpj/netwatch/internal/types"
)

// queueDepth is the bounded per-subscriber queue size from §4.6.
const queueDepth = 256

// Message wraps a published value together with a lag flag: true means
// the bus had to drop older, unread messages to make room for this one,
// so the subscriber should resync via the status endpoint.
type Message[T any] struct {
	Value T
	Lag   bool
}

// subscription[T] is a bounded, drop-oldest mailbox for one consumer.
type subscription[T any] struct {
	mu     sync.Mutex
	ch     chan Message[T]
	closed bool
}

func newSubscription[T any]() *subscription[T] {
	return &subscription[T]{ch: make(chan Message[T], queueDepth)}
}

// publish delivers value to the subscription, dropping the oldest queued
// message and marking the new one as lagged if the queue is full.
func (s *subscription[T]) publish(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	msg := Message[T]{Value: value}
	select {
	case s.ch <- msg:
		return
	default:
	}

	// Full: drop the oldest, then enqueue this one marked as lagged.
	select {
	case <-s.ch:
	default:
	}
	msg.Lag = true
	select {
	case s.ch <- msg:
	default:
		// Another goroutine drained concurrently; best effort only.
	}
}

func (s *subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Subscription is the handle a consumer holds: read Events() until it
// closes, then call Unsubscribe (idempotent) when done.
type Subscription[T any] struct {
	id  uint64
	sub *subscription[T]
	bus *topic[T]
}

// Events returns the channel of messages for this subscription.
func (s *Subscription[T]) Events() <-chan Message[T] { return s.sub.ch }

// Unsubscribe removes this subscription from the bus and closes its channel.
func (s *Subscription[T]) Unsubscribe() { s.bus.remove(s.id) }

// topic is a broadcast point for one message type.
type topic[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription[T]
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{subs: make(map[uint64]*subscription[T])}
}

func (t *topic[T]) subscribe() *Subscription[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	sub := newSubscription[T]()
	t.subs[id] = sub
	return &Subscription[T]{id: id, sub: sub, bus: t}
}

func (t *topic[T]) remove(id uint64) {
	t.mu.Lock()
	sub, ok := t.subs[id]
	if ok {
		delete(t.subs, id)
	}
	t.mu.Unlock()
	if ok {
		sub.close()
	}
}

func (t *topic[T]) publish(value T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		sub.publish(value)
	}
}

// Bus holds the two logical channels from §4.6: status updates (every
// probe result, for dashboard liveness) and transitions (confirmed
// up/down flips, for the webhook dispatcher).
type Bus struct {
	statusUpdates *topic[types.TargetStatus]
	transitions   *topic[types.Transition]
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		statusUpdates: newTopic[types.TargetStatus](),
		transitions:   newTopic[types.Transition](),
	}
}

// SubscribeStatus registers a new status-update subscriber, typically an
// SSE session.
func (b *Bus) SubscribeStatus() *Subscription[types.TargetStatus] {
	return b.statusUpdates.subscribe()
}

// SubscribeTransitions registers a new transition subscriber, typically
// the Webhook Dispatcher.
func (b *Bus) SubscribeTransitions() *Subscription[types.Transition] {
	return b.transitions.subscribe()
}

// PublishStatus broadcasts a status update to every status subscriber.
func (b *Bus) PublishStatus(status types.TargetStatus) {
	b.statusUpdates.publish(status)
}

// PublishTransition broadcasts a confirmed transition to every transition
// subscriber.
func (b *Bus) PublishTransition(t types.Transition) {
	b.transitions.publish(t)
}
