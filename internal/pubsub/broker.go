package pubsub

import (
	"context"
	"sync"
	"time"
)

// EventType describes the kind of event.
type EventType string

const (
	// SyncCompleted is published after every successful sync run.
	SyncCompleted EventType = "sync_completed"
	// ChangesFound is published after a sync run that stored new files.
	ChangesFound EventType = "changes_found"
	// SyncFailed is published when a run is aborted.
	SyncFailed EventType = "sync_failed"
)

// Event wraps a typed payload with an event type and publish time.
type Event[T any] struct {
	Type    EventType
	At      time.Time
	Payload T
}

// subscriberBufferSize is the channel buffer size for each subscriber.
const subscriberBufferSize = 16

// Broker is a generic, thread-safe publish/subscribe broker.
type Broker[T any] struct {
	mu   sync.RWMutex
	subs map[chan Event[T]]struct{}
}

// NewBroker creates a new Broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[chan Event[T]]struct{}),
	}
}

// Subscribe creates a new subscription. The returned channel receives events
// until the provided context is cancelled, at which point the channel is
// closed and the subscription is removed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	ch := make(chan Event[T], subscriberBufferSize)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish broadcasts an event to all active subscribers and returns how many
// received it. A subscriber whose buffer is full misses the event.
func (b *Broker[T]) Publish(eventType EventType, payload T) int {
	evt := Event[T]{Type: eventType, At: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subs {
		select {
		case ch <- evt:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of active subscriptions.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
