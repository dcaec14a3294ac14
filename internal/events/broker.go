package events

import (
	"sync"

	"furnishAi/internal/storage"
)

// Kind names the request an event reports on.
type Kind string

const (
	KindSuggestions Kind = "suggestions"
	KindBlend       Kind = "blend"
	KindSession     Kind = "session"
)

// Event describes a status change for one session request.
type Event struct {
	SessionID string               `json:"session_id"`
	Kind      Kind                 `json:"kind"`
	State     storage.RequestState `json:"state"`
	Message   string               `json:"message,omitempty"`
}

// Publisher is the write side of the broker.
type Publisher interface {
	Publish(evt Event)
}

// Broker manages SSE subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroker constructs a broker instance.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel from the broker and closes it.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish fans the event out to all subscribers.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}

// Subscribers reports the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
