// Package progress fan-outs translation progress events to stream
// subscribers.
package progress

import "sync"

// Event is a single progress update. Progress counts completed chunks.
type Event struct {
	Progress int `json:"progress"`
}

// Subscriber receives events on C until it is unsubscribed or dropped.
type Subscriber struct {
	C chan Event
}

// Broadcaster delivers every published event to all current subscribers.
// A subscriber that cannot keep up (full buffer) is dropped and its channel
// closed; the remaining subscribers are unaffected.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	bufferSize  int
}

// NewBroadcaster creates a broadcaster whose subscribers buffer up to
// bufferSize pending events.
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Broadcaster{
		subscribers: make(map[*Subscriber]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan Event, b.bufferSize)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call for
// a subscriber that was already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.C)
}

// Publish delivers an event to every subscriber without blocking. Slow
// subscribers are dropped.
func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		select {
		case sub.C <- event:
		default:
			delete(b.subscribers, sub)
			close(sub.C)
		}
	}
}

// Count returns the number of current subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
