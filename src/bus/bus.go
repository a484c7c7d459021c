// Package bus fans application events out to named subscribers.
package bus

import (
	"fmt"
	"log"
	"sync"

	"snipclip/src/events"
)

// Bus delivers every published event to every subscriber. Publish never
// blocks the event loop: a subscriber that stops draining its channel loses
// events rather than stalling captures.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan events.Event
	closed bool
}

func New() *Bus {
	return &Bus{subs: map[string]chan events.Event{}}
}

// Subscribe registers a named subscriber with its own buffered channel.
func (b *Bus) Subscribe(name string, buffer int) (<-chan events.Event, error) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus is shut down")
	}
	if _, exists := b.subs[name]; exists {
		return nil, fmt.Errorf("subscriber %q already registered", name)
	}
	ch := make(chan events.Event, buffer)
	b.subs[name] = ch
	log.Printf("Bus: registered subscriber %q with buffer %d", name, buffer)
	return ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, exists := b.subs[name]; exists {
		close(ch)
		delete(b.subs, name)
		log.Printf("Bus: unregistered subscriber %q", name)
	}
}

// Publish delivers ev to every subscriber, dropping on full buffers.
func (b *Bus) Publish(ev events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for name, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("Bus: dropping %s for slow subscriber %q", ev.Type(), name)
		}
	}
}

// Shutdown closes every subscriber channel. Publish becomes a no-op.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for name, ch := range b.subs {
		close(ch)
		delete(b.subs, name)
	}
	log.Printf("Bus: shut down")
}
