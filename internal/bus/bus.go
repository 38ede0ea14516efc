// Package bus is an explicit publish/subscribe channel for cross-component
// signals (pin mutations, popup opening, style changes). Subscribers hold a
// channel for their mount lifetime and must unsubscribe on teardown.
package bus

import "sync"

// Kinds of events carried on the bus.
const (
	KindPinCreated   = "pin.created"
	KindPinArchived  = "pin.archived"
	KindPinViewed    = "pin.viewed"
	KindPopupOpening = "popup.opening"
	KindStyleChanged = "style.changed"
)

// Event is a typed cross-component signal.
type Event struct {
	Kind string // one of the Kind* constants
	ID   string // entity id, where applicable
	Data map[string]any
}

// Bus is a fan-out pub/sub channel.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
