// Package events allows for the registering and receiving of chain events.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// messageBuffer is the number of events held for a subscriber before new
// events for it are dropped.
const messageBuffer = 100

// Event is a single chain occurrence delivered to subscribers.
type Event struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// NewEvent constructs an event from a raw log line of the form
// "source: message". Lines without a source are attributed to "chain".
func NewEvent(raw string) Event {
	source, msg, found := strings.Cut(raw, ": ")
	if !found {
		source, msg = "chain", raw
	}

	return Event{
		Time:    time.Now().UTC(),
		Source:  source,
		Message: msg,
	}
}

// =============================================================================

// Events maintains the set of subscribers waiting on chain events.
type Events struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

// New constructs an Events ready to accept subscribers.
func New() *Events {
	return &Events{
		subs: make(map[string]chan Event),
	}
}

// Shutdown closes every subscriber channel.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.subs {
		delete(evt.subs, id)
		close(ch)
	}
}

// Acquire registers the id as a subscriber and returns the channel its
// events arrive on. Acquiring an existing id returns the same channel.
func (evt *Events) Acquire(id string) <-chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.subs[id]; exists {
		return ch
	}

	ch := make(chan Event, messageBuffer)
	evt.subs[id] = ch

	return ch
}

// Release closes and removes the subscriber's channel.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subs[id]
	if !exists {
		return fmt.Errorf("subscriber %q does not exist", id)
	}

	delete(evt.subs, id)
	close(ch)

	return nil
}

// Count returns the number of subscribers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.subs)
}

// Send delivers the event to every subscriber. A subscriber whose buffer is
// full misses the event; Send never blocks.
func (evt *Events) Send(e Event) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Publish converts a raw log line into an event and sends it. It matches the
// sink signature accepted by the logger's event handler.
func (evt *Events) Publish(raw string) {
	evt.Send(NewEvent(raw))
}
