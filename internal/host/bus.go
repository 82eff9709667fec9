package host

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MatchAll subscribes a listener to every event type.
const MatchAll = "*"

// Event is a named occurrence fired on the bus.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"event_type"`
	EntryID   string         `json:"entry_id,omitempty"`
	Data      map[string]any `json:"data"`
	TimeFired time.Time      `json:"time_fired"`
}

// Listener receives bus events on the loop goroutine. It must not block;
// listeners doing I/O queue the event and return.
type Listener func(Event)

type subscriber struct {
	eventType string
	listener  Listener
}

// Bus fans events out to subscribed listeners.
//
// Fire must be called on the loop. Subscribe and its returned
// unsubscribe function are safe to call from any goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]subscriber
	next uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscriber)}
}

// Subscribe registers listener for eventType, or for every event when
// eventType is MatchAll. The returned function removes the subscription.
func (b *Bus) Subscribe(eventType string, listener Listener) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{eventType: eventType, listener: listener}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Fire stamps and delivers an event to every matching listener, in
// subscription order, and returns it.
func (b *Bus) Fire(eventType, entryID string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		EntryID:   entryID,
		Data:      data,
		TimeFired: time.Now().UTC(),
	}

	for _, listener := range b.matching(eventType) {
		listener(event)
	}
	return event
}

func (b *Bus) matching(eventType string) []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.subs))
	for id, sub := range b.subs {
		if sub.eventType == MatchAll || sub.eventType == eventType {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = b.subs[id].listener
	}
	return listeners
}
