// Package events carries status events from the session controller to the
// calling layers (websocket clients, CLI watchers, tests).
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Name identifies a status event.
type Name string

const (
	RecordingStarted   Name = "onRecordingStarted"
	RecordingCompleted Name = "onRecordingCompleted"
	Error              Name = "onError"
)

// Event is the message relayed to callers: {"event": ..., "data": ...}.
type Event struct {
	Name Name `json:"event"`
	Data any  `json:"data"`
}

// Completed is the payload of RecordingCompleted. Duration is in milliseconds.
type Completed struct {
	Path     string `json:"path"`
	Duration int64  `json:"duration"`
}

// Started builds a RecordingStarted event. Its data is null.
func Started() Event {
	return Event{Name: RecordingStarted}
}

// Completion builds a RecordingCompleted event.
func Completion(path string, d time.Duration) Event {
	return Event{Name: RecordingCompleted, Data: Completed{Path: path, Duration: d.Milliseconds()}}
}

// Failure builds an Error event carrying the message text.
func Failure(message string) Event {
	return Event{Name: Error, Data: message}
}

// Marshal encodes e as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

const defaultBuffer = 16

// Subscription receives events on C until it is closed.
type Subscription struct {
	C    <-chan Event
	ch   chan Event
	bus  *Bus
	once sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose queue is full misses the event and OnDrop is called.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	// OnDrop, when set, is called once per event a subscriber missed.
	OnDrop func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with a queue of the given size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers e to every subscriber with room and returns how many
// received it.
func (b *Bus) Publish(e Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for s := range b.subs {
		select {
		case s.ch <- e:
			delivered++
		default:
			if b.OnDrop != nil {
				b.OnDrop(e)
			}
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later Subscribe calls return an already
// closed subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}
