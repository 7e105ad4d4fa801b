// Package events fans render notifications out to relay SSE subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rillToMe/CrypShare/internal/metrics"
)

const (
	// EventRefresh tells subscribers the page was re-rendered.
	EventRefresh = "refresh"
	// EventPing is sent once when a subscriber connects.
	EventPing = "ping"
)

// Event is one relay notification.
type Event struct {
	Type      string `json:"type"`
	Trigger   string `json:"trigger,omitempty"`
	Entries   int    `json:"entries"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster manages SSE subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetRelaySubscribers(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// channels are ignored.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetRelaySubscribers(n)
}

// Publish sends an event to all subscribers without blocking. A subscriber
// whose buffer is full misses the event; the next refresh carries the same
// page anyway.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	metrics.RecordRelayEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
