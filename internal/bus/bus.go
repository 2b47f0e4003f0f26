// Package bus is the in-process publish/subscribe fan-out. It is the
// boundary to the real-time broadcast layer: everything the gateway emits
// to observers goes through here.
package bus

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bus fans events out to subscribers filtered by name prefix.
type Bus struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus with no drop logging.
func New() *Bus {
	return NewWithLogger(nil)
}

// NewWithLogger creates an empty bus that logs dropped events.
func NewWithLogger(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[int]*subscription),
	}
}

// Emit publishes a named payload stamped with the current time.
func (b *Bus) Emit(name string, payload any) {
	b.Publish(Event{Name: name, At: time.Now(), Payload: payload})
}

// Publish delivers an event to every subscriber whose prefix matches.
// Delivery is non-blocking: a full subscriber drops the event, with a log
// so lost events stay diagnosable.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Name, sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
				b.logger.Warn("subscriber buffer full, dropping event",
					zap.String("event", evt.Name), zap.String("prefix", sub.prefix))
			}
		}
	}
}

// Subscribe registers a buffered channel for events whose name starts with
// prefix. The empty prefix matches everything. Returns the channel and an
// unsubscribe function.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
