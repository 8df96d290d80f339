package events

import (
	"sync"
	"time"

	"github.com/dropstream/drops-miner/logging"
)

// Subscriber receives published events. Publish never blocks on a slow
// subscriber: each subscription has a bounded buffer and overflow drops
// the oldest unread event (the status snapshot on the next event makes
// the loss harmless).
type Subscriber interface {
	// Events returns the subscription's receive channel.
	Events() <-chan Event

	// Close cancels the subscription.
	Close()
}

// Bus fans events out to in-process subscribers.
type Bus struct {
	logger logging.Logger

	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

// NewBus creates an empty event bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		logger: logging.ForComponent(logger, logging.ComponentEvents),
		subs:   make(map[*subscription]struct{}),
	}
}

type subscription struct {
	bus  *Bus
	ch   chan Event
	once sync.Once
}

func (s *subscription) Events() <-chan Event { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a new subscriber with the given buffer size.
func (b *Bus) Subscribe(buffer int) Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscription{bus: b, ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Buffer full: drop the oldest event to make room.
			select {
			case <-sub.ch:
				eventsDropped.WithLabelValues(string(ev.Kind)).Inc()
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}

	eventsPublished.WithLabelValues(string(ev.Kind)).Inc()
}
