// Package events provides the process-wide publish/subscribe bus that fans
// committed board mutations out to every open update stream.
package events

import (
	"sync"

	"kanban-api/domain"
)

// Bus is an in-process event fan-out. Publishing never blocks: a subscriber
// whose buffer is full misses the event rather than stalling the publisher or
// its peers. The bus carries all projects on one channel; subscribers filter
// by project id themselves.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's view of the bus. Events arrive on C until
// Close is called, after which C is closed.
type Subscription struct {
	C chan domain.Event

	bus   *Bus
	types map[domain.EventType]struct{}
	once  sync.Once
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber with the given channel buffer. When
// types are given only events of those types are delivered; otherwise the
// subscriber receives everything.
func (b *Bus) Subscribe(buffer int, types ...domain.EventType) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{C: make(chan domain.Event, buffer), bus: b}
	if len(types) > 0 {
		sub.types = make(map[domain.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.Lock()
	for sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[ev.Type()]; !ok {
				continue
			}
		}
		select {
		case sub.C <- ev:
		default:
		}
	}
	b.mu.Unlock()
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches the subscription and closes C. It is safe to call more than
// once; both the keep-alive failure path and request cancellation may reach
// it.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.C)
		s.bus.mu.Unlock()
	})
}
