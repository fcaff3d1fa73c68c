package memstore

import (
	"context"
	"sync"

	"parcel-dispatch/internal/domain"
)

// EventLog records published domain events synchronously.
type EventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

// Publish implements the services' event publisher.
func (l *EventLog) Publish(_ context.Context, e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// All returns every recorded event.
func (l *EventLog) All() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Event(nil), l.events...)
}

// Statuses returns the target status of each recorded status change, in order.
func (l *EventLog) Statuses() []domain.DeliveryStatus {
	var out []domain.DeliveryStatus
	for _, e := range l.All() {
		if e.Name == domain.EventStatusChanged {
			out = append(out, e.Status)
		}
	}
	return out
}

// Named returns the recorded events with the given name.
func (l *EventLog) Named(name domain.EventName) []domain.Event {
	var out []domain.Event
	for _, e := range l.All() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
