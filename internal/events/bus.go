// Package events is the in-process domain event bus. Handlers run asynchronously
// on a context detached from the publisher's. Each subscriber sees the events of
// one delivery in publish order; different deliveries are handled concurrently.
package events

import (
	"context"
	"sync"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

// Handler consumes one event. Events may be delivered more than once.
type Handler func(ctx context.Context, e domain.Event) error

type queued struct {
	ctx context.Context
	e   domain.Event
}

type subscription struct {
	name    string
	handler Handler
	filter  map[domain.EventName]bool

	mu     sync.Mutex
	queues map[int64][]queued // pending events per delivery; a key exists while its worker runs
}

func (s *subscription) wants(n domain.EventName) bool {
	return len(s.filter) == 0 || s.filter[n]
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	wg     sync.WaitGroup
	logger logx.Logger
}

// NewBus creates an empty bus.
func NewBus(logger logx.Logger) *Bus {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h under name. With no names the handler receives every event.
func (b *Bus) Subscribe(name string, h Handler, names ...domain.EventName) {
	filter := make(map[domain.EventName]bool, len(names))
	for _, n := range names {
		filter[n] = true
	}
	b.mu.Lock()
	b.subs = append(b.subs, &subscription{
		name:    name,
		handler: h,
		filter:  filter,
		queues:  make(map[int64][]queued),
	})
	b.mu.Unlock()
}

// Publish queues e for every interested subscriber and returns immediately.
func (b *Bus) Publish(ctx context.Context, e domain.Event) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Name) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	item := queued{ctx: context.WithoutCancel(ctx), e: e}
	for _, s := range subs {
		b.wg.Add(1)
		s.mu.Lock()
		pending, running := s.queues[e.DeliveryID]
		s.queues[e.DeliveryID] = append(pending, item)
		s.mu.Unlock()
		if !running {
			go b.drain(s, e.DeliveryID)
		}
	}
}

// drain runs queued events of one delivery until its queue is empty.
func (b *Bus) drain(s *subscription, deliveryID int64) {
	for {
		s.mu.Lock()
		pending := s.queues[deliveryID]
		if len(pending) == 0 {
			delete(s.queues, deliveryID)
			s.mu.Unlock()
			return
		}
		next := pending[0]
		s.queues[deliveryID] = pending[1:]
		s.mu.Unlock()

		b.handle(s, next)
		b.wg.Done()
	}
}

func (b *Bus) handle(s *subscription, q queued) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("event handler panic",
				logx.String("subscriber", s.name),
				logx.String("event", string(q.e.Name)),
				logx.Any("panic", p),
			)
		}
	}()
	if err := s.handler(q.ctx, q.e); err != nil {
		b.logger.Error("event handler failed",
			logx.String("subscriber", s.name),
			logx.String("event", string(q.e.Name)),
			logx.String("event_id", q.e.ID),
			logx.Int64("delivery_id", q.e.DeliveryID),
			logx.Any("err", err),
		)
	}
}

// Wait blocks until every event published so far has been handled.
func (b *Bus) Wait() {
	b.wg.Wait()
}
