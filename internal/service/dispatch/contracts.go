package dispatch

import (
	"context"
	"time"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/notify"
	"parcel-dispatch/internal/realtime"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	ListSearching(ctx context.Context, before time.Time, limit int) ([]domain.Delivery, error)
}

type riderFinder interface {
	ListEligible(ctx context.Context, box domain.BoundingBox) ([]domain.Rider, error)
}

type notifier interface {
	Send(ctx context.Context, n notify.Notification) error
}

type realtimePublisher interface {
	ToRoom(ctx context.Context, room string, msg realtime.Message)
	ToUser(ctx context.Context, user string, msg realtime.Message)
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event)
}
