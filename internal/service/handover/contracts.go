package handover

import (
	"context"

	"parcel-dispatch/internal/domain"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event)
}
