package lifecycle

import (
	"context"

	"parcel-dispatch/internal/domain"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
}

type customerReader interface {
	Get(ctx context.Context, id int64) (*domain.Customer, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event)
}

// Quoter is the external pricing function.
type Quoter interface {
	Quote(ctx context.Context, q QuoteRequest) (domain.PriceBreakdown, error)
}
