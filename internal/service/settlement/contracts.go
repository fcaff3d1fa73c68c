package settlement

import (
	"context"

	"parcel-dispatch/internal/domain"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	ListUnsettled(ctx context.Context, limit int) ([]domain.Delivery, error)
}

// CommissionSource loads the current payout configuration.
type CommissionSource interface {
	Commission(ctx context.Context) (domain.Commission, error)
}
