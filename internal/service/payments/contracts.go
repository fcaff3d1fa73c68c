//go:generate mockgen -source=contracts.go -destination=payments_mocks_test.go -package=payments_test

package payments

import (
	"context"

	"parcel-dispatch/internal/domain"
)

// DeliveryPort is the subset of the lifecycle service the processor drives.
type DeliveryPort interface {
	ConfirmPayment(ctx context.Context, deliveryID int64) (*domain.Delivery, error)
	FailPayment(ctx context.Context, deliveryID int64) (*domain.Delivery, error)
}
