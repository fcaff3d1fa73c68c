package deliverytx

import (
	"context"
	"time"

	"parcel-dispatch/internal/domain"
)

// Repository is the transaction-scoped delivery store. Every conditional method
// evaluates its precondition inside the storage write and reports whether a row changed.
type Repository interface {
	GetDelivery(ctx context.Context, id int64) (*domain.Delivery, error)
	InsertDelivery(ctx context.Context, d *domain.Delivery) error

	// AssignRider sets rider and RIDER_ACCEPTED only if no rider is set and the delivery awaits one.
	AssignRider(ctx context.Context, deliveryID, riderID int64, at time.Time) (bool, error)
	// UnassignRider rolls an assigned delivery back to SEARCHING_RIDER if riderID still holds it.
	UnassignRider(ctx context.Context, deliveryID, riderID int64, at time.Time) (bool, error)
	// TransitionStatus applies a compare-and-set status change with its derived timestamp.
	TransitionStatus(ctx context.Context, c domain.StatusChange) (bool, error)

	VerifyPickupPin(ctx context.Context, deliveryID, riderID int64, pin string, at time.Time) (bool, error)
	VerifyDeliveryPin(ctx context.Context, deliveryID, riderID int64, pin string, at time.Time) (bool, error)
	// SetPins stores PINs that are not set yet; existing PINs are never overwritten.
	SetPins(ctx context.Context, deliveryID int64, pickupPin, deliveryPin string) error
	SetPaymentStatus(ctx context.Context, deliveryID int64, status domain.PaymentStatus) error

	GetRider(ctx context.Context, id int64) (*domain.Rider, error)
	// ReserveRider takes one capacity slot if the rider can still accept work.
	ReserveRider(ctx context.Context, riderID int64) (bool, error)
	// ReleaseRider frees one capacity slot and flips the rider back to available at zero.
	ReleaseRider(ctx context.Context, riderID int64) error

	// InsertEarning creates the (rider, delivery) earning; false means it already existed.
	InsertEarning(ctx context.Context, e *domain.Earning) (bool, error)
	CreditWallet(ctx context.Context, riderID, amount int64) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
