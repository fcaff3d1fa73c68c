package lifecycle

import (
	"math"

	"parcel-dispatch/internal/domain"
)

// CancellationPolicy prices a cancellation by the stage the delivery reached.
type CancellationPolicy struct {
	FlatFee              int64
	PostPickupPercentage float64
}

// Cancellable reports whether a customer may still cancel in status s.
func Cancellable(s domain.DeliveryStatus) bool {
	switch s {
	case domain.StatusRiderArrivedDropoff, domain.StatusDeliveryInProgress, domain.StatusDelivered:
		return false
	}
	return !s.Terminal() && s.CanTransition(domain.StatusCancelled)
}

// Fee is zero before acceptance, flat until pickup and a share of the price afterwards.
func (p CancellationPolicy) Fee(d *domain.Delivery) int64 {
	switch {
	case d.Status.PostPickup():
		return int64(math.Round(float64(d.Price.Total) * p.PostPickupPercentage))
	case d.RiderID != nil:
		return p.FlatFee
	default:
		return 0
	}
}
