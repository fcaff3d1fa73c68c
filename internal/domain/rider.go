package domain

import "time"

type (
	// VerificationStatus is the KYC state of a rider.
	VerificationStatus string
	// RiderAvailability is the coarse rider state shown to operators.
	RiderAvailability string
)

// List of verification states.
const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// List of availability states.
const (
	AvailabilityOffline    RiderAvailability = "offline"
	AvailabilityAvailable  RiderAvailability = "available"
	AvailabilityOnDelivery RiderAvailability = "on_delivery"
)

// Rider holds rider capacity and location state.
type Rider struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	PushToken string

	IsOnline           bool
	VerificationStatus VerificationStatus
	IsSuspended        bool
	IsActive           bool
	Availability       RiderAvailability

	CurrentDeliveryCount    int
	MaxConcurrentDeliveries int

	Location           *GeoPoint
	LastLocationUpdate *time.Time
}

// HasCapacity reports whether the rider may take one more delivery.
func (r *Rider) HasCapacity() bool {
	return r.CurrentDeliveryCount < r.MaxConcurrentDeliveries
}

// CanAccept reports whether the rider may accept a delivery right now, ignoring location.
func (r *Rider) CanAccept() bool {
	return r.IsOnline &&
		r.VerificationStatus == VerificationVerified &&
		!r.IsSuspended &&
		r.IsActive &&
		r.HasCapacity()
}

// Eligible reports whether the rider should receive dispatch offers.
func (r *Rider) Eligible() bool {
	return r.CanAccept() && r.Location != nil
}

// Customer is the owner of deliveries.
type Customer struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	PushToken string
}
