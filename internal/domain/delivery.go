package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Location is an address with coordinates.
type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Point returns the coordinates of the location.
func (l Location) Point() GeoPoint { return GeoPoint{Lat: l.Lat, Lng: l.Lng} }

// Parcel describes what is being moved.
type Parcel struct {
	Description string  `json:"description"`
	WeightKg    float64 `json:"weight_kg"`
	Size        string  `json:"size,omitempty"`
}

// PriceBreakdown is produced by the pricing collaborator. Amounts are in minor currency units.
type PriceBreakdown struct {
	BaseFee     int64   `json:"base_fee"`
	DistanceFee int64   `json:"distance_fee"`
	WeightFee   int64   `json:"weight_fee"`
	Multiplier  float64 `json:"multiplier"`
	Discount    int64   `json:"discount"`
	Total       int64   `json:"total"`
	Currency    string  `json:"currency"`
}

// Delivery is the aggregate root of one parcel movement.
type Delivery struct {
	ID           int64
	TrackingCode string
	CustomerID   int64
	// RiderID is nil until a rider is assigned. Its presence is the assignment lock.
	RiderID *int64

	Type          DeliveryType
	Status        DeliveryStatus
	PaymentStatus PaymentStatus

	Pickup  Location
	Dropoff Location
	Parcel  Parcel
	Price   PriceBreakdown

	PickupPin           string
	DeliveryPin         string
	PickupPinVerified   bool
	DeliveryPinVerified bool
	CanReschedule       bool

	CancellationReason string
	CancellationFee    int64

	ScheduledAt      *time.Time
	AcceptedAt       *time.Time
	ArrivedPickupAt  *time.Time
	PickedUpAt       *time.Time
	ArrivedDropoffAt *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	FailedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Version is bumped on every status write and used as the compare-and-set token.
	Version int64
}

// HasRider reports whether the delivery is assigned to riderID.
func (d *Delivery) HasRider(riderID int64) bool {
	return d.RiderID != nil && *d.RiderID == riderID
}

// IsParty reports whether the actor is the owning customer or the assigned rider.
// Administrators are not parties.
func (d *Delivery) IsParty(a Actor) bool {
	switch a.Role {
	case RoleCustomer:
		return d.CustomerID == a.ID
	case RoleRider:
		return d.HasRider(a.ID)
	}
	return false
}

// PickupPinVisible reports whether the customer may read the pickup PIN.
func (d *Delivery) PickupPinVisible() bool {
	return d.PaymentStatus == PaymentPaid && d.PickupPin != ""
}

// DeliveryPinVisible reports whether the customer may read the delivery PIN.
func (d *Delivery) DeliveryPinVisible() bool {
	return d.PickupPinVisible() && d.PickupPinVerified && d.DeliveryPin != ""
}

// NextTarget is where the assigned rider is heading: pickup until the parcel is handed over, then dropoff.
func (d *Delivery) NextTarget() (loc Location, dropoff bool) {
	if d.PickupPinVerified || d.Status.PostPickup() {
		return d.Dropoff, true
	}
	return d.Pickup, false
}

// StatusChange is a compare-and-set status write. The write applies only if the stored
// delivery still has status From and version Version.
type StatusChange struct {
	DeliveryID int64
	From       DeliveryStatus
	To         DeliveryStatus
	Version    int64
	At         time.Time

	CancellationReason string
	CancellationFee    int64
}

// NewTrackingCode returns a customer-facing code such as DLV-1A2B3C4D.
func NewTrackingCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("DLV-%s", strings.ToUpper(raw[:8]))
}

// Apply mutates d as a successful StatusChange would. Storage implementations that work
// on in-memory records use it; the SQL store expresses the same rules in its UPDATE.
func (d *Delivery) Apply(c StatusChange) {
	d.Status = c.To
	d.UpdatedAt = c.At
	d.Version++
	at := c.At
	stamp := func(p **time.Time) {
		if *p == nil {
			*p = &at
		}
	}
	switch c.To {
	case StatusRiderAccepted, StatusRiderAssigned:
		stamp(&d.AcceptedAt)
	case StatusRiderArrivedPickup:
		stamp(&d.ArrivedPickupAt)
		d.CanReschedule = false
	case StatusPickedUp:
		stamp(&d.PickedUpAt)
	case StatusRiderArrivedDropoff:
		stamp(&d.ArrivedDropoffAt)
	case StatusDelivered:
		stamp(&d.DeliveredAt)
	case StatusCompleted:
		stamp(&d.CompletedAt)
	case StatusCancelled:
		stamp(&d.CancelledAt)
		d.CancellationReason = c.CancellationReason
		d.CancellationFee = c.CancellationFee
	case StatusFailed:
		stamp(&d.FailedAt)
	}
}

// PickupPinAccepted reports whether a pickup PIN may be submitted in status s.
func PickupPinAccepted(s DeliveryStatus) bool {
	return s == StatusRiderArrivedPickup || s == StatusPaymentConfirmed || s == StatusPickupInProgress
}

// DeliveryPinAccepted reports whether a delivery PIN may be submitted in status s.
func DeliveryPinAccepted(s DeliveryStatus) bool {
	return s == StatusInTransit || s == StatusRiderArrivedDropoff || s == StatusDeliveryInProgress
}
