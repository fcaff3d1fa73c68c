package memstore

import (
	"time"

	"parcel-dispatch/internal/domain"
)

// Abuja coordinates used across service tests.
var (
	PickupPoint  = domain.GeoPoint{Lat: 9.0579, Lng: 7.4951}
	DropoffPoint = domain.GeoPoint{Lat: 9.0312, Lng: 7.4893}
)

// Delivery returns a delivery of customerID in status with the given payment state.
// A non-nil riderID is stored as the assigned rider.
func Delivery(customerID int64, status domain.DeliveryStatus, payment domain.PaymentStatus, riderID *int64) domain.Delivery {
	now := time.Now().UTC()
	return domain.Delivery{
		TrackingCode:  domain.NewTrackingCode(),
		CustomerID:    customerID,
		RiderID:       riderID,
		Type:          domain.DeliveryQuick,
		Status:        status,
		PaymentStatus: payment,
		Pickup:        domain.Location{Address: "Wuse II", Lat: PickupPoint.Lat, Lng: PickupPoint.Lng},
		Dropoff:       domain.Location{Address: "Garki", Lat: DropoffPoint.Lat, Lng: DropoffPoint.Lng},
		Parcel:        domain.Parcel{Description: "documents", WeightKg: 1},
		Price:         domain.PriceBreakdown{BaseFee: 100000, DistanceFee: 50000, Total: 150000, Multiplier: 1, Currency: "NGN"},
		CanReschedule: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Rider returns an online, verified, active rider at p with the given capacity.
func Rider(name string, p domain.GeoPoint, capacity int) domain.Rider {
	loc := p
	return domain.Rider{
		Name:                    name,
		Phone:                   "+234-" + name,
		PushToken:               "push-" + name,
		IsOnline:                true,
		VerificationStatus:      domain.VerificationVerified,
		IsActive:                true,
		Availability:            domain.AvailabilityAvailable,
		MaxConcurrentDeliveries: capacity,
		Location:                &loc,
	}
}

// Offset returns a point about km kilometres north of p.
func Offset(p domain.GeoPoint, km float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + km/111.195, Lng: p.Lng}
}
