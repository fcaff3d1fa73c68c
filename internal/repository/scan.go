package repository

import (
	"github.com/jackc/pgx/v5"

	"parcel-dispatch/internal/domain"
)

const deliveryColumns = `id, tracking_code, customer_id, rider_id, delivery_type, status, payment_status,
    pickup_address, pickup_latitude, pickup_longitude,
    dropoff_address, dropoff_latitude, dropoff_longitude,
    parcel, price, pickup_pin, delivery_pin, pickup_pin_verified, delivery_pin_verified, can_reschedule,
    cancellation_reason, cancellation_fee, scheduled_at, accepted_at, arrived_pickup_at, picked_up_at,
    arrived_dropoff_at, delivered_at, completed_at, cancelled_at, failed_at, created_at, updated_at, version`

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var (
		d                      domain.Delivery
		pickupPin, deliveryPin *string
	)
	err := row.Scan(
		&d.ID, &d.TrackingCode, &d.CustomerID, &d.RiderID, &d.Type, &d.Status, &d.PaymentStatus,
		&d.Pickup.Address, &d.Pickup.Lat, &d.Pickup.Lng,
		&d.Dropoff.Address, &d.Dropoff.Lat, &d.Dropoff.Lng,
		&d.Parcel, &d.Price, &pickupPin, &deliveryPin, &d.PickupPinVerified, &d.DeliveryPinVerified, &d.CanReschedule,
		&d.CancellationReason, &d.CancellationFee, &d.ScheduledAt, &d.AcceptedAt, &d.ArrivedPickupAt, &d.PickedUpAt,
		&d.ArrivedDropoffAt, &d.DeliveredAt, &d.CompletedAt, &d.CancelledAt, &d.FailedAt, &d.CreatedAt, &d.UpdatedAt, &d.Version,
	)
	if err != nil {
		return nil, err
	}
	if pickupPin != nil {
		d.PickupPin = *pickupPin
	}
	if deliveryPin != nil {
		d.DeliveryPin = *deliveryPin
	}
	return &d, nil
}

func collectDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	defer rows.Close()
	var out []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

const riderColumns = `id, name, phone, email, push_token, is_online, verification_status, is_suspended, is_active,
    availability, current_delivery_count, max_concurrent_deliveries,
    current_latitude, current_longitude, last_location_update`

func scanRider(row pgx.Row) (*domain.Rider, error) {
	var (
		r        domain.Rider
		lat, lng *float64
	)
	err := row.Scan(
		&r.ID, &r.Name, &r.Phone, &r.Email, &r.PushToken, &r.IsOnline, &r.VerificationStatus, &r.IsSuspended, &r.IsActive,
		&r.Availability, &r.CurrentDeliveryCount, &r.MaxConcurrentDeliveries,
		&lat, &lng, &r.LastLocationUpdate,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		r.Location = &domain.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return &r, nil
}
