package handlers

import (
	"time"

	"parcel-dispatch/internal/domain"
)

type locationDTO struct {
	Address string  `json:"address" validate:"required,max=255"`
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
}

type parcelDTO struct {
	Description string  `json:"description" validate:"max=500"`
	WeightKg    float64 `json:"weight_kg" validate:"gt=0,lte=100"`
	Size        string  `json:"size,omitempty" validate:"max=32"`
}

type createDeliveryRequest struct {
	Type        domain.DeliveryType `json:"type" validate:"required,oneof=quick scheduled"`
	Pickup      locationDTO         `json:"pickup"`
	Dropoff     locationDTO         `json:"dropoff"`
	Parcel      parcelDTO           `json:"parcel"`
	ScheduledAt *time.Time          `json:"scheduled_at,omitempty" validate:"required_if=Type scheduled"`
	Coupon      string              `json:"coupon,omitempty" validate:"max=64"`
}

type updateStatusRequest struct {
	Status domain.DeliveryStatus `json:"status" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type verifyPinRequest struct {
	Pin string `json:"pin" validate:"required"`
}

type riderLocationRequest struct {
	DeliveryID int64    `json:"delivery_id" validate:"gte=0"`
	Lat        float64  `json:"lat" validate:"latitude"`
	Lng        float64  `json:"lng" validate:"longitude"`
	Heading    *float64 `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Speed      *float64 `json:"speed,omitempty" validate:"omitempty,gte=0"`
}

type onlineRequest struct {
	Online *bool `json:"online" validate:"required"`
}

type chatSendRequest struct {
	Content string `json:"content" validate:"required"`
}

type deliveryDTO struct {
	ID                  int64                 `json:"id"`
	TrackingCode        string                `json:"tracking_code"`
	CustomerID          int64                 `json:"customer_id"`
	RiderID             *int64                `json:"rider_id,omitempty"`
	Type                domain.DeliveryType   `json:"type"`
	Status              domain.DeliveryStatus `json:"status"`
	PaymentStatus       domain.PaymentStatus  `json:"payment_status"`
	Pickup              domain.Location       `json:"pickup"`
	Dropoff             domain.Location       `json:"dropoff"`
	Parcel              domain.Parcel         `json:"parcel"`
	Price               domain.PriceBreakdown `json:"price"`
	PickupPinVerified   bool                  `json:"pickup_pin_verified"`
	DeliveryPinVerified bool                  `json:"delivery_pin_verified"`
	CancellationReason  string                `json:"cancellation_reason,omitempty"`
	CancellationFee     int64                 `json:"cancellation_fee,omitempty"`
	ScheduledAt         *time.Time            `json:"scheduled_at,omitempty"`
	AcceptedAt          *time.Time            `json:"accepted_at,omitempty"`
	PickedUpAt          *time.Time            `json:"picked_up_at,omitempty"`
	DeliveredAt         *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt         *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

type riderDTO struct {
	ID                      int64                    `json:"id"`
	Name                    string                   `json:"name"`
	IsOnline                bool                     `json:"is_online"`
	Availability            domain.RiderAvailability `json:"availability"`
	CurrentDeliveryCount    int                      `json:"current_delivery_count"`
	MaxConcurrentDeliveries int                      `json:"max_concurrent_deliveries"`
}

type etaDTO struct {
	DeliveryID int64   `json:"delivery_id"`
	Minutes    int     `json:"minutes"`
	DistanceKm float64 `json:"distance_km"`
	Target     string  `json:"target"`
}

type pinDTO struct {
	Pin string `json:"pin"`
}
