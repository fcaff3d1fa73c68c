package handlers

import (
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/service/lifecycle"
	"parcel-dispatch/internal/service/rider"
)

func (r createDeliveryRequest) toInput() lifecycle.CreateInput {
	return lifecycle.CreateInput{
		Type:    r.Type,
		Pickup:  domain.Location(r.Pickup),
		Dropoff: domain.Location(r.Dropoff),
		Parcel: domain.Parcel{
			Description: r.Parcel.Description,
			WeightKg:    r.Parcel.WeightKg,
			Size:        r.Parcel.Size,
		},
		ScheduledAt: r.ScheduledAt,
		Coupon:      r.Coupon,
	}
}

func (r riderLocationRequest) toInput() rider.LocationInput {
	return rider.LocationInput{
		DeliveryID: r.DeliveryID,
		Lat:        r.Lat,
		Lng:        r.Lng,
		Heading:    r.Heading,
		Speed:      r.Speed,
	}
}

// deliveryToResponse never exposes the handover PINs.
func deliveryToResponse(d *domain.Delivery) deliveryDTO {
	return deliveryDTO{
		ID:                  d.ID,
		TrackingCode:        d.TrackingCode,
		CustomerID:          d.CustomerID,
		RiderID:             d.RiderID,
		Type:                d.Type,
		Status:              d.Status,
		PaymentStatus:       d.PaymentStatus,
		Pickup:              d.Pickup,
		Dropoff:             d.Dropoff,
		Parcel:              d.Parcel,
		Price:               d.Price,
		PickupPinVerified:   d.PickupPinVerified,
		DeliveryPinVerified: d.DeliveryPinVerified,
		CancellationReason:  d.CancellationReason,
		CancellationFee:     d.CancellationFee,
		ScheduledAt:         d.ScheduledAt,
		AcceptedAt:          d.AcceptedAt,
		PickedUpAt:          d.PickedUpAt,
		DeliveredAt:         d.DeliveredAt,
		CancelledAt:         d.CancelledAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func riderToResponse(r *domain.Rider) riderDTO {
	return riderDTO{
		ID:                      r.ID,
		Name:                    r.Name,
		IsOnline:                r.IsOnline,
		Availability:            r.Availability,
		CurrentDeliveryCount:    r.CurrentDeliveryCount,
		MaxConcurrentDeliveries: r.MaxConcurrentDeliveries,
	}
}

func etaToResponse(e *rider.Eta) *etaDTO {
	if e == nil {
		return nil
	}
	return &etaDTO{
		DeliveryID: e.DeliveryID,
		Minutes:    e.Minutes,
		DistanceKm: e.DistanceKm,
		Target:     e.Target,
	}
}
