package kafka

import (
	"strings"
	"time"

	"parcel-dispatch/internal/service/payments"
)

// EventDTO is the wire form of a payment event
type EventDTO struct {
	DeliveryID int64     `json:"delivery_id"`
	Status     string    `json:"status"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ToDomain converts EventDTO to payments.Event
func ToDomain(dto EventDTO) payments.Event {
	return payments.Event{
		DeliveryID: dto.DeliveryID,
		Status:     strings.TrimSpace(dto.Status),
		Reference:  strings.TrimSpace(dto.Reference),
		OccurredAt: dto.OccurredAt,
	}
}
