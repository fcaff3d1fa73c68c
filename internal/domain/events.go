package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventName names a domain event.
type EventName string

// List of domain events.
const (
	EventDeliveryCreated EventName = "delivery.created"
	EventStatusChanged   EventName = "delivery.status_changed"
	EventDelivered       EventName = "delivery.delivered"
	EventRiderUnassigned EventName = "delivery.rider_unassigned"
)

// Event is emitted after a committed state change. Subscribers must tolerate duplicates.
type Event struct {
	ID             string         `json:"id"`
	Name           EventName      `json:"name"`
	DeliveryID     int64          `json:"delivery_id"`
	TrackingCode   string         `json:"tracking_code"`
	CustomerID     int64          `json:"customer_id"`
	RiderID        *int64         `json:"rider_id,omitempty"`
	Status         DeliveryStatus `json:"status"`
	PreviousStatus DeliveryStatus `json:"previous_status,omitempty"`
	Label          string         `json:"label,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// NewEvent builds an event snapshot of d.
func NewEvent(name EventName, d *Delivery, prev DeliveryStatus, at time.Time) Event {
	e := Event{
		ID:             uuid.NewString(),
		Name:           name,
		DeliveryID:     d.ID,
		TrackingCode:   d.TrackingCode,
		CustomerID:     d.CustomerID,
		Status:         d.Status,
		PreviousStatus: prev,
		OccurredAt:     at,
	}
	if d.RiderID != nil {
		id := *d.RiderID
		e.RiderID = &id
	}
	if name == EventStatusChanged {
		e.Label = d.Status.Label()
	}
	return e
}

// With sets a data field and returns the event.
func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}
