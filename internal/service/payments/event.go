package payments

import "time"

// Event is a payment outcome reported by the wallet system.
type Event struct {
	DeliveryID int64     `json:"delivery_id"`
	Status     string    `json:"status"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}
