package domain

import (
	"math"
	"time"
)

// Earning is a rider payout for one delivery. At most one exists per (rider, delivery).
type Earning struct {
	ID             int64
	RiderID        int64
	DeliveryID     int64
	Amount         int64
	CommissionRate float64
	CreatedAt      time.Time
}

// Commission is the payout configuration.
type Commission struct {
	// Rate is the share of the delivery total paid to the rider.
	Rate float64
	// MinimumPayout is in minor currency units.
	MinimumPayout int64
}

// Payout returns max(round(total*rate), minimum).
func (c Commission) Payout(total int64) int64 {
	amount := int64(math.Round(float64(total) * c.Rate))
	if amount < c.MinimumPayout {
		return c.MinimumPayout
	}
	return amount
}
