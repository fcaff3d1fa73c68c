package lifecycle

import (
	"context"
	"math"
	"time"

	"parcel-dispatch/internal/domain"
)

// QuoteRequest is the input of the pricing function.
type QuoteRequest struct {
	Pickup      domain.Location
	Dropoff     domain.Location
	WeightKg    float64
	ScheduledAt *time.Time
	Coupon      string
}

// StaticQuoter prices by straight-line distance and weight. It stands in for the pricing service.
type StaticQuoter struct {
	BaseFee  int64
	PerKm    int64
	PerKg    int64
	Currency string
}

// Quote implements Quoter.
func (q StaticQuoter) Quote(_ context.Context, r QuoteRequest) (domain.PriceBreakdown, error) {
	km := domain.HaversineKm(r.Pickup.Point(), r.Dropoff.Point())
	p := domain.PriceBreakdown{
		BaseFee:     q.BaseFee,
		DistanceFee: int64(math.Round(km * float64(q.PerKm))),
		WeightFee:   int64(math.Round(r.WeightKg * float64(q.PerKg))),
		Multiplier:  1,
		Currency:    q.Currency,
	}
	p.Total = p.BaseFee + p.DistanceFee + p.WeightFee
	return p, nil
}
