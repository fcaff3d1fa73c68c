package app

import (
	"go.uber.org/dig"

	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/http/middleware/ratelimit"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/metrics"
)

const pinLimitClass = "pin"

func newRateLimiter(clock ratelimit.Clock, rl config.RateLimit, rate float64, burst int) ratelimit.Limiter {
	if !rl.Enabled {
		return ratelimit.NopLimiter{}
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       rate,
		Burst:      burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitOut struct {
	dig.Out
	API *ratelimit.Middleware
	Pin *ratelimit.Middleware `name:"pin_rate_limit"`
}

// newRateLimitMiddleware builds the default API budget and the stricter budget
// of PIN submissions.
func newRateLimitMiddleware(cfg *config.Config, clock ratelimit.Clock, set *metrics.Set, logger logx.Logger) rateLimitOut {
	rl := cfg.RateLimit
	api := ratelimit.New(logger, set.RateLimitExceeded, newRateLimiter(clock, rl, rl.Rate, rl.Burst))
	pin := api.Class(pinLimitClass, newRateLimiter(clock, rl, rl.PinRate, rl.PinBurst))
	return rateLimitOut{API: api, Pin: pin}
}
