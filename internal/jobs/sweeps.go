package jobs

import (
	"context"
	"time"
)

type settlementSweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

type dispatchSweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// SettlementRetry re-credits delivered deliveries that have no earnings record yet.
func SettlementRetry(svc settlementSweeper, spec string) Job {
	return Job{
		Name: "settlement_retry",
		Spec: spec,
		Run: func(ctx context.Context) (int, error) {
			return svc.Sweep(ctx, sweepBatch)
		},
	}
}

// Redispatch re-offers deliveries that have been searching for a rider longer than after.
// It never cancels or expires them.
func Redispatch(svc dispatchSweeper, spec string, after time.Duration) Job {
	return Job{
		Name: "redispatch",
		Spec: spec,
		Run: func(ctx context.Context) (int, error) {
			return svc.Sweep(ctx, after, sweepBatch)
		},
	}
}
