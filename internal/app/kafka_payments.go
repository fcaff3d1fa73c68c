package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/service/payments"
	"parcel-dispatch/internal/transport/kafka"
)

const paymentMaxAttempts = 5

type paymentHandler interface {
	Handle(ctx context.Context, e payments.Event) error
}

// makePaymentsKafka retries a failing payment event in place and gives up
// after maxAttempts, so one poisoned message cannot stall the partition.
func makePaymentsKafka(p paymentHandler, logger logx.Logger, maxAttempts int) kafka.HandleFunc {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		mu       sync.Mutex
		attempts = make(map[string]int)
	)
	return func(ctx context.Context, e payments.Event) error {
		key := strconv.FormatInt(e.DeliveryID, 10) + "/" + e.Status + "/" + e.Reference
		err := p.Handle(ctx, e)

		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			delete(attempts, key)
			return nil
		}
		attempts[key]++
		n := attempts[key]
		if n < maxAttempts {
			return err
		}
		delete(attempts, key)
		logger.Error("payment event dropped after retries",
			logx.Int64("delivery_id", e.DeliveryID),
			logx.String("status", e.Status),
			logx.String("reference", e.Reference),
			logx.Int("attempts", n),
			logx.Any("err", err),
		)
		return kafka.Permanent(fmt.Errorf("after %d attempts: %w", n, err))
	}
}
