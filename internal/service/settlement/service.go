package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/ports/deliverytx"
)

// Service credits rider earnings for delivered parcels exactly once.
type Service struct {
	tx         deliverytx.Runner
	deliveries deliveryReader
	commission CommissionSource
	credits    *prometheus.CounterVec

	operationTimeout time.Duration
	logger           logx.Logger
}

// NewService creates the settlement service. credits may be nil.
func NewService(
	tx deliverytx.Runner,
	deliveries deliveryReader,
	commission CommissionSource,
	credits *prometheus.CounterVec,
	operationTimeout time.Duration,
	logger logx.Logger,
) *Service {
	if operationTimeout <= 0 {
		operationTimeout = 3 * time.Second
	}
	return &Service{
		tx:               tx,
		deliveries:       deliveries,
		commission:       commission,
		credits:          credits,
		operationTimeout: operationTimeout,
		logger:           logger,
	}
}

// Credit creates the earning for the delivery's rider and increments their wallet in one transaction.
// created is false when the earning already existed; that is a successful no-op.
func (s *Service) Credit(ctx context.Context, deliveryID int64) (e *domain.Earning, created bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()
	defer func() { s.count(created, err) }()

	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, false, err
	}
	if d == nil {
		return nil, false, apperr.New(apperr.ErrNotFound, "delivery not found")
	}
	if d.RiderID == nil {
		return nil, false, apperr.New(apperr.ErrInvalidTransition, "delivery has no rider to credit")
	}
	if d.Status != domain.StatusDelivered && d.Status != domain.StatusCompleted {
		return nil, false, apperr.New(apperr.ErrInvalidTransition,
			fmt.Sprintf("delivery in status %s is not settled", d.Status))
	}

	c, err := s.commission.Commission(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load commission: %w", err)
	}
	e = &domain.Earning{
		RiderID:        *d.RiderID,
		DeliveryID:     d.ID,
		Amount:         c.Payout(d.Price.Total),
		CommissionRate: c.Rate,
	}

	err = s.tx.WithTx(ctx, func(tx deliverytx.Repository) error {
		ok, err := tx.InsertEarning(ctx, e)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		created = true
		return tx.CreditWallet(ctx, e.RiderID, e.Amount)
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("rider earning credited",
			logx.Int64("delivery_id", d.ID),
			logx.Int64("rider_id", e.RiderID),
			logx.Int64("amount", e.Amount),
		)
	}
	return e, created, nil
}

func (s *Service) count(created bool, err error) {
	if s.credits == nil {
		return
	}
	result := "duplicate"
	switch {
	case err != nil:
		result = "failed"
	case created:
		result = "created"
	}
	s.credits.WithLabelValues(result).Inc()
}

// OnEvent credits on delivery.delivered. Failures are logged and left to Sweep; the
// delivery itself is never affected. It is an events.Handler.
func (s *Service) OnEvent(ctx context.Context, e domain.Event) error {
	if e.Name != domain.EventDelivered {
		return nil
	}
	if _, _, err := s.Credit(ctx, e.DeliveryID); err != nil {
		s.logger.Error("settlement credit failed",
			logx.Int64("delivery_id", e.DeliveryID),
			logx.Any("err", err),
		)
	}
	return nil
}

// Sweep retries settlement for delivered parcels without an earning and returns how many were credited.
func (s *Service) Sweep(ctx context.Context, limit int) (int, error) {
	pending, err := s.deliveries.ListUnsettled(ctx, limit)
	if err != nil {
		return 0, err
	}
	credited := 0
	for _, d := range pending {
		_, created, err := s.Credit(ctx, d.ID)
		if err != nil {
			s.logger.Warn("settlement retry failed",
				logx.Int64("delivery_id", d.ID),
				logx.Any("err", err),
			)
			continue
		}
		if created {
			credited++
		}
	}
	return credited, nil
}
