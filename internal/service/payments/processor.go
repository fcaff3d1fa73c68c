package payments

import (
	"context"
	"errors"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/logx"
)

// Processor applies payment events to deliveries.
type Processor struct {
	delivery DeliveryPort
	factory  *actionFactory
	logger   logx.Logger
}

// NewProcessor creates a new payments.Processor
func NewProcessor(delivery DeliveryPort, logger logx.Logger) *Processor {
	p := &Processor{delivery: delivery, logger: logger}
	p.factory = newActionFactory(p.onPaid, p.onFailed)
	return p
}

// Handle processes a single payments.Event. Unknown statuses are ignored.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	fn, ok := p.factory.get(e.Status)
	if !ok {
		p.logger.Debug("payment status ignored",
			logx.Int64("delivery_id", e.DeliveryID),
			logx.String("status", e.Status),
		)
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onPaid(ctx context.Context, e Event) error {
	d, err := p.delivery.ConfirmPayment(ctx, e.DeliveryID)
	if err != nil {
		return p.settle(e, err)
	}
	p.logger.Info("payment confirmed",
		logx.Int64("delivery_id", d.ID),
		logx.String("reference", e.Reference),
		logx.String("status", string(d.Status)),
	)
	return nil
}

func (p *Processor) onFailed(ctx context.Context, e Event) error {
	_, err := p.delivery.FailPayment(ctx, e.DeliveryID)
	if err != nil {
		return p.settle(e, err)
	}
	p.logger.Info("payment failed",
		logx.Int64("delivery_id", e.DeliveryID),
		logx.String("reference", e.Reference),
	)
	return nil
}

// settle drops events that can never apply, such as an unknown delivery.
// Storage errors and write conflicts are returned so the message is redelivered.
func (p *Processor) settle(e Event, err error) error {
	if apperr.Expected(err) && !errors.Is(err, apperr.ErrConflict) {
		p.logger.Warn("payment event not applied",
			logx.Int64("delivery_id", e.DeliveryID),
			logx.String("status", e.Status),
			logx.String("kind", apperr.KindOf(err)),
		)
		return nil
	}
	return err
}
