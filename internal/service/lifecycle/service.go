package lifecycle

import (
	"context"
	"fmt"
	"time"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/ports/deliverytx"
)

// Service drives the delivery state machine.
type Service struct {
	tx               deliverytx.Runner
	deliveries       deliveryReader
	customers        customerReader
	quoter           Quoter
	events           eventPublisher
	cancellation     CancellationPolicy
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// Options configures Service.
type Options struct {
	OperationTimeout time.Duration
	Cancellation     CancellationPolicy
}

// NewService creates the lifecycle service.
func NewService(
	tx deliverytx.Runner,
	deliveries deliveryReader,
	customers customerReader,
	quoter Quoter,
	events eventPublisher,
	opts Options,
	logger logx.Logger,
) *Service {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 3 * time.Second
	}
	return &Service{
		tx:               tx,
		deliveries:       deliveries,
		customers:        customers,
		quoter:           quoter,
		events:           events,
		cancellation:     opts.Cancellation,
		operationTimeout: opts.OperationTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// CreateInput describes a new delivery request.
type CreateInput struct {
	Type        domain.DeliveryType
	Pickup      domain.Location
	Dropoff     domain.Location
	Parcel      domain.Parcel
	ScheduledAt *time.Time
	Coupon      string
}

func (s *Service) validateCreate(in CreateInput) error {
	if !in.Type.Valid() {
		return apperr.New(apperr.ErrInvalid, "unknown delivery type")
	}
	if !in.Pickup.Point().Valid() || !in.Dropoff.Point().Valid() {
		return apperr.New(apperr.ErrInvalid, "invalid coordinates")
	}
	if in.Parcel.WeightKg <= 0 {
		return apperr.New(apperr.ErrInvalid, "parcel weight must be positive")
	}
	if in.Type == domain.DeliveryScheduled && (in.ScheduledAt == nil || !in.ScheduledAt.After(s.now())) {
		return apperr.New(apperr.ErrInvalid, "scheduled deliveries need a future scheduled time")
	}
	return nil
}

// Create stores a delivery. Quick deliveries go straight to SEARCHING_RIDER; scheduled ones wait
// for payment in SCHEDULED.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Delivery, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, apperr.New(apperr.ErrForbidden, "only customers can create deliveries")
	}
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.customers.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.New(apperr.ErrNotFound, "customer not found")
	}

	price, err := s.quoter.Quote(ctx, QuoteRequest{
		Pickup: in.Pickup, Dropoff: in.Dropoff, WeightKg: in.Parcel.WeightKg,
		ScheduledAt: in.ScheduledAt, Coupon: in.Coupon,
	})
	if err != nil {
		return nil, fmt.Errorf("quote delivery: %w", err)
	}

	now := s.now()
	d := &domain.Delivery{
		TrackingCode:  domain.NewTrackingCode(),
		CustomerID:    c.ID,
		Type:          in.Type,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		Pickup:        in.Pickup,
		Dropoff:       in.Dropoff,
		Parcel:        in.Parcel,
		Price:         price,
		CanReschedule: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Type == domain.DeliveryScheduled {
		d.Status = domain.StatusScheduled
		d.ScheduledAt = in.ScheduledAt
	}

	var out []domain.Event
	err = s.tx.WithTx(ctx, func(tx deliverytx.Repository) error {
		out = nil
		if err := tx.InsertDelivery(ctx, d); err != nil {
			return err
		}
		out = append(out, domain.NewEvent(domain.EventDeliveryCreated, d, "", now))
		if d.Type == domain.DeliveryQuick {
			ev, err := s.advance(ctx, tx, d, domain.StatusChange{To: domain.StatusSearchingRider})
			if err != nil {
				return err
			}
			out = append(out, ev...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery created",
		logx.Int64("delivery_id", d.ID),
		logx.String("tracking_code", d.TrackingCode),
		logx.String("type", string(d.Type)),
		logx.Int64("total", d.Price.Total),
	)
	s.publish(ctx, out)
	return d, nil
}

// Get returns a delivery visible to actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errDeliveryNotFound
	}
	if !d.IsParty(actor) {
		return nil, errNotParty
	}
	return d, nil
}

var (
	errDeliveryNotFound = apperr.New(apperr.ErrNotFound, "delivery not found")
	errNotParty         = apperr.New(apperr.ErrForbidden, "you are not a party of this delivery")
	errNotRider         = apperr.New(apperr.ErrForbidden, "only the assigned rider can update this delivery")
	errConcurrent       = apperr.New(apperr.ErrConflict, "delivery was modified concurrently, retry")
)

func authorizeRider(d *domain.Delivery, actor domain.Actor) error {
	if actor.IsAdmin() || (actor.Role == domain.RoleRider && d.HasRider(actor.ID)) {
		return nil
	}
	return errNotRider
}

// UpdateStatus moves a delivery to next on behalf of its rider or an administrator.
// Administrators bypass the PIN and payment gates but never the allow-list.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id int64, next domain.DeliveryStatus) (*domain.Delivery, error) {
	if !next.Valid() {
		return nil, apperr.New(apperr.ErrInvalid, fmt.Sprintf("unknown status %q", next))
	}
	switch next {
	case domain.StatusRiderArrivedPickup:
		return s.ArrivePickup(ctx, actor, id)
	case domain.StatusCancelled:
		return s.Cancel(ctx, actor, id, "")
	}

	return s.mutate(ctx, id, func(tx deliverytx.Repository, d *domain.Delivery) ([]domain.Event, error) {
		if err := authorizeRider(d, actor); err != nil {
			return nil, err
		}
		if next == domain.StatusAwaitingPayment && d.PaymentStatus == domain.PaymentPaid {
			return nil, apperr.New(apperr.ErrInvalidTransition, "delivery is already paid")
		}
		if !actor.IsAdmin() {
			if next.Gated() && d.Status.CanTransition(next) {
				return nil, apperr.New(apperr.ErrInvalidTransition,
					fmt.Sprintf("status %s is reached through PIN verification or payment confirmation", next))
			}
			if next == domain.StatusPickedUp && !d.PickupPinVerified {
				return nil, apperr.New(apperr.ErrInvalidTransition, "pickup PIN has not been verified")
			}
		}
		return s.advance(ctx, tx, d, domain.StatusChange{To: next})
	})
}

// ArrivePickup marks the rider at the pickup point. Unpaid deliveries continue to AWAITING_PAYMENT
// in the same transaction; paid ones get their PINs.
func (s *Service) ArrivePickup(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error) {
	return s.mutate(ctx, id, func(tx deliverytx.Repository, d *domain.Delivery) ([]domain.Event, error) {
		if err := authorizeRider(d, actor); err != nil {
			return nil, err
		}
		out, err := s.advance(ctx, tx, d, domain.StatusChange{To: domain.StatusRiderArrivedPickup})
		if err != nil {
			return nil, err
		}
		if d.PaymentStatus == domain.PaymentPaid {
			return out, s.ensurePins(ctx, tx, d)
		}
		more, err := s.advance(ctx, tx, d, domain.StatusChange{To: domain.StatusAwaitingPayment})
		if err != nil {
			return nil, err
		}
		more[0] = more[0].With("paymentRequired", true).With("amount", d.Price.Total)
		return append(out, more...), nil
	})
}

// ArriveDropoff marks the rider at the dropoff point.
func (s *Service) ArriveDropoff(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error) {
	return s.UpdateStatus(ctx, actor, id, domain.StatusRiderArrivedDropoff)
}

// Cancel cancels a delivery for its customer or an administrator and records the fee.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id int64, reason string) (*domain.Delivery, error) {
	return s.mutate(ctx, id, func(tx deliverytx.Repository, d *domain.Delivery) ([]domain.Event, error) {
		if !actor.IsAdmin() && !(actor.Role == domain.RoleCustomer && d.CustomerID == actor.ID) {
			return nil, apperr.New(apperr.ErrForbidden, "only the customer can cancel this delivery")
		}
		if !Cancellable(d.Status) {
			return nil, apperr.New(apperr.ErrInvalidTransition,
				fmt.Sprintf("delivery in status %s can no longer be cancelled", d.Status))
		}
		fee := s.cancellation.Fee(d)
		out, err := s.advance(ctx, tx, d, domain.StatusChange{
			To:                 domain.StatusCancelled,
			CancellationReason: reason,
			CancellationFee:    fee,
		})
		if err != nil {
			return nil, err
		}
		out[0] = out[0].With("cancellationFee", fee)
		return out, nil
	})
}

// ConfirmPayment reacts to a completed payment: marks it paid, issues PINs and releases the
// payment gate or the scheduled hold. Repeated confirmations are no-ops.
func (s *Service) ConfirmPayment(ctx context.Context, id int64) (*domain.Delivery, error) {
	return s.mutate(ctx, id, func(tx deliverytx.Repository, d *domain.Delivery) ([]domain.Event, error) {
		if d.PaymentStatus != domain.PaymentPaid {
			if err := tx.SetPaymentStatus(ctx, d.ID, domain.PaymentPaid); err != nil {
				return nil, err
			}
			d.PaymentStatus = domain.PaymentPaid
		}
		if d.Status.Terminal() {
			return nil, nil
		}
		if err := s.ensurePins(ctx, tx, d); err != nil {
			return nil, err
		}
		switch d.Status {
		case domain.StatusAwaitingPayment:
			out, err := s.advance(ctx, tx, d, domain.StatusChange{To: domain.StatusPaymentConfirmed})
			if err != nil {
				return nil, err
			}
			out[0] = out[0].With("paymentConfirmed", true)
			return out, nil
		case domain.StatusScheduled:
			return s.advance(ctx, tx, d, domain.StatusChange{To: domain.StatusSearchingRider})
		}
		return nil, nil
	})
}

// FailPayment records a failed payment. A delivery already paid is left untouched.
func (s *Service) FailPayment(ctx context.Context, id int64) (*domain.Delivery, error) {
	return s.mutate(ctx, id, func(tx deliverytx.Repository, d *domain.Delivery) ([]domain.Event, error) {
		if d.PaymentStatus == domain.PaymentPaid || d.PaymentStatus == domain.PaymentFailed {
			return nil, nil
		}
		if err := tx.SetPaymentStatus(ctx, d.ID, domain.PaymentFailed); err != nil {
			return nil, err
		}
		d.PaymentStatus = domain.PaymentFailed
		return nil, nil
	})
}

type mutation func(tx deliverytx.Repository, d *domain.Delivery) ([]domain.Event, error)

// mutate loads the delivery inside a transaction, applies fn and publishes its events after commit.
func (s *Service) mutate(ctx context.Context, id int64, fn mutation) (*domain.Delivery, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		d   *domain.Delivery
		out []domain.Event
	)
	err := s.tx.WithTx(ctx, func(tx deliverytx.Repository) error {
		var err error
		d, err = tx.GetDelivery(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return errDeliveryNotFound
		}
		out, err = fn(tx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, out)
	return d, nil
}

// advance applies one allow-listed compare-and-set transition and its capacity side effect.
// d is updated in place to match the stored row.
func (s *Service) advance(ctx context.Context, tx deliverytx.Repository, d *domain.Delivery, c domain.StatusChange) ([]domain.Event, error) {
	if !d.Status.CanTransition(c.To) {
		return nil, apperr.New(apperr.ErrInvalidTransition,
			fmt.Sprintf("cannot move delivery from %s to %s", d.Status, c.To))
	}
	c.DeliveryID = d.ID
	c.From = d.Status
	c.Version = d.Version
	c.At = s.now()

	ok, err := tx.TransitionStatus(ctx, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errConcurrent
	}
	d.Apply(c)

	if d.RiderID != nil && domain.ReleasesRider(c.From, c.To) {
		if err := tx.ReleaseRider(ctx, *d.RiderID); err != nil {
			return nil, err
		}
	}

	out := []domain.Event{domain.NewEvent(domain.EventStatusChanged, d, c.From, c.At)}
	if c.To == domain.StatusDelivered {
		out = append(out, domain.NewEvent(domain.EventDelivered, d, c.From, c.At))
	}
	return out, nil
}

// ensurePins issues both handover PINs once. Stored PINs are never replaced.
func (s *Service) ensurePins(ctx context.Context, tx deliverytx.Repository, d *domain.Delivery) error {
	if d.PickupPin != "" && d.DeliveryPin != "" {
		return nil
	}
	pickup, err := domain.NewPin()
	if err != nil {
		return err
	}
	delivery, err := domain.NewPin()
	if err != nil {
		return err
	}
	if err := tx.SetPins(ctx, d.ID, pickup, delivery); err != nil {
		return err
	}
	if d.PickupPin == "" {
		d.PickupPin = pickup
	}
	if d.DeliveryPin == "" {
		d.DeliveryPin = delivery
	}
	return nil
}

func (s *Service) publish(ctx context.Context, out []domain.Event) {
	for _, e := range out {
		if e.Name == domain.EventStatusChanged {
			s.logger.Info("delivery status changed",
				logx.Int64("delivery_id", e.DeliveryID),
				logx.String("from", string(e.PreviousStatus)),
				logx.String("to", string(e.Status)),
			)
		}
		s.events.Publish(ctx, e)
	}
}
