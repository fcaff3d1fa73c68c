package handover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/ports/deliverytx"
)

const (
	stagePickup   = "pickup"
	stageDelivery = "delivery"
)

var (
	errDeliveryNotFound = apperr.New(apperr.ErrNotFound, "delivery not found")
	errNotAssigned      = apperr.New(apperr.ErrForbidden, "delivery is not assigned to you")
	errPinFormat        = apperr.New(apperr.ErrInvalid, "PIN must be 4 digits")
	errPinMismatch      = apperr.New(apperr.ErrInvalid, "incorrect PIN")
	errConcurrent       = apperr.New(apperr.ErrConflict, "delivery was modified concurrently, retry")
)

// Service reveals handover PINs to customers and verifies them from riders.
type Service struct {
	tx            deliverytx.Runner
	deliveries    deliveryReader
	events        eventPublisher
	pinRejections *prometheus.CounterVec

	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates the handover service. pinRejections may be nil.
func NewService(
	tx deliverytx.Runner,
	deliveries deliveryReader,
	events eventPublisher,
	pinRejections *prometheus.CounterVec,
	operationTimeout time.Duration,
	logger logx.Logger,
) *Service {
	if operationTimeout <= 0 {
		operationTimeout = 3 * time.Second
	}
	return &Service{
		tx:               tx,
		deliveries:       deliveries,
		events:           events,
		pinRejections:    pinRejections,
		operationTimeout: operationTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// PickupPin returns the pickup PIN to the owning customer once the delivery is paid.
func (s *Service) PickupPin(ctx context.Context, actor domain.Actor, id int64) (string, error) {
	d, err := s.readable(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if !d.PickupPinVisible() {
		return "", apperr.New(apperr.ErrForbidden, "pickup PIN is available once payment is confirmed")
	}
	return d.PickupPin, nil
}

// DeliveryPin returns the delivery PIN to the owning customer once the pickup PIN was verified.
func (s *Service) DeliveryPin(ctx context.Context, actor domain.Actor, id int64) (string, error) {
	d, err := s.readable(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if !d.DeliveryPinVisible() {
		return "", apperr.New(apperr.ErrForbidden, "delivery PIN is available after pickup is verified")
	}
	return d.DeliveryPin, nil
}

func (s *Service) readable(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error) {
	if actor.Role == domain.RoleRider {
		return nil, apperr.New(apperr.ErrForbidden, "riders cannot read handover PINs")
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	d, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errDeliveryNotFound
	}
	if !d.IsParty(actor) {
		return nil, apperr.New(apperr.ErrForbidden, "you do not have access to this delivery")
	}
	return d, nil
}

// VerifyPickupPin checks the PIN the rider collected at pickup. A match moves the delivery to
// PICKUP_IN_PROGRESS; a mismatch changes nothing and may be retried.
func (s *Service) VerifyPickupPin(ctx context.Context, actor domain.Actor, id int64, pin string) (*domain.Delivery, error) {
	return s.verify(ctx, actor, id, pin, stagePickup, func(d *domain.Delivery) (string, error) {
		if d.PickupPinVerified || !domain.PickupPinAccepted(d.Status) {
			return "", apperr.New(apperr.ErrInvalidTransition,
				fmt.Sprintf("pickup PIN cannot be verified in status %s", d.Status))
		}
		if d.PaymentStatus != domain.PaymentPaid {
			return "", apperr.New(apperr.ErrInvalidTransition, "payment must be confirmed before pickup")
		}
		return d.PickupPin, nil
	}, func(ctx context.Context, tx deliverytx.Repository, at time.Time) (bool, error) {
		return tx.VerifyPickupPin(ctx, id, actor.ID, pin, at)
	})
}

// VerifyDeliveryPin checks the PIN the rider collected at dropoff. A match delivers the parcel
// and frees the rider's capacity slot.
func (s *Service) VerifyDeliveryPin(ctx context.Context, actor domain.Actor, id int64, pin string) (*domain.Delivery, error) {
	return s.verify(ctx, actor, id, pin, stageDelivery, func(d *domain.Delivery) (string, error) {
		if d.DeliveryPinVerified || !domain.DeliveryPinAccepted(d.Status) {
			return "", apperr.New(apperr.ErrInvalidTransition,
				fmt.Sprintf("delivery PIN cannot be verified in status %s", d.Status))
		}
		return d.DeliveryPin, nil
	}, func(ctx context.Context, tx deliverytx.Repository, at time.Time) (bool, error) {
		return tx.VerifyDeliveryPin(ctx, id, actor.ID, pin, at)
	})
}

type (
	pinCheck func(d *domain.Delivery) (stored string, err error)
	pinWrite func(ctx context.Context, tx deliverytx.Repository, at time.Time) (bool, error)
)

func (s *Service) verify(ctx context.Context, actor domain.Actor, id int64, pin, stage string, check pinCheck, write pinWrite) (*domain.Delivery, error) {
	if actor.Role != domain.RoleRider {
		return nil, apperr.New(apperr.ErrForbidden, "only the assigned rider can verify a PIN")
	}
	if !domain.ValidPinFormat(pin) {
		return nil, errPinFormat
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	var (
		d    *domain.Delivery
		prev domain.DeliveryStatus
	)
	err := s.tx.WithTx(ctx, func(tx deliverytx.Repository) error {
		cur, err := tx.GetDelivery(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return errDeliveryNotFound
		}
		if !cur.HasRider(actor.ID) {
			return errNotAssigned
		}
		stored, err := check(cur)
		if err != nil {
			return err
		}
		if !domain.PinMatches(stored, pin) {
			return errPinMismatch
		}
		prev = cur.Status

		ok, err := write(ctx, tx, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return errConcurrent
		}
		if d, err = tx.GetDelivery(ctx, id); err != nil {
			return err
		}
		if domain.ReleasesRider(prev, d.Status) {
			return tx.ReleaseRider(ctx, actor.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errPinMismatch) {
			if s.pinRejections != nil {
				s.pinRejections.WithLabelValues(stage).Inc()
			}
			s.logger.Warn("handover PIN rejected",
				logx.Int64("delivery_id", id),
				logx.Int64("rider_id", actor.ID),
				logx.String("stage", stage),
			)
		}
		return nil, err
	}

	s.logger.Info("handover PIN verified",
		logx.Int64("delivery_id", id),
		logx.Int64("rider_id", actor.ID),
		logx.String("stage", stage),
	)
	if prev != d.Status {
		s.events.Publish(ctx, domain.NewEvent(domain.EventStatusChanged, d, prev, d.UpdatedAt))
	}
	if d.Status == domain.StatusDelivered {
		s.events.Publish(ctx, domain.NewEvent(domain.EventDelivered, d, prev, d.UpdatedAt))
	}
	return d, nil
}
