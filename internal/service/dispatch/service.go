package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/notify"
	"parcel-dispatch/internal/ports/deliverytx"
	"parcel-dispatch/internal/realtime"
)

// Options configures Service.
type Options struct {
	RadiusKm         float64
	OfferTTL         time.Duration
	OperationTimeout time.Duration
	// NotifyTimeout bounds each rider's offer, retries included. It is not tied to OperationTimeout.
	NotifyTimeout time.Duration
}

// Metrics are optional collectors updated by Service.
type Metrics struct {
	Offers          *prometheus.CounterVec
	AcceptConflicts prometheus.Counter
}

// Service finds riders for deliveries and resolves the accept race.
type Service struct {
	tx         deliverytx.Runner
	deliveries deliveryReader
	riders     riderFinder
	notifier   notifier
	realtime   realtimePublisher
	events     eventPublisher
	metrics    Metrics

	radiusKm         float64
	offerTTL         time.Duration
	operationTimeout time.Duration
	notifyTimeout    time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates the dispatch service.
func NewService(
	tx deliverytx.Runner,
	deliveries deliveryReader,
	riders riderFinder,
	notifier notifier,
	rt realtimePublisher,
	events eventPublisher,
	opts Options,
	m Metrics,
	logger logx.Logger,
) *Service {
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = 15
	}
	if opts.OfferTTL <= 0 {
		opts.OfferTTL = 2 * time.Minute
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 3 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Service{
		tx:               tx,
		deliveries:       deliveries,
		riders:           riders,
		notifier:         notifier,
		realtime:         rt,
		events:           events,
		metrics:          m,
		radiusKm:         opts.RadiusKm,
		offerTTL:         opts.OfferTTL,
		operationTimeout: opts.OperationTimeout,
		notifyTimeout:    opts.NotifyTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

var (
	errDeliveryNotFound = apperr.New(apperr.ErrNotFound, "delivery not found")
	errNoLongerAvail    = apperr.New(apperr.ErrConflict, "delivery is no longer available")
	errRiderUnavailable = apperr.New(apperr.ErrUnavailable, "rider cannot accept deliveries right now")
)

// Dispatch offers an open delivery to every eligible rider at once and returns how many were offered.
// Zero candidates leaves the delivery searching.
func (s *Service) Dispatch(ctx context.Context, deliveryID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return 0, err
	}
	if d == nil {
		return 0, errDeliveryNotFound
	}
	if d.RiderID != nil || !d.Status.AwaitingRider() {
		return 0, errNoLongerAvail
	}

	candidates, err := s.Candidates(ctx, d.Pickup.Point())
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		s.logger.Warn("no eligible riders",
			logx.Int64("delivery_id", d.ID),
			logx.Float64("radius_km", s.radiusKm),
		)
		return 0, nil
	}

	expires := s.now().Add(s.offerTTL)
	// offers outlive the lookup deadline so push retries get their own budget
	offerCtx, offerCancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer offerCancel()

	var wg sync.WaitGroup
	for _, c := range candidates {
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()
			s.offer(offerCtx, d, c, expires)
		}(c)
	}
	wg.Wait()

	s.logger.Info("delivery dispatched",
		logx.Int64("delivery_id", d.ID),
		logx.Int("candidates", len(candidates)),
	)
	return len(candidates), nil
}

// offer sends one rider the realtime request and a push notification. Failures are per rider.
func (s *Service) offer(ctx context.Context, d *domain.Delivery, c Candidate, expires time.Time) {
	km := math.Round(c.DistanceKm*100) / 100
	s.realtime.ToUser(ctx, realtime.RiderKey(c.Rider.ID), realtime.NewMessage(realtime.EventNewRequest, realtime.OfferPayload{
		DeliveryID:   d.ID,
		TrackingCode: d.TrackingCode,
		Pickup:       d.Pickup,
		Dropoff:      d.Dropoff,
		Parcel:       d.Parcel,
		Price:        d.Price,
		DistanceKm:   km,
		ExpiresAt:    expires,
	}))
	s.countOffer("realtime", "sent")

	if c.Rider.PushToken == "" {
		s.countOffer("push", "no_token")
		s.logger.Warn("rider has no push token",
			logx.Int64("delivery_id", d.ID),
			logx.Int64("rider_id", c.Rider.ID),
		)
		return
	}
	err := s.notifier.Send(ctx, notify.Notification{
		Recipient: realtime.RiderKey(c.Rider.ID),
		Title:     "New delivery request",
		Body:      fmt.Sprintf("Pickup %.1f km away: %s", km, d.Pickup.Address),
		Token:     c.Rider.PushToken,
		Data: map[string]string{
			"type":       "new_delivery_request",
			"deliveryId": strconv.FormatInt(d.ID, 10),
			"distance":   strconv.FormatFloat(km, 'f', 2, 64),
		},
	})
	if err != nil {
		s.countOffer("push", "failed")
		s.logger.Warn("offer push failed",
			logx.Int64("delivery_id", d.ID),
			logx.Int64("rider_id", c.Rider.ID),
			logx.Any("err", err),
		)
		return
	}
	s.countOffer("push", "sent")
}

func (s *Service) countOffer(channel, result string) {
	if s.metrics.Offers != nil {
		s.metrics.Offers.WithLabelValues(channel, result).Inc()
	}
}

// Accept assigns the delivery to the calling rider. Exactly one of any number of concurrent
// accepts wins; the rest get a conflict.
func (s *Service) Accept(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error) {
	if actor.Role != domain.RoleRider {
		return nil, apperr.New(apperr.ErrForbidden, "only riders can accept deliveries")
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	var (
		d     *domain.Delivery
		rider *domain.Rider
		prev  domain.DeliveryStatus
	)
	err := s.tx.WithTx(ctx, func(tx deliverytx.Repository) error {
		cur, err := tx.GetDelivery(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return errDeliveryNotFound
		}
		prev = cur.Status

		ok, err := tx.AssignRider(ctx, deliveryID, actor.ID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return errNoLongerAvail
		}

		reserved, err := tx.ReserveRider(ctx, actor.ID)
		if err != nil {
			return err
		}
		if !reserved {
			return errRiderUnavailable
		}

		if d, err = tx.GetDelivery(ctx, deliveryID); err != nil {
			return err
		}
		rider, err = tx.GetRider(ctx, actor.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, errNoLongerAvail) && s.metrics.AcceptConflicts != nil {
			s.metrics.AcceptConflicts.Inc()
		}
		return nil, err
	}

	s.logger.Info("delivery accepted",
		logx.Int64("delivery_id", d.ID),
		logx.Int64("rider_id", actor.ID),
	)
	s.events.Publish(ctx, domain.NewEvent(domain.EventStatusChanged, d, prev, d.UpdatedAt))

	if rider != nil && rider.Location != nil {
		at := d.UpdatedAt
		if rider.LastLocationUpdate != nil {
			at = *rider.LastLocationUpdate
		}
		s.realtime.ToRoom(ctx, realtime.TrackingRoom(d.ID), realtime.NewMessage(realtime.EventRiderLocation, realtime.RiderLocationPayload{
			DeliveryID: d.ID,
			RiderID:    rider.ID,
			Lat:        rider.Location.Lat,
			Lng:        rider.Location.Lng,
			Timestamp:  at,
		}))
	}
	return d, nil
}

// Reject hands an accepted delivery back. The delivery returns to SEARCHING_RIDER and is not re-offered.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error) {
	if actor.Role != domain.RoleRider {
		return nil, apperr.New(apperr.ErrForbidden, "only riders can reject deliveries")
	}
	return s.unassign(ctx, deliveryID, func(d *domain.Delivery) (int64, error) {
		if !d.HasRider(actor.ID) {
			return 0, apperr.New(apperr.ErrForbidden, "delivery is not assigned to you")
		}
		return actor.ID, nil
	})
}

// Unassign is the administrative variant of Reject.
func (s *Service) Unassign(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.ErrForbidden, "only administrators can unassign riders")
	}
	return s.unassign(ctx, deliveryID, func(d *domain.Delivery) (int64, error) {
		if d.RiderID == nil {
			return 0, apperr.New(apperr.ErrInvalidTransition, "delivery has no rider")
		}
		return *d.RiderID, nil
	})
}

func (s *Service) unassign(ctx context.Context, deliveryID int64, pick func(d *domain.Delivery) (int64, error)) (*domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	var (
		d       *domain.Delivery
		prev    domain.DeliveryStatus
		riderID int64
	)
	err := s.tx.WithTx(ctx, func(tx deliverytx.Repository) error {
		cur, err := tx.GetDelivery(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return errDeliveryNotFound
		}
		if riderID, err = pick(cur); err != nil {
			return err
		}
		prev = cur.Status

		ok, err := tx.UnassignRider(ctx, deliveryID, riderID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.ErrInvalidTransition,
				fmt.Sprintf("delivery in status %s can no longer be handed back", cur.Status))
		}
		if err := tx.ReleaseRider(ctx, riderID); err != nil {
			return err
		}
		d, err = tx.GetDelivery(ctx, deliveryID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rider unassigned",
		logx.Int64("delivery_id", d.ID),
		logx.Int64("rider_id", riderID),
	)
	s.events.Publish(ctx, domain.NewEvent(domain.EventRiderUnassigned, d, prev, d.UpdatedAt).With("riderId", riderID))
	return d, nil
}

// OnEvent dispatches deliveries that just started searching. It is an events.Handler.
func (s *Service) OnEvent(ctx context.Context, e domain.Event) error {
	if e.Name != domain.EventStatusChanged || e.Status != domain.StatusSearchingRider {
		return nil
	}
	if e.PreviousStatus != domain.StatusPending && e.PreviousStatus != domain.StatusScheduled {
		return nil
	}
	_, err := s.Dispatch(ctx, e.DeliveryID)
	if err != nil && apperr.Expected(err) {
		return nil
	}
	return err
}

// Sweep re-dispatches deliveries that have been searching for longer than olderThan.
func (s *Service) Sweep(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.deliveries.ListSearching(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}
	offered := 0
	for _, d := range stale {
		n, err := s.Dispatch(ctx, d.ID)
		if err != nil {
			s.logger.Warn("re-dispatch failed",
				logx.Int64("delivery_id", d.ID),
				logx.Any("err", err),
			)
			continue
		}
		offered += n
	}
	return offered, nil
}
