package rider

import (
	"context"
	"math"
	"time"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/cache"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/realtime"
)

const (
	targetPickup  = "pickup"
	targetDropoff = "dropoff"
)

// LocationInput is one position report from a rider device.
type LocationInput struct {
	// DeliveryID is the active delivery the rider reports for; zero means none.
	DeliveryID int64
	Lat        float64
	Lng        float64
	Heading    *float64
	Speed      *float64
}

// Eta is the arrival estimate to the rider's next stop.
type Eta struct {
	DeliveryID int64
	Minutes    int
	DistanceKm float64
	Target     string
}

// Service handles rider availability and live positions.
type Service struct {
	riders     riderStore
	locations  LocationCache
	deliveries deliveryReader
	realtime   realtimePublisher

	averageSpeedKmh  float64
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates the rider service. locations may be nil when Redis is not configured.
func NewService(
	riders riderStore,
	locations LocationCache,
	deliveries deliveryReader,
	rt realtimePublisher,
	averageSpeedKmh float64,
	operationTimeout time.Duration,
	logger logx.Logger,
) *Service {
	if averageSpeedKmh <= 0 {
		averageSpeedKmh = 25
	}
	if operationTimeout <= 0 {
		operationTimeout = 3 * time.Second
	}
	return &Service{
		riders:           riders,
		locations:        locations,
		deliveries:       deliveries,
		realtime:         rt,
		averageSpeedKmh:  averageSpeedKmh,
		operationTimeout: operationTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

var errRiderOnly = apperr.New(apperr.ErrForbidden, "only riders can do this")

// SetOnline toggles whether the rider receives dispatch offers.
func (s *Service) SetOnline(ctx context.Context, actor domain.Actor, online bool) (*domain.Rider, error) {
	if actor.Role != domain.RoleRider {
		return nil, errRiderOnly
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	r, err := s.riders.SetOnline(ctx, actor.ID, online)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.New(apperr.ErrNotFound, "rider not found")
	}
	if !online && s.locations != nil {
		if err := s.locations.Delete(ctx, actor.ID); err != nil {
			s.logger.Warn("drop cached rider location failed", logx.Int64("rider_id", actor.ID), logx.Any("err", err))
		}
	}
	s.logger.Info("rider availability changed",
		logx.Int64("rider_id", r.ID),
		logx.Bool("online", r.IsOnline),
	)
	return r, nil
}

// UpdateLocation records a position report. Persistence is best effort; when the report names
// an active delivery the position and a fresh ETA are broadcast to its tracking room.
func (s *Service) UpdateLocation(ctx context.Context, actor domain.Actor, in LocationInput) (*Eta, error) {
	if actor.Role != domain.RoleRider {
		return nil, errRiderOnly
	}
	p := domain.GeoPoint{Lat: in.Lat, Lng: in.Lng}
	if !p.Valid() {
		return nil, apperr.New(apperr.ErrInvalid, "invalid coordinates")
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	var d *domain.Delivery
	if in.DeliveryID != 0 {
		var err error
		if d, err = s.deliveries.Get(ctx, in.DeliveryID); err != nil {
			return nil, err
		}
		if d == nil {
			return nil, apperr.New(apperr.ErrNotFound, "delivery not found")
		}
		if !d.HasRider(actor.ID) {
			return nil, apperr.New(apperr.ErrForbidden, "delivery is not assigned to you")
		}
	}

	at := s.now()
	s.persist(ctx, actor.ID, in, p, at)

	if d == nil || !d.Status.HoldsRider() {
		return nil, nil
	}

	room := realtime.TrackingRoom(d.ID)
	s.realtime.ToRoom(ctx, room, realtime.NewMessage(realtime.EventRiderLocation, realtime.RiderLocationPayload{
		DeliveryID: d.ID,
		RiderID:    actor.ID,
		Lat:        p.Lat,
		Lng:        p.Lng,
		Heading:    in.Heading,
		Speed:      in.Speed,
		Timestamp:  at,
	}))

	eta := s.estimate(d, p, in.Speed)
	s.realtime.ToRoom(ctx, room, realtime.NewMessage(realtime.EventEtaUpdate, realtime.EtaPayload{
		DeliveryID: eta.DeliveryID,
		Minutes:    eta.Minutes,
		DistanceKm: eta.DistanceKm,
		Target:     eta.Target,
	}))
	return eta, nil
}

func (s *Service) persist(ctx context.Context, riderID int64, in LocationInput, p domain.GeoPoint, at time.Time) {
	if s.locations != nil {
		err := s.locations.Set(ctx, cache.Location{
			RiderID:   riderID,
			Lat:       p.Lat,
			Lng:       p.Lng,
			Heading:   in.Heading,
			Speed:     in.Speed,
			UpdatedAt: at,
		})
		if err != nil {
			s.logger.Warn("cache rider location failed", logx.Int64("rider_id", riderID), logx.Any("err", err))
		}
	}
	if err := s.riders.UpdateLocation(ctx, riderID, p, at); err != nil {
		s.logger.Warn("persist rider location failed", logx.Int64("rider_id", riderID), logx.Any("err", err))
	}
}

func (s *Service) estimate(d *domain.Delivery, p domain.GeoPoint, speed *float64) *Eta {
	target, dropoff := d.NextTarget()
	name := targetPickup
	if dropoff {
		name = targetDropoff
	}
	kmh := s.averageSpeedKmh
	if speed != nil && *speed > 0 {
		kmh = *speed
	}
	km := domain.HaversineKm(p, target.Point())
	return &Eta{
		DeliveryID: d.ID,
		Minutes:    domain.EtaMinutes(km, kmh),
		DistanceKm: math.Round(km*100) / 100,
		Target:     name,
	}
}

// CurrentLocation returns the freshest known position of the rider, nil if unknown.
// The cache is consulted first; the stored row is the fallback.
func (s *Service) CurrentLocation(ctx context.Context, riderID int64) (*cache.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if s.locations != nil {
		loc, err := s.locations.Get(ctx, riderID)
		if err != nil {
			s.logger.Warn("read cached rider location failed", logx.Int64("rider_id", riderID), logx.Any("err", err))
		} else if loc != nil {
			return loc, nil
		}
	}

	r, err := s.riders.Get(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Location == nil {
		return nil, nil
	}
	loc := &cache.Location{RiderID: r.ID, Lat: r.Location.Lat, Lng: r.Location.Lng}
	if r.LastLocationUpdate != nil {
		loc.UpdatedAt = *r.LastLocationUpdate
	}
	return loc, nil
}
