package rider

import (
	"context"
	"time"

	"parcel-dispatch/internal/cache"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/realtime"
)

type riderStore interface {
	Get(ctx context.Context, id int64) (*domain.Rider, error)
	SetOnline(ctx context.Context, id int64, online bool) (*domain.Rider, error)
	UpdateLocation(ctx context.Context, id int64, p domain.GeoPoint, at time.Time) error
}

// LocationCache is the fast path for live rider positions.
type LocationCache interface {
	Set(ctx context.Context, loc cache.Location) error
	Get(ctx context.Context, riderID int64) (*cache.Location, error)
	Delete(ctx context.Context, riderID int64) error
}

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
}

type realtimePublisher interface {
	ToRoom(ctx context.Context, room string, msg realtime.Message)
}
