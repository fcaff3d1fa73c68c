package socket

import (
	"context"

	"parcel-dispatch/internal/cache"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/service/rider"
)

type tokenVerifier interface {
	Verify(token string) (domain.Actor, error)
}

// deliveryAccess returns the delivery only to its parties.
type deliveryAccess interface {
	Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error)
}

type locationService interface {
	UpdateLocation(ctx context.Context, actor domain.Actor, in rider.LocationInput) (*rider.Eta, error)
	CurrentLocation(ctx context.Context, riderID int64) (*cache.Location, error)
}

type chatService interface {
	History(ctx context.Context, actor domain.Actor, deliveryID int64) ([]domain.ChatMessage, error)
	Send(ctx context.Context, actor domain.Actor, deliveryID int64, content string) (*domain.ChatMessage, error)
	Typing(ctx context.Context, actor domain.Actor, deliveryID int64, typing bool) error
	MarkRead(ctx context.Context, actor domain.Actor, deliveryID int64) (int64, error)
}
