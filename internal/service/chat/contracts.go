package chat

import (
	"context"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/realtime"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
}

type messageStore interface {
	Insert(ctx context.Context, m *domain.ChatMessage) error
	Recent(ctx context.Context, deliveryID int64, limit int) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, deliveryID int64, sender domain.SenderType) (int64, error)
}

type realtimePublisher interface {
	ToRoom(ctx context.Context, room string, msg realtime.Message)
}
