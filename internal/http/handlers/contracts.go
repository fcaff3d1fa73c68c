package handlers

import (
	"context"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/service/lifecycle"
	"parcel-dispatch/internal/service/rider"
)

type deliveryUsecase interface {
	Create(ctx context.Context, actor domain.Actor, in lifecycle.CreateInput) (*domain.Delivery, error)
	Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id int64, next domain.DeliveryStatus) (*domain.Delivery, error)
	ArrivePickup(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error)
	ArriveDropoff(ctx context.Context, actor domain.Actor, id int64) (*domain.Delivery, error)
	Cancel(ctx context.Context, actor domain.Actor, id int64, reason string) (*domain.Delivery, error)
}

type dispatchUsecase interface {
	Dispatch(ctx context.Context, deliveryID int64) (int, error)
	Accept(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error)
	Reject(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error)
	Unassign(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error)
}

type handoverUsecase interface {
	PickupPin(ctx context.Context, actor domain.Actor, id int64) (string, error)
	DeliveryPin(ctx context.Context, actor domain.Actor, id int64) (string, error)
	VerifyPickupPin(ctx context.Context, actor domain.Actor, id int64, pin string) (*domain.Delivery, error)
	VerifyDeliveryPin(ctx context.Context, actor domain.Actor, id int64, pin string) (*domain.Delivery, error)
}

type riderUsecase interface {
	SetOnline(ctx context.Context, actor domain.Actor, online bool) (*domain.Rider, error)
	UpdateLocation(ctx context.Context, actor domain.Actor, in rider.LocationInput) (*rider.Eta, error)
}

type walletReader interface {
	WalletBalance(ctx context.Context, riderID int64) (int64, error)
}

type chatUsecase interface {
	History(ctx context.Context, actor domain.Actor, deliveryID int64) ([]domain.ChatMessage, error)
	Send(ctx context.Context, actor domain.Actor, deliveryID int64, content string) (*domain.ChatMessage, error)
	MarkRead(ctx context.Context, actor domain.Actor, deliveryID int64) (int64, error)
}
