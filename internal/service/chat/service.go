package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/realtime"
)

const unassignedLine = "Your rider is no longer available. We are finding another rider."

// Service is the per-delivery chat between customer and rider, plus system timeline lines.
type Service struct {
	deliveries deliveryReader
	messages   messageStore
	realtime   realtimePublisher

	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates the chat service.
func NewService(deliveries deliveryReader, messages messageStore, rt realtimePublisher, operationTimeout time.Duration, logger logx.Logger) *Service {
	if operationTimeout <= 0 {
		operationTimeout = 3 * time.Second
	}
	return &Service{
		deliveries:       deliveries,
		messages:         messages,
		realtime:         rt,
		operationTimeout: operationTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorize(ctx context.Context, actor domain.Actor, deliveryID int64) (*domain.Delivery, error) {
	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.New(apperr.ErrNotFound, "delivery not found")
	}
	if !d.IsParty(actor) {
		return nil, apperr.New(apperr.ErrForbidden, "you do not have access to this chat")
	}
	return d, nil
}

// History returns the last messages oldest first and marks the other party's messages read.
func (s *Service) History(ctx context.Context, actor domain.Actor, deliveryID int64) ([]domain.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, actor, deliveryID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.Recent(ctx, deliveryID, domain.ChatHistoryLimit)
	if err != nil {
		return nil, err
	}
	if _, err := s.markRead(ctx, actor, deliveryID); err != nil {
		s.logger.Warn("mark chat read failed", logx.Int64("delivery_id", deliveryID), logx.Any("err", err))
	}
	return msgs, nil
}

// MarkRead marks the other party's messages read and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, actor domain.Actor, deliveryID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, actor, deliveryID); err != nil {
		return 0, err
	}
	return s.markRead(ctx, actor, deliveryID)
}

func (s *Service) markRead(ctx context.Context, actor domain.Actor, deliveryID int64) (int64, error) {
	reader, ok := domain.SenderFor(actor.Role)
	if !ok {
		return 0, nil
	}
	n, err := s.messages.MarkRead(ctx, deliveryID, reader.Counterpart())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.realtime.ToRoom(ctx, realtime.ChatRoom(deliveryID), realtime.NewMessage(realtime.EventChatMessagesRead, realtime.MessagesReadPayload{
			DeliveryID: deliveryID,
			ReaderType: string(reader),
			Count:      n,
		}))
	}
	return n, nil
}

// Send appends a message from the customer or the assigned rider and broadcasts it to the chat room.
func (s *Service) Send(ctx context.Context, actor domain.Actor, deliveryID int64, content string) (*domain.ChatMessage, error) {
	sender, ok := domain.SenderFor(actor.Role)
	if !ok {
		return nil, apperr.New(apperr.ErrForbidden, "only the customer and the rider can chat")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.ErrInvalid, "message is empty")
	}
	if utf8.RuneCountInString(content) > domain.MaxChatMessageLength {
		return nil, apperr.New(apperr.ErrInvalid, "message is too long")
	}

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, actor, deliveryID); err != nil {
		return nil, err
	}
	senderID := actor.ID
	m := &domain.ChatMessage{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		SenderType: sender,
		SenderID:   &senderID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		return nil, err
	}
	s.realtime.ToRoom(ctx, realtime.ChatRoom(deliveryID), realtime.NewMessage(realtime.EventChatNewMessage, m))
	return m, nil
}

// Typing broadcasts the typing indicator of actor.
func (s *Service) Typing(ctx context.Context, actor domain.Actor, deliveryID int64, typing bool) error {
	sender, ok := domain.SenderFor(actor.Role)
	if !ok {
		return apperr.New(apperr.ErrForbidden, "only the customer and the rider can chat")
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, actor, deliveryID); err != nil {
		return err
	}
	s.realtime.ToRoom(ctx, realtime.ChatRoom(deliveryID), realtime.NewMessage(realtime.EventChatUserTyping, realtime.ChatUserTypingPayload{
		DeliveryID: deliveryID,
		UserID:     actor.ID,
		UserType:   string(sender),
		IsTyping:   typing,
	}))
	return nil
}

// OnEvent writes the system timeline line for labelled status changes and rider unassignment.
// It is an events.Handler.
func (s *Service) OnEvent(ctx context.Context, e domain.Event) error {
	var line string
	switch e.Name {
	case domain.EventStatusChanged:
		line = e.Label
	case domain.EventRiderUnassigned:
		line = unassignedLine
	}
	if line == "" {
		return nil
	}

	m := &domain.ChatMessage{
		ID:         uuid.NewString(),
		DeliveryID: e.DeliveryID,
		SenderType: domain.SenderSystem,
		Content:    line,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		return err
	}
	s.realtime.ToRoom(ctx, realtime.ChatRoom(e.DeliveryID), realtime.NewMessage(realtime.EventChatNewMessage, m))
	return nil
}
