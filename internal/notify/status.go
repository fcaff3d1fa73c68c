package notify

import (
	"context"
	"fmt"
	"strconv"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

type customerReader interface {
	Get(ctx context.Context, id int64) (*domain.Customer, error)
}

// StatusNotifier pushes a customer notification for every labelled status change.
type StatusNotifier struct {
	sender    Sender
	customers customerReader
	logger    logx.Logger
}

// NewStatusNotifier creates a StatusNotifier.
func NewStatusNotifier(sender Sender, customers customerReader, logger logx.Logger) *StatusNotifier {
	return &StatusNotifier{sender: sender, customers: customers, logger: logger}
}

// OnEvent is an events.Handler. Send failures are logged and swallowed.
func (s *StatusNotifier) OnEvent(ctx context.Context, e domain.Event) error {
	if e.Name != domain.EventStatusChanged || e.Label == "" {
		return nil
	}
	c, err := s.customers.Get(ctx, e.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %d: %w", e.CustomerID, err)
	}
	if c == nil {
		return nil
	}
	n := Notification{
		Recipient: fmt.Sprintf("customer:%d", c.ID),
		Title:     fmt.Sprintf("Delivery %s", e.TrackingCode),
		Body:      e.Label,
		Token:     c.PushToken,
		Email:     c.Email,
		Data: map[string]string{
			"type":       "delivery_status",
			"deliveryId": strconv.FormatInt(e.DeliveryID, 10),
			"status":     string(e.Status),
		},
	}
	if err := s.sender.Send(ctx, n); err != nil {
		s.logger.Warn("status notification failed",
			logx.Int64("delivery_id", e.DeliveryID),
			logx.Int64("customer_id", c.ID),
			logx.String("status", string(e.Status)),
			logx.Any("err", err),
		)
	}
	return nil
}
