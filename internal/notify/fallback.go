package notify

import (
	"context"
	"errors"

	"parcel-dispatch/internal/logx"
)

// Fallback tries primary and, when it fails, secondary. Used as push first, email second.
type Fallback struct {
	primary   Sender
	secondary Sender
	logger    logx.Logger
}

// NewFallback returns primary alone when secondary is nil.
func NewFallback(primary, secondary Sender, logger logx.Logger) Sender {
	if secondary == nil {
		return primary
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Send implements Sender.
func (f *Fallback) Send(ctx context.Context, n Notification) error {
	err := f.primary.Send(ctx, n)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoRecipient) {
		f.logger.Warn("primary notification channel failed",
			logx.String("recipient", n.Recipient),
			logx.Any("err", err),
		)
	}
	if n.Email == "" {
		return err
	}
	if err2 := f.secondary.Send(ctx, n); err2 != nil {
		return errors.Join(err, err2)
	}
	return nil
}
