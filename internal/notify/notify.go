//go:generate mockgen -source=notify.go -destination=notifymock/sender.go -package=notifymock

// Package notify delivers push and email notifications to customers and riders.
package notify

import (
	"context"
	"errors"
)

// ErrNoRecipient is returned when a notification has no address for the channel.
var ErrNoRecipient = errors.New("notification has no recipient address")

// Notification is a rendered message for one recipient.
type Notification struct {
	// Recipient is the logical user, e.g. "rider:12". Used for logs only.
	Recipient string
	Title     string
	Body      string
	// Token is the device push token.
	Token string
	// Email is used by the email channel.
	Email string
	Data  map[string]string
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

// Send implements Sender.
func (Nop) Send(context.Context, Notification) error { return nil }
