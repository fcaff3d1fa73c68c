package domain

import "time"

// SenderType tags who wrote a chat message.
type SenderType string

// List of chat senders.
const (
	SenderCustomer SenderType = "customer"
	SenderRider    SenderType = "rider"
	SenderSystem   SenderType = "system"
)

// ChatHistoryLimit is how many messages a client receives on joining a chat room.
const ChatHistoryLimit = 50

// MaxChatMessageLength bounds a single chat message.
const MaxChatMessageLength = 1000

// ChatMessage is one entry of the append-only per-delivery chat log.
type ChatMessage struct {
	ID         string     `json:"id"`
	DeliveryID int64      `json:"delivery_id"`
	SenderType SenderType `json:"sender_type"`
	SenderID   *int64     `json:"sender_id,omitempty"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"is_read"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SenderFor maps a caller role to its chat sender type.
func SenderFor(r Role) (SenderType, bool) {
	switch r {
	case RoleCustomer:
		return SenderCustomer, true
	case RoleRider:
		return SenderRider, true
	}
	return "", false
}

// Counterpart is the sender type whose messages are marked read when s reads the chat.
func (s SenderType) Counterpart() SenderType {
	if s == SenderCustomer {
		return SenderRider
	}
	return SenderCustomer
}
