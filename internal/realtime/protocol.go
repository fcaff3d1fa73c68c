package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"parcel-dispatch/internal/domain"
)

// Inbound events.
const (
	EventAuthenticate        = "authenticate"
	EventTrackingSubscribe   = "tracking:subscribe"
	EventTrackingUnsubscribe = "tracking:unsubscribe"
	EventLocationUpdate      = "rider:location:update"
	EventChatJoin            = "chat:join"
	EventChatLeave           = "chat:leave"
	EventChatSend            = "chat:send_message"
	EventChatTyping          = "chat:typing"
	EventChatRead            = "chat:read"
	EventPing                = "ping"
)

// Outbound events.
const (
	EventAuthenticated    = "authenticated"
	EventAuthError        = "auth_error"
	EventError            = "error"
	EventPong             = "pong"
	EventStatusUpdate     = "delivery:status_update"
	EventRiderLocation    = "rider:location"
	EventEtaUpdate        = "delivery:eta_update"
	EventNewRequest       = "delivery:new_request"
	EventTrackingSnapshot = "tracking:snapshot"
	EventChatNewMessage   = "chat:new_message"
	EventChatHistory      = "chat:history"
	EventChatUserTyping   = "chat:user_typing"
	EventChatMessagesRead = "chat:messages_read"
)

// Message is one JSON text frame: {"event": "...", "data": {...}}.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into a frame. Payload types of this package always encode.
func NewMessage(event string, data any) Message {
	raw, err := json.Marshal(data)
	if err != nil {
		raw, _ = json.Marshal(ErrorPayload{Kind: "internal", Message: err.Error()})
		return Message{Event: EventError, Data: raw}
	}
	return Message{Event: event, Data: raw}
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("event %s: empty payload", m.Event)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("event %s: %w", m.Event, err)
	}
	return nil
}

// TrackingRoom names the status/location room of a delivery.
func TrackingRoom(deliveryID int64) string { return fmt.Sprintf("tracking:%d", deliveryID) }

// ChatRoom names the chat room of a delivery.
func ChatRoom(deliveryID int64) string { return fmt.Sprintf("chat:%d", deliveryID) }

// UserKey identifies a logical user across devices.
func UserKey(a domain.Actor) string { return fmt.Sprintf("%s:%d", a.Role, a.ID) }

// RiderKey is UserKey for a rider id.
func RiderKey(riderID int64) string {
	return UserKey(domain.Actor{ID: riderID, Role: domain.RoleRider})
}

// CustomerKey is UserKey for a customer id.
func CustomerKey(customerID int64) string {
	return UserKey(domain.Actor{ID: customerID, Role: domain.RoleCustomer})
}

// AuthenticatePayload is sent by the client to present its credential.
type AuthenticatePayload struct {
	Token    string `json:"token"`
	UserType string `json:"userType,omitempty"`
}

// AuthenticatedPayload acknowledges a successful authentication.
type AuthenticatedPayload struct {
	UserID   int64  `json:"userId"`
	UserType string `json:"userType"`
}

// ErrorPayload reports a failed request or authentication.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// DeliveryRef carries only a delivery id.
type DeliveryRef struct {
	DeliveryID int64 `json:"deliveryId"`
}

// LocationUpdatePayload is reported by riders.
type LocationUpdatePayload struct {
	DeliveryID int64    `json:"deliveryId"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Heading    *float64 `json:"heading,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
}

// RiderLocationPayload is broadcast to the tracking room.
type RiderLocationPayload struct {
	DeliveryID int64     `json:"deliveryId"`
	RiderID    int64     `json:"riderId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EtaPayload is broadcast after a location update of an active delivery.
type EtaPayload struct {
	DeliveryID int64   `json:"deliveryId"`
	Minutes    int     `json:"minutes"`
	DistanceKm float64 `json:"distance"`
	Target     string  `json:"target"`
}

// OfferPayload is sent to each candidate rider during dispatch.
type OfferPayload struct {
	DeliveryID   int64                 `json:"deliveryId"`
	TrackingCode string                `json:"trackingCode"`
	Pickup       domain.Location       `json:"pickup"`
	Dropoff      domain.Location       `json:"dropoff"`
	Parcel       domain.Parcel         `json:"parcel"`
	Price        domain.PriceBreakdown `json:"price"`
	DistanceKm   float64               `json:"distance"`
	ExpiresAt    time.Time             `json:"expiresAt"`
}

// SnapshotPayload is sent on joining a tracking room.
type SnapshotPayload struct {
	DeliveryID    int64                 `json:"deliveryId"`
	TrackingCode  string                `json:"trackingCode"`
	Status        domain.DeliveryStatus `json:"status"`
	PaymentStatus domain.PaymentStatus  `json:"paymentStatus"`
	RiderID       *int64                `json:"riderId,omitempty"`
	RiderLocation *domain.GeoPoint      `json:"riderLocation,omitempty"`
}

// ChatSendPayload is a chat message written by a client.
type ChatSendPayload struct {
	DeliveryID int64  `json:"deliveryId"`
	Content    string `json:"content"`
}

// ChatTypingPayload toggles the typing indicator.
type ChatTypingPayload struct {
	DeliveryID int64 `json:"deliveryId"`
	IsTyping   bool  `json:"isTyping"`
}

// ChatUserTypingPayload is broadcast to the chat room.
type ChatUserTypingPayload struct {
	DeliveryID int64  `json:"deliveryId"`
	UserID     int64  `json:"userId"`
	UserType   string `json:"userType"`
	IsTyping   bool   `json:"isTyping"`
}

// ChatHistoryPayload carries the recent chat log, oldest first.
type ChatHistoryPayload struct {
	DeliveryID int64                `json:"deliveryId"`
	Messages   []domain.ChatMessage `json:"messages"`
}

// MessagesReadPayload tells the writer side its messages were read.
type MessagesReadPayload struct {
	DeliveryID int64  `json:"deliveryId"`
	ReaderType string `json:"readerType"`
	Count      int64  `json:"count"`
}

// StatusUpdatePayload builds the delivery:status_update payload from a domain event.
// Extra event data such as paymentRequired is merged at the top level.
func StatusUpdatePayload(e domain.Event) map[string]any {
	out := make(map[string]any, len(e.Data)+6)
	for k, v := range e.Data {
		out[k] = v
	}
	out["deliveryId"] = e.DeliveryID
	out["trackingCode"] = e.TrackingCode
	out["status"] = e.Status
	if e.PreviousStatus != "" {
		out["previousStatus"] = e.PreviousStatus
	}
	if e.Label != "" {
		out["label"] = e.Label
	}
	if e.RiderID != nil {
		out["riderId"] = *e.RiderID
	}
	out["timestamp"] = e.OccurredAt
	return out
}
