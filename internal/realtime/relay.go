package realtime

import (
	"context"

	"parcel-dispatch/internal/domain"
)

// Relay turns committed domain events into status frames for the tracking room.
type Relay struct {
	rt Publisher
}

// NewRelay creates a relay writing to rt.
func NewRelay(rt Publisher) *Relay {
	return &Relay{rt: rt}
}

// OnEvent handles status changes and rider rollbacks; other events are ignored.
func (r *Relay) OnEvent(ctx context.Context, e domain.Event) error {
	switch e.Name {
	case domain.EventStatusChanged:
		r.rt.ToRoom(ctx, TrackingRoom(e.DeliveryID), NewMessage(EventStatusUpdate, StatusUpdatePayload(e)))
	case domain.EventRiderUnassigned:
		msg := NewMessage(EventStatusUpdate, StatusUpdatePayload(e))
		r.rt.ToRoom(ctx, TrackingRoom(e.DeliveryID), msg)
		// the released rider has usually left the room already
		if id, ok := riderFromData(e.Data); ok {
			r.rt.ToUser(ctx, RiderKey(id), msg)
		}
	}
	return nil
}

func riderFromData(data map[string]any) (int64, bool) {
	switch v := data["riderId"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
