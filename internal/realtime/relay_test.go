package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/domain"
)

func TestRelay_StatusChangedReachesTrackingRoom(t *testing.T) {
	t.Parallel()

	h, _ := newTestHub()
	watcher := NewConn(nil)
	h.Add(watcher)
	h.Join(TrackingRoom(42), watcher)

	riderID := int64(7)
	d := &domain.Delivery{ID: 42, TrackingCode: "PD-42", CustomerID: 1, RiderID: &riderID, Status: domain.StatusAwaitingPayment}
	e := domain.NewEvent(domain.EventStatusChanged, d, domain.StatusRiderArrivedPickup, time.Now()).With("paymentRequired", true)

	require.NoError(t, NewRelay(h).OnEvent(context.Background(), e))

	got := drain(watcher)
	require.Len(t, got, 1)
	require.Equal(t, EventStatusUpdate, got[0].Event)

	var payload map[string]any
	require.NoError(t, got[0].Decode(&payload))
	require.Equal(t, "AWAITING_PAYMENT", payload["status"])
	require.Equal(t, "RIDER_ARRIVED_PICKUP", payload["previousStatus"])
	require.Equal(t, true, payload["paymentRequired"])
	require.Equal(t, float64(7), payload["riderId"])
}

func TestRelay_RiderUnassignedNotifiesReleasedRider(t *testing.T) {
	t.Parallel()

	h, _ := newTestHub()
	riderConn := NewConn(nil)
	h.Add(riderConn)
	h.Register(RiderKey(9), riderConn)

	d := &domain.Delivery{ID: 3, CustomerID: 1, Status: domain.StatusSearchingRider}
	e := domain.NewEvent(domain.EventRiderUnassigned, d, domain.StatusRiderAccepted, time.Now()).With("riderId", int64(9))

	require.NoError(t, NewRelay(h).OnEvent(context.Background(), e))

	got := drain(riderConn)
	require.Len(t, got, 1)
	require.Equal(t, EventStatusUpdate, got[0].Event)
}

func TestRelay_IgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	h, _ := newTestHub()
	c := NewConn(nil)
	h.Add(c)
	h.Join(TrackingRoom(1), c)

	d := &domain.Delivery{ID: 1, Status: domain.StatusDelivered}
	require.NoError(t, NewRelay(h).OnEvent(context.Background(), domain.NewEvent(domain.EventDelivered, d, "", time.Now())))
	require.Empty(t, drain(c))
}
