package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/notify"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/service/dispatch"
	"parcel-dispatch/internal/testutil/memstore"
)

type sent struct {
	target string
	msg    realtime.Message
}

type realtimeStub struct {
	mu    sync.Mutex
	users []sent
	rooms []sent
}

func (r *realtimeStub) ToRoom(_ context.Context, room string, msg realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, sent{target: room, msg: msg})
}

func (r *realtimeStub) ToUser(_ context.Context, user string, msg realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, sent{target: user, msg: msg})
}

func (r *realtimeStub) offeredTo() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, s := range r.users {
		if s.msg.Event == realtime.EventNewRequest {
			out[s.target] = true
		}
	}
	return out
}

type senderStub struct {
	sendFn func(ctx context.Context, n notify.Notification) error
	calls  atomic.Int32
}

func (s *senderStub) Send(ctx context.Context, n notify.Notification) error {
	s.calls.Add(1)
	if s.sendFn != nil {
		return s.sendFn(ctx, n)
	}
	return nil
}

type fixture struct {
	store     *memstore.Store
	events    *memstore.EventLog
	rt        *realtimeStub
	push      *senderStub
	conflicts prometheus.Counter
	svc       *dispatch.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memstore.New(),
		events:    &memstore.EventLog{},
		rt:        &realtimeStub{},
		push:      &senderStub{},
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{Name: "accept_conflicts_total"}),
	}
	f.svc = dispatch.NewService(f.store, f.store, f.store.RiderRepo(), f.push, f.rt, f.events,
		dispatch.Options{RadiusKm: 15},
		dispatch.Metrics{
			Offers:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "offers_total"}, []string{"channel", "result"}),
			AcceptConflicts: f.conflicts,
		},
		logx.Nop(),
	)
	return f
}

func (f *fixture) searching() int64 {
	return f.store.PutDelivery(memstore.Delivery(100, domain.StatusSearchingRider, domain.PaymentPending, nil))
}

func riderActor(id int64) domain.Actor { return domain.Actor{ID: id, Role: domain.RoleRider} }

func TestCandidates_DistanceFilterAndOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	far := f.store.AddRider(memstore.Rider("far", memstore.Offset(memstore.PickupPoint, 20), 1))
	mid := f.store.AddRider(memstore.Rider("mid", memstore.Offset(memstore.PickupPoint, 2), 1))
	near := f.store.AddRider(memstore.Rider("near", memstore.Offset(memstore.PickupPoint, 0.5), 1))

	offline := memstore.Rider("offline", memstore.PickupPoint, 1)
	offline.IsOnline = false
	f.store.AddRider(offline)

	full := memstore.Rider("full", memstore.PickupPoint, 1)
	full.CurrentDeliveryCount = 1
	f.store.AddRider(full)

	got, err := f.svc.Candidates(context.Background(), memstore.PickupPoint)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, near, got[0].Rider.ID)
	require.Equal(t, mid, got[1].Rider.ID)
	require.InDelta(t, 2.0, got[1].DistanceKm, 0.05)
	for _, c := range got {
		require.NotEqual(t, far, c.Rider.ID)
	}
}

func TestDispatch_OffersEveryCandidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.store.AddRider(memstore.Rider("a", memstore.Offset(memstore.PickupPoint, 1), 1))
	b := f.store.AddRider(memstore.Rider("b", memstore.Offset(memstore.PickupPoint, 3), 1))
	noToken := memstore.Rider("c", memstore.Offset(memstore.PickupPoint, 4), 1)
	noToken.PushToken = ""
	c := f.store.AddRider(noToken)
	id := f.searching()

	n, err := f.svc.Dispatch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, map[string]bool{
		realtime.RiderKey(a): true,
		realtime.RiderKey(b): true,
		realtime.RiderKey(c): true,
	}, f.rt.offeredTo())
	require.EqualValues(t, 2, f.push.calls.Load())
}

func TestDispatch_PushFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.push.sendFn = func(context.Context, notify.Notification) error { return errors.New("push down") }
	f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	f.store.AddRider(memstore.Rider("b", memstore.PickupPoint, 1))

	n, err := f.svc.Dispatch(context.Background(), f.searching())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, f.rt.offeredTo(), 2)
}

func TestDispatch_SlowPushOutlivesOperationTimeout(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "offers_total"}, []string{"channel", "result"})
	push := &senderStub{sendFn: func(ctx context.Context, _ notify.Notification) error {
		select {
		case <-time.After(150 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	svc := dispatch.NewService(store, store, store.RiderRepo(), push, &realtimeStub{}, &memstore.EventLog{},
		dispatch.Options{RadiusKm: 15, OperationTimeout: 30 * time.Millisecond, NotifyTimeout: 2 * time.Second},
		dispatch.Metrics{Offers: offers},
		logx.Nop(),
	)
	store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	id := store.PutDelivery(memstore.Delivery(100, domain.StatusSearchingRider, domain.PaymentPending, nil))

	n, err := svc.Dispatch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.EqualValues(t, 1, push.calls.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(offers.WithLabelValues("push", "sent")))
	require.Zero(t, testutil.ToFloat64(offers.WithLabelValues("push", "failed")))
}

func TestDispatch_PushBoundedByNotifyTimeout(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "offers_total"}, []string{"channel", "result"})
	push := &senderStub{sendFn: func(ctx context.Context, _ notify.Notification) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	svc := dispatch.NewService(store, store, store.RiderRepo(), push, &realtimeStub{}, &memstore.EventLog{},
		dispatch.Options{RadiusKm: 15, NotifyTimeout: 50 * time.Millisecond},
		dispatch.Metrics{Offers: offers},
		logx.Nop(),
	)
	store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	id := store.PutDelivery(memstore.Delivery(100, domain.StatusSearchingRider, domain.PaymentPending, nil))

	start := time.Now()
	n, err := svc.Dispatch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1.0, testutil.ToFloat64(offers.WithLabelValues("push", "failed")))
}

func TestDispatch_NoCandidatesLeavesSearching(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.AddRider(memstore.Rider("far", memstore.Offset(memstore.PickupPoint, 30), 1))
	id := f.searching()

	n, err := f.svc.Dispatch(context.Background(), id)
	require.NoError(t, err)
	require.Zero(t, n)

	d, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSearchingRider, d.Status)
}

func TestDispatch_RefusesAssignedDelivery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rider := f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	id := f.store.PutDelivery(memstore.Delivery(100, domain.StatusRiderAccepted, domain.PaymentPending, &rider))

	_, err := f.svc.Dispatch(context.Background(), id)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.Dispatch(context.Background(), 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAccept_ThreeRidersOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.store.AddRider(memstore.Rider("a", memstore.Offset(memstore.PickupPoint, 1), 1))
	b := f.store.AddRider(memstore.Rider("b", memstore.Offset(memstore.PickupPoint, 2), 1))
	c := f.store.AddRider(memstore.Rider("c", memstore.Offset(memstore.PickupPoint, 3), 1))
	id := f.searching()

	n, err := f.svc.Dispatch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	d, err := f.svc.Accept(context.Background(), riderActor(b), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRiderAccepted, d.Status)
	require.True(t, d.HasRider(b))
	require.NotNil(t, d.AcceptedAt)

	for _, loser := range []int64{a, c} {
		_, err := f.svc.Accept(context.Background(), riderActor(loser), id)
		require.ErrorIs(t, err, apperr.ErrConflict)
		require.Equal(t, "delivery is no longer available", apperr.Message(err))
		require.Zero(t, f.store.Rider(loser).CurrentDeliveryCount)
	}

	winner := f.store.Rider(b)
	require.Equal(t, 1, winner.CurrentDeliveryCount)
	require.Equal(t, domain.AvailabilityOnDelivery, winner.Availability)
	require.Equal(t, 2.0, testutil.ToFloat64(f.conflicts))

	changed := f.events.Named(domain.EventStatusChanged)
	require.Len(t, changed, 1)
	require.Equal(t, domain.StatusSearchingRider, changed[0].PreviousStatus)
	require.Equal(t, domain.StatusRiderAccepted, changed[0].Status)

	f.rt.mu.Lock()
	defer f.rt.mu.Unlock()
	require.Len(t, f.rt.rooms, 1)
	require.Equal(t, realtime.TrackingRoom(id), f.rt.rooms[0].target)
	require.Equal(t, realtime.EventRiderLocation, f.rt.rooms[0].msg.Event)
}

func TestAccept_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	const n = 16
	riders := make([]int64, n)
	for i := range riders {
		riders[i] = f.store.AddRider(memstore.Rider("r"+string(rune('a'+i)), memstore.PickupPoint, 1))
	}
	id := f.searching()

	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for _, r := range riders {
		wg.Add(1)
		go func(r int64) {
			defer wg.Done()
			_, err := f.svc.Accept(context.Background(), riderActor(r), id)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperr.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(r)
	}
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, n-1, conflicts.Load())

	d, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, d.RiderID)

	total := 0
	for _, r := range riders {
		total += f.store.Rider(r).CurrentDeliveryCount
	}
	require.Equal(t, 1, total)
	require.Len(t, f.events.Named(domain.EventStatusChanged), 1)
}

func TestAccept_CapacityIsEnforced(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rider := f.store.AddRider(memstore.Rider("solo", memstore.PickupPoint, 1))
	first := f.searching()
	second := f.searching()

	_, err := f.svc.Accept(context.Background(), riderActor(rider), first)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), riderActor(rider), second)
	require.ErrorIs(t, err, apperr.ErrUnavailable)

	// the failed reservation rolls the assignment back
	d, err := f.store.Get(context.Background(), second)
	require.NoError(t, err)
	require.Nil(t, d.RiderID)
	require.Equal(t, domain.StatusSearchingRider, d.Status)
	require.Equal(t, 1, f.store.Rider(rider).CurrentDeliveryCount)
}

func TestAccept_OnlyRiders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.svc.Accept(context.Background(), domain.Actor{ID: 100, Role: domain.RoleCustomer}, f.searching())
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Accept(context.Background(), riderActor(1), 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReject_ReturnsToSearching(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rider := f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	other := f.store.AddRider(memstore.Rider("b", memstore.PickupPoint, 1))
	id := f.searching()

	_, err := f.svc.Accept(context.Background(), riderActor(rider), id)
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), riderActor(other), id)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	d, err := f.svc.Reject(context.Background(), riderActor(rider), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSearchingRider, d.Status)
	require.Nil(t, d.RiderID)
	require.True(t, d.CanReschedule)
	require.NotNil(t, d.AcceptedAt)

	r := f.store.Rider(rider)
	require.Zero(t, r.CurrentDeliveryCount)
	require.Equal(t, domain.AvailabilityAvailable, r.Availability)

	unassigned := f.events.Named(domain.EventRiderUnassigned)
	require.Len(t, unassigned, 1)
	require.Equal(t, rider, unassigned[0].Data["riderId"])

	// the delivery is open again
	_, err = f.svc.Accept(context.Background(), riderActor(other), id)
	require.NoError(t, err)
}

func TestReject_AfterPickupRefused(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rider := f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	id := f.store.PutDelivery(memstore.Delivery(100, domain.StatusInTransit, domain.PaymentPaid, &rider))

	_, err := f.svc.Reject(context.Background(), riderActor(rider), id)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestUnassign_AdminOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rider := f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	id := f.searching()
	_, err := f.svc.Accept(context.Background(), riderActor(rider), id)
	require.NoError(t, err)

	_, err = f.svc.Unassign(context.Background(), riderActor(rider), id)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	d, err := f.svc.Unassign(context.Background(), domain.Actor{ID: 1, Role: domain.RoleAdmin}, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSearchingRider, d.Status)

	_, err = f.svc.Unassign(context.Background(), domain.Actor{ID: 1, Role: domain.RoleAdmin}, id)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestOnEvent_DispatchesOnlyFreshSearches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	id := f.searching()
	d, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)

	// unassign rollback does not re-offer
	require.NoError(t, f.svc.OnEvent(context.Background(), domain.NewEvent(domain.EventRiderUnassigned, d, domain.StatusRiderAccepted, d.UpdatedAt)))
	require.Empty(t, f.rt.offeredTo())

	require.NoError(t, f.svc.OnEvent(context.Background(), domain.NewEvent(domain.EventStatusChanged, d, domain.StatusPending, d.UpdatedAt)))
	require.Len(t, f.rt.offeredTo(), 1)

	// an expected failure such as an already-taken delivery is swallowed
	require.NoError(t, f.svc.OnEvent(context.Background(), domain.NewEvent(domain.EventStatusChanged, &domain.Delivery{ID: 999, Status: domain.StatusSearchingRider}, domain.StatusScheduled, d.UpdatedAt)))
}

func TestSweep_RedispatchesStaleSearches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.AddRider(memstore.Rider("a", memstore.PickupPoint, 1))
	stale := memstore.Delivery(100, domain.StatusSearchingRider, domain.PaymentPending, nil)
	stale.UpdatedAt = stale.UpdatedAt.Add(-10 * time.Minute)
	f.store.PutDelivery(stale)
	f.searching()

	offered, err := f.svc.Sweep(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	require.Equal(t, 1, offered)
}
