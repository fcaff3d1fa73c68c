package chat_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/service/chat"
	"parcel-dispatch/internal/testutil/memstore"
)

type roomStub struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (r *roomStub) ToRoom(_ context.Context, _ string, msg realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *roomStub) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Event)
	}
	return out
}

type fixture struct {
	store      *memstore.Store
	rooms      *roomStub
	svc        *chat.Service
	deliveryID int64
	customer   domain.Actor
	rider      domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	customerID := store.AddCustomer(domain.Customer{Name: "Ada"})
	riderID := store.AddRider(memstore.Rider("bola", memstore.PickupPoint, 1))
	rid := riderID
	f := &fixture{
		store:      store,
		rooms:      &roomStub{},
		deliveryID: store.PutDelivery(memstore.Delivery(customerID, domain.StatusInTransit, domain.PaymentPaid, &rid)),
		customer:   domain.Actor{ID: customerID, Role: domain.RoleCustomer},
		rider:      domain.Actor{ID: riderID, Role: domain.RoleRider},
	}
	f.svc = chat.NewService(store, store.Chat(), f.rooms, time.Second, logx.Nop())
	return f
}

func TestSend_AndHistoryMarksRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.customer, f.deliveryID, "  gate code is 1234  ")
	require.NoError(t, err)
	require.Equal(t, "gate code is 1234", m.Content)
	require.Equal(t, domain.SenderCustomer, m.SenderType)
	require.NotEmpty(t, m.ID)

	_, err = f.svc.Send(ctx, f.rider, f.deliveryID, "on my way")
	require.NoError(t, err)

	history, err := f.svc.History(ctx, f.rider, f.deliveryID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "gate code is 1234", history[0].Content)

	require.Equal(t, []string{
		realtime.EventChatNewMessage,
		realtime.EventChatNewMessage,
		realtime.EventChatMessagesRead,
	}, f.rooms.events())

	// customer messages are read now; the rider's own message is not
	n, err := f.svc.MarkRead(ctx, f.rider, f.deliveryID)
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = f.svc.MarkRead(ctx, f.customer, f.deliveryID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestHistory_LastFifty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 55; i++ {
		_, err := f.svc.Send(ctx, f.customer, f.deliveryID, fmt.Sprintf("msg %02d", i))
		require.NoError(t, err)
	}
	history, err := f.svc.History(ctx, f.rider, f.deliveryID)
	require.NoError(t, err)
	require.Len(t, history, domain.ChatHistoryLimit)
	require.Equal(t, "msg 05", history[0].Content)
	require.Equal(t, "msg 54", history[49].Content)
}

func TestHistory_OnlyParties(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.History(context.Background(), domain.Actor{ID: 1, Role: domain.RoleAdmin}, f.deliveryID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.History(context.Background(), domain.Actor{ID: 999, Role: domain.RoleRider}, f.deliveryID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSend_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   domain.Actor
		id      int64
		content string
		kind    error
	}{
		{name: "empty", actor: f.customer, id: f.deliveryID, content: "   ", kind: apperr.ErrInvalid},
		{name: "too long", actor: f.customer, id: f.deliveryID, content: strings.Repeat("ы", 1001), kind: apperr.ErrInvalid},
		{name: "stranger", actor: domain.Actor{ID: 999, Role: domain.RoleCustomer}, id: f.deliveryID, content: "hi", kind: apperr.ErrForbidden},
		{name: "admin", actor: domain.Actor{ID: 1, Role: domain.RoleAdmin}, id: f.deliveryID, content: "hi", kind: apperr.ErrForbidden},
		{name: "missing delivery", actor: f.customer, id: 999, content: "hi", kind: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, tt.actor, tt.id, tt.content)
			require.ErrorIs(t, err, tt.kind)
		})
	}

	_, err := f.svc.Send(ctx, f.customer, f.deliveryID, strings.Repeat("ы", 1000))
	require.NoError(t, err)
}

func TestTyping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.svc.Typing(context.Background(), f.rider, f.deliveryID, true))

	f.rooms.mu.Lock()
	defer f.rooms.mu.Unlock()
	require.Len(t, f.rooms.msgs, 1)
	var p realtime.ChatUserTypingPayload
	require.NoError(t, f.rooms.msgs[0].Decode(&p))
	require.Equal(t, "rider", p.UserType)
	require.True(t, p.IsTyping)
}

func TestOnEvent_SystemLines(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.store.Get(ctx, f.deliveryID)
	require.NoError(t, err)

	d.Status = domain.StatusRiderArrivedDropoff
	require.NoError(t, f.svc.OnEvent(ctx, domain.NewEvent(domain.EventStatusChanged, d, domain.StatusInTransit, time.Now())))
	require.NoError(t, f.svc.OnEvent(ctx, domain.NewEvent(domain.EventRiderUnassigned, d, domain.StatusRiderAccepted, time.Now())))
	// unlabelled transitions and other events write nothing
	d.Status = domain.StatusSearchingRider
	require.NoError(t, f.svc.OnEvent(ctx, domain.NewEvent(domain.EventStatusChanged, d, domain.StatusPending, time.Now())))
	require.NoError(t, f.svc.OnEvent(ctx, domain.NewEvent(domain.EventDelivered, d, domain.StatusInTransit, time.Now())))

	history, err := f.store.Chat().Recent(ctx, f.deliveryID, 50)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.SenderSystem, history[0].SenderType)
	require.Equal(t, "Rider has arrived at the dropoff location", history[0].Content)
	require.Nil(t, history[1].SenderID)
}
