package socket_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/cache"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/realtime/socket"
	"parcel-dispatch/internal/service/rider"
)

type verifierStub struct{}

// Verify accepts tokens of the form "<role>-<id>" with id 1..9.
func (verifierStub) Verify(token string) (domain.Actor, error) {
	role, id, ok := strings.Cut(token, "-")
	if !ok || len(id) != 1 || id[0] < '1' || id[0] > '9' {
		return domain.Actor{}, errors.New("bad token")
	}
	return domain.Actor{ID: int64(id[0] - '0'), Role: domain.Role(role)}, nil
}

type deliveriesStub struct {
	d *domain.Delivery
}

func (s deliveriesStub) Get(_ context.Context, actor domain.Actor, id int64) (*domain.Delivery, error) {
	if s.d == nil || s.d.ID != id {
		return nil, apperr.New(apperr.ErrNotFound, "delivery not found")
	}
	if !s.d.IsParty(actor) {
		return nil, apperr.New(apperr.ErrForbidden, "you are not a party of this delivery")
	}
	return s.d, nil
}

type locationsStub struct {
	mu      sync.Mutex
	updates []rider.LocationInput
	current *cache.Location
}

func (s *locationsStub) UpdateLocation(_ context.Context, _ domain.Actor, in rider.LocationInput) (*rider.Eta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, in)
	return &rider.Eta{DeliveryID: in.DeliveryID}, nil
}

func (s *locationsStub) CurrentLocation(context.Context, int64) (*cache.Location, error) {
	return s.current, nil
}

func (s *locationsStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type chatStub struct {
	history []domain.ChatMessage
	sendErr error
}

func (s chatStub) History(context.Context, domain.Actor, int64) ([]domain.ChatMessage, error) {
	return s.history, nil
}

func (s chatStub) Send(_ context.Context, _ domain.Actor, _ int64, content string) (*domain.ChatMessage, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &domain.ChatMessage{Content: content}, nil
}

func (chatStub) Typing(context.Context, domain.Actor, int64, bool) error { return nil }

func (chatStub) MarkRead(context.Context, domain.Actor, int64) (int64, error) { return 0, nil }

type fixture struct {
	hub       *realtime.Hub
	locations *locationsStub
	url       string
}

func newFixture(t *testing.T, chat chatStub) *fixture {
	t.Helper()

	riderID := int64(2)
	d := &domain.Delivery{
		ID: 100, TrackingCode: "PD-100", CustomerID: 1, RiderID: &riderID,
		Status: domain.StatusInTransit, PaymentStatus: domain.PaymentPaid,
	}
	f := &fixture{
		hub:       realtime.NewHub(nil, nil),
		locations: &locationsStub{current: &cache.Location{RiderID: 2, Lat: 9.04, Lng: 7.49}},
	}
	srv := httptest.NewServer(socket.NewServer(f.hub, verifierStub{}, deliveriesStub{d: d}, f.locations, chat, nil))
	t.Cleanup(srv.Close)
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return f
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(f.url+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(realtime.NewMessage(event, data)))
}

func read(t *testing.T, ws *websocket.Conn) realtime.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m realtime.Message
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func readError(t *testing.T, ws *websocket.Conn, event string) realtime.ErrorPayload {
	t.Helper()
	m := read(t, ws)
	require.Equal(t, event, m.Event)
	var p realtime.ErrorPayload
	require.NoError(t, m.Decode(&p))
	return p
}

func TestServer_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	ws := f.dial(t, "")

	send(t, ws, realtime.EventTrackingSubscribe, realtime.DeliveryRef{DeliveryID: 100})
	p := readError(t, ws, realtime.EventAuthError)
	require.Equal(t, "authenticate first", p.Message)

	send(t, ws, realtime.EventAuthenticate, realtime.AuthenticatePayload{Token: "garbage"})
	p = readError(t, ws, realtime.EventAuthError)
	require.Equal(t, "invalid token", p.Message)

	send(t, ws, realtime.EventAuthenticate, realtime.AuthenticatePayload{Token: "customer-1", UserType: "rider"})
	readError(t, ws, realtime.EventAuthError)

	send(t, ws, realtime.EventAuthenticate, realtime.AuthenticatePayload{Token: "customer-1", UserType: "customer"})
	m := read(t, ws)
	require.Equal(t, realtime.EventAuthenticated, m.Event)
	var ack realtime.AuthenticatedPayload
	require.NoError(t, m.Decode(&ack))
	require.Equal(t, int64(1), ack.UserID)
	require.Equal(t, "customer", ack.UserType)
	require.Equal(t, 1, f.hub.UserConnections(realtime.CustomerKey(1)))
}

func TestServer_TokenQueryAndDisconnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	phone := f.dial(t, "?token=customer-1")
	tablet := f.dial(t, "?token=customer-1")
	require.Equal(t, realtime.EventAuthenticated, read(t, phone).Event)
	require.Equal(t, realtime.EventAuthenticated, read(t, tablet).Event)
	require.Equal(t, 2, f.hub.UserConnections(realtime.CustomerKey(1)))

	require.NoError(t, phone.Close())
	require.Eventually(t, func() bool {
		return f.hub.UserConnections(realtime.CustomerKey(1)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, tablet.Close())
	require.Eventually(t, func() bool { return f.hub.Users() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestServer_TrackingSnapshotAndBroadcast(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	ws := f.dial(t, "?token=customer-1")
	read(t, ws)

	send(t, ws, realtime.EventTrackingSubscribe, realtime.DeliveryRef{DeliveryID: 100})
	m := read(t, ws)
	require.Equal(t, realtime.EventTrackingSnapshot, m.Event)

	var snap realtime.SnapshotPayload
	require.NoError(t, m.Decode(&snap))
	require.Equal(t, domain.StatusInTransit, snap.Status)
	require.Equal(t, domain.PaymentPaid, snap.PaymentStatus)
	require.NotNil(t, snap.RiderLocation)
	require.Equal(t, 9.04, snap.RiderLocation.Lat)
	require.Equal(t, 1, f.hub.RoomSize(realtime.TrackingRoom(100)))

	f.hub.ToRoom(context.Background(), realtime.TrackingRoom(100),
		realtime.NewMessage(realtime.EventRiderLocation, realtime.RiderLocationPayload{DeliveryID: 100, Lat: 9.03}))
	require.Equal(t, realtime.EventRiderLocation, read(t, ws).Event)

	send(t, ws, realtime.EventTrackingUnsubscribe, realtime.DeliveryRef{DeliveryID: 100})
	require.Eventually(t, func() bool {
		return f.hub.RoomSize(realtime.TrackingRoom(100)) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestServer_RoomAdmissionIsChecked(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	stranger := f.dial(t, "?token=customer-5")
	read(t, stranger)

	send(t, stranger, realtime.EventTrackingSubscribe, realtime.DeliveryRef{DeliveryID: 100})
	p := readError(t, stranger, realtime.EventError)
	require.Equal(t, "forbidden", p.Kind)
	require.Equal(t, realtime.EventTrackingSubscribe, p.Event)

	send(t, stranger, realtime.EventChatJoin, realtime.DeliveryRef{DeliveryID: 100})
	require.Equal(t, "forbidden", readError(t, stranger, realtime.EventError).Kind)

	send(t, stranger, realtime.EventTrackingSubscribe, realtime.DeliveryRef{DeliveryID: 999})
	require.Equal(t, "not_found", readError(t, stranger, realtime.EventError).Kind)

	require.Equal(t, 0, f.hub.RoomSize(realtime.TrackingRoom(100)))
	require.Equal(t, 0, f.hub.RoomSize(realtime.ChatRoom(100)))
}

func TestServer_AdminIsNotAdmittedToRooms(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	admin := f.dial(t, "?token=admin-1")
	read(t, admin)

	send(t, admin, realtime.EventTrackingSubscribe, realtime.DeliveryRef{DeliveryID: 100})
	require.Equal(t, "forbidden", readError(t, admin, realtime.EventError).Kind)

	send(t, admin, realtime.EventChatJoin, realtime.DeliveryRef{DeliveryID: 100})
	require.Equal(t, "forbidden", readError(t, admin, realtime.EventError).Kind)

	require.Equal(t, 0, f.hub.RoomSize(realtime.TrackingRoom(100)))
	require.Equal(t, 0, f.hub.RoomSize(realtime.ChatRoom(100)))
}

func TestServer_ChatJoinSendsHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{history: []domain.ChatMessage{
		{ID: "a", DeliveryID: 100, Content: "hello"},
		{ID: "b", DeliveryID: 100, Content: "on my way"},
	}})
	ws := f.dial(t, "?token=rider-2")
	read(t, ws)

	send(t, ws, realtime.EventChatJoin, realtime.DeliveryRef{DeliveryID: 100})
	m := read(t, ws)
	require.Equal(t, realtime.EventChatHistory, m.Event)

	var h realtime.ChatHistoryPayload
	require.NoError(t, m.Decode(&h))
	require.Len(t, h.Messages, 2)
	require.Equal(t, "hello", h.Messages[0].Content)
	require.Equal(t, 1, f.hub.RoomSize(realtime.ChatRoom(100)))
}

func TestServer_ChatSendErrorIsReported(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{sendErr: apperr.New(apperr.ErrInvalid, "message is empty")})
	ws := f.dial(t, "?token=customer-1")
	read(t, ws)

	send(t, ws, realtime.EventChatSend, realtime.ChatSendPayload{DeliveryID: 100, Content: "  "})
	p := readError(t, ws, realtime.EventError)
	require.Equal(t, "invalid_input", p.Kind)
	require.Equal(t, "message is empty", p.Message)
}

func TestServer_LocationUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	ws := f.dial(t, "?token=rider-2")
	read(t, ws)

	speed := 25.0
	send(t, ws, realtime.EventLocationUpdate, realtime.LocationUpdatePayload{DeliveryID: 100, Lat: 9.03, Lng: 7.49, Speed: &speed})
	require.Eventually(t, func() bool { return f.locations.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestServer_PingAndBadFrames(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chatStub{})
	ws := f.dial(t, "")

	send(t, ws, realtime.EventPing, nil)
	require.Equal(t, realtime.EventPong, read(t, ws).Event)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.Equal(t, "invalid_input", readError(t, ws, realtime.EventError).Kind)

	send(t, ws, realtime.EventAuthenticate, realtime.AuthenticatePayload{Token: "rider-2"})
	read(t, ws)

	send(t, ws, "teleport", realtime.DeliveryRef{DeliveryID: 100})
	require.Equal(t, "invalid_input", readError(t, ws, realtime.EventError).Kind)

	send(t, ws, realtime.EventChatJoin, realtime.DeliveryRef{})
	require.Equal(t, "invalid_input", readError(t, ws, realtime.EventError).Kind)
}
