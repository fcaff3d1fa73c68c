// Package socket serves the realtime websocket endpoint: authentication, room admission
// and the client-to-server events of tracking and chat.
package socket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/service/rider"
)

const defaultRequestTimeout = 5 * time.Second

var (
	errNotAuthenticated = errors.New("authenticate first")
	errUnknownEvent     = apperr.New(apperr.ErrInvalid, "unknown event")
)

// Server upgrades HTTP requests and runs one socket per request.
type Server struct {
	hub        *realtime.Hub
	upgrader   websocket.Upgrader
	verifier   tokenVerifier
	deliveries deliveryAccess
	locations  locationService
	chat       chatService

	requestTimeout time.Duration
	logger         logx.Logger
}

// NewServer creates the websocket endpoint.
func NewServer(
	hub *realtime.Hub,
	verifier tokenVerifier,
	deliveries deliveryAccess,
	locations locationService,
	chat chatService,
	logger logx.Logger,
) *Server {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// mobile clients send no Origin; access is gated by the bearer token
			CheckOrigin: func(*http.Request) bool { return true },
		},
		verifier:       verifier,
		deliveries:     deliveries,
		locations:      locations,
		chat:           chat,
		requestTimeout: defaultRequestTimeout,
		logger:         logger,
	}
}

// ServeHTTP holds the socket until the client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logx.String("remote", r.RemoteAddr), logx.Any("err", err))
		return
	}

	c := realtime.NewConn(ws)
	s.hub.Add(c)
	go c.WriteLoop()

	ctx := context.WithoutCancel(r.Context())
	if token := r.URL.Query().Get("token"); token != "" {
		s.authenticate(c, realtime.AuthenticatePayload{Token: token})
	}

	err = c.ReadLoop(func(m realtime.Message) { s.handle(ctx, c, m) })
	s.hub.Remove(c)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
		s.logger.Debug("websocket closed", logx.String("remote", r.RemoteAddr), logx.Any("err", err))
	}
}

func (s *Server) handle(ctx context.Context, c *realtime.Conn, m realtime.Message) {
	switch m.Event {
	case realtime.EventPing:
		c.Send(realtime.NewMessage(realtime.EventPong, map[string]int64{"ts": time.Now().UnixMilli()}))
		return
	case realtime.EventAuthenticate:
		var p realtime.AuthenticatePayload
		if err := m.Decode(&p); err != nil {
			c.Send(authError("token is required"))
			return
		}
		s.authenticate(c, p)
		return
	}

	actor, ok := c.Actor()
	if !ok {
		c.Send(authError(errNotAuthenticated.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	if err := s.dispatch(ctx, c, actor, m); err != nil {
		if !apperr.Expected(err) {
			s.logger.Error("realtime request failed",
				logx.String("event", m.Event),
				logx.Int64("user_id", actor.ID),
				logx.Any("err", err),
			)
		}
		c.Send(realtime.NewMessage(realtime.EventError, realtime.ErrorPayload{
			Kind:    apperr.KindOf(err),
			Message: apperr.Message(err),
			Event:   m.Event,
		}))
	}
}

func (s *Server) authenticate(c *realtime.Conn, p realtime.AuthenticatePayload) {
	if p.Token == "" {
		c.Send(authError("token is required"))
		return
	}
	actor, err := s.verifier.Verify(p.Token)
	if err != nil {
		s.logger.Debug("realtime authentication rejected", logx.Any("err", err))
		c.Send(authError("invalid token"))
		return
	}
	if p.UserType != "" && p.UserType != string(actor.Role) {
		c.Send(authError("declared user type does not match the token"))
		return
	}

	c.SetActor(actor)
	s.hub.Register(realtime.UserKey(actor), c)
	c.Send(realtime.NewMessage(realtime.EventAuthenticated, realtime.AuthenticatedPayload{
		UserID:   actor.ID,
		UserType: string(actor.Role),
	}))
}

func (s *Server) dispatch(ctx context.Context, c *realtime.Conn, actor domain.Actor, m realtime.Message) error {
	switch m.Event {
	case realtime.EventTrackingSubscribe:
		ref, err := decodeRef(m)
		if err != nil {
			return err
		}
		return s.subscribeTracking(ctx, c, actor, ref.DeliveryID)

	case realtime.EventTrackingUnsubscribe:
		ref, err := decodeRef(m)
		if err != nil {
			return err
		}
		s.hub.Leave(realtime.TrackingRoom(ref.DeliveryID), c)
		return nil

	case realtime.EventLocationUpdate:
		var p realtime.LocationUpdatePayload
		if err := decode(m, &p); err != nil {
			return err
		}
		_, err := s.locations.UpdateLocation(ctx, actor, rider.LocationInput{
			DeliveryID: p.DeliveryID,
			Lat:        p.Lat,
			Lng:        p.Lng,
			Heading:    p.Heading,
			Speed:      p.Speed,
		})
		return err

	case realtime.EventChatJoin:
		ref, err := decodeRef(m)
		if err != nil {
			return err
		}
		return s.joinChat(ctx, c, actor, ref.DeliveryID)

	case realtime.EventChatLeave:
		ref, err := decodeRef(m)
		if err != nil {
			return err
		}
		s.hub.Leave(realtime.ChatRoom(ref.DeliveryID), c)
		return nil

	case realtime.EventChatSend:
		var p realtime.ChatSendPayload
		if err := decode(m, &p); err != nil {
			return err
		}
		_, err := s.chat.Send(ctx, actor, p.DeliveryID, p.Content)
		return err

	case realtime.EventChatTyping:
		var p realtime.ChatTypingPayload
		if err := decode(m, &p); err != nil {
			return err
		}
		return s.chat.Typing(ctx, actor, p.DeliveryID, p.IsTyping)

	case realtime.EventChatRead:
		ref, err := decodeRef(m)
		if err != nil {
			return err
		}
		_, err = s.chat.MarkRead(ctx, actor, ref.DeliveryID)
		return err
	}
	return errUnknownEvent
}

// subscribeTracking admits parties of the delivery and sends the current state.
func (s *Server) subscribeTracking(ctx context.Context, c *realtime.Conn, actor domain.Actor, id int64) error {
	d, err := s.deliveries.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	s.hub.Join(realtime.TrackingRoom(d.ID), c)

	snap := realtime.SnapshotPayload{
		DeliveryID:    d.ID,
		TrackingCode:  d.TrackingCode,
		Status:        d.Status,
		PaymentStatus: d.PaymentStatus,
		RiderID:       d.RiderID,
	}
	if d.RiderID != nil {
		loc, err := s.locations.CurrentLocation(ctx, *d.RiderID)
		if err != nil {
			s.logger.Warn("snapshot rider location failed", logx.Int64("delivery_id", d.ID), logx.Any("err", err))
		} else if loc != nil {
			snap.RiderLocation = &domain.GeoPoint{Lat: loc.Lat, Lng: loc.Lng}
		}
	}
	c.Send(realtime.NewMessage(realtime.EventTrackingSnapshot, snap))
	return nil
}

// joinChat admits parties of the delivery and replays the recent history.
func (s *Server) joinChat(ctx context.Context, c *realtime.Conn, actor domain.Actor, id int64) error {
	d, err := s.deliveries.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	s.hub.Join(realtime.ChatRoom(d.ID), c)

	history, err := s.chat.History(ctx, actor, d.ID)
	if err != nil {
		return err
	}
	if history == nil {
		history = []domain.ChatMessage{}
	}
	c.Send(realtime.NewMessage(realtime.EventChatHistory, realtime.ChatHistoryPayload{
		DeliveryID: d.ID,
		Messages:   history,
	}))
	return nil
}

func decodeRef(m realtime.Message) (realtime.DeliveryRef, error) {
	var ref realtime.DeliveryRef
	if err := decode(m, &ref); err != nil {
		return ref, err
	}
	if ref.DeliveryID <= 0 {
		return ref, apperr.New(apperr.ErrInvalid, "deliveryId is required")
	}
	return ref, nil
}

func decode(m realtime.Message, v any) error {
	if err := m.Decode(v); err != nil {
		return apperr.New(apperr.ErrInvalid, err.Error())
	}
	return nil
}

func authError(msg string) realtime.Message {
	return realtime.NewMessage(realtime.EventAuthError, realtime.ErrorPayload{Kind: "unauthorized", Message: msg})
}
