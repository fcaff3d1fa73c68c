package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"parcel-dispatch/internal/logx"
)

// Publisher delivers server-initiated frames to rooms and logical users.
type Publisher interface {
	ToRoom(ctx context.Context, room string, msg Message)
	ToUser(ctx context.Context, user string, msg Message)
}

// Discard drops every frame. Used by processes that hold no sockets and have no bridge.
type Discard struct{}

// ToRoom implements Publisher.
func (Discard) ToRoom(context.Context, string, Message) {}

// ToUser implements Publisher.
func (Discard) ToUser(context.Context, string, Message) {}

type connSet map[*Conn]struct{}

// Hub is the in-process registry of live connections: user key -> connections, room -> members.
type Hub struct {
	mu     sync.RWMutex
	users  map[string]connSet
	rooms  map[string]connSet
	joined map[*Conn]map[string]struct{}
	userOf map[*Conn]string

	conns  prometheus.Gauge
	logger logx.Logger
}

// NewHub creates an empty hub. conns may be nil.
func NewHub(conns prometheus.Gauge, logger logx.Logger) *Hub {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Hub{
		users:  make(map[string]connSet),
		rooms:  make(map[string]connSet),
		joined: make(map[*Conn]map[string]struct{}),
		userOf: make(map[*Conn]string),
		conns:  conns,
		logger: logger,
	}
}

// Add tracks a freshly accepted connection.
func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	if _, ok := h.joined[c]; !ok {
		h.joined[c] = make(map[string]struct{})
		if h.conns != nil {
			h.conns.Inc()
		}
	}
	h.mu.Unlock()
}

// Register binds c to a user key. A connection belongs to at most one user.
func (h *Hub) Register(user string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.userOf[c]; ok {
		if prev == user {
			return
		}
		h.unregisterLocked(prev, c)
	}
	set, ok := h.users[user]
	if !ok {
		set = make(connSet)
		h.users[user] = set
	}
	set[c] = struct{}{}
	h.userOf[c] = user
}

func (h *Hub) unregisterLocked(user string, c *Conn) {
	set := h.users[user]
	delete(set, c)
	if len(set) == 0 {
		delete(h.users, user)
	}
	delete(h.userOf, c)
}

// Join adds c to room.
func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.rooms[room]
	if !ok {
		set = make(connSet)
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	if h.joined[c] == nil {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][room] = struct{}{}
}

// Leave removes c from room.
func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	h.leaveLocked(room, c)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(room string, c *Conn) {
	set := h.rooms[room]
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
	delete(h.joined[c], room)
}

// Remove drops c from every room and from its user entry, then closes it.
// The user entry disappears with its last connection.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	rooms, tracked := h.joined[c]
	for room := range rooms {
		h.leaveLocked(room, c)
	}
	delete(h.joined, c)
	if user, ok := h.userOf[c]; ok {
		h.unregisterLocked(user, c)
	}
	if tracked && h.conns != nil {
		h.conns.Dec()
	}
	h.mu.Unlock()

	c.Close()
}

// ToRoom sends msg to every member of room.
func (h *Hub) ToRoom(_ context.Context, room string, msg Message) {
	h.broadcast(h.snapshot(h.rooms, room), msg, "room", room)
}

// ToUser sends msg to every connection of a user.
func (h *Hub) ToUser(_ context.Context, user string, msg Message) {
	h.broadcast(h.snapshot(h.users, user), msg, "user", user)
}

func (h *Hub) snapshot(index map[string]connSet, key string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := index[key]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) broadcast(targets []*Conn, msg Message, scope, key string) {
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("realtime encode failed", logx.String("event", msg.Event), logx.Any("err", err))
		return
	}
	for _, c := range targets {
		if !c.enqueue(data) {
			h.logger.Debug("realtime frame dropped",
				logx.String("event", msg.Event),
				logx.String(scope, key),
			)
		}
	}
}

// UserConnections returns the number of live connections of user.
func (h *Hub) UserConnections(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[user])
}

// RoomSize returns the number of members of room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Users returns the number of users with at least one connection.
func (h *Hub) Users() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}
