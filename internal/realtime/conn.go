package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parcel-dispatch/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// Conn is one client socket. Frames are queued on a bounded buffer and written by WriteLoop.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu    sync.RWMutex
	actor *domain.Actor
}

// NewConn wraps an upgraded socket. ws may be nil for connections that are only read from the queue.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Actor returns the authenticated identity of the connection.
func (c *Conn) Actor() (domain.Actor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.actor == nil {
		return domain.Actor{}, false
	}
	return *c.actor, true
}

// SetActor marks the connection as authenticated.
func (c *Conn) SetActor(a domain.Actor) {
	c.mu.Lock()
	c.actor = &a
	c.mu.Unlock()
}

// Send queues msg. It reports false when the connection is closed or its buffer is full;
// such frames are dropped.
func (c *Conn) Send(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	return c.enqueue(data)
}

func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the writer. It is safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// ReadLoop reads frames until the socket fails and passes each decoded one to handle.
// Undecodable frames are answered with an error event.
func (c *Conn) ReadLoop(handle func(Message)) error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			c.Send(NewMessage(EventError, ErrorPayload{Kind: "invalid_input", Message: "malformed frame"}))
			continue
		}
		handle(msg)
	}
}

// WriteLoop drains the queue to the socket and keeps it alive with pings.
func (c *Conn) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
