package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"parcel-dispatch/internal/logx"
)

// DefaultBridgeChannel is the Redis channel shared by every process of the deployment.
const DefaultBridgeChannel = "parcel-dispatch:realtime"

const (
	scopeRoom = "room"
	scopeUser = "user"
)

type redisPubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type envelope struct {
	Scope   string  `json:"scope"`
	Target  string  `json:"target"`
	Message Message `json:"message"`
}

// RedisBridge publishes frames to a Redis channel so that every API instance can deliver
// them to its own sockets. Run consumes the channel into the local publisher.
type RedisBridge struct {
	rdb     redisPubSub
	channel string
	local   Publisher
	logger  logx.Logger
}

// NewRedisBridge creates a bridge. local may be nil in processes that hold no sockets.
func NewRedisBridge(rdb redisPubSub, channel string, local Publisher, logger logx.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultBridgeChannel
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &RedisBridge{rdb: rdb, channel: channel, local: local, logger: logger}
}

// ToRoom publishes msg for room.
func (b *RedisBridge) ToRoom(ctx context.Context, room string, msg Message) {
	b.publish(ctx, envelope{Scope: scopeRoom, Target: room, Message: msg})
}

// ToUser publishes msg for user.
func (b *RedisBridge) ToUser(ctx context.Context, user string, msg Message) {
	b.publish(ctx, envelope{Scope: scopeUser, Target: user, Message: msg})
}

func (b *RedisBridge) publish(ctx context.Context, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("realtime bridge encode failed", logx.String("event", env.Message.Event), logx.Any("err", err))
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn("realtime bridge publish failed, delivering locally",
			logx.String("event", env.Message.Event),
			logx.String(env.Scope, env.Target),
			logx.Any("err", err),
		)
		b.deliver(ctx, env)
	}
}

// Run subscribes to the channel and forwards frames to the local publisher until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("realtime bridge subscribed", logx.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, m.Payload)
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("realtime bridge bad frame", logx.Any("err", err))
		return
	}
	b.deliver(ctx, env)
}

func (b *RedisBridge) deliver(ctx context.Context, env envelope) {
	if b.local == nil {
		return
	}
	switch env.Scope {
	case scopeRoom:
		b.local.ToRoom(ctx, env.Target, env.Message)
	case scopeUser:
		b.local.ToUser(ctx, env.Target, env.Message)
	default:
		b.logger.Warn("realtime bridge unknown scope", logx.String("scope", env.Scope))
	}
}
