package app

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/dig"

	"parcel-dispatch/internal/auth"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/metrics"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/realtime/socket"
	"parcel-dispatch/internal/service/chat"
	"parcel-dispatch/internal/service/lifecycle"
	"parcel-dispatch/internal/service/rider"
)

// registerRealtime wires the socket hub of the API process. With Redis every
// frame goes through the bridge so all instances see it.
func registerRealtime(container *dig.Container) error {
	return provideAll(container,
		func(set *metrics.Set, logger logx.Logger) *realtime.Hub {
			return realtime.NewHub(set.RealtimeConns, logger.With(logx.String("component", "realtime")))
		},
		func(rdb *redis.Client, hub *realtime.Hub, logger logx.Logger) *realtime.RedisBridge {
			if rdb == nil {
				return nil
			}
			return realtime.NewRedisBridge(rdb, realtime.DefaultBridgeChannel, hub,
				logger.With(logx.String("component", "realtime_bridge")))
		},
		func(hub *realtime.Hub, bridge *realtime.RedisBridge) realtime.Publisher {
			if bridge == nil {
				return hub
			}
			return bridge
		},
		realtime.NewRelay,
		func(
			hub *realtime.Hub,
			jwt *auth.JWT,
			deliveries *lifecycle.Service,
			riders *rider.Service,
			messages *chat.Service,
			logger logx.Logger,
		) *socket.Server {
			return socket.NewServer(hub, jwt, deliveries, riders, messages,
				logger.With(logx.String("component", "socket")))
		},
	)
}

// registerWorkerRealtime wires a publish-only bridge. The worker holds no sockets.
func registerWorkerRealtime(container *dig.Container) error {
	return provideAll(container,
		func(rdb *redis.Client, logger logx.Logger) *realtime.RedisBridge {
			if rdb == nil {
				return nil
			}
			return realtime.NewRedisBridge(rdb, realtime.DefaultBridgeChannel, nil,
				logger.With(logx.String("component", "realtime_bridge")))
		},
		func(bridge *realtime.RedisBridge, logger logx.Logger) realtime.Publisher {
			if bridge == nil {
				logger.Warn("redis not configured: worker realtime frames are dropped")
				return realtime.Discard{}
			}
			return bridge
		},
		realtime.NewRelay,
	)
}
