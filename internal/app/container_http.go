package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"parcel-dispatch/internal/auth"
	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/http/handlers"
	"parcel-dispatch/internal/http/middleware"
	"parcel-dispatch/internal/http/middleware/ratelimit"
	"parcel-dispatch/internal/http/pprofserver"
	"parcel-dispatch/internal/http/router"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/realtime/socket"
	"parcel-dispatch/internal/repository"
	"parcel-dispatch/internal/service/chat"
	"parcel-dispatch/internal/service/dispatch"
	"parcel-dispatch/internal/service/handover"
	"parcel-dispatch/internal/service/lifecycle"
	"parcel-dispatch/internal/service/rider"
)

var errNoJWTSecret = errors.New("JWT_SECRET is required")

type routerIn struct {
	dig.In

	Base       *handlers.Handlers
	Deliveries *handlers.DeliveryHandler
	Dispatch   *handlers.DispatchHandler
	Handover   *handlers.HandoverHandler
	Riders     *handlers.RiderHandler
	Chat       *handlers.ChatHandler

	Verifier      auth.Verifier
	Observability *middleware.Observability
	RateLimit     *ratelimit.Middleware
	PinRateLimit  *ratelimit.Middleware `name:"pin_rate_limit"`
	Registry      *prometheus.Registry
	Socket        *socket.Server
	Logger        logx.Logger
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Base:          in.Base,
		Deliveries:    in.Deliveries,
		Dispatch:      in.Dispatch,
		Handover:      in.Handover,
		Riders:        in.Riders,
		Chat:          in.Chat,
		Authenticate:  middleware.Authenticate(in.Verifier, in.Logger),
		Observability: in.Observability.Handler,
		RateLimit:     in.RateLimit,
		PinRateLimit:  in.PinRateLimit,
		Metrics:       promhttp.HandlerFor(in.Registry, promhttp.HandlerOpts{}),
		Socket:        in.Socket,
	})
}

type serversOut struct {
	dig.Out
	Main  *http.Server
	Pprof *http.Server `name:"pprof_server"`
}

func newServers(cfg *config.Config, mux http.Handler, logger logx.Logger) serversOut {
	return serversOut{
		Main: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// no WriteTimeout: websocket writes carry their own deadlines
			IdleTimeout: 60 * time.Second,
		},
		Pprof: pprofserver.New(cfg.Pprof, logger.With(logx.String("component", "pprof"))),
	}
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, jwt *auth.JWT) (auth.Verifier, error) {
			if cfg.Auth.Secret == "" {
				return nil, errNoJWTSecret
			}
			return jwt, nil
		},
		func(logger logx.Logger, reg *prometheus.Registry) (*middleware.Observability, error) {
			return middleware.NewObservability(logger.With(logx.String("component", "http")), reg)
		},
		newRateLimitClock,
		newRateLimitMiddleware,
		handlers.New,
		func(logger logx.Logger, svc *lifecycle.Service) *handlers.DeliveryHandler {
			return handlers.NewDeliveryHandler(logger, svc)
		},
		func(logger logx.Logger, svc *dispatch.Service) *handlers.DispatchHandler {
			return handlers.NewDispatchHandler(logger, svc)
		},
		func(logger logx.Logger, svc *handover.Service) *handlers.HandoverHandler {
			return handlers.NewHandoverHandler(logger, svc)
		},
		func(logger logx.Logger, svc *rider.Service, earnings *repository.EarningRepo) *handlers.RiderHandler {
			return handlers.NewRiderHandler(logger, svc, earnings)
		},
		func(logger logx.Logger, svc *chat.Service) *handlers.ChatHandler {
			return handlers.NewChatHandler(logger, svc)
		},
		newRouter,
		newServers,
	)
}
