package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"parcel-dispatch/internal/http/handlers"
	"parcel-dispatch/internal/http/middleware/ratelimit"
)

const requestTimeout = 5 * time.Second

// Deps are the handlers and middleware the router mounts. Optional fields
// may be nil.
type Deps struct {
	Base       *handlers.Handlers
	Deliveries *handlers.DeliveryHandler
	Dispatch   *handlers.DispatchHandler
	Handover   *handlers.HandoverHandler
	Riders     *handlers.RiderHandler
	Chat       *handlers.ChatHandler

	Authenticate  func(http.Handler) http.Handler
	Observability func(http.Handler) http.Handler
	RateLimit     *ratelimit.Middleware
	PinRateLimit  *ratelimit.Middleware

	Metrics http.Handler
	Socket  http.Handler
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Observability != nil {
		r.Use(d.Observability)
	}
	r.Use(middleware.Recoverer)

	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	// long-lived, must stay outside the request timeout
	if d.Socket != nil {
		r.Handle("/ws", d.Socket)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/ping", d.Base.Ping)
		r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
		if d.Metrics != nil {
			r.Handle("/metrics", d.Metrics)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if d.Authenticate != nil {
				r.Use(d.Authenticate)
			}
			if d.RateLimit != nil {
				r.Use(d.RateLimit.Handler())
			}
			mountDeliveries(r, d)
			mountRiders(r, d)
		})
	})

	return r
}

func mountDeliveries(r chi.Router, d Deps) {
	r.Post("/deliveries", d.Deliveries.Create)
	r.Route("/deliveries/{id}", func(r chi.Router) {
		r.Get("/", d.Deliveries.Get)
		r.Patch("/status", d.Deliveries.UpdateStatus)
		r.Post("/arrive-pickup", d.Deliveries.ArrivePickup)
		r.Post("/arrive-dropoff", d.Deliveries.ArriveDropoff)
		r.Post("/cancel", d.Deliveries.Cancel)

		r.Post("/dispatch", d.Dispatch.Dispatch)
		r.Post("/accept", d.Dispatch.Accept)
		r.Post("/reject", d.Dispatch.Reject)
		r.Post("/unassign", d.Dispatch.Unassign)

		r.Get("/pickup-pin", d.Handover.PickupPin)
		r.Get("/delivery-pin", d.Handover.DeliveryPin)
		r.Group(func(r chi.Router) {
			if d.PinRateLimit != nil {
				r.Use(d.PinRateLimit.Handler())
			}
			r.Post("/verify-pickup-pin", d.Handover.VerifyPickupPin)
			r.Post("/verify-delivery-pin", d.Handover.VerifyDeliveryPin)
		})

		r.Get("/chat", d.Chat.History)
		r.Post("/chat", d.Chat.Send)
		r.Post("/chat/read", d.Chat.MarkRead)
	})
}

func mountRiders(r chi.Router, d Deps) {
	r.Route("/riders/me", func(r chi.Router) {
		r.Put("/online", d.Riders.SetOnline)
		r.Put("/location", d.Riders.UpdateLocation)
		r.Get("/wallet", d.Riders.Wallet)
	})
}
