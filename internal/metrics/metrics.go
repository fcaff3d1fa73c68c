package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by outbound gateways
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by outbound gateways",
	})
}

// NewDispatchOffersTotal counts offers fanned out to riders, by delivery channel and outcome.
func NewDispatchOffersTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offers_total",
		Help: "Total number of delivery offers sent to riders",
	}, []string{"channel", "result"})
}

// NewDispatchAcceptConflictsTotal counts accept calls that lost the race.
func NewDispatchAcceptConflictsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_accept_conflicts_total",
		Help: "Total number of accept attempts on deliveries that were no longer available",
	})
}

// NewHandoverPinRejectionsTotal counts wrong PIN submissions.
func NewHandoverPinRejectionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handover_pin_rejections_total",
		Help: "Total number of rejected handover PIN submissions",
	}, []string{"stage"})
}

// NewSettlementCreditsTotal counts earnings credit attempts by result.
func NewSettlementCreditsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_credits_total",
		Help: "Total number of rider earnings credit attempts",
	}, []string{"result"})
}

// NewRealtimeConnections tracks open realtime sockets.
func NewRealtimeConnections() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Number of open realtime connections",
	})
}

// Set groups the domain collectors so they can be registered together.
type Set struct {
	DispatchOffers    *prometheus.CounterVec
	AcceptConflicts   prometheus.Counter
	PinRejections     *prometheus.CounterVec
	SettlementCredits *prometheus.CounterVec
	RealtimeConns     prometheus.Gauge
	GatewayRetries    prometheus.Counter
	RateLimitExceeded prometheus.Counter
}

// NewSet creates every collector of the service.
func NewSet() *Set {
	return &Set{
		DispatchOffers:    NewDispatchOffersTotal(),
		AcceptConflicts:   NewDispatchAcceptConflictsTotal(),
		PinRejections:     NewHandoverPinRejectionsTotal(),
		SettlementCredits: NewSettlementCreditsTotal(),
		RealtimeConns:     NewRealtimeConnections(),
		GatewayRetries:    NewGatewayRetriesTotal(),
		RateLimitExceeded: NewRateLimitExceededTotal(),
	}
}

// Register adds all collectors to reg.
func (s *Set) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		s.DispatchOffers, s.AcceptConflicts, s.PinRejections,
		s.SettlementCredits, s.RealtimeConns, s.GatewayRetries, s.RateLimitExceeded,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
