package config

import (
	"fmt"
	"net/url"
	"time"
)

// DB stores Postgres connection settings.
type DB struct {
	Host    string
	Port    string
	User    string
	Pass    string
	Name    string
	SSLMode string
}

// DSN returns a postgres:// connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     fmt.Sprintf("%s:%s", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// Redis stores the location cache and realtime bridge settings.
// An empty Addr disables Redis.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether Redis is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Kafka stores broker settings. Empty Brokers disables Kafka.
type Kafka struct {
	Brokers       []string
	GroupID       string
	PaymentsTopic string
	EventsTopic   string
}

// Auth stores JWT settings.
type Auth struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Dispatch stores rider matching settings.
type Dispatch struct {
	RadiusKm float64
	OfferTTL time.Duration
}

// Settlement stores rider payout settings. MinimumPayout is in minor units.
type Settlement struct {
	CommissionRate float64
	MinimumPayout  int64
	CacheTTL       time.Duration
}

// Cancellation stores customer cancellation fee settings.
type Cancellation struct {
	FlatFee              int64
	PostPickupPercentage float64
}

// Pricing stores the static quote settings. Amounts are in minor units.
type Pricing struct {
	BaseFee  int64
	PerKm    int64
	PerKg    int64
	Currency string
}

// ETA stores arrival estimate settings.
type ETA struct {
	AverageSpeedKmh float64
}

// Notify stores push and email sender settings.
type Notify struct {
	PushEndpoint string
	SESRegion    string
	SESFrom      string
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
}

// Budget is the longest a retried send can take: every attempt timing out plus the capped backoff between them.
func (n Notify) Budget() time.Duration {
	if n.MaxAttempts < 1 {
		return n.Timeout
	}
	return time.Duration(n.MaxAttempts)*n.Timeout + time.Duration(n.MaxAttempts-1)*n.MaxDelay
}

// RateLimit stores per-client HTTP rate limit settings.
// PinRate and PinBurst apply to handover PIN submissions only.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	PinRate    float64
	PinBurst   int
	TTL        time.Duration
	MaxBuckets int
}

// Jobs stores cron specs for background sweeps.
type Jobs struct {
	SettlementRetrySpec string
	RedispatchEnabled   bool
	RedispatchSpec      string
	RedispatchAfter     time.Duration
}

// Log selects the logging backend.
type Log struct {
	Backend string
	Level   string
	Format  string
}

// Pprof stores the debug server settings. An empty Addr disables it.
type Pprof struct {
	Addr string
	User string
	Pass string
}
