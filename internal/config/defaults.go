package config

import "time"

const defaultPort = 8080

const defaultOperationTimeout = 3 * time.Second

var defaultDB = DB{
	Host:    "127.0.0.1",
	Port:    "5432",
	User:    "myuser",
	Pass:    "mypassword",
	Name:    "test_db",
	SSLMode: "disable",
}

var defaultRedis = Redis{
	Addr: "127.0.0.1:6379",
	DB:   0,
}

var defaultKafka = Kafka{
	GroupID:       "parcel-dispatch-worker",
	PaymentsTopic: "payments",
	EventsTopic:   "delivery-events",
}

var defaultAuth = Auth{
	Issuer:   "parcel-dispatch",
	TokenTTL: 24 * time.Hour,
}

var defaultDispatch = Dispatch{
	RadiusKm: 15,
	OfferTTL: 2 * time.Minute,
}

var defaultSettlement = Settlement{
	CommissionRate: 0.8,
	MinimumPayout:  50000,
	CacheTTL:       5 * time.Minute,
}

var defaultCancellation = Cancellation{
	FlatFee:              50000,
	PostPickupPercentage: 0.5,
}

var defaultPricing = Pricing{
	BaseFee:  100000,
	PerKm:    10000,
	PerKg:    5000,
	Currency: "NGN",
}

var defaultETA = ETA{AverageSpeedKmh: 25}

var defaultNotify = Notify{
	MaxAttempts: 3,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    time.Second,
	Timeout:     5 * time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       10,
	Burst:      20,
	PinRate:    0.2,
	PinBurst:   5,
	TTL:        time.Minute,
	MaxBuckets: 10000,
}

var defaultJobs = Jobs{
	SettlementRetrySpec: "@every 5m",
	RedispatchSpec:      "@every 1m",
	RedispatchAfter:     5 * time.Minute,
}

var defaultLog = Log{
	Backend: "slog",
	Level:   "info",
	Format:  "json",
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDispatch returns the default dispatch settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultSettlement returns the default settlement settings.
func DefaultSettlement() Settlement {
	return defaultSettlement
}

// DefaultCancellation returns the default cancellation fee settings.
func DefaultCancellation() Cancellation {
	return defaultCancellation
}

// DefaultNotify returns the default notification retry settings.
func DefaultNotify() Notify {
	return defaultNotify
}

// DefaultRateLimit returns the default rate limiter settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}
