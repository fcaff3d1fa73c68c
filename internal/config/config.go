package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config stores service settings.
type Config struct {
	Port             int
	OperationTimeout time.Duration

	DB           DB
	Redis        Redis
	Kafka        Kafka
	Auth         Auth
	Dispatch     Dispatch
	Settlement   Settlement
	Cancellation Cancellation
	Pricing      Pricing
	ETA          ETA
	Notify       Notify
	RateLimit    RateLimit
	Jobs         Jobs
	Log          Log
	Pprof        Pprof
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	fs := pflag.CommandLine
	fs.IntP("port", "p", defaultPort, "port to listen on")
	fs.Float64("dispatch-radius-km", defaultDispatch.RadiusKm, "rider search radius in kilometers")
	fs.String("log-level", defaultLog.Level, "log level: debug, info, warn, error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for key, flag := range map[string]string{
		"PORT":               "port",
		"DISPATCH_RADIUS_KM": "dispatch-radius-km",
		"LOG_LEVEL":          "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	p := parser{v: v}
	cfg := &Config{
		Port:             p.int("PORT"),
		OperationTimeout: p.duration("OPERATION_TIMEOUT"),
		DB: DB{
			Host:    v.GetString("POSTGRES_HOST"),
			Port:    v.GetString("POSTGRES_PORT"),
			User:    v.GetString("POSTGRES_USER"),
			Pass:    v.GetString("POSTGRES_PASSWORD"),
			Name:    v.GetString("POSTGRES_DB"),
			SSLMode: v.GetString("POSTGRES_SSLMODE"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB"),
		},
		Kafka: Kafka{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			GroupID:       v.GetString("KAFKA_GROUP_ID"),
			PaymentsTopic: v.GetString("KAFKA_PAYMENTS_TOPIC"),
			EventsTopic:   v.GetString("KAFKA_EVENTS_TOPIC"),
		},
		Auth: Auth{
			Secret:   v.GetString("JWT_SECRET"),
			Issuer:   v.GetString("JWT_ISSUER"),
			TokenTTL: p.duration("JWT_TOKEN_TTL"),
		},
		Dispatch: Dispatch{
			RadiusKm: p.float("DISPATCH_RADIUS_KM"),
			OfferTTL: p.duration("DISPATCH_OFFER_TTL"),
		},
		Settlement: Settlement{
			CommissionRate: p.float("SETTLEMENT_COMMISSION_RATE"),
			MinimumPayout:  p.int64("SETTLEMENT_MINIMUM_PAYOUT"),
			CacheTTL:       p.duration("SETTLEMENT_CACHE_TTL"),
		},
		Cancellation: Cancellation{
			FlatFee:              p.int64("CANCELLATION_FLAT_FEE"),
			PostPickupPercentage: p.float("CANCELLATION_POST_PICKUP_PERCENTAGE"),
		},
		Pricing: Pricing{
			BaseFee:  p.int64("PRICING_BASE_FEE"),
			PerKm:    p.int64("PRICING_PER_KM"),
			PerKg:    p.int64("PRICING_PER_KG"),
			Currency: strings.ToUpper(v.GetString("PRICING_CURRENCY")),
		},
		ETA: ETA{AverageSpeedKmh: p.float("ETA_AVERAGE_SPEED_KMH")},
		Notify: Notify{
			PushEndpoint: v.GetString("NOTIFY_PUSH_ENDPOINT"),
			SESRegion:    v.GetString("NOTIFY_SES_REGION"),
			SESFrom:      v.GetString("NOTIFY_SES_FROM"),
			MaxAttempts:  p.int("NOTIFY_MAX_ATTEMPTS"),
			BaseDelay:    p.duration("NOTIFY_BASE_DELAY"),
			MaxDelay:     p.duration("NOTIFY_MAX_DELAY"),
			Timeout:      p.duration("NOTIFY_TIMEOUT"),
		},
		RateLimit: RateLimit{
			Enabled:    p.bool("RATE_LIMIT_ENABLED"),
			Rate:       p.float("RATE_LIMIT_RATE"),
			Burst:      p.int("RATE_LIMIT_BURST"),
			PinRate:    p.float("RATE_LIMIT_PIN_RATE"),
			PinBurst:   p.int("RATE_LIMIT_PIN_BURST"),
			TTL:        p.duration("RATE_LIMIT_TTL"),
			MaxBuckets: p.int("RATE_LIMIT_MAX_BUCKETS"),
		},
		Jobs: Jobs{
			SettlementRetrySpec: v.GetString("JOBS_SETTLEMENT_RETRY_SPEC"),
			RedispatchEnabled:   p.bool("JOBS_REDISPATCH_ENABLED"),
			RedispatchSpec:      v.GetString("JOBS_REDISPATCH_SPEC"),
			RedispatchAfter:     p.duration("JOBS_REDISPATCH_AFTER"),
		},
		Log: Log{
			Backend: strings.ToLower(v.GetString("LOG_BACKEND")),
			Level:   strings.ToLower(v.GetString("LOG_LEVEL")),
			Format:  strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Pprof: Pprof{
			Addr: v.GetString("PPROF_ADDR"),
			User: v.GetString("PPROF_USER"),
			Pass: v.GetString("PPROF_PASSWORD"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"PORT":                                defaultPort,
		"OPERATION_TIMEOUT":                   defaultOperationTimeout.String(),
		"POSTGRES_HOST":                       defaultDB.Host,
		"POSTGRES_PORT":                       defaultDB.Port,
		"POSTGRES_USER":                       defaultDB.User,
		"POSTGRES_PASSWORD":                   defaultDB.Pass,
		"POSTGRES_DB":                         defaultDB.Name,
		"POSTGRES_SSLMODE":                    defaultDB.SSLMode,
		"REDIS_DB":                            defaultRedis.DB,
		"KAFKA_GROUP_ID":                      defaultKafka.GroupID,
		"KAFKA_PAYMENTS_TOPIC":                defaultKafka.PaymentsTopic,
		"KAFKA_EVENTS_TOPIC":                  defaultKafka.EventsTopic,
		"JWT_ISSUER":                          defaultAuth.Issuer,
		"JWT_TOKEN_TTL":                       defaultAuth.TokenTTL.String(),
		"DISPATCH_RADIUS_KM":                  defaultDispatch.RadiusKm,
		"DISPATCH_OFFER_TTL":                  defaultDispatch.OfferTTL.String(),
		"SETTLEMENT_COMMISSION_RATE":          defaultSettlement.CommissionRate,
		"SETTLEMENT_MINIMUM_PAYOUT":           defaultSettlement.MinimumPayout,
		"SETTLEMENT_CACHE_TTL":                defaultSettlement.CacheTTL.String(),
		"CANCELLATION_FLAT_FEE":               defaultCancellation.FlatFee,
		"CANCELLATION_POST_PICKUP_PERCENTAGE": defaultCancellation.PostPickupPercentage,
		"PRICING_BASE_FEE":                    defaultPricing.BaseFee,
		"PRICING_PER_KM":                      defaultPricing.PerKm,
		"PRICING_PER_KG":                      defaultPricing.PerKg,
		"PRICING_CURRENCY":                    defaultPricing.Currency,
		"ETA_AVERAGE_SPEED_KMH":               defaultETA.AverageSpeedKmh,
		"NOTIFY_MAX_ATTEMPTS":                 defaultNotify.MaxAttempts,
		"NOTIFY_BASE_DELAY":                   defaultNotify.BaseDelay.String(),
		"NOTIFY_MAX_DELAY":                    defaultNotify.MaxDelay.String(),
		"NOTIFY_TIMEOUT":                      defaultNotify.Timeout.String(),
		"RATE_LIMIT_ENABLED":                  defaultRateLimit.Enabled,
		"RATE_LIMIT_RATE":                     defaultRateLimit.Rate,
		"RATE_LIMIT_BURST":                    defaultRateLimit.Burst,
		"RATE_LIMIT_PIN_RATE":                 defaultRateLimit.PinRate,
		"RATE_LIMIT_PIN_BURST":                defaultRateLimit.PinBurst,
		"RATE_LIMIT_TTL":                      defaultRateLimit.TTL.String(),
		"RATE_LIMIT_MAX_BUCKETS":              defaultRateLimit.MaxBuckets,
		"JOBS_SETTLEMENT_RETRY_SPEC":          defaultJobs.SettlementRetrySpec,
		"JOBS_REDISPATCH_ENABLED":             defaultJobs.RedispatchEnabled,
		"JOBS_REDISPATCH_SPEC":                defaultJobs.RedispatchSpec,
		"JOBS_REDISPATCH_AFTER":               defaultJobs.RedispatchAfter.String(),
		"LOG_BACKEND":                         defaultLog.Backend,
		"LOG_LEVEL":                           defaultLog.Level,
		"LOG_FORMAT":                          defaultLog.Format,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
}

func (p *parser) int(key string) int {
	raw := p.raw(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return n
}

func (p *parser) int64(key string) int64 {
	raw := p.raw(key)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(key, raw, err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := p.raw(key)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
	}
	return f
}

func (p *parser) bool(key string) bool {
	raw := p.raw(key)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return b
}

func (p *parser) duration(key string) time.Duration {
	raw := p.raw(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid postgres port: %q", c.DB.Port)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("invalid operation timeout: %s", c.OperationTimeout)
	}
	if c.Dispatch.RadiusKm <= 0 {
		return fmt.Errorf("invalid dispatch radius: %v", c.Dispatch.RadiusKm)
	}
	if c.Settlement.CommissionRate <= 0 || c.Settlement.CommissionRate > 1 {
		return fmt.Errorf("invalid commission rate: %v", c.Settlement.CommissionRate)
	}
	if c.Settlement.MinimumPayout < 0 || c.Settlement.CacheTTL <= 0 {
		return fmt.Errorf("invalid settlement settings: minimum=%d ttl=%s",
			c.Settlement.MinimumPayout, c.Settlement.CacheTTL)
	}
	if c.Cancellation.FlatFee < 0 || c.Cancellation.PostPickupPercentage < 0 || c.Cancellation.PostPickupPercentage > 1 {
		return fmt.Errorf("invalid cancellation settings")
	}
	if c.Pricing.BaseFee < 0 || c.Pricing.PerKm < 0 || c.Pricing.PerKg < 0 || c.Pricing.Currency == "" {
		return fmt.Errorf("invalid pricing settings")
	}
	if c.ETA.AverageSpeedKmh <= 0 {
		return fmt.Errorf("invalid average speed: %v", c.ETA.AverageSpeedKmh)
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("invalid notify attempts: %d", c.Notify.MaxAttempts)
	}
	switch c.Log.Backend {
	case "slog", "logrus":
	default:
		return fmt.Errorf("invalid log backend: %q", c.Log.Backend)
	}
	return nil
}
