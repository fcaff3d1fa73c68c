package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"parcel-dispatch/internal/auth"
	"parcel-dispatch/internal/cache"
	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/events"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/metrics"
	"parcel-dispatch/internal/notify"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/repository"
	"parcel-dispatch/internal/service/chat"
	"parcel-dispatch/internal/service/dispatch"
	"parcel-dispatch/internal/service/handover"
	"parcel-dispatch/internal/service/lifecycle"
	"parcel-dispatch/internal/service/payments"
	"parcel-dispatch/internal/service/rider"
	"parcel-dispatch/internal/service/settlement"
)

const (
	dbConnectRetries = 10
	dbConnectDelay   = time.Second
)

type (
	dbConnectFunc    func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error)
	migrateFunc      func(context.Context, *pgxpool.Pool) error
	redisConnectFunc func(context.Context, config.Redis) (*redis.Client, error)
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	loadConfig   func() (*config.Config, error)
	dbConnect    dbConnectFunc
	migrate      migrateFunc
	redisConnect redisConnectFunc
	logFatalf    func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		loadConfig:   config.Load,
		dbConnect:    connectDbWithRetry,
		migrate:      repository.Migrate,
		redisConnect: cache.Connect,
		logFatalf:    log.Fatalf,
	}
}

// WithConfig replaces config.Load.
func (b *ContainerBuilder) WithConfig(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithMigrate sets the schema migration function
func (b *ContainerBuilder) WithMigrate(fn migrateFunc) *ContainerBuilder {
	if fn != nil {
		b.migrate = fn
	}
	return b
}

// WithRedisConnect sets the Redis connection function
func (b *ContainerBuilder) WithRedisConnect(fn redisConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.redisConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) registerShared(container *dig.Container, ctx context.Context) error {
	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect, b.migrate); err != nil {
		return fmt.Errorf("DB: %w", err)
	}
	if err := registerRedis(container, b.redisConnect); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := registerService(container); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if err := registerKafka(container); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	return nil
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()
	if err := b.registerShared(container, ctx); err != nil {
		return nil, err
	}
	if err := registerRealtime(container); err != nil {
		return nil, fmt.Errorf("realtime: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()
	if err := b.registerShared(container, ctx); err != nil {
		return nil, err
	}
	if err := registerWorkerRealtime(container); err != nil {
		return nil, fmt.Errorf("realtime: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the API container with the default dependencies.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container with the default dependencies.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, loadConfig func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		func(cfg *config.Config) logx.Logger { return NewLogger(cfg.Log) },
		provideMetrics,
		events.NewBus,
	)
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc, migrate migrateFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), dbConnectRetries, dbConnectDelay)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}
	return provideAll(container,
		providerDB,
		repository.NewDeliveryRepo,
		repository.NewRiderRepo,
		repository.NewCustomerRepo,
		repository.NewChatRepo,
		repository.NewEarningRepo,
		func(pool *pgxpool.Pool, cfg *config.Config) *repository.SettingsRepo {
			return repository.NewSettingsRepo(pool, domain.Commission{
				Rate:          cfg.Settlement.CommissionRate,
				MinimumPayout: cfg.Settlement.MinimumPayout,
			})
		},
	)
}

// registerRedis provides a nil client when Redis is not configured.
func registerRedis(container *dig.Container, connect redisConnectFunc) error {
	providerRedis := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*redis.Client, error) {
		if !cfg.Redis.Enabled() {
			logger.Warn("redis not configured: live locations and cross-process realtime are disabled")
			return nil, nil
		}
		return connect(ctx, cfg.Redis)
	}
	providerLocations := func(rdb *redis.Client) rider.LocationCache {
		if rdb == nil {
			return nil
		}
		return cache.NewLocationCache(rdb, cache.DefaultLocationTTL)
	}
	return provideAll(container, providerRedis, providerLocations)
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		newNotifier,
		func(sender notify.Sender, customers *repository.CustomerRepo, logger logx.Logger) *notify.StatusNotifier {
			return notify.NewStatusNotifier(sender, customers, logger.With(logx.String("component", "notify")))
		},
		func(
			repo *repository.DeliveryRepo,
			customers *repository.CustomerRepo,
			bus *events.Bus,
			cfg *config.Config,
			logger logx.Logger,
		) *lifecycle.Service {
			quoter := lifecycle.StaticQuoter{
				BaseFee:  cfg.Pricing.BaseFee,
				PerKm:    cfg.Pricing.PerKm,
				PerKg:    cfg.Pricing.PerKg,
				Currency: cfg.Pricing.Currency,
			}
			return lifecycle.NewService(repo, repo, customers, quoter, bus, lifecycle.Options{
				OperationTimeout: cfg.OperationTimeout,
				Cancellation: lifecycle.CancellationPolicy{
					FlatFee:              cfg.Cancellation.FlatFee,
					PostPickupPercentage: cfg.Cancellation.PostPickupPercentage,
				},
			}, logger.With(logx.String("component", "lifecycle")))
		},
		func(
			repo *repository.DeliveryRepo,
			riders *repository.RiderRepo,
			sender notify.Sender,
			rt realtime.Publisher,
			bus *events.Bus,
			set *metrics.Set,
			cfg *config.Config,
			logger logx.Logger,
		) *dispatch.Service {
			return dispatch.NewService(repo, repo, riders, sender, rt, bus,
				dispatch.Options{
					RadiusKm:         cfg.Dispatch.RadiusKm,
					OfferTTL:         cfg.Dispatch.OfferTTL,
					OperationTimeout: cfg.OperationTimeout,
					NotifyTimeout:    cfg.Notify.Budget(),
				},
				dispatch.Metrics{Offers: set.DispatchOffers, AcceptConflicts: set.AcceptConflicts},
				logger.With(logx.String("component", "dispatch")),
			)
		},
		func(repo *repository.DeliveryRepo, bus *events.Bus, set *metrics.Set, cfg *config.Config, logger logx.Logger) *handover.Service {
			return handover.NewService(repo, repo, bus, set.PinRejections, cfg.OperationTimeout,
				logger.With(logx.String("component", "handover")))
		},
		func(
			repo *repository.DeliveryRepo,
			settings *repository.SettingsRepo,
			set *metrics.Set,
			cfg *config.Config,
			logger logx.Logger,
		) *settlement.Service {
			logger = logger.With(logx.String("component", "settlement"))
			commission := settlement.NewCachedCommission(settings, cfg.Settlement.CacheTTL, logger)
			return settlement.NewService(repo, repo, commission, set.SettlementCredits, cfg.OperationTimeout, logger)
		},
		func(
			riders *repository.RiderRepo,
			locations rider.LocationCache,
			repo *repository.DeliveryRepo,
			rt realtime.Publisher,
			cfg *config.Config,
			logger logx.Logger,
		) *rider.Service {
			return rider.NewService(riders, locations, repo, rt, cfg.ETA.AverageSpeedKmh, cfg.OperationTimeout,
				logger.With(logx.String("component", "rider")))
		},
		func(repo *repository.DeliveryRepo, messages *repository.ChatRepo, rt realtime.Publisher, cfg *config.Config, logger logx.Logger) *chat.Service {
			return chat.NewService(repo, messages, rt, cfg.OperationTimeout, logger.With(logx.String("component", "chat")))
		},
		func(svc *lifecycle.Service, logger logx.Logger) *payments.Processor {
			return payments.NewProcessor(svc, logger.With(logx.String("component", "payments")))
		},
		func(cfg *config.Config) *auth.JWT {
			return auth.NewJWT(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		},
	)
}
