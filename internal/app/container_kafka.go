package app

import (
	"go.uber.org/dig"

	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/jobs"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/service/dispatch"
	"parcel-dispatch/internal/service/payments"
	"parcel-dispatch/internal/service/settlement"
	"parcel-dispatch/internal/transport/kafka"
)

// registerKafka provides the domain event producer. It is nil without brokers.
func registerKafka(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, logger logx.Logger) (*kafka.Producer, error) {
			p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
			if err == nil && p == nil {
				logger.Warn("kafka not configured: domain events stay in process")
			}
			return p, err
		},
	)
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, logger logx.Logger, p *payments.Processor) (*kafka.Consumer, error) {
			logger = logger.With(logx.String("component", "kafka"))
			return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentsTopic,
				makePaymentsKafka(p, logger, paymentMaxAttempts))
		},
		newScheduler,
	)
}

func newScheduler(cfg *config.Config, logger logx.Logger, settle *settlement.Service, disp *dispatch.Service) *jobs.Scheduler {
	list := []jobs.Job{jobs.SettlementRetry(settle, cfg.Jobs.SettlementRetrySpec)}
	if cfg.Jobs.RedispatchEnabled {
		list = append(list, jobs.Redispatch(disp, cfg.Jobs.RedispatchSpec, cfg.Jobs.RedispatchAfter))
	}
	return jobs.NewScheduler(logger, list...)
}
