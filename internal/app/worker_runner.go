package app

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"parcel-dispatch/internal/events"
	"parcel-dispatch/internal/jobs"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/transport/kafka"
)

const jobsStopTimeout = 30 * time.Second

// WorkerRunner runs the payments consumer and the scheduled sweeps.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun runs the worker and panics on any error other than a requested shutdown.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	if err := container.Invoke(subscribeEvents); err != nil {
		return err
	}
	return container.Invoke(workerRun)
}

type workerIn struct {
	dig.In

	Ctx       context.Context
	Logger    logx.Logger
	Scheduler *jobs.Scheduler
	Bus       *events.Bus
	Consumer  *kafka.Consumer `optional:"true"`
	Pool      *pgxpool.Pool   `optional:"true"`
	Redis     *redis.Client   `optional:"true"`
	Producer  *kafka.Producer `optional:"true"`
}

func workerRun(in workerIn) error {
	if in.Scheduler == nil {
		return errors.New("job scheduler is nil: worker container misconfigured")
	}
	if err := in.Scheduler.Start(); err != nil {
		return err
	}
	defer closeWorker(in)

	in.Logger.Info("parcel-dispatch worker started")
	if in.Consumer == nil {
		in.Logger.Warn("kafka not configured: payment events are not consumed")
		<-in.Ctx.Done()
		return in.Ctx.Err()
	}
	return in.Consumer.Run(in.Ctx)
}

func closeWorker(in workerIn) {
	stopCtx, cancel := context.WithTimeout(context.Background(), jobsStopTimeout)
	defer cancel()
	in.Scheduler.Stop(stopCtx)

	if in.Consumer != nil {
		if err := in.Consumer.Close(); err != nil {
			in.Logger.Error("kafka close error", logx.Any("err", err))
		}
	}
	in.Bus.Wait()
	closeResources(in.Logger, in.Pool, in.Redis, in.Producer)
}
