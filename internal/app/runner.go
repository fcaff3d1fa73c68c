package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"parcel-dispatch/internal/events"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the API process.
type Runner struct {
	runFn func(*dig.Container) error
	exit  func(int)
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run, exit: os.Exit}
}

// MustRun starts the HTTP server using the provided DI container and exits
// non-zero on any error other than a requested shutdown.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Any("err", err))
		if r.exit != nil {
			r.exit(1)
		}
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

func run(container *dig.Container) error {
	if err := container.Invoke(subscribeEvents); err != nil {
		return err
	}
	return container.Invoke(appRun)
}

type appIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Pprof    *http.Server          `name:"pprof_server" optional:"true"`
	Bridge   *realtime.RedisBridge `optional:"true"`
	Bus      *events.Bus
	Pool     *pgxpool.Pool         `optional:"true"`
	Redis    *redis.Client         `optional:"true"`
	Producer *kafka.Producer       `optional:"true"`
}

func appRun(in appIn) error {
	errCh := make(chan error, 3)
	startServer(in.Server, "api", in.Logger, errCh)
	if in.Pprof != nil {
		startServer(in.Pprof, "pprof", in.Logger, errCh)
	}

	bridgeCtx, stopBridge := context.WithCancel(in.Ctx)
	defer stopBridge()
	if in.Bridge != nil {
		go func() {
			if err := in.Bridge.Run(bridgeCtx); err != nil && bridgeCtx.Err() == nil {
				errCh <- err
			}
		}()
	}

	err := waitForShutdown(in.Ctx, in.Logger, errCh)
	gracefulShutdown(in.Server, in.Logger, shutdownTimeout)
	if in.Pprof != nil {
		gracefulShutdown(in.Pprof, in.Logger, shutdownTimeout)
	}
	stopBridge()
	in.Bus.Wait()
	closeResources(in.Logger, in.Pool, in.Redis, in.Producer)
	return err
}

func startServer(server *http.Server, name string, logger logx.Logger, errCh chan<- error) {
	go func() {
		logger.Info("http server listening", logx.String("server", name), logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
}

func waitForShutdown(ctx context.Context, logger logx.Logger, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		logger.Info("shutting down parcel-dispatch")
		return ctx.Err()
	case err := <-errCh:
		logger.Error("component failed, shutting down", logx.Any("err", err))
		return err
	}
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.String("addr", srv.Addr), logx.Any("err", err))
		_ = srv.Close()
	}
}

func closeResources(logger logx.Logger, pool *pgxpool.Pool, rdb *redis.Client, producer *kafka.Producer) {
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka producer close error", logx.Any("err", err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", logx.Any("err", err))
		}
	}
	if pool != nil {
		pool.Close()
	}
}
