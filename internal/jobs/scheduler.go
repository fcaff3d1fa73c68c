// Package jobs runs the periodic sweeps of the worker on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"parcel-dispatch/internal/logx"
)

const (
	sweepBatch   = 100
	sweepTimeout = time.Minute
)

// Job is one scheduled sweep. Run returns how many items it handled.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int, error)
}

// Scheduler owns a cron instance. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
	logger  logx.Logger
}

// NewScheduler creates a stopped scheduler for jobs.
func NewScheduler(logger logx.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:    jobs,
		timeout: sweepTimeout,
		logger:  logger.With(logx.String("component", "jobs")),
	}
}

// Start registers every job and starts the cron loop. Nothing runs if a spec is invalid.
func (s *Scheduler) Start() error {
	for _, j := range s.jobs {
		j := j
		if _, err := s.cron.AddFunc(j.Spec, func() { s.run(j) }); err != nil {
			return fmt.Errorf("schedule job %s (%q): %w", j.Name, j.Spec, err)
		}
	}
	s.cron.Start()
	for _, j := range s.jobs {
		s.logger.Info("job scheduled", logx.String("job", j.Name), logx.String("spec", j.Spec))
	}
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}

func (s *Scheduler) run(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.Run(ctx)
	if err != nil {
		s.logger.Error("job failed",
			logx.String("job", j.Name),
			logx.Duration("took", time.Since(start)),
			logx.Any("err", err),
		)
		return
	}
	if n > 0 {
		s.logger.Info("job done",
			logx.String("job", j.Name),
			logx.Int("handled", n),
			logx.Duration("took", time.Since(start)),
		)
	}
}
