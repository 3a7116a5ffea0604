// Package cron runs the periodic maintenance jobs of the restaurant core:
// shift total reconciliation, promotion expiry and outbox retention.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Clock    func() time.Time
}

// Service executes registered jobs on a fixed cadence. Only the instance
// holding the lock runs a cycle.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:     params.Logger,
		jobs:     params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Clock,
	}
	if s.jobs == nil {
		s.jobs = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Interval reports the cadence between cycles.
func (s *Service) Interval() time.Duration { return s.interval }

// cycleReport summarizes one locked pass over the registry.
type cycleReport struct {
	skipped bool
	ran     int
	err     error
}

func (r cycleReport) failed() int { return len(multierr.Errors(r.err)) }

// Run executes a cycle immediately and then on every tick until ctx is done.
// Job failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.logCycle(ctx, s.cycle(ctx))
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single cycle and returns the combined job errors.
// A cycle skipped because another instance holds the lock is not an error.
func (s *Service) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report := s.cycle(ctx)
	s.logCycle(ctx, report)
	return report.err
}

func (s *Service) cycle(ctx context.Context) cycleReport {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycleReport{err: fmt.Errorf("lock acquire: %w", err)}
	}
	if !locked {
		return cycleReport{skipped: true}
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	var report cycleReport
	for _, job := range s.jobs.Jobs() {
		report.ran++
		report.err = multierr.Append(report.err, s.runJob(ctx, job))
	}
	return report
}

func (s *Service) logCycle(ctx context.Context, report cycleReport) {
	if report.skipped {
		s.logg.Info(ctx, "cron lock held by another instance; cycle skipped")
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"jobs_run":    report.ran,
		"jobs_failed": report.failed(),
	})
	if report.err != nil && report.ran == 0 {
		s.logg.Error(ctx, "cron cycle did not start", report.err)
		return
	}
	s.logg.Info(ctx, "cron cycle complete")
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	s.logg.Debug(ctx, "job start")

	started := s.now()
	err := job.Run(ctx)
	took := s.now().Sub(started)
	s.metrics.ObserveRun(name, took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err == nil {
		s.logg.Info(ctx, "job completed")
		return nil
	}
	s.logg.Error(s.logg.WithField(ctx, "retryable", pkgerrors.IsRetryable(err)), "job failed", err)
	return fmt.Errorf("%s: %w", name, err)
}
