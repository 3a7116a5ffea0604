package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
)

// memLock is a single-holder lock; held simulates another instance.
type memLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (l *memLock) Acquire(context.Context) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *memLock) Release(context.Context) error {
	l.held = false
	l.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Logger: quietLogger(), Registry: NewRegistry(jobs...), Lock: lock})
	require.NoError(t, err)
	return svc
}

func TestCycleRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	lock := &memLock{}
	svc := newTestService(t, lock, ok, bad)

	report := svc.cycle(context.Background())

	require.False(t, report.skipped)
	require.Equal(t, 2, report.ran)
	require.Equal(t, 1, report.failed())
	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, bad.runs)
	require.Equal(t, 1, lock.releases)
}

func TestRunOnceCombinesJobErrors(t *testing.T) {
	first := &countingJob{name: "first", err: errors.New("boom")}
	second := &countingJob{name: "second"}
	third := &countingJob{name: "third", err: errors.New("bang")}
	lock := &memLock{}
	svc := newTestService(t, lock, first, second, third)

	err := svc.RunOnce(context.Background())

	require.ErrorIs(t, err, first.err)
	require.ErrorIs(t, err, third.err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorContains(t, err, "third: bang")
	require.Equal(t, 1, second.runs)
	require.False(t, lock.held)
}

func TestRunOnceSkipsWhileLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	lock := &memLock{held: true}
	svc := newTestService(t, lock, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.True(t, svc.cycle(context.Background()).skipped)
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
}

func TestRunOnceReportsLockFailure(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &memLock{acquireErr: errors.New("redis down")}, job)

	err := svc.RunOnce(context.Background())

	require.ErrorContains(t, err, "lock acquire: redis down")
	require.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &countingJob{name: "job"}
	lock := &memLock{}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
		Interval: time.Hour,
	})
	require.NoError(t, err)

	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	require.Equal(t, 1, job.runs, "the first cycle runs before waiting on the ticker")
}

func TestRunJobRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tick := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Logger:  quietLogger(),
		Lock:    &memLock{},
		Metrics: metrics.NewCronJobMetrics(reg),
		Clock: func() time.Time {
			tick = tick.Add(50 * time.Millisecond)
			return tick
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.runJob(context.Background(), &countingJob{name: "shift_totals"}))
	require.Error(t, svc.runJob(context.Background(), &countingJob{name: "shift_totals", err: errors.New("boom")}))

	families, err := reg.Gather()
	require.NoError(t, err)
	outcomes := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "restaurant_core_cron_job_runs_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					outcomes[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, map[string]float64{metrics.OutcomeOK: 1, metrics.OutcomeError: 1}, outcomes)
}

func TestNewServiceDefaults(t *testing.T) {
	svc := newTestService(t, &memLock{})
	require.Equal(t, defaultInterval, svc.Interval())
	require.Empty(t, svc.jobs.Jobs())

	_, err := NewService(ServiceParams{Lock: &memLock{}})
	require.ErrorContains(t, err, "logger required")
	_, err = NewService(ServiceParams{Logger: quietLogger()})
	require.ErrorContains(t, err, "lock required")
}
