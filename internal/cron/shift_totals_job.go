package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/restaurant-core/pkg/logger"
)

type shiftReconciler interface {
	ReconcileOpenShifts(ctx context.Context) (int, error)
}

type ShiftTotalsJobParams struct {
	Logger *logger.Logger
	Shifts shiftReconciler
}

// NewShiftTotalsJob re-derives the stored totals of every open cash shift
// from its operations.
func NewShiftTotalsJob(params ShiftTotalsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shifts == nil {
		return nil, fmt.Errorf("cash shift service required")
	}
	return &shiftTotalsJob{logg: params.Logger, shifts: params.Shifts}, nil
}

type shiftTotalsJob struct {
	logg   *logger.Logger
	shifts shiftReconciler
}

func (j *shiftTotalsJob) Name() string { return "shift-totals" }

func (j *shiftTotalsJob) Run(ctx context.Context) error {
	n, err := j.shifts.ReconcileOpenShifts(ctx)
	logCtx := j.logg.WithField(ctx, "shifts_reconciled", n)
	if err != nil {
		return fmt.Errorf("reconcile open shifts: %w", err)
	}
	j.logg.Info(logCtx, "open shift totals reconciled")
	return nil
}
