// Package cashshifts runs the till: opening and closing shifts, recording
// cash operations and re-deriving shift totals from those operations.
package cashshifts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-core/pkg/validate"
)

const operationScope = "cash_operation"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// idempotencyGuard is satisfied by *idempotency.Guard.
type idempotencyGuard interface {
	Claim(ctx context.Context, scope, key, value string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

// Params wires the cash shift service. Guard, Metrics, Logger and Clock are
// optional; without a guard duplicates are caught by the operation key index.
type Params struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Guard   idempotencyGuard
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type Service struct {
	repo    *Repository
	tx      txRunner
	outbox  outboxPublisher
	guard   idempotencyGuard
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	clock   func() time.Time
}

func NewService(p Params) (*Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("cash shift repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:    p.Repo,
		tx:      p.Tx,
		outbox:  p.Outbox,
		guard:   p.Guard,
		metrics: p.Metrics,
		logg:    p.Logger,
		clock:   clock,
	}, nil
}

// OpenShift opens a shift for the restaurant. When one is already open it is
// returned unchanged with created=false.
func (s *Service) OpenShift(ctx context.Context, input OpenShiftInput) (*models.CashShift, bool, error) {
	if err := validate.Struct(input); err != nil {
		return nil, false, err
	}
	ctx = s.logg.WithRestaurantID(ctx, input.RestaurantID.String())

	var (
		shift   *models.CashShift
		created bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		restaurant, err := repo.LockRestaurant(ctx, input.RestaurantID)
		if err != nil {
			return notFoundOr(err, "restaurant not found", "lock restaurant")
		}
		existing, err := repo.OpenShift(ctx, input.RestaurantID)
		if err == nil {
			shift = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open shift")
		}

		now := s.clock()
		number, err := s.shiftNumber(ctx, repo, restaurant, now)
		if err != nil {
			return err
		}
		shift = &models.CashShift{
			RestaurantID:  input.RestaurantID,
			CashierID:     input.CashierID,
			Number:        number,
			Status:        enums.CashShiftStatusOpen,
			OpeningAmount: money.Store(input.OpeningAmount),
			Notes:         input.Notes,
			OpenedAt:      now.UTC(),
		}
		if err := repo.CreateShift(ctx, shift); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shift")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShiftOpened,
			AggregateType: enums.AggregateCashShift,
			AggregateID:   shift.ID,
			Actor:         &outbox.ActorRef{UserID: &input.CashierID, RestaurantID: input.RestaurantID},
			Data: payloads.ShiftOpenedEvent{
				ShiftID:       shift.ID,
				RestaurantID:  shift.RestaurantID,
				CashierID:     shift.CashierID,
				Number:        shift.Number,
				OpeningAmount: shift.OpeningAmount,
				OpenedAt:      shift.OpenedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shift opened")
		}
		created = true
		return nil
	})
	if isOpenShiftConflict(err) {
		// another request opened the shift first
		winner, lookupErr := s.repo.OpenShift(ctx, input.RestaurantID)
		if lookupErr == nil {
			shift, created, err = winner, false, nil
		}
	}
	s.metrics.ObserveOperation("shift_open", created, err)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logg.Info(s.logg.WithShiftID(ctx, shift.ID.String()), "shift opened")
	}
	return shift, created, nil
}

// isOpenShiftConflict reports a lost race on the one-open-shift index. Other
// unique violations are real failures.
func isOpenShiftConflict(err error) bool {
	return dbpkg.IsUniqueViolation(err, OpenShiftIndex) || dbpkg.IsUniqueViolation(err, openShiftColumns)
}

// shiftNumber is DDMMYY-NN where NN counts the shifts opened that local day.
func (s *Service) shiftNumber(ctx context.Context, repo *Repository, restaurant *models.Restaurant, now time.Time) (string, error) {
	local := now.In(restaurant.Location())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	opened, err := repo.CountOpenedBetween(ctx, restaurant.ID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count shifts")
	}
	return fmt.Sprintf("%s-%02d", local.Format("020106"), opened+1), nil
}

// CloseShift reconciles and closes an open shift. Closing a closed shift
// returns it with closed=false.
func (s *Service) CloseShift(ctx context.Context, input CloseShiftInput) (*models.CashShift, bool, error) {
	if err := validate.Struct(input); err != nil {
		return nil, false, err
	}
	ctx = s.logg.WithShiftID(ctx, input.ShiftID.String())

	var (
		shift  *models.CashShift
		closed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockShift(ctx, input.ShiftID)
		if err != nil {
			return notFoundOr(err, "shift not found", "lock shift")
		}
		if !locked.IsOpen() {
			shift = locked
			return nil
		}

		totals, err := s.refreshTotals(ctx, repo, locked)
		if err != nil {
			return err
		}
		closing := money.Store(input.ClosingAmount)
		expected := money.Store(locked.OpeningAmount.Add(totals.cashIn).Sub(totals.cashOut))
		difference := closing.Sub(expected)
		closedAt := s.clock().UTC()

		updates := map[string]any{
			"status":          enums.CashShiftStatusClosed,
			"closing_amount":  decimal.NewNullDecimal(closing),
			"expected_amount": decimal.NewNullDecimal(expected),
			"difference":      decimal.NewNullDecimal(difference),
			"closed_at":       closedAt,
			"closed_by":       input.UserID,
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if err := repo.UpdateShift(ctx, locked.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close shift")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShiftClosed,
			AggregateType: enums.AggregateCashShift,
			AggregateID:   locked.ID,
			Actor:         &outbox.ActorRef{UserID: &input.UserID, RestaurantID: locked.RestaurantID},
			Data: payloads.ShiftClosedEvent{
				ShiftID:        locked.ID,
				RestaurantID:   locked.RestaurantID,
				Number:         locked.Number,
				ClosingAmount:  closing,
				ExpectedAmount: expected,
				Difference:     difference,
				TotalRevenue:   totals.revenue,
				ClosedBy:       &input.UserID,
				ClosedAt:       closedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shift closed")
		}

		shift, err = repo.Shift(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shift")
		}
		closed = true
		return nil
	})
	s.metrics.ObserveOperation("shift_close", closed, err)
	if err != nil {
		return nil, false, err
	}
	if closed {
		s.logg.Info(s.logg.WithField(ctx, "difference", shift.Difference.Decimal.String()), "shift closed")
	}
	return shift, closed, nil
}

// UpdateTotals re-aggregates the shift totals from its operations.
func (s *Service) UpdateTotals(ctx context.Context, shiftID uuid.UUID) (*models.CashShift, error) {
	var shift *models.CashShift
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockShift(ctx, shiftID)
		if err != nil {
			return notFoundOr(err, "shift not found", "lock shift")
		}
		if _, err := s.refreshTotals(ctx, repo, locked); err != nil {
			return err
		}
		shift, err = repo.Shift(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shift")
		}
		return nil
	})
	s.metrics.ObserveOperation("shift_update_totals", err == nil, err)
	if err != nil {
		return nil, err
	}
	return shift, nil
}

// ReconcileOpenShifts re-derives the totals of every open shift. One failing
// shift does not stop the others.
func (s *Service) ReconcileOpenShifts(ctx context.Context) (int, error) {
	ids, err := s.repo.ShiftIDs(ctx, enums.CashShiftStatusOpen)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open shifts")
	}
	var errs error
	reconciled := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reconciled, multierr.Append(errs, err)
		}
		if _, err := s.UpdateTotals(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shift %s: %w", id, err))
			continue
		}
		reconciled++
	}
	return reconciled, errs
}

// RecordOperation stores an immutable till movement on an open shift and
// re-derives the shift totals. created is false when the idempotency key was
// already used for the same operation.
func (s *Service) RecordOperation(ctx context.Context, input RecordOperationInput) (*models.CashOperation, bool, error) {
	if err := validate.Struct(input); err != nil {
		return nil, false, err
	}
	if !input.Type.IsValid() {
		return nil, false, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid operation type %q", input.Type)
	}
	if !input.PaymentMethod.IsValid() {
		return nil, false, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	key := ""
	if input.IdempotencyKey != nil {
		key = strings.TrimSpace(*input.IdempotencyKey)
	}
	ctx = s.logg.WithShiftID(ctx, input.ShiftID.String())

	if key != "" {
		existing, found, err := s.operationByKey(ctx, key, input)
		if err != nil || found {
			return existing, false, err
		}
		if s.guard != nil {
			claimed, err := s.guard.Claim(ctx, operationScope, key, input.ShiftID.String())
			if err != nil {
				return nil, false, err
			}
			if claimed {
				existing, found, err := s.operationByKey(ctx, key, input)
				if err != nil || found {
					return existing, false, err
				}
				return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "operation with this idempotency key is in progress")
			}
		}
	}

	var op *models.CashOperation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := repo.LockShift(ctx, input.ShiftID)
		if err != nil {
			return notFoundOr(err, "shift not found", "lock shift")
		}
		if !shift.IsOpen() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is closed")
		}
		if input.OrderID != nil {
			exists, err := repo.OrderExists(ctx, shift.RestaurantID, *input.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if !exists {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
		}

		op = &models.CashOperation{
			ShiftID:       shift.ID,
			RestaurantID:  shift.RestaurantID,
			Type:          input.Type,
			PaymentMethod: input.PaymentMethod,
			Amount:        money.Store(input.Amount),
			OrderID:       input.OrderID,
			ReservationID: input.ReservationID,
			Description:   input.Description,
			UserID:        input.UserID,
		}
		if key != "" {
			op.IdempotencyKey = &key
		}
		if err := repo.CreateOperation(ctx, op); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cash operation")
		}
		_, err = s.refreshTotals(ctx, repo, shift)
		return err
	})
	if err != nil && key != "" {
		if dbpkg.IsUniqueViolation(err, "") {
			existing, found, lookupErr := s.operationByKey(ctx, key, input)
			if lookupErr == nil && found {
				s.metrics.ObserveOperation("cash_operation_"+input.Type.String(), false, nil)
				return existing, false, nil
			}
		}
		if s.guard != nil {
			if releaseErr := s.guard.Release(ctx, operationScope, key); releaseErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", releaseErr.Error()), "release idempotency claim failed")
			}
		}
	}
	s.metrics.ObserveOperation("cash_operation_"+input.Type.String(), err == nil, err)
	if err != nil {
		return nil, false, err
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"operation_type": input.Type.String(),
		"amount":         op.Amount.String(),
	}), "cash operation recorded")
	return op, true, nil
}

// operationByKey returns the operation stored under key. A key reused for a
// different operation is an idempotency error.
func (s *Service) operationByKey(ctx context.Context, key string, input RecordOperationInput) (*models.CashOperation, bool, error) {
	existing, err := s.repo.OperationByKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cash operation")
	}
	if existing.ShiftID != input.ShiftID ||
		existing.Type != input.Type ||
		existing.PaymentMethod != input.PaymentMethod ||
		!existing.Amount.Equal(money.Store(input.Amount)) {
		return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key was used for a different operation").
			WithDetails(map[string]string{"operation_id": existing.ID.String()})
	}
	return existing, true, nil
}

func (s *Service) RecordOrderPayment(ctx context.Context, input OrderPaymentInput) (*models.CashOperation, bool, error) {
	return s.RecordOperation(ctx, RecordOperationInput{
		ShiftID:        input.ShiftID,
		Type:           enums.CashOperationIncome,
		PaymentMethod:  input.PaymentMethod,
		Amount:         input.Amount,
		OrderID:        &input.OrderID,
		UserID:         input.UserID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

func (s *Service) RecordRefund(ctx context.Context, input RefundInput) (*models.CashOperation, bool, error) {
	return s.RecordOperation(ctx, RecordOperationInput{
		ShiftID:        input.ShiftID,
		Type:           enums.CashOperationRefund,
		PaymentMethod:  input.PaymentMethod,
		Amount:         input.Amount,
		OrderID:        input.OrderID,
		Description:    input.Reason,
		UserID:         input.UserID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

func (s *Service) Deposit(ctx context.Context, input CashMovementInput) (*models.CashOperation, bool, error) {
	return s.RecordOperation(ctx, cashMovement(enums.CashOperationDeposit, input))
}

func (s *Service) Withdraw(ctx context.Context, input CashMovementInput) (*models.CashOperation, bool, error) {
	return s.RecordOperation(ctx, cashMovement(enums.CashOperationWithdrawal, input))
}

func (s *Service) Expense(ctx context.Context, input CashMovementInput) (*models.CashOperation, bool, error) {
	return s.RecordOperation(ctx, cashMovement(enums.CashOperationExpense, input))
}

func cashMovement(typ enums.CashOperationType, input CashMovementInput) RecordOperationInput {
	return RecordOperationInput{
		ShiftID:        input.ShiftID,
		Type:           typ,
		PaymentMethod:  enums.PaymentMethodCash,
		Amount:         input.Amount,
		Description:    input.Description,
		UserID:         input.UserID,
		IdempotencyKey: input.IdempotencyKey,
	}
}

// CurrentShift returns the open shift of the restaurant.
func (s *Service) CurrentShift(ctx context.Context, restaurantID uuid.UUID) (*models.CashShift, error) {
	shift, err := s.repo.OpenShift(ctx, restaurantID)
	if err != nil {
		return nil, notFoundOr(err, "no open shift", "load open shift")
	}
	return shift, nil
}

func (s *Service) ListOperations(ctx context.Context, shiftID uuid.UUID) ([]models.CashOperation, error) {
	if _, err := s.repo.Shift(ctx, shiftID); err != nil {
		return nil, notFoundOr(err, "shift not found", "load shift")
	}
	ops, err := s.repo.Operations(ctx, shiftID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cash operations")
	}
	return ops, nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
