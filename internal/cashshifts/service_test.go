package cashshifts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/dbtest"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/idempotency"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

type fakeStore struct {
	values map[string]string
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

type fixture struct {
	svc        *Service
	conn       *gorm.DB
	store      *fakeStore
	restaurant *models.Restaurant
	cashier    uuid.UUID
	now        *time.Time
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func newFixture(t *testing.T, timezone string) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	store := &fakeStore{values: map[string]string{}}
	guard, err := idempotency.NewGuard(store, time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, 3, 13, 9, 30, 0, 0, time.UTC)
	svc, err := NewService(Params{
		Repo:   NewRepository(conn),
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Guard:  guard,
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)

	restaurant := &models.Restaurant{TenantID: uuid.New(), Name: "Bistro", Timezone: timezone}
	require.NoError(t, conn.Create(restaurant).Error)
	return fixture{svc: svc, conn: conn, store: store, restaurant: restaurant, cashier: uuid.New(), now: &now}
}

func (f fixture) open(t *testing.T, opening string) *models.CashShift {
	t.Helper()
	shift, _, err := f.svc.OpenShift(context.Background(), OpenShiftInput{
		RestaurantID:  f.restaurant.ID,
		CashierID:     f.cashier,
		OpeningAmount: d(opening),
	})
	require.NoError(t, err)
	return shift
}

func (f fixture) order(t *testing.T) uuid.UUID {
	t.Helper()
	order := &models.Order{
		RestaurantID:     f.restaurant.ID,
		Number:           1,
		Type:             enums.OrderTypeDineIn,
		Status:           enums.OrderStatusCompleted,
		AppliedDiscounts: types.AppliedDiscounts{},
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order.ID
}

func (f fixture) record(t *testing.T, input RecordOperationInput) *models.CashOperation {
	t.Helper()
	if input.UserID == uuid.Nil {
		input.UserID = f.cashier
	}
	op, created, err := f.svc.RecordOperation(context.Background(), input)
	require.NoError(t, err)
	require.True(t, created)
	return op
}

func (f fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func strPtr(s string) *string {
	return &s
}

func TestOpenShiftConcurrentCallersShareOneShift(t *testing.T) {
	f := newFixture(t, "UTC")
	dbtest.SingleConn(t, f.conn)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[uuid.UUID]int{}
		created int
	)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shift, isNew, err := f.svc.OpenShift(context.Background(), OpenShiftInput{
				RestaurantID:  f.restaurant.ID,
				CashierID:     uuid.New(),
				OpeningAmount: d("100"),
			})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[shift.ID]++
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, ids, 1)
	require.Equal(t, 1, created)
	var open int64
	require.NoError(t, f.conn.Model(&models.CashShift{}).
		Where("restaurant_id = ? AND status = ?", f.restaurant.ID, enums.CashShiftStatusOpen).
		Count(&open).Error)
	require.EqualValues(t, 1, open)
	require.EqualValues(t, 1, f.events(t, enums.EventShiftOpened))
}

func TestIsOpenShiftConflict(t *testing.T) {
	require.True(t, isOpenShiftConflict(pkgerrors.Wrap(pkgerrors.CodeDependency,
		&pgconn.PgError{Code: "23505", ConstraintName: OpenShiftIndex}, "create shift")))
	require.True(t, isOpenShiftConflict(pkgerrors.Wrap(pkgerrors.CodeDependency,
		errors.New("UNIQUE constraint failed: cash_shifts.restaurant_id"), "create shift")))

	require.False(t, isOpenShiftConflict(nil))
	require.False(t, isOpenShiftConflict(&pgconn.PgError{Code: "23505", ConstraintName: "cash_operations_idempotency_key_key"}))
	require.False(t, isOpenShiftConflict(errors.New("UNIQUE constraint failed: cash_operations.idempotency_key")))
	require.False(t, isOpenShiftConflict(&pgconn.PgError{Code: "23503", ConstraintName: OpenShiftIndex}))
}

func TestOpenShiftIsIdempotent(t *testing.T) {
	f := newFixture(t, "UTC")

	first, created, err := f.svc.OpenShift(context.Background(), OpenShiftInput{
		RestaurantID:  f.restaurant.ID,
		CashierID:     f.cashier,
		OpeningAmount: d("300"),
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "130326-01", first.Number)
	require.Equal(t, enums.CashShiftStatusOpen, first.Status)

	second, created, err := f.svc.OpenShift(context.Background(), OpenShiftInput{
		RestaurantID:  f.restaurant.ID,
		CashierID:     uuid.New(),
		OpeningAmount: d("999"),
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	requireDec(t, "300", second.OpeningAmount)

	var open int64
	require.NoError(t, f.conn.Model(&models.CashShift{}).
		Where("restaurant_id = ? AND status = ?", f.restaurant.ID, enums.CashShiftStatusOpen).
		Count(&open).Error)
	require.EqualValues(t, 1, open)
	require.EqualValues(t, 1, f.events(t, enums.EventShiftOpened))

	current, err := f.svc.CurrentShift(context.Background(), f.restaurant.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, current.ID)
}

func TestOpenShiftNumbersPerLocalDay(t *testing.T) {
	f := newFixture(t, "Asia/Tokyo")

	// 20:00 UTC on the 13th is already the 14th in Tokyo
	*f.now = time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
	first := f.open(t, "0")
	require.Equal(t, "140326-01", first.Number)

	_, closed, err := f.svc.CloseShift(context.Background(), CloseShiftInput{ShiftID: first.ID, ClosingAmount: d("0"), UserID: f.cashier})
	require.NoError(t, err)
	require.True(t, closed)

	*f.now = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)
	second := f.open(t, "0")
	require.Equal(t, "140326-02", second.Number)
	require.NotEqual(t, first.ID, second.ID)
}

func TestOpenShiftValidation(t *testing.T) {
	f := newFixture(t, "UTC")

	_, _, err := f.svc.OpenShift(context.Background(), OpenShiftInput{
		RestaurantID:  f.restaurant.ID,
		CashierID:     f.cashier,
		OpeningAmount: d("-1"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, _, err = f.svc.OpenShift(context.Background(), OpenShiftInput{
		RestaurantID: uuid.New(),
		CashierID:    f.cashier,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOperationsDeriveTotalsAndClose(t *testing.T) {
	f := newFixture(t, "UTC")
	shift := f.open(t, "300")
	first, second := f.order(t), f.order(t)

	f.record(t, RecordOperationInput{ShiftID: shift.ID, Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: d("100"), OrderID: &first})
	f.record(t, RecordOperationInput{ShiftID: shift.ID, Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCard, Amount: d("50"), OrderID: &first})
	_, _, err := f.svc.RecordOrderPayment(context.Background(), OrderPaymentInput{
		ShiftID: shift.ID, OrderID: second, PaymentMethod: enums.PaymentMethodOnline, Amount: d("30"), UserID: f.cashier,
	})
	require.NoError(t, err)
	_, _, err = f.svc.RecordRefund(context.Background(), RefundInput{
		ShiftID: shift.ID, OrderID: &first, PaymentMethod: enums.PaymentMethodCash, Amount: d("20"), Reason: strPtr("cold soup"), UserID: f.cashier,
	})
	require.NoError(t, err)
	_, _, err = f.svc.Deposit(context.Background(), CashMovementInput{ShiftID: shift.ID, Amount: d("200"), UserID: f.cashier})
	require.NoError(t, err)
	_, _, err = f.svc.Withdraw(context.Background(), CashMovementInput{ShiftID: shift.ID, Amount: d("50"), UserID: f.cashier})
	require.NoError(t, err)
	_, _, err = f.svc.Expense(context.Background(), CashMovementInput{ShiftID: shift.ID, Amount: d("10"), Description: strPtr("napkins"), UserID: f.cashier})
	require.NoError(t, err)

	var stored models.CashShift
	require.NoError(t, f.conn.Take(&stored, "id = ?", shift.ID).Error)
	requireDec(t, "100", stored.TotalCash)
	requireDec(t, "50", stored.TotalCard)
	requireDec(t, "30", stored.TotalOnline)
	requireDec(t, "180", stored.TotalRevenue)
	require.Equal(t, 1, stored.RefundsCount)
	requireDec(t, "20", stored.RefundsAmount)
	require.Equal(t, 2, stored.OrdersCount)

	ops, err := f.svc.ListOperations(context.Background(), shift.ID)
	require.NoError(t, err)
	require.Len(t, ops, 7)

	closed, ok, err := f.svc.CloseShift(context.Background(), CloseShiftInput{ShiftID: shift.ID, ClosingAmount: d("500"), UserID: f.cashier})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, enums.CashShiftStatusClosed, closed.Status)
	requireDec(t, "520", closed.ExpectedAmount.Decimal)
	requireDec(t, "-20", closed.Difference.Decimal)
	requireDec(t, "500", closed.ClosingAmount.Decimal)
	require.NotNil(t, closed.ClosedAt)
	require.Equal(t, f.cashier, *closed.ClosedBy)

	again, ok, err := f.svc.CloseShift(context.Background(), CloseShiftInput{ShiftID: shift.ID, ClosingAmount: d("1"), UserID: f.cashier})
	require.NoError(t, err)
	require.False(t, ok)
	requireDec(t, "500", again.ClosingAmount.Decimal)
	require.EqualValues(t, 1, f.events(t, enums.EventShiftClosed))

	_, _, err = f.svc.Deposit(context.Background(), CashMovementInput{ShiftID: shift.ID, Amount: d("1"), UserID: f.cashier})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.CurrentShift(context.Background(), f.restaurant.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRecordOperationValidation(t *testing.T) {
	f := newFixture(t, "UTC")
	shift := f.open(t, "0")
	missing := uuid.New()

	tests := []struct {
		name  string
		input RecordOperationInput
		code  pkgerrors.Code
	}{
		{name: "zero amount", input: RecordOperationInput{ShiftID: shift.ID, Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: decimal.Zero, UserID: f.cashier}, code: pkgerrors.CodeValidation},
		{name: "bad method", input: RecordOperationInput{ShiftID: shift.ID, Type: enums.CashOperationIncome, PaymentMethod: "barter", Amount: d("1"), UserID: f.cashier}, code: pkgerrors.CodeValidation},
		{name: "bad type", input: RecordOperationInput{ShiftID: shift.ID, Type: "tip", PaymentMethod: enums.PaymentMethodCash, Amount: d("1"), UserID: f.cashier}, code: pkgerrors.CodeValidation},
		{name: "unknown shift", input: RecordOperationInput{ShiftID: uuid.New(), Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: d("1"), UserID: f.cashier}, code: pkgerrors.CodeNotFound},
		{name: "unknown order", input: RecordOperationInput{ShiftID: shift.ID, Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: d("1"), OrderID: &missing, UserID: f.cashier}, code: pkgerrors.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.RecordOperation(context.Background(), tc.input)
			require.Truef(t, pkgerrors.IsCode(err, tc.code), "expected %s, got %v", tc.code, err)
		})
	}
}

func TestRecordOperationIdempotencyKey(t *testing.T) {
	f := newFixture(t, "UTC")
	shift := f.open(t, "0")
	key := strPtr("pay-123")

	input := RecordOperationInput{
		ShiftID:        shift.ID,
		Type:           enums.CashOperationIncome,
		PaymentMethod:  enums.PaymentMethodCard,
		Amount:         d("42.5"),
		UserID:         f.cashier,
		IdempotencyKey: key,
	}
	first := f.record(t, input)

	again, created, err := f.svc.RecordOperation(context.Background(), input)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	ops, err := f.svc.ListOperations(context.Background(), shift.ID)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	var stored models.CashShift
	require.NoError(t, f.conn.Take(&stored, "id = ?", shift.ID).Error)
	requireDec(t, "42.5", stored.TotalCard)

	changed := input
	changed.Amount = d("50")
	_, _, err = f.svc.RecordOperation(context.Background(), changed)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
}

func TestRecordOperationClaimInFlight(t *testing.T) {
	f := newFixture(t, "UTC")
	shift := f.open(t, "0")

	f.store.values[f.store.IdempotencyKey(operationScope, "busy")] = shift.ID.String()
	_, _, err := f.svc.Deposit(context.Background(), CashMovementInput{
		ShiftID: shift.ID, Amount: d("5"), UserID: f.cashier, IdempotencyKey: strPtr("busy"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
}

func TestRecordOperationFailureReleasesClaim(t *testing.T) {
	f := newFixture(t, "UTC")
	shift := f.open(t, "0")
	_, _, err := f.svc.CloseShift(context.Background(), CloseShiftInput{ShiftID: shift.ID, UserID: f.cashier})
	require.NoError(t, err)

	_, _, err = f.svc.Deposit(context.Background(), CashMovementInput{
		ShiftID: shift.ID, Amount: d("5"), UserID: f.cashier, IdempotencyKey: strPtr("retry-me"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Empty(t, f.store.values)
}

func TestUpdateTotalsRederives(t *testing.T) {
	f := newFixture(t, "UTC")
	shift := f.open(t, "0")
	f.record(t, RecordOperationInput{ShiftID: shift.ID, Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: d("75")})

	require.NoError(t, f.conn.Model(&models.CashShift{}).Where("id = ?", shift.ID).
		Updates(map[string]any{"total_cash": d("1"), "total_revenue": d("999"), "orders_count": 7}).Error)

	refreshed, err := f.svc.UpdateTotals(context.Background(), shift.ID)
	require.NoError(t, err)
	requireDec(t, "75", refreshed.TotalCash)
	requireDec(t, "75", refreshed.TotalRevenue)
	require.Equal(t, 0, refreshed.OrdersCount)

	require.NoError(t, f.conn.Model(&models.CashShift{}).Where("id = ?", shift.ID).Update("total_cash", d("3")).Error)
	n, err := f.svc.ReconcileOpenShifts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var stored models.CashShift
	require.NoError(t, f.conn.Take(&stored, "id = ?", shift.ID).Error)
	requireDec(t, "75", stored.TotalCash)
}

func TestAggregate(t *testing.T) {
	order := uuid.New()
	totals := aggregate([]models.CashOperation{
		{Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: d("10"), OrderID: &order},
		{Type: enums.CashOperationIncome, PaymentMethod: enums.PaymentMethodCash, Amount: d("5"), OrderID: &order},
		{Type: enums.CashOperationRefund, PaymentMethod: enums.PaymentMethodCard, Amount: d("4")},
		{Type: enums.CashOperationWithdrawal, PaymentMethod: enums.PaymentMethodCash, Amount: d("3")},
	})
	requireDec(t, "15", totals.cash)
	requireDec(t, "15", totals.revenue)
	require.Equal(t, 1, totals.ordersCount)
	require.Equal(t, 1, totals.refundsCount)
	requireDec(t, "15", totals.cashIn)
	// card refunds leave the drawer untouched
	requireDec(t, "3", totals.cashOut)
}
