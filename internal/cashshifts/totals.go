package cashshifts

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/money"
)

// shiftTotals is derived from scratch from a shift's operations.
type shiftTotals struct {
	cash          decimal.Decimal
	card          decimal.Decimal
	online        decimal.Decimal
	revenue       decimal.Decimal
	refundsCount  int
	refundsAmount decimal.Decimal
	ordersCount   int

	// drawer movements in cash only
	cashIn  decimal.Decimal
	cashOut decimal.Decimal
}

func aggregate(ops []models.CashOperation) shiftTotals {
	var t shiftTotals
	orders := make(map[uuid.UUID]struct{})
	for _, op := range ops {
		switch op.Type {
		case enums.CashOperationIncome:
			switch op.PaymentMethod {
			case enums.PaymentMethodCash:
				t.cash = t.cash.Add(op.Amount)
			case enums.PaymentMethodCard:
				t.card = t.card.Add(op.Amount)
			case enums.PaymentMethodOnline:
				t.online = t.online.Add(op.Amount)
			}
			if op.OrderID != nil {
				orders[*op.OrderID] = struct{}{}
			}
		case enums.CashOperationRefund:
			t.refundsCount++
			t.refundsAmount = t.refundsAmount.Add(op.Amount)
		}

		if !op.PaymentMethod.MovesDrawer() {
			continue
		}
		if op.Type.AddsCash() {
			t.cashIn = t.cashIn.Add(op.Amount)
		} else {
			t.cashOut = t.cashOut.Add(op.Amount)
		}
	}
	t.revenue = t.cash.Add(t.card).Add(t.online)
	t.ordersCount = len(orders)
	return t
}

func (t shiftTotals) updates() map[string]any {
	return map[string]any{
		"total_cash":     money.Store(t.cash),
		"total_card":     money.Store(t.card),
		"total_online":   money.Store(t.online),
		"total_revenue":  money.Store(t.revenue),
		"refunds_count":  t.refundsCount,
		"refunds_amount": money.Store(t.refundsAmount),
		"orders_count":   t.ordersCount,
	}
}

// refreshTotals overwrites the stored totals of a locked shift.
func (s *Service) refreshTotals(ctx context.Context, repo *Repository, shift *models.CashShift) (shiftTotals, error) {
	ops, err := repo.Operations(ctx, shift.ID)
	if err != nil {
		return shiftTotals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cash operations")
	}
	totals := aggregate(ops)
	if err := repo.UpdateShift(ctx, shift.ID, totals.updates()); err != nil {
		return shiftTotals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shift totals")
	}
	return totals, nil
}
