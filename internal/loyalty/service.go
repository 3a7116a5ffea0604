package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/money"
)

// Service accrues and redeems customer bonuses and resolves loyalty levels.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Accrue writes the cashback of a completed order once and re-derives the
// customer's balance. Orders without a customer accrue nothing.
func (s *Service) Accrue(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	if order == nil || order.CustomerID == nil {
		return decimal.Zero, nil
	}
	repo := s.repo.WithTx(tx)

	setting, err := repo.Setting(ctx, order.RestaurantID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bonus setting")
	}
	var level *models.LoyaltyLevel
	if order.LoyaltyLevelID != nil {
		if level, err = repo.Level(ctx, *order.LoyaltyLevelID); err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty level")
		}
	}

	discounts := order.DiscountAmount.Add(order.LoyaltyDiscountAmount)
	amount := CalculateCashback(setting, level, order.Total, discounts)
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}

	orderID := order.ID
	inserted, err := repo.InsertTransaction(ctx, &models.BonusTransaction{
		RestaurantID: order.RestaurantID,
		CustomerID:   *order.CustomerID,
		OrderID:      &orderID,
		Type:         enums.BonusTransactionAccrual,
		Amount:       amount,
	})
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bonus accrual")
	}
	if err := s.refreshBalance(ctx, repo, *order.CustomerID); err != nil {
		return decimal.Zero, err
	}
	if !inserted {
		return decimal.Zero, nil
	}
	return amount, nil
}

type RedeemInput struct {
	RestaurantID uuid.UUID
	CustomerID   uuid.UUID
	OrderID      uuid.UUID
	Amount       decimal.Decimal
	OrderTotal   decimal.Decimal
}

// Redeem spends bonuses against an order within MaxSpendable.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (decimal.Decimal, error) {
	if !input.Amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "redeem amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	customer, err := repo.LockCustomer(ctx, input.CustomerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock customer")
	}
	setting, err := repo.Setting(ctx, input.RestaurantID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bonus setting")
	}
	balance, err := repo.Balance(ctx, customer.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive bonus balance")
	}
	limit := MaxSpendable(setting, balance, input.OrderTotal)
	if input.Amount.GreaterThan(limit) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "redeem amount exceeds spendable bonuses").
			WithDetails(map[string]string{"max_spendable": limit.String()})
	}

	orderID := input.OrderID
	inserted, err := repo.InsertTransaction(ctx, &models.BonusTransaction{
		RestaurantID: input.RestaurantID,
		CustomerID:   customer.ID,
		OrderID:      &orderID,
		Type:         enums.BonusTransactionSpend,
		Amount:       money.Store(input.Amount),
	})
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bonus spend")
	}
	if !inserted {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "bonuses already redeemed for order")
	}
	if err := s.refreshBalance(ctx, repo, customer.ID); err != nil {
		return decimal.Zero, err
	}
	return input.Amount, nil
}

// ResolveLevel returns the highest level whose threshold the customer's
// completed spend reaches, or nil.
func (s *Service) ResolveLevel(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.LoyaltyLevel, error) {
	repo := s.repo.WithTx(tx)
	customer, err := repo.Customer(ctx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	spent, err := repo.CompletedSpend(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum completed spend")
	}
	levels, err := repo.Levels(ctx, customer.RestaurantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty levels")
	}
	for i := range levels {
		if !levels[i].MinSpent.GreaterThan(spent) {
			return &levels[i], nil
		}
	}
	return nil, nil
}

// RefreshLevel stores the resolved level on the customer.
func (s *Service) RefreshLevel(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.LoyaltyLevel, error) {
	level, err := s.ResolveLevel(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	var levelID *uuid.UUID
	if level != nil {
		levelID = &level.ID
	}
	if err := s.repo.WithTx(tx).UpdateCustomer(ctx, customerID, map[string]any{"loyalty_level_id": levelID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer level")
	}
	return level, nil
}

// Level loads a level by id; nil when it no longer exists.
func (s *Service) Level(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.LoyaltyLevel, error) {
	level, err := s.repo.WithTx(tx).Level(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty level")
	}
	return level, nil
}

// IsFirstOrder reports whether the customer has no completed orders yet.
func (s *Service) IsFirstOrder(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (bool, error) {
	n, err := s.repo.WithTx(tx).CompletedOrders(ctx, customerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed orders")
	}
	return n == 0, nil
}

func (s *Service) refreshBalance(ctx context.Context, repo *Repository, customerID uuid.UUID) error {
	balance, err := repo.Balance(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive bonus balance")
	}
	if err := repo.UpdateCustomer(ctx, customerID, map[string]any{"bonus_balance": money.Store(balance)}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bonus balance")
	}
	return nil
}
