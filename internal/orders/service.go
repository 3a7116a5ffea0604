package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/internal/inventory"
	"github.com/angelmondragon/restaurant-core/internal/pricing"
	"github.com/angelmondragon/restaurant-core/internal/promotions"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-core/pkg/types"
	"github.com/angelmondragon/restaurant-core/pkg/validate"
)

// Service defines order operations. Every mutation locks the order row,
// applies the change, recomputes totals and persists them in one transaction.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.Order, error)
	UpdateItemQuantity(ctx context.Context, input UpdateItemQuantityInput) (*models.Order, error)
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.Order, error)
	UpdateItemStatus(ctx context.Context, input UpdateItemStatusInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	ApplyPromoCode(ctx context.Context, input ApplyPromoCodeInput) (*models.Order, error)
	RemovePromoCode(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetCharges(ctx context.Context, input SetChargesInput) (*models.Order, error)
	AttachCustomer(ctx context.Context, input AttachCustomerInput) (*models.Order, error)
	Recalculate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Complete(ctx context.Context, input CompleteInput) (*models.Order, bool, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, bool, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Params wires the order service. Stock, Metrics, Logger and Clock are optional.
type Params struct {
	Repo       Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Numbers    numberSequence
	Calculator *pricing.Calculator
	Promotions PromotionSource
	Loyalty    LoyaltyProgram
	Stock      StockConsumer
	Metrics    *metrics.DomainMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	numbers    numberSequence
	calculator *pricing.Calculator
	promotions PromotionSource
	loyalty    LoyaltyProgram
	stock      StockConsumer
	metrics    *metrics.DomainMetrics
	logg       *logger.Logger
	clock      func() time.Time
}

// statusRank orders the non-terminal statuses; an order only moves forward.
var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusNew:        0,
	enums.OrderStatusConfirmed:  1,
	enums.OrderStatusCooking:    2,
	enums.OrderStatusReady:      3,
	enums.OrderStatusDelivering: 4,
}

// NewService builds an order service with the required dependencies.
func NewService(p Params) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Numbers == nil {
		return nil, fmt.Errorf("order number sequence required")
	}
	if p.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if p.Promotions == nil {
		return nil, fmt.Errorf("promotion source required")
	}
	if p.Loyalty == nil {
		return nil, fmt.Errorf("loyalty program required")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:       p.Repo,
		tx:         p.Tx,
		outbox:     p.Outbox,
		numbers:    p.Numbers,
		calculator: p.Calculator,
		promotions: p.Promotions,
		loyalty:    p.Loyalty,
		stock:      p.Stock,
		metrics:    p.Metrics,
		logg:       p.Logger,
		clock:      clock,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	ctx = s.logg.WithRestaurantID(ctx, input.RestaurantID.String())

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Restaurant(ctx, input.RestaurantID); err != nil {
			return notFoundOr(err, "restaurant not found", "load restaurant")
		}

		order := &models.Order{
			RestaurantID:     input.RestaurantID,
			Type:             input.Type,
			Status:           enums.OrderStatusNew,
			CreatedBy:        input.CreatedBy,
			AppliedDiscounts: types.AppliedDiscounts{},
		}
		if input.CustomerID != nil {
			customer, err := repo.Customer(ctx, input.RestaurantID, *input.CustomerID)
			if err != nil {
				return notFoundOr(err, "customer not found", "load customer")
			}
			order.CustomerID = &customer.ID
			order.LoyaltyLevelID = customer.LoyaltyLevelID
		}

		number, err := s.numbers.Next(ctx, tx, input.RestaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}
		order.Number = number
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		result, err = s.recalculate(ctx, tx, repo, order)
		return err
	})
	s.metrics.ObserveOperation("order_create", err == nil, err)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, result.ID.String()), "order created")
	return result, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "order_add_item", input.OrderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		dish, err := repo.Dish(ctx, order.RestaurantID, input.DishID)
		if err != nil {
			return notFoundOr(err, "dish not found", "load dish")
		}
		if !dish.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeValidation, "dish is not available")
		}

		item := &models.OrderItem{
			OrderID:        order.ID,
			DishID:         dish.ID,
			CategoryID:     dish.CategoryID,
			Name:           dish.Name,
			Quantity:       input.Quantity,
			UnitPrice:      money.Store(dish.Price),
			ModifiersPrice: money.Store(input.ModifiersPrice),
			Status:         enums.OrderItemStatusNew,
			Comment:        input.Comment,
		}
		item.Total = money.Store(item.LineTotal())
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
		}
		return nil
	})
}

func (s *service) UpdateItemQuantity(ctx context.Context, input UpdateItemQuantityInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "order_update_item_quantity", input.OrderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		item, err := findItem(ctx, repo, order.ID, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status != enums.OrderItemStatusNew {
			return itemStateConflict(item, "quantity can only change before the item is sent")
		}
		item.Quantity = input.Quantity
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"quantity": item.Quantity,
			"total":    money.Store(item.LineTotal()),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.Order, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	return s.mutate(ctx, "order_remove_item", orderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		item, err := findItem(ctx, repo, order.ID, itemID)
		if err != nil {
			return err
		}
		if item.Status != enums.OrderItemStatusNew {
			return itemStateConflict(item, "sent items must be canceled or voided instead")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
		}
		return nil
	})
}

func (s *service) UpdateItemStatus(ctx context.Context, input UpdateItemStatusInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item status")
	}
	return s.mutate(ctx, "order_update_item_status", input.OrderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		item, err := findItem(ctx, repo, order.ID, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status == input.Status {
			return nil
		}
		if !item.Status.CanTransitionTo(input.Status) {
			return itemStateConflict(item, "item status transition not allowed").
				WithDetails(map[string]any{"from": item.Status, "to": input.Status})
		}
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{"status": input.Status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item status")
		}
		return nil
	})
}

// UpdateStatus moves an order forward through the kitchen flow. Completion and
// cancellation have their own operations.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	target, ok := statusRank[status]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be a non-terminal order status")
	}
	return s.mutate(ctx, "order_update_status", orderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		if order.Status == status {
			return nil
		}
		if target < statusRank[order.Status] {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status cannot move backwards").
				WithDetails(map[string]any{"from": order.Status, "to": status})
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"status": status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = status
		return nil
	})
}

// ApplyPromoCode attaches a code after checking it would discount the order as
// it stands. An inapplicable code is rejected with the failing condition.
func (s *service) ApplyPromoCode(ctx context.Context, input ApplyPromoCodeInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "order_apply_promo_code", input.OrderID, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
		code, err := s.promotions.LookupCode(ctx, tx, order.RestaurantID, input.Code)
		if err != nil {
			return err
		}
		items, err := repo.Items(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		in, err := s.pricingInput(ctx, tx, repo, order, items)
		if err != nil {
			return err
		}
		_, reason, err := s.calculator.Explain(ctx, promotions.CodeRule(*code), in.Context, in.Lines, in.Usage)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "evaluate promo code")
		}
		if reason != "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "promo code is not applicable").
				WithDetails(map[string]any{"code": code.Code, "reason": reason})
		}

		if err := repo.Update(ctx, order.ID, map[string]any{"promo_code_id": code.ID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach promo code")
		}
		order.PromoCodeID = &code.ID
		return nil
	})
}

func (s *service) RemovePromoCode(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "order_remove_promo_code", orderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		if order.PromoCodeID == nil {
			return nil
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"promo_code_id": nil}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach promo code")
		}
		order.PromoCodeID = nil
		return nil
	})
}

func (s *service) SetCharges(ctx context.Context, input SetChargesInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "order_set_charges", input.OrderID, func(_ context.Context, _ *gorm.DB, _ Repository, order *models.Order) error {
		order.DeliveryFee = money.Store(input.DeliveryFee)
		order.Tips = money.Store(input.Tips)
		return nil
	})
}

func (s *service) AttachCustomer(ctx context.Context, input AttachCustomerInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "order_attach_customer", input.OrderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) error {
		customer, err := repo.Customer(ctx, order.RestaurantID, input.CustomerID)
		if err != nil {
			return notFoundOr(err, "customer not found", "load customer")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{
			"customer_id":      customer.ID,
			"loyalty_level_id": customer.LoyaltyLevelID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach customer")
		}
		order.CustomerID = &customer.ID
		order.LoyaltyLevelID = customer.LoyaltyLevelID
		return nil
	})
}

func (s *service) Recalculate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "order_recalculate", orderID, nil)
}

// Complete finalizes an order once. A repeated call returns the stored order
// with applied=false.
func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.Order, bool, error) {
	if err := validate.Struct(input); err != nil {
		return nil, false, err
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		result   *models.Order
		applied  bool
		cashback decimal.Decimal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.OrderStatusCompleted:
			result, err = s.load(ctx, repo, order.ID)
			return err
		case enums.OrderStatusCanceled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "canceled order cannot be completed")
		}

		order, err = s.recalculate(ctx, tx, repo, order)
		if err != nil {
			return err
		}
		if !hasCountedItems(order.Items) {
			return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
		}

		now := s.clock().UTC()
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &now

		if err := s.promotions.RecordUsages(ctx, tx, order); err != nil {
			return err
		}
		if cashback, err = s.loyalty.Accrue(ctx, tx, order); err != nil {
			return err
		}
		if order.CustomerID != nil {
			if _, err := s.loyalty.RefreshLevel(ctx, tx, *order.CustomerID); err != nil {
				return err
			}
		}
		if input.WarehouseID != nil {
			if s.stock == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "stock consumer not configured")
			}
			movements, err := s.stock.ConsumeForOrder(ctx, tx, inventory.ConsumeInput{
				WarehouseID: *input.WarehouseID,
				Order:       order,
				UserID:      input.UserID,
			})
			if err != nil {
				return err
			}
			s.logg.Debug(s.logg.WithField(ctx, "movements", len(movements)), "recipe stock consumed")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, RestaurantID: order.RestaurantID},
			Data: payloads.OrderCompletedEvent{
				OrderID:               order.ID,
				RestaurantID:          order.RestaurantID,
				Number:                order.Number,
				CustomerID:            order.CustomerID,
				Subtotal:              order.Subtotal,
				DiscountAmount:        order.DiscountAmount,
				LoyaltyDiscountAmount: order.LoyaltyDiscountAmount,
				RoundingAmount:        order.RoundingAmount,
				Total:                 order.Total,
				CashbackAccrued:       cashback,
				CompletedAt:           now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order completed")
		}
		result, applied = order, true
		return nil
	})
	s.metrics.ObserveOperation("order_complete", applied, err)
	if err != nil {
		return nil, false, err
	}
	if applied {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"total":    result.Total.String(),
			"cashback": cashback.String(),
		}), "order completed")
	}
	return result, applied, nil
}

// Cancel marks an open order canceled. Canceling twice returns applied=false.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, bool, error) {
	if err := validate.Struct(input); err != nil {
		return nil, false, err
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		result  *models.Order
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.OrderStatusCanceled:
			result, err = s.load(ctx, repo, order.ID)
			return err
		case enums.OrderStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed order cannot be canceled")
		}

		now := s.clock().UTC()
		var reason *string
		if input.Reason != "" {
			reason = &input.Reason
		}
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":        enums.OrderStatusCanceled,
			"canceled_at":   now,
			"cancel_reason": reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, RestaurantID: order.RestaurantID},
			Data: payloads.OrderCanceledEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				Reason:       input.Reason,
				CanceledAt:   now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order canceled")
		}
		result, err = s.load(ctx, repo, order.ID)
		applied = err == nil
		return err
	})
	s.metrics.ObserveOperation("order_cancel", applied, err)
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.load(ctx, s.repo, orderID)
}

type mutation func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error

func (s *service) mutate(ctx context.Context, operation string, orderID uuid.UUID, fn mutation) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed").
				WithDetails(map[string]any{"status": order.Status})
		}
		if fn != nil {
			if err := fn(ctx, tx, repo, order); err != nil {
				return err
			}
		}
		result, err = s.recalculate(ctx, tx, repo, order)
		return err
	})
	s.metrics.ObserveOperation(operation, err == nil, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recalculate derives every money field from the current lines and persists
// them together with the applied discounts.
func (s *service) recalculate(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (*models.Order, error) {
	items, err := repo.Items(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	in, err := s.pricingInput(ctx, tx, repo, order, items)
	if err != nil {
		return nil, err
	}
	in.Candidates, err = s.promotions.Candidates(ctx, tx, promotions.CandidateQuery{
		RestaurantID: order.RestaurantID,
		PromoCodeID:  order.PromoCodeID,
		Previous:     order.AppliedDiscounts,
		Now:          in.Context.Now,
	})
	if err != nil {
		return nil, err
	}

	totals, err := s.calculator.Calculate(ctx, in)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calculate order totals")
	}
	if err := repo.Update(ctx, order.ID, map[string]any{
		"subtotal":                totals.Subtotal,
		"discount_amount":         totals.DiscountAmount,
		"loyalty_discount_amount": totals.LoyaltyDiscountAmount,
		"rounding_amount":         totals.RoundingAmount,
		"delivery_fee":            totals.DeliveryFee,
		"tips":                    totals.Tips,
		"total":                   totals.Total,
		"applied_discounts":       totals.Applied,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order totals")
	}

	order.Subtotal = totals.Subtotal
	order.DiscountAmount = totals.DiscountAmount
	order.LoyaltyDiscountAmount = totals.LoyaltyDiscountAmount
	order.RoundingAmount = totals.RoundingAmount
	order.DeliveryFee = totals.DeliveryFee
	order.Tips = totals.Tips
	order.Total = totals.Total
	order.AppliedDiscounts = totals.Applied
	order.Items = items

	for _, d := range totals.Added {
		line := d.Line()
		event := outbox.DomainEvent{
			EventType:     enums.EventDiscountApplied,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{RestaurantID: order.RestaurantID},
			Data: payloads.DiscountAppliedEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				Source:       d.Source(),
				SourceID:     line.SourceID,
				Name:         line.Name,
				Amount:       line.Amount,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit discount applied")
		}
	}
	return order, nil
}

// pricingInput assembles everything but the candidate rules.
func (s *service) pricingInput(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, items []models.OrderItem) (pricing.CalculateInput, error) {
	restaurant, err := repo.Restaurant(ctx, order.RestaurantID)
	if err != nil {
		return pricing.CalculateInput{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}

	dishIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		dishIDs = append(dishIDs, item.DishID)
	}
	categories, err := repo.LiveCategories(ctx, dishIDs)
	if err != nil {
		return pricing.CalculateInput{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish categories")
	}

	in := pricing.CalculateInput{
		Context: pricing.Context{
			RestaurantID:   order.RestaurantID,
			OrderID:        order.ID,
			OrderType:      order.Type,
			CustomerID:     order.CustomerID,
			LoyaltyLevelID: order.LoyaltyLevelID,
			Now:            s.clock().In(restaurant.Location()),
		},
		Lines:       lines(items, categories),
		Previous:    order.AppliedDiscounts,
		DeliveryFee: order.DeliveryFee,
		Tips:        order.Tips,
		Usage:       s.promotions.UsageCounter(tx),
	}

	if order.CustomerID != nil {
		customer, err := repo.Customer(ctx, order.RestaurantID, *order.CustomerID)
		if err != nil {
			return pricing.CalculateInput{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
		}
		in.Context.Birthday = customer.Birthday
		if in.Context.IsFirstOrder, err = s.loyalty.IsFirstOrder(ctx, tx, customer.ID); err != nil {
			return pricing.CalculateInput{}, err
		}
	}

	if order.LoyaltyLevelID != nil {
		level, err := s.loyalty.Level(ctx, tx, *order.LoyaltyLevelID)
		if err != nil {
			return pricing.CalculateInput{}, err
		}
		if level != nil {
			in.Level = &pricing.Level{ID: level.ID, Name: level.Name, Percent: level.DiscountPercent}
		}
	}
	return in, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.Find(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	return order, nil
}

func lockOrder(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.Lock(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "lock order")
	}
	return order, nil
}

func findItem(ctx context.Context, repo Repository, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	item, err := repo.FindItem(ctx, orderID, itemID)
	if err != nil {
		return nil, notFoundOr(err, "order item not found", "load order item")
	}
	return item, nil
}

func notFoundOr(err error, notFound, dependency string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, dependency)
}

func itemStateConflict(item *models.OrderItem, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]any{"item_id": item.ID, "status": item.Status})
}

// lines prices items against the live menu: a line whose dish was deleted
// has no category.
func lines(items []models.OrderItem, categories map[uuid.UUID]*uuid.UUID) []pricing.Line {
	out := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		out = append(out, pricing.Line{
			ItemID:         item.ID,
			DishID:         item.DishID,
			CategoryID:     categories[item.DishID],
			UnitPrice:      item.UnitPrice,
			ModifiersPrice: item.ModifiersPrice,
			Quantity:       item.Quantity,
			Status:         item.Status,
		})
	}
	return out
}

func hasCountedItems(items []models.OrderItem) bool {
	for _, item := range items {
		if item.Status.CountsTowardTotal() && item.Quantity > 0 {
			return true
		}
	}
	return false
}
