package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/internal/sequences"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-core/pkg/validate"
)

// CreateInventoryCheck snapshots the current stock of the counted
// ingredients as the expected quantities.
func (s *Service) CreateInventoryCheck(ctx context.Context, input CreateInventoryCheckInput) (*models.InventoryCheck, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithRestaurantID(ctx, input.RestaurantID.String())

	var check *models.InventoryCheck
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Warehouse(ctx, input.RestaurantID, input.WarehouseID); err != nil {
			return notFoundOr(err, "warehouse not found", "load warehouse")
		}

		ingredientIDs := uniqueIDs(input.IngredientIDs)
		var onHand map[uuid.UUID]decimal.Decimal
		if len(ingredientIDs) == 0 {
			stocks, err := repo.Stocks(ctx, input.WarehouseID, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stocks")
			}
			onHand = make(map[uuid.UUID]decimal.Decimal, len(stocks))
			for _, st := range stocks {
				ingredientIDs = append(ingredientIDs, st.IngredientID)
				onHand[st.IngredientID] = st.Quantity
			}
		} else {
			stocks, err := repo.Stocks(ctx, input.WarehouseID, ingredientIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stocks")
			}
			onHand = make(map[uuid.UUID]decimal.Decimal, len(stocks))
			for _, st := range stocks {
				onHand[st.IngredientID] = st.Quantity
			}
		}
		if len(ingredientIDs) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no ingredients to count")
		}

		ingredients, err := repo.Ingredients(ctx, input.RestaurantID, ingredientIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredients")
		}
		costs := make(map[uuid.UUID]decimal.Decimal, len(ingredients))
		for _, ing := range ingredients {
			costs[ing.ID] = ing.CostPrice
		}
		missing := make([]string, 0)
		for _, id := range ingredientIDs {
			if _, ok := costs[id]; !ok {
				missing = append(missing, id.String())
			}
		}
		if len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "ingredient not found").
				WithDetails(map[string][]string{"ingredient_ids": missing})
		}

		n, err := s.checkNumbers.Next(ctx, tx, input.RestaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate inventory check number")
		}
		check = &models.InventoryCheck{
			RestaurantID: input.RestaurantID,
			Number:       sequences.Format(enums.SequenceInventoryCheck, n),
			WarehouseID:  input.WarehouseID,
			Status:       enums.DocumentStatusDraft,
			Notes:        input.Notes,
			CreatedBy:    input.CreatedBy,
		}
		if err := repo.CreateCheck(ctx, check); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory check")
		}

		items := make([]models.InventoryCheckItem, 0, len(ingredientIDs))
		for _, id := range ingredientIDs {
			items = append(items, models.InventoryCheckItem{
				CheckID:          check.ID,
				IngredientID:     id,
				ExpectedQuantity: onHand[id],
				CostPerUnit:      costs[id],
			})
		}
		if err := repo.CreateCheckItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory check items")
		}
		check, err = repo.Check(ctx, check.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory check")
		}
		return nil
	})
	s.metrics.ObserveOperation("inventory_check_create", err == nil, err)
	if err != nil {
		return nil, err
	}
	return check, nil
}

// SetActualQuantity records a counted quantity. The first count moves a
// draft check to in_progress.
func (s *Service) SetActualQuantity(ctx context.Context, input SetActualQuantityInput) (*models.InventoryCheck, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	var check *models.InventoryCheck
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockCheck(ctx, input.CheckID)
		if err != nil {
			return notFoundOr(err, "inventory check not found", "lock inventory check")
		}
		if locked.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory check is closed").
				WithDetails(map[string]string{"status": string(locked.Status)})
		}
		affected, err := repo.UpdateCheckItem(ctx, locked.ID, input.ItemID, map[string]any{
			"actual_quantity": decimal.NewNullDecimal(input.ActualQuantity),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory check item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory check item not found")
		}
		if locked.Status == enums.DocumentStatusDraft {
			if err := repo.UpdateCheck(ctx, locked.ID, map[string]any{"status": enums.DocumentStatusInProgress}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start inventory check")
			}
		}
		check, err = repo.Check(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory check")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

// CompleteInventoryCheck aligns stock with the counted quantities exactly
// once. Every line must have an actual quantity.
func (s *Service) CompleteInventoryCheck(ctx context.Context, checkID, userID uuid.UUID) (*models.InventoryCheck, bool, error) {
	if checkID == uuid.Nil || userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "check id and user id are required")
	}
	var (
		check   *models.InventoryCheck
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockCheck(ctx, checkID)
		if err != nil {
			return notFoundOr(err, "inventory check not found", "lock inventory check")
		}
		if locked.Status.IsTerminal() {
			check, err = repo.Check(ctx, locked.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory check")
			}
			return nil
		}
		items, err := repo.CheckItems(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory check items")
		}
		uncounted := make([]string, 0)
		for _, item := range items {
			if !item.ActualQuantity.Valid {
				uncounted = append(uncounted, item.ID.String())
			}
		}
		if len(uncounted) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "inventory check has uncounted items").
				WithDetails(map[string][]string{"item_ids": uncounted})
		}

		docType := enums.DocumentTypeInventoryCheck
		adjustments := 0
		for _, item := range items {
			stock, err := repo.LockStock(ctx, locked.WarehouseID, item.IngredientID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ingredient stock")
			}
			actual := item.ActualQuantity.Decimal
			delta := actual.Sub(stock.Quantity)
			if !delta.IsZero() {
				if _, err := s.AdjustStock(ctx, tx, AdjustStockInput{
					RestaurantID: locked.RestaurantID,
					WarehouseID:  locked.WarehouseID,
					IngredientID: item.IngredientID,
					Delta:        delta,
					Type:         enums.StockMovementInventory,
					CostPerUnit:  item.CostPerUnit,
					DocumentType: &docType,
					DocumentID:   &locked.ID,
					UserID:       &userID,
				}); err != nil {
					return err
				}
				adjustments++
			}
			if _, err := repo.UpdateCheckItem(ctx, locked.ID, item.ID, map[string]any{
				"expected_quantity": stock.Quantity,
				"difference":        decimal.NewNullDecimal(delta),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store inventory difference")
			}
		}

		completedAt := s.now()
		if err := repo.UpdateCheck(ctx, locked.ID, map[string]any{
			"status":       enums.DocumentStatusCompleted,
			"completed_by": userID,
			"completed_at": completedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete inventory check")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryCheckCompleted,
			AggregateType: enums.AggregateInventoryCheck,
			AggregateID:   locked.ID,
			Actor:         &outbox.ActorRef{UserID: &userID, RestaurantID: locked.RestaurantID},
			Data: payloads.InventoryCheckCompletedEvent{
				CheckID:      locked.ID,
				RestaurantID: locked.RestaurantID,
				Number:       locked.Number,
				WarehouseID:  locked.WarehouseID,
				Adjustments:  adjustments,
				CompletedAt:  completedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit inventory check completed")
		}

		check, err = repo.Check(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory check")
		}
		applied = true
		return nil
	})
	s.metrics.ObserveOperation("inventory_check_complete", applied, err)
	if err != nil {
		return nil, false, err
	}
	return check, applied, nil
}

func (s *Service) CancelInventoryCheck(ctx context.Context, checkID uuid.UUID) (*models.InventoryCheck, bool, error) {
	var (
		check    *models.InventoryCheck
		canceled bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockCheck(ctx, checkID)
		if err != nil {
			return notFoundOr(err, "inventory check not found", "lock inventory check")
		}
		switch locked.Status {
		case enums.DocumentStatusCanceled:
		case enums.DocumentStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed inventory check cannot be canceled")
		default:
			if err := repo.UpdateCheck(ctx, locked.ID, map[string]any{
				"status":      enums.DocumentStatusCanceled,
				"canceled_at": s.now(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel inventory check")
			}
			canceled = true
		}
		check, err = repo.Check(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory check")
		}
		return nil
	})
	s.metrics.ObserveOperation("inventory_check_cancel", canceled, err)
	if err != nil {
		return nil, false, err
	}
	return check, canceled, nil
}

func (s *Service) GetInventoryCheck(ctx context.Context, checkID uuid.UUID) (*models.InventoryCheck, error) {
	check, err := s.repo.Check(ctx, checkID)
	if err != nil {
		return nil, notFoundOr(err, "inventory check not found", "load inventory check")
	}
	return check, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
