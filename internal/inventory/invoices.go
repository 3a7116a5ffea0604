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
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-core/pkg/validate"
)

func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid invoice type %q", input.Type)
	}
	if input.Type == enums.InvoiceTypeTransfer {
		if input.TargetWarehouseID == nil || *input.TargetWarehouseID == input.WarehouseID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer requires a different target warehouse")
		}
	} else if input.TargetWarehouseID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target warehouse is only allowed for transfers")
	}
	ctx = s.logg.WithRestaurantID(ctx, input.RestaurantID.String())

	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Warehouse(ctx, input.RestaurantID, input.WarehouseID); err != nil {
			return notFoundOr(err, "warehouse not found", "load warehouse")
		}
		if input.TargetWarehouseID != nil {
			if _, err := repo.Warehouse(ctx, input.RestaurantID, *input.TargetWarehouseID); err != nil {
				return notFoundOr(err, "target warehouse not found", "load target warehouse")
			}
		}
		n, err := s.invoiceNumbers.Next(ctx, tx, input.RestaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate invoice number")
		}
		invoice = &models.Invoice{
			RestaurantID:      input.RestaurantID,
			Number:            sequences.Format(enums.SequenceInvoice, n),
			Type:              input.Type,
			WarehouseID:       input.WarehouseID,
			TargetWarehouseID: input.TargetWarehouseID,
			Supplier:          input.Supplier,
			Status:            enums.DocumentStatusDraft,
			TotalAmount:       decimal.Zero,
			Notes:             input.Notes,
			CreatedBy:         input.CreatedBy,
		}
		if err := repo.CreateInvoice(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
		}
		return nil
	})
	s.metrics.ObserveOperation("invoice_create", err == nil, err)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "invoice_number", invoice.Number), "invoice created")
	return invoice, nil
}

// AddInvoiceItem appends a line to a draft invoice and re-derives its total.
func (s *Service) AddInvoiceItem(ctx context.Context, input AddInvoiceItemInput) (*models.Invoice, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockInvoice(ctx, input.InvoiceID)
		if err != nil {
			return notFoundOr(err, "invoice not found", "lock invoice")
		}
		if locked.Status != enums.DocumentStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft invoices can be edited").
				WithDetails(map[string]string{"status": string(locked.Status)})
		}
		if _, err := repo.Ingredient(ctx, locked.RestaurantID, input.IngredientID); err != nil {
			return notFoundOr(err, "ingredient not found", "load ingredient")
		}

		item := &models.InvoiceItem{
			InvoiceID:    locked.ID,
			IngredientID: input.IngredientID,
			Quantity:     input.Quantity,
			CostPerUnit:  money.Store(input.CostPerUnit),
			Total:        money.Store(input.Quantity.Mul(input.CostPerUnit)),
		}
		if err := repo.CreateInvoiceItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice item")
		}

		items, err := repo.InvoiceItems(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice items")
		}
		total := decimal.Zero
		for _, it := range items {
			total = total.Add(it.Total)
		}
		if err := repo.UpdateInvoice(ctx, locked.ID, map[string]any{"total_amount": money.Store(total)}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice total")
		}
		invoice, err = repo.Invoice(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// CompleteInvoice applies the invoice lines to stock exactly once. A second
// call on a completed or canceled invoice returns applied=false.
func (s *Service) CompleteInvoice(ctx context.Context, invoiceID, userID uuid.UUID) (*models.Invoice, bool, error) {
	if invoiceID == uuid.Nil || userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "invoice id and user id are required")
	}
	var (
		invoice *models.Invoice
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice not found", "lock invoice")
		}
		if locked.Status.IsTerminal() {
			invoice, err = repo.Invoice(ctx, locked.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
			}
			return nil
		}
		items, err := repo.InvoiceItems(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invoice has no items")
		}

		docType := enums.DocumentTypeInvoice
		movements := 0
		for _, item := range items {
			for _, leg := range invoiceLegs(locked, item) {
				if _, err := s.AdjustStock(ctx, tx, AdjustStockInput{
					RestaurantID: locked.RestaurantID,
					WarehouseID:  leg.warehouseID,
					IngredientID: item.IngredientID,
					Delta:        leg.delta,
					Type:         leg.movement,
					CostPerUnit:  item.CostPerUnit,
					DocumentType: &docType,
					DocumentID:   &locked.ID,
					UserID:       &userID,
				}); err != nil {
					return err
				}
				movements++
			}
			if locked.Type == enums.InvoiceTypeIncome && item.CostPerUnit.IsPositive() {
				if err := repo.SetIngredientCost(ctx, item.IngredientID, item.CostPerUnit); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ingredient cost")
				}
			}
		}

		completedAt := s.now()
		if err := repo.UpdateInvoice(ctx, locked.ID, map[string]any{
			"status":       enums.DocumentStatusCompleted,
			"completed_by": userID,
			"completed_at": completedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete invoice")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceCompleted,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   locked.ID,
			Actor:         &outbox.ActorRef{UserID: &userID, RestaurantID: locked.RestaurantID},
			Data: payloads.InvoiceCompletedEvent{
				InvoiceID:         locked.ID,
				RestaurantID:      locked.RestaurantID,
				Number:            locked.Number,
				Type:              locked.Type,
				WarehouseID:       locked.WarehouseID,
				TargetWarehouseID: locked.TargetWarehouseID,
				TotalAmount:       locked.TotalAmount,
				Movements:         movements,
				CompletedAt:       completedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice completed")
		}

		invoice, err = repo.Invoice(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
		}
		applied = true
		return nil
	})
	s.metrics.ObserveOperation("invoice_complete", applied, err)
	if err != nil {
		return nil, false, err
	}
	if applied {
		s.logg.Info(s.logg.WithField(ctx, "invoice_id", invoice.ID.String()), "invoice completed")
	}
	return invoice, applied, nil
}

// CancelInvoice cancels a draft invoice. Canceling twice is a no-op; a
// completed invoice cannot be canceled.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, bool, error) {
	var (
		invoice  *models.Invoice
		canceled bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice not found", "lock invoice")
		}
		switch locked.Status {
		case enums.DocumentStatusCanceled:
		case enums.DocumentStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed invoice cannot be canceled")
		default:
			if err := repo.UpdateInvoice(ctx, locked.ID, map[string]any{
				"status":      enums.DocumentStatusCanceled,
				"canceled_at": s.now(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel invoice")
			}
			canceled = true
		}
		invoice, err = repo.Invoice(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
		}
		return nil
	})
	s.metrics.ObserveOperation("invoice_cancel", canceled, err)
	if err != nil {
		return nil, false, err
	}
	return invoice, canceled, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.Invoice(ctx, invoiceID)
	if err != nil {
		return nil, notFoundOr(err, "invoice not found", "load invoice")
	}
	return invoice, nil
}

type stockLeg struct {
	warehouseID uuid.UUID
	delta       decimal.Decimal
	movement    enums.StockMovementType
}

// invoiceLegs maps an invoice line to its signed stock changes. A transfer
// debits the source and credits the target warehouse.
func invoiceLegs(inv *models.Invoice, item models.InvoiceItem) []stockLeg {
	switch inv.Type {
	case enums.InvoiceTypeIncome:
		return []stockLeg{{inv.WarehouseID, item.Quantity, enums.StockMovementIncome}}
	case enums.InvoiceTypeExpense:
		return []stockLeg{{inv.WarehouseID, item.Quantity.Neg(), enums.StockMovementExpense}}
	case enums.InvoiceTypeWriteOff:
		return []stockLeg{{inv.WarehouseID, item.Quantity.Neg(), enums.StockMovementWriteOff}}
	case enums.InvoiceTypeTransfer:
		legs := []stockLeg{{inv.WarehouseID, item.Quantity.Neg(), enums.StockMovementTransferOut}}
		if inv.TargetWarehouseID != nil {
			legs = append(legs, stockLeg{*inv.TargetWarehouseID, item.Quantity, enums.StockMovementTransferIn})
		}
		return legs
	default:
		return nil
	}
}
