// Package ledger records the append-only stock movement audit trail. Every
// change of an ingredient stock quantity writes exactly one movement whose
// before and after quantities chain with the previous one.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/pagination"
)

// Service defines operations that record and read stock movements.
type Service interface {
	RecordMovement(ctx context.Context, tx *gorm.DB, input RecordMovementInput) (*models.StockMovement, error)
	HasMovements(ctx context.Context, tx *gorm.DB, documentType enums.DocumentType, documentID uuid.UUID) (bool, error)
	ByDocument(ctx context.Context, documentType enums.DocumentType, documentID uuid.UUID) ([]models.StockMovement, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo Repository
}

// RecordMovementInput captures the immutable data of one stock change.
// Quantity is the signed delta; QuantityAfter must equal QuantityBefore+Quantity.
type RecordMovementInput struct {
	RestaurantID   uuid.UUID
	WarehouseID    uuid.UUID
	IngredientID   uuid.UUID
	Type           enums.StockMovementType
	Quantity       decimal.Decimal
	QuantityBefore decimal.Decimal
	QuantityAfter  decimal.Decimal
	CostPerUnit    decimal.Decimal
	DocumentType   *enums.DocumentType
	DocumentID     *uuid.UUID
	UserID         *uuid.UUID
	Reason         *string
}

// ListParams filters the movement history of a restaurant.
type ListParams struct {
	pagination.Params
	RestaurantID uuid.UUID
	WarehouseID  *uuid.UUID
	IngredientID *uuid.UUID
	DocumentID   *uuid.UUID
	Type         *enums.StockMovementType
}

type ListResult struct {
	Items  []models.StockMovement `json:"items"`
	Cursor string                 `json:"cursor,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordMovement(ctx context.Context, tx *gorm.DB, input RecordMovementInput) (*models.StockMovement, error) {
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	if input.IngredientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stock movement type %q", input.Type)
	}
	if input.Quantity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement quantity must be non-zero")
	}
	if !input.QuantityBefore.Add(input.Quantity).Equal(input.QuantityAfter) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "movement quantities do not chain").
			WithDetails(map[string]string{
				"before":   input.QuantityBefore.String(),
				"quantity": input.Quantity.String(),
				"after":    input.QuantityAfter.String(),
			})
	}

	movement := &models.StockMovement{
		RestaurantID:   input.RestaurantID,
		WarehouseID:    input.WarehouseID,
		IngredientID:   input.IngredientID,
		Type:           input.Type,
		Quantity:       input.Quantity,
		QuantityBefore: input.QuantityBefore,
		QuantityAfter:  input.QuantityAfter,
		CostPerUnit:    money.Store(input.CostPerUnit),
		TotalCost:      money.Store(input.Quantity.Abs().Mul(input.CostPerUnit)),
		DocumentType:   input.DocumentType,
		DocumentID:     input.DocumentID,
		UserID:         input.UserID,
		Reason:         input.Reason,
	}
	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
	}
	return movement, nil
}

func (s *service) HasMovements(ctx context.Context, tx *gorm.DB, documentType enums.DocumentType, documentID uuid.UUID) (bool, error) {
	if documentID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "document id is required")
	}
	movements, err := s.repo.WithTx(tx).ListByDocument(ctx, documentType, documentID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list document movements")
	}
	return len(movements) > 0, nil
}

func (s *service) ByDocument(ctx context.Context, documentType enums.DocumentType, documentID uuid.UUID) ([]models.StockMovement, error) {
	movements, err := s.repo.ListByDocument(ctx, documentType, documentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list document movements")
	}
	return movements, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	query := listQuery{
		RestaurantID: params.RestaurantID,
		WarehouseID:  params.WarehouseID,
		IngredientID: params.IngredientID,
		DocumentID:   params.DocumentID,
		Type:         params.Type,
		Limit:        params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}
