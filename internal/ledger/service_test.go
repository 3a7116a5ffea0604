package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/pagination"
)

type fakeRepository struct {
	createFn     func(ctx context.Context, movement *models.StockMovement) error
	byDocument   []models.StockMovement
	lastQuery    listQuery
	listRows     []models.StockMovement
	listNext     *pagination.Cursor
	boundToTxCnt int
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	if tx != nil {
		f.boundToTxCnt++
	}
	return f
}

func (f *fakeRepository) Create(ctx context.Context, movement *models.StockMovement) error {
	if f.createFn != nil {
		return f.createFn(ctx, movement)
	}
	return nil
}

func (f *fakeRepository) ListByDocument(context.Context, enums.DocumentType, uuid.UUID) ([]models.StockMovement, error) {
	return f.byDocument, nil
}

func (f *fakeRepository) List(_ context.Context, query listQuery) ([]models.StockMovement, *pagination.Cursor, error) {
	f.lastQuery = query
	return f.listRows, f.listNext, nil
}

func validInput() RecordMovementInput {
	docType := enums.DocumentTypeInvoice
	docID := uuid.New()
	return RecordMovementInput{
		RestaurantID:   uuid.New(),
		WarehouseID:    uuid.New(),
		IngredientID:   uuid.New(),
		Type:           enums.StockMovementExpense,
		Quantity:       decimal.RequireFromString("-1.5"),
		QuantityBefore: decimal.RequireFromString("4"),
		QuantityAfter:  decimal.RequireFromString("2.5"),
		CostPerUnit:    decimal.RequireFromString("3"),
		DocumentType:   &docType,
		DocumentID:     &docID,
	}
}

func TestService_RecordMovement(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.StockMovement
	repo.createFn = func(ctx context.Context, movement *models.StockMovement) error {
		created = movement
		return nil
	}

	input := validInput()
	got, err := svc.RecordMovement(context.Background(), &gorm.DB{}, input)
	if err != nil {
		t.Fatalf("RecordMovement error: %v", err)
	}
	if created == nil || got != created {
		t.Fatal("expected the created movement to be returned")
	}
	if repo.boundToTxCnt != 1 {
		t.Fatalf("expected repository bound to the caller transaction, got %d", repo.boundToTxCnt)
	}
	if !created.TotalCost.Equal(decimal.RequireFromString("4.5")) {
		t.Fatalf("total cost should use the absolute quantity, got %s", created.TotalCost)
	}
	if created.DocumentID == nil || *created.DocumentID != *input.DocumentID {
		t.Fatalf("document link missing: %+v", created)
	}
}

func TestService_RecordMovementValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecordMovementInput)
		code   pkgerrors.Code
	}{
		{name: "missing restaurant", mutate: func(in *RecordMovementInput) { in.RestaurantID = uuid.Nil }, code: pkgerrors.CodeValidation},
		{name: "missing warehouse", mutate: func(in *RecordMovementInput) { in.WarehouseID = uuid.Nil }, code: pkgerrors.CodeValidation},
		{name: "missing ingredient", mutate: func(in *RecordMovementInput) { in.IngredientID = uuid.Nil }, code: pkgerrors.CodeValidation},
		{name: "invalid type", mutate: func(in *RecordMovementInput) { in.Type = "not_real" }, code: pkgerrors.CodeValidation},
		{name: "zero quantity", mutate: func(in *RecordMovementInput) { in.Quantity = decimal.Zero }, code: pkgerrors.CodeValidation},
		{name: "broken chain", mutate: func(in *RecordMovementInput) { in.QuantityAfter = decimal.RequireFromString("3") }, code: pkgerrors.CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := svc.RecordMovement(context.Background(), nil, input)
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestService_RecordMovementRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, movement *models.StockMovement) error {
		return expectedErr
	}

	if _, err := svc.RecordMovement(context.Background(), nil, validInput()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_HasMovements(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	docID := uuid.New()
	has, err := svc.HasMovements(context.Background(), nil, enums.DocumentTypeOrder, docID)
	if err != nil || has {
		t.Fatalf("expected no movements, got %v %v", has, err)
	}

	repo.byDocument = []models.StockMovement{{ID: uuid.New()}}
	has, err = svc.HasMovements(context.Background(), nil, enums.DocumentTypeOrder, docID)
	if err != nil || !has {
		t.Fatalf("expected movements, got %v %v", has, err)
	}

	if _, err := svc.HasMovements(context.Background(), nil, enums.DocumentTypeOrder, uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_ListEncodesCursor(t *testing.T) {
	next := &pagination.Cursor{ID: uuid.New()}
	repo := &fakeRepository{listNext: next}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	warehouseID := uuid.New()
	result, err := svc.List(context.Background(), ListParams{
		Params:       pagination.Params{Limit: 10},
		RestaurantID: uuid.New(),
		WarehouseID:  &warehouseID,
	})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if result.Cursor != pagination.EncodeCursor(*next) {
		t.Fatalf("unexpected cursor %q", result.Cursor)
	}
	if repo.lastQuery.Limit != 10 || repo.lastQuery.WarehouseID == nil || *repo.lastQuery.WarehouseID != warehouseID {
		t.Fatalf("filters not forwarded: %+v", repo.lastQuery)
	}

	if _, err := svc.List(context.Background(), ListParams{RestaurantID: uuid.New(), Params: pagination.Params{Cursor: "%%%"}}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected invalid cursor validation error, got %v", err)
	}
}
