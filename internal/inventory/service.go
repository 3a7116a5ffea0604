// Package inventory applies stock documents (invoices, inventory checks and
// order consumption) to ingredient stock. Every quantity change goes through
// AdjustStock, which locks the stock row and writes one ledger movement.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/internal/ledger"
	"github.com/angelmondragon/restaurant-core/internal/settings"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type numberSequence interface {
	Next(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID) (int64, error)
}

type settingsReader interface {
	Bool(ctx context.Context, restaurantID uuid.UUID, key string, def bool) (bool, error)
}

// Params wires the inventory service. Metrics, Logger and Clock are optional.
type Params struct {
	Repo           *Repository
	Tx             txRunner
	Ledger         ledger.Service
	Outbox         outboxPublisher
	InvoiceNumbers numberSequence
	CheckNumbers   numberSequence
	Settings       settingsReader
	Metrics        *metrics.DomainMetrics
	Logger         *logger.Logger
	Clock          func() time.Time
}

type Service struct {
	repo           *Repository
	tx             txRunner
	ledger         ledger.Service
	outbox         outboxPublisher
	invoiceNumbers numberSequence
	checkNumbers   numberSequence
	settings       settingsReader
	metrics        *metrics.DomainMetrics
	logg           *logger.Logger
	clock          func() time.Time
}

func NewService(p Params) (*Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.InvoiceNumbers == nil || p.CheckNumbers == nil {
		return nil, fmt.Errorf("document number sequences required")
	}
	if p.Settings == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:           p.Repo,
		tx:             p.Tx,
		ledger:         p.Ledger,
		outbox:         p.Outbox,
		invoiceNumbers: p.InvoiceNumbers,
		checkNumbers:   p.CheckNumbers,
		settings:       p.Settings,
		metrics:        p.Metrics,
		logg:           p.Logger,
		clock:          clock,
	}, nil
}

// AdjustStock applies a signed delta to one stock row and records the
// movement. With a nil tx it runs in its own transaction.
func (s *Service) AdjustStock(ctx context.Context, tx *gorm.DB, input AdjustStockInput) (*models.StockMovement, error) {
	if tx == nil {
		var movement *models.StockMovement
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			movement, err = s.AdjustStock(ctx, tx, input)
			return err
		})
		s.metrics.ObserveOperation("stock_adjust", err == nil, err)
		return movement, err
	}

	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta must be non-zero")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stock movement type %q", input.Type)
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.Warehouse(ctx, input.RestaurantID, input.WarehouseID); err != nil {
		return nil, notFoundOr(err, "warehouse not found", "load warehouse")
	}
	ingredient, err := repo.Ingredient(ctx, input.RestaurantID, input.IngredientID)
	if err != nil {
		return nil, notFoundOr(err, "ingredient not found", "load ingredient")
	}

	stock, err := repo.LockStock(ctx, input.WarehouseID, input.IngredientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ingredient stock")
	}
	before := stock.Quantity
	after := before.Add(input.Delta)
	if after.IsNegative() {
		allowed, err := s.settings.Bool(ctx, input.RestaurantID, settings.KeyAllowNegativeStock, true)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock settings")
		}
		if !allowed {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(Shortage{
				IngredientID: input.IngredientID,
				Required:     input.Delta.Neg(),
				Available:    before,
				Shortage:     after.Neg(),
			})
		}
	}
	if err := repo.SetStockQuantity(ctx, stock.ID, after); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ingredient stock")
	}

	cost := input.CostPerUnit
	if cost.IsZero() {
		cost = ingredient.CostPrice
	}
	return s.ledger.RecordMovement(ctx, tx, ledger.RecordMovementInput{
		RestaurantID:   input.RestaurantID,
		WarehouseID:    input.WarehouseID,
		IngredientID:   input.IngredientID,
		Type:           input.Type,
		Quantity:       input.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		CostPerUnit:    cost,
		DocumentType:   input.DocumentType,
		DocumentID:     input.DocumentID,
		UserID:         input.UserID,
		Reason:         input.Reason,
	})
}

// ConsumeForOrder writes sale movements for the recipes of the order's
// counted items. An order that already has movements is left untouched.
func (s *Service) ConsumeForOrder(ctx context.Context, tx *gorm.DB, input ConsumeInput) ([]models.StockMovement, error) {
	if input.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock consumption requires the order transaction")
	}
	order := input.Order

	consumed, err := s.ledger.HasMovements(ctx, tx, enums.DocumentTypeOrder, order.ID)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, nil
	}

	requirements, err := s.requirementsForItems(ctx, s.repo.WithTx(tx), order.Items)
	if err != nil {
		return nil, err
	}

	docType := enums.DocumentTypeOrder
	movements := make([]models.StockMovement, 0, len(requirements))
	for _, req := range requirements {
		movement, err := s.AdjustStock(ctx, tx, AdjustStockInput{
			RestaurantID: order.RestaurantID,
			WarehouseID:  input.WarehouseID,
			IngredientID: req.IngredientID,
			Delta:        req.Quantity.Neg(),
			Type:         enums.StockMovementSale,
			DocumentType: &docType,
			DocumentID:   &order.ID,
			UserID:       input.UserID,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, *movement)
	}
	return movements, nil
}

// OrderRequirements sums the recipe ingredients of the given order items.
func (s *Service) OrderRequirements(ctx context.Context, items []models.OrderItem) ([]Requirement, error) {
	return s.requirementsForItems(ctx, s.repo, items)
}

func (s *Service) requirementsForItems(ctx context.Context, repo *Repository, items []models.OrderItem) ([]Requirement, error) {
	portions := make(map[uuid.UUID]int64)
	dishIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if !item.Status.CountsTowardTotal() || item.Quantity <= 0 {
			continue
		}
		if _, seen := portions[item.DishID]; !seen {
			dishIDs = append(dishIDs, item.DishID)
		}
		portions[item.DishID] += int64(item.Quantity)
	}
	recipes, err := repo.Recipes(ctx, dishIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipes")
	}

	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, r := range recipes {
		qty := r.Quantity.Mul(decimal.NewFromInt(portions[r.DishID]))
		totals[r.IngredientID] = totals[r.IngredientID].Add(qty)
	}
	return sortedRequirements(totals), nil
}

// CheckAvailability reports the ingredients the warehouse cannot cover.
// Shortage is never an error.
func (s *Service) CheckAvailability(ctx context.Context, warehouseID uuid.UUID, requirements []Requirement) (*AvailabilityReport, error) {
	if warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	totals := make(map[uuid.UUID]decimal.Decimal, len(requirements))
	for _, req := range requirements {
		if req.Quantity.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "required quantity must be non-negative")
		}
		totals[req.IngredientID] = totals[req.IngredientID].Add(req.Quantity)
	}
	merged := sortedRequirements(totals)

	ids := make([]uuid.UUID, 0, len(merged))
	for _, req := range merged {
		ids = append(ids, req.IngredientID)
	}
	stocks, err := s.repo.Stocks(ctx, warehouseID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stocks")
	}
	onHand := make(map[uuid.UUID]decimal.Decimal, len(stocks))
	for _, st := range stocks {
		onHand[st.IngredientID] = st.Quantity
	}

	report := &AvailabilityReport{Available: true, Missing: []Shortage{}}
	for _, req := range merged {
		available := onHand[req.IngredientID]
		if available.GreaterThanOrEqual(req.Quantity) {
			continue
		}
		report.Available = false
		report.Missing = append(report.Missing, Shortage{
			IngredientID: req.IngredientID,
			Required:     req.Quantity,
			Available:    available,
			Shortage:     req.Quantity.Sub(available),
		})
	}
	return report, nil
}

// ListMovements pages through the restaurant's stock ledger.
func (s *Service) ListMovements(ctx context.Context, params ledger.ListParams) (*ledger.ListResult, error) {
	return s.ledger.List(ctx, params)
}

func sortedRequirements(totals map[uuid.UUID]decimal.Decimal) []Requirement {
	out := make([]Requirement, 0, len(totals))
	for id, qty := range totals {
		if qty.IsZero() {
			continue
		}
		out = append(out, Requirement{IngredientID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IngredientID.String() < out[j].IngredientID.String()
	})
	return out
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}
