// Package app assembles the restaurant core services over one database
// connection. Every cmd builds its graph here.
package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/restaurant-core/internal/cashshifts"
	"github.com/angelmondragon/restaurant-core/internal/inventory"
	"github.com/angelmondragon/restaurant-core/internal/ledger"
	"github.com/angelmondragon/restaurant-core/internal/loyalty"
	"github.com/angelmondragon/restaurant-core/internal/orders"
	"github.com/angelmondragon/restaurant-core/internal/pricing"
	"github.com/angelmondragon/restaurant-core/internal/promotions"
	"github.com/angelmondragon/restaurant-core/internal/sequences"
	"github.com/angelmondragon/restaurant-core/internal/settings"
	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/idempotency"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/redis"
)

// Deps are the infrastructure handles the core is built on. Redis and
// Registerer are optional.
type Deps struct {
	DB         *db.Client
	Redis      *redis.Client
	Config     *config.Config
	Logger     *logger.Logger
	Registerer prometheus.Registerer
	Clock      func() time.Time
	// Settings replaces the database-backed provider, e.g. with settings.Static.
	Settings settings.Provider
}

// Core holds the wired domain services.
type Core struct {
	Settings    settings.Provider
	Outbox      *outbox.Service
	OutboxRepo  *outbox.Repository
	DeadLetters *outbox.DLQRepository
	Ledger      ledger.Service
	Promotions  *promotions.Service
	Loyalty     *loyalty.Service
	Calculator  *pricing.Calculator
	Inventory   *inventory.Service
	Orders      orders.Service
	CashShifts  *cashshifts.Service
}

func New(deps Deps) (*Core, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	conn := deps.DB.DB()
	logg := deps.Logger
	domainMetrics := metrics.NewDomainMetrics(deps.Registerer)

	provider := deps.Settings
	if provider == nil {
		var cache settings.Cache
		if deps.Redis != nil {
			cache = deps.Redis
		}
		svc, err := settings.NewService(settings.NewRepository(conn), cache, deps.Config.Settings.CacheTTL, logg)
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		provider = svc
	}

	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	promoRepo := promotions.NewRepository(conn)
	promoSvc, err := promotions.NewService(promoRepo, logg)
	if err != nil {
		return nil, fmt.Errorf("promotions: %w", err)
	}
	loyaltySvc, err := loyalty.NewService(loyalty.NewRepository(conn), logg)
	if err != nil {
		return nil, fmt.Errorf("loyalty: %w", err)
	}
	calculator := pricing.NewCalculator(pricing.NewEvaluator(promoRepo, logg), provider, deps.Config.Pricing)

	numbers := sequences.NewRepository(conn)
	inventorySvc, err := inventory.NewService(inventory.Params{
		Repo:           inventory.NewRepository(conn),
		Tx:             deps.DB,
		Ledger:         ledgerSvc,
		Outbox:         outboxSvc,
		InvoiceNumbers: numbers.Counter(enums.SequenceInvoice),
		CheckNumbers:   numbers.Counter(enums.SequenceInventoryCheck),
		Settings:       provider,
		Metrics:        domainMetrics,
		Logger:         logg,
		Clock:          deps.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	ordersSvc, err := orders.NewService(orders.Params{
		Repo:       orders.NewRepository(conn),
		Tx:         deps.DB,
		Outbox:     outboxSvc,
		Numbers:    numbers.Counter(enums.SequenceOrder),
		Calculator: calculator,
		Promotions: promoSvc,
		Loyalty:    loyaltySvc,
		Stock:      inventorySvc,
		Metrics:    domainMetrics,
		Logger:     logg,
		Clock:      deps.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	shiftParams := cashshifts.Params{
		Repo:    cashshifts.NewRepository(conn),
		Tx:      deps.DB,
		Outbox:  outboxSvc,
		Metrics: domainMetrics,
		Logger:  logg,
		Clock:   deps.Clock,
	}
	if deps.Redis != nil {
		guard, err := idempotency.NewGuard(deps.Redis, deps.Config.Idempotency.TTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency guard: %w", err)
		}
		shiftParams.Guard = guard
	}
	shiftsSvc, err := cashshifts.NewService(shiftParams)
	if err != nil {
		return nil, fmt.Errorf("cash shifts: %w", err)
	}

	return &Core{
		Settings:    provider,
		Outbox:      outboxSvc,
		OutboxRepo:  outboxRepo,
		DeadLetters: outbox.NewDLQRepository(conn),
		Ledger:      ledgerSvc,
		Promotions:  promoSvc,
		Loyalty:     loyaltySvc,
		Calculator:  calculator,
		Inventory:   inventorySvc,
		Orders:      ordersSvc,
		CashShifts:  shiftsSvc,
	}, nil
}
