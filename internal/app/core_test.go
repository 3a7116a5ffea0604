package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/restaurant-core/internal/cashshifts"
	"github.com/angelmondragon/restaurant-core/internal/inventory"
	"github.com/angelmondragon/restaurant-core/internal/orders"
	"github.com/angelmondragon/restaurant-core/internal/settings"
	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/db/dbtest"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testConfig() *config.Config {
	return &config.Config{
		Pricing:     config.PricingConfig{RoundingMode: config.RoundingHalfUp, BirthdayWindowDays: 7},
		Settings:    config.SettingsConfig{CacheTTL: time.Minute},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
	}
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{Config: testConfig()})
	require.Error(t, err)

	client, _ := dbtest.Client(t)
	_, err = New(Deps{DB: client})
	require.Error(t, err)
}

func TestCoreSellsAndConsumesStock(t *testing.T) {
	ctx := context.Background()
	client, conn := dbtest.Client(t)
	now := time.Date(2026, 3, 13, 18, 0, 0, 0, time.UTC)
	core, err := New(Deps{
		DB:     client,
		Config: testConfig(),
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)

	restaurant := &models.Restaurant{TenantID: uuid.New(), Name: "Bistro", Timezone: "UTC"}
	require.NoError(t, conn.Create(restaurant).Error)
	kitchen := &models.Warehouse{RestaurantID: restaurant.ID, Name: "Kitchen", IsDefault: true}
	require.NoError(t, conn.Create(kitchen).Error)
	flour := &models.Ingredient{RestaurantID: restaurant.ID, Name: "Flour", Unit: "kg", CostPrice: d("2")}
	require.NoError(t, conn.Create(flour).Error)
	pizza := &models.Dish{RestaurantID: restaurant.ID, Name: "Pizza", Price: d("450"), IsAvailable: true}
	require.NoError(t, conn.Create(pizza).Error)
	require.NoError(t, conn.Create(&models.RecipeItem{DishID: pizza.ID, IngredientID: flour.ID, Quantity: d("0.25")}).Error)

	_, err = core.Inventory.AdjustStock(ctx, nil, inventory.AdjustStockInput{
		RestaurantID: restaurant.ID,
		WarehouseID:  kitchen.ID,
		IngredientID: flour.ID,
		Delta:        d("5"),
		Type:         enums.StockMovementIncome,
	})
	require.NoError(t, err)

	order, err := core.Orders.CreateOrder(ctx, orders.CreateOrderInput{RestaurantID: restaurant.ID, Type: enums.OrderTypeDineIn})
	require.NoError(t, err)
	_, err = core.Orders.AddItem(ctx, orders.AddItemInput{OrderID: order.ID, DishID: pizza.ID, Quantity: 2})
	require.NoError(t, err)

	completed, applied, err := core.Orders.Complete(ctx, orders.CompleteInput{OrderID: order.ID, WarehouseID: &kitchen.ID})
	require.NoError(t, err)
	require.True(t, applied)
	require.True(t, d("900").Equal(completed.Total), "total %s", completed.Total)

	var stock models.IngredientStock
	require.NoError(t, conn.Where("warehouse_id = ? AND ingredient_id = ?", kitchen.ID, flour.ID).Take(&stock).Error)
	require.True(t, d("4.5").Equal(stock.Quantity), "stock %s", stock.Quantity)

	cashier := uuid.New()
	shift, created, err := core.CashShifts.OpenShift(ctx, cashshifts.OpenShiftInput{
		RestaurantID:  restaurant.ID,
		CashierID:     cashier,
		OpeningAmount: d("100"),
	})
	require.NoError(t, err)
	require.True(t, created)
	_, _, err = core.CashShifts.RecordOrderPayment(ctx, cashshifts.OrderPaymentInput{
		ShiftID:       shift.ID,
		OrderID:       order.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Amount:        completed.Total,
		UserID:        cashier,
	})
	require.NoError(t, err)

	reconciled, err := core.CashShifts.ReconcileOpenShifts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reconciled)

	events, err := core.OutboxRepo.ListByAggregate(ctx, enums.AggregateOrder, order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
}

func TestCoreUsesInjectedSettings(t *testing.T) {
	client, _ := dbtest.Client(t)
	static := settings.Static{settings.KeyAllowNegativeStock: "false"}
	core, err := New(Deps{DB: client, Config: testConfig(), Settings: static})
	require.NoError(t, err)

	allowed, err := core.Settings.Bool(context.Background(), uuid.New(), settings.KeyAllowNegativeStock, true)
	require.NoError(t, err)
	require.False(t, allowed)
}
