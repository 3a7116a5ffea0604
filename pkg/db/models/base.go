package models

import "github.com/google/uuid"

// assignID gives a row its primary key before insert so ids never depend on a
// database-side default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Restaurant{},
		&RestaurantSetting{},
		&DocumentSequence{},
		&Category{},
		&Dish{},
		&RecipeItem{},
		&LoyaltyLevel{},
		&Customer{},
		&BonusSetting{},
		&BonusTransaction{},
		&Promotion{},
		&PromoCode{},
		&PromotionUsage{},
		&Order{},
		&OrderItem{},
		&CashShift{},
		&CashOperation{},
		&Warehouse{},
		&Ingredient{},
		&IngredientStock{},
		&Invoice{},
		&InvoiceItem{},
		&InventoryCheck{},
		&InventoryCheckItem{},
		&StockMovement{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
