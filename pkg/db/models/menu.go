package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID  `gorm:"column:restaurant_id;type:uuid;not null;index"`
	ParentID     *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	Name         string     `gorm:"column:name;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Dish is a sellable menu entry. Deleted dishes stay readable for order history.
type Dish struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;index"`
	CategoryID   *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Name         string          `gorm:"column:name;not null"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsAvailable  bool            `gorm:"column:is_available;not null"`
	Recipe       []RecipeItem    `gorm:"foreignKey:DishID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (d *Dish) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// RecipeItem is the quantity of an ingredient consumed by one portion of a dish.
type RecipeItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DishID       uuid.UUID       `gorm:"column:dish_id;type:uuid;not null;uniqueIndex:ux_recipe_items_dish_ingredient"`
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null;uniqueIndex:ux_recipe_items_dish_ingredient"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
}

func (r *RecipeItem) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
