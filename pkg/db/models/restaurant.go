package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// Restaurant is the tenant-scoped venue. Its row is locked to serialize
// per-restaurant critical sections such as opening a shift.
type Restaurant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Timezone  string    `gorm:"column:timezone;not null;default:'UTC'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Restaurant) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// Location resolves the restaurant timezone, falling back to UTC.
func (r *Restaurant) Location() *time.Location {
	if r == nil || r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RestaurantSetting is a single key/value override for a restaurant.
type RestaurantSetting struct {
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	Key          string    `gorm:"column:key;type:varchar(128);primaryKey"`
	Value        string    `gorm:"column:value;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// DocumentSequence is the locked counter behind invoice and inventory-check numbers.
type DocumentSequence struct {
	RestaurantID uuid.UUID          `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	Kind         enums.SequenceKind `gorm:"column:kind;type:varchar(32);primaryKey"`
	LastValue    int64              `gorm:"column:last_value;not null;default:0"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
