package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// OutboxEvent is a domain signal written in the same transaction as the
// state change it describes. RestaurantID is copied from the envelope actor
// so the publisher can order messages per restaurant without decoding.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:varchar(64);not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:varchar(32);not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	RestaurantID  *uuid.UUID                `gorm:"column:restaurant_id;type:uuid"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// Pending reports whether the publisher still owes this row a delivery.
func (e OutboxEvent) Pending(maxAttempts int) bool {
	if e.PublishedAt != nil {
		return false
	}
	return maxAttempts <= 0 || e.AttemptCount < maxAttempts
}
