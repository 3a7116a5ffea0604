package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

const (
	// EnvelopeVersion is the envelope layout written by Emit.
	EnvelopeVersion = 1
	// Source is stamped on every envelope produced by this service.
	Source = "restaurant-core"
)

// ErrEmptyData is returned when an envelope carries no event body.
var ErrEmptyData = errors.New("envelope data is empty")

// ActorRef identifies the restaurant, and the staff member when known, that
// caused the event.
type ActorRef struct {
	UserID       *uuid.UUID `json:"userId,omitempty"`
	RestaurantID uuid.UUID  `json:"restaurantId"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published verbatim as the message body.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"eventId"`
	EventType  enums.OutboxEventType `json:"eventType,omitempty"`
	Source     string                `json:"source,omitempty"`
	OccurredAt time.Time             `json:"occurredAt"`
	Actor      *ActorRef             `json:"actor,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

// RestaurantID returns the actor restaurant, or nil for system events.
func (e PayloadEnvelope) RestaurantID() *uuid.UUID {
	if e.Actor == nil || e.Actor.RestaurantID == uuid.Nil {
		return nil
	}
	id := e.Actor.RestaurantID
	return &id
}

// OrderingKey keeps the events of one restaurant in commit order on the
// topic. System events have no key.
func (e PayloadEnvelope) OrderingKey() string {
	if id := e.RestaurantID(); id != nil {
		return id.String()
	}
	return ""
}

// DecodeEnvelope parses a stored payload. An envelope without data is
// rejected with ErrEmptyData.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	trimmed := bytes.TrimSpace(env.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return env, ErrEmptyData
	}
	return env, nil
}
