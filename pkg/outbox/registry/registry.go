// Package registry maps outbox event types to their topic and payload shape
// and decodes stored rows for the publisher.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/payloads"
)

// stream groups event types that share a topic.
type stream int

const (
	streamEvents stream = iota
	streamCashShifts
	streamInventory
)

type route struct {
	eventType enums.OutboxEventType
	stream    stream
	payload   func() any
}

var routes = []route{
	{enums.EventOrderCompleted, streamEvents, func() any { return &payloads.OrderCompletedEvent{} }},
	{enums.EventOrderCanceled, streamEvents, func() any { return &payloads.OrderCanceledEvent{} }},
	{enums.EventDiscountApplied, streamEvents, func() any { return &payloads.DiscountAppliedEvent{} }},
	{enums.EventShiftOpened, streamCashShifts, func() any { return &payloads.ShiftOpenedEvent{} }},
	{enums.EventShiftClosed, streamCashShifts, func() any { return &payloads.ShiftClosedEvent{} }},
	{enums.EventInvoiceCompleted, streamInventory, func() any { return &payloads.InvoiceCompletedEvent{} }},
	{enums.EventInventoryCheckCompleted, streamInventory, func() any { return &payloads.InventoryCheckCompletedEvent{} }},
}

// EventDescriptor is the routing entry of one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// OrderingKey is the Pub/Sub ordering key for the event.
func (r *ResolvedEvent) OrderingKey() string {
	if r == nil {
		return ""
	}
	return r.Envelope.OrderingKey()
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) NonRetryableError {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes cash shift and inventory events to their dedicated
// topics when configured. Everything else, and any stream without a
// dedicated topic, goes to the shared events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, errors.New("events topic is required")
	}
	topics := map[stream]string{
		streamEvents:     cfg.EventsTopic,
		streamCashShifts: cfg.TopicFor(cfg.CashShiftsTopic),
		streamInventory:  cfg.TopicFor(cfg.InventoryTopic),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for _, rt := range routes {
		reg.entries[rt.eventType] = EventDescriptor{
			EventType:      rt.eventType,
			AggregateType:  rt.eventType.Aggregate(),
			Topic:          topics[rt.stream],
			PayloadFactory: rt.payload,
		}
	}
	return reg, nil
}

// Topics lists the distinct topics events are routed to, sorted.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	topics := []string{}
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve validates the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, nonRetryable("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if errors.Is(err, outbox.ErrEmptyData) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if envelope.EventType != "" && envelope.EventType != event.EventType {
		return nil, nonRetryable("envelope carries %s but row is %s", envelope.EventType, event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
