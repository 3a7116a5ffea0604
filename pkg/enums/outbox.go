package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateCashShift      OutboxAggregateType = "cash_shift"
	AggregateInvoice        OutboxAggregateType = "invoice"
	AggregateInventoryCheck OutboxAggregateType = "inventory_check"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCashShift,
	AggregateInvoice,
	AggregateInventoryCheck,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain signal written to the outbox.
type OutboxEventType string

const (
	EventOrderCompleted          OutboxEventType = "order_completed"
	EventOrderCanceled           OutboxEventType = "order_canceled"
	EventDiscountApplied         OutboxEventType = "discount_applied"
	EventShiftOpened             OutboxEventType = "shift_opened"
	EventShiftClosed             OutboxEventType = "shift_closed"
	EventInvoiceCompleted        OutboxEventType = "invoice_completed"
	EventInventoryCheckCompleted OutboxEventType = "inventory_check_completed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCompleted,
	EventOrderCanceled,
	EventDiscountApplied,
	EventShiftOpened,
	EventShiftClosed,
	EventInvoiceCompleted,
	EventInventoryCheckCompleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// Aggregate returns the aggregate type every event of this type is keyed by.
// Unknown event types return an empty value.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventOrderCompleted, EventOrderCanceled, EventDiscountApplied:
		return AggregateOrder
	case EventShiftOpened, EventShiftClosed:
		return AggregateCashShift
	case EventInvoiceCompleted:
		return AggregateInvoice
	case EventInventoryCheckCompleted:
		return AggregateInventoryCheck
	}
	return ""
}
