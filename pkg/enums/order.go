package enums

import "fmt"

// OrderType describes how an order is fulfilled.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

var validOrderTypes = []OrderType{
	OrderTypeDineIn,
	OrderTypeTakeaway,
	OrderTypeDelivery,
	OrderTypePickup,
}

// String implements fmt.Stringer.
func (t OrderType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known OrderType.
func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusCooking    OrderStatus = "cooking"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCanceled   OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusConfirmed,
	OrderStatusCooking,
	OrderStatusReady,
	OrderStatusDelivering,
	OrderStatusCompleted,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further mutation is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// OrderItemStatus tracks a line through the kitchen.
type OrderItemStatus string

const (
	OrderItemStatusNew      OrderItemStatus = "new"
	OrderItemStatusSent     OrderItemStatus = "sent"
	OrderItemStatusCooking  OrderItemStatus = "cooking"
	OrderItemStatusReady    OrderItemStatus = "ready"
	OrderItemStatusServed   OrderItemStatus = "served"
	OrderItemStatusCanceled OrderItemStatus = "canceled"
	OrderItemStatusVoided   OrderItemStatus = "voided"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusNew,
	OrderItemStatusSent,
	OrderItemStatusCooking,
	OrderItemStatusReady,
	OrderItemStatusServed,
	OrderItemStatusCanceled,
	OrderItemStatusVoided,
}

var orderItemTransitions = map[OrderItemStatus][]OrderItemStatus{
	OrderItemStatusNew:     {OrderItemStatusSent, OrderItemStatusCanceled},
	OrderItemStatusSent:    {OrderItemStatusCooking, OrderItemStatusCanceled, OrderItemStatusVoided},
	OrderItemStatusCooking: {OrderItemStatusReady, OrderItemStatusVoided},
	OrderItemStatusReady:   {OrderItemStatusServed, OrderItemStatusVoided},
	OrderItemStatusServed:  {OrderItemStatusVoided},
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CountsTowardTotal reports whether the line contributes to the order subtotal.
func (s OrderItemStatus) CountsTowardTotal() bool {
	return s != OrderItemStatusCanceled && s != OrderItemStatusVoided
}

// CanTransitionTo reports whether next is reachable from s.
func (s OrderItemStatus) CanTransitionTo(next OrderItemStatus) bool {
	for _, candidate := range orderItemTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
