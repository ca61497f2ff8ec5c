package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending              OrderStatus = "PENDING"
	OrderStatusProcessing           OrderStatus = "PROCESSING"
	OrderStatusDeliveryPending      OrderStatus = "DELIVERY_PENDING"
	OrderStatusDeliveryComplete     OrderStatus = "DELIVERY_COMPLETE"
	OrderStatusServicePending       OrderStatus = "SERVICE_PENDING"
	OrderStatusCollectionPending    OrderStatus = "COLLECTION_PENDING"
	OrderStatusReadyForPickup       OrderStatus = "READY_FOR_PICKUP"
	OrderStatusConfirmed            OrderStatus = "CONFIRMED"
	OrderStatusClientPaymentPending OrderStatus = "CLIENT_PAYMENT_PENDING"
	OrderStatusDebtPending          OrderStatus = "DEBT_PENDING"
	OrderStatusCompleted            OrderStatus = "COMPLETED"
	OrderStatusCancelled            OrderStatus = "CANCELLED"
	OrderStatusFailed               OrderStatus = "FAILED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusDeliveryPending,
	OrderStatusDeliveryComplete,
	OrderStatusServicePending,
	OrderStatusCollectionPending,
	OrderStatusReadyForPickup,
	OrderStatusConfirmed,
	OrderStatusClientPaymentPending,
	OrderStatusDebtPending,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusFailed,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
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
