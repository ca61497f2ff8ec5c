package enums

import "fmt"

// OrderTrigger names an event submitted to the order state machine.
type OrderTrigger string

const (
	TriggerPaymentCompleted      OrderTrigger = "payment_completed"
	TriggerPaymentFailed         OrderTrigger = "payment_failed"
	TriggerDebtRecorded          OrderTrigger = "debt_recorded"
	TriggerSellerMarksReady      OrderTrigger = "seller_marks_ready"
	TriggerDeliveryStarted       OrderTrigger = "delivery_started"
	TriggerSellerMarksDelivered  OrderTrigger = "seller_marks_delivered"
	TriggerServiceStarted        OrderTrigger = "service_started"
	TriggerCollectionRequested   OrderTrigger = "collection_requested"
	TriggerClientPaymentRequired OrderTrigger = "client_payment_required"
	TriggerBuyerConfirmsReceipt  OrderTrigger = "buyer_confirms_receipt"
	TriggerAdminForceComplete    OrderTrigger = "admin_force_complete"
	TriggerCancellationRequested OrderTrigger = "cancellation_requested"
	TriggerDebtSettled           OrderTrigger = "debt_settled"
)

var validOrderTriggers = []OrderTrigger{
	TriggerPaymentCompleted,
	TriggerPaymentFailed,
	TriggerDebtRecorded,
	TriggerSellerMarksReady,
	TriggerDeliveryStarted,
	TriggerSellerMarksDelivered,
	TriggerServiceStarted,
	TriggerCollectionRequested,
	TriggerClientPaymentRequired,
	TriggerBuyerConfirmsReceipt,
	TriggerAdminForceComplete,
	TriggerCancellationRequested,
	TriggerDebtSettled,
}

// String implements fmt.Stringer.
func (o OrderTrigger) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderTrigger.
func (o OrderTrigger) IsValid() bool {
	for _, candidate := range validOrderTriggers {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderTrigger converts raw input into an OrderTrigger.
func ParseOrderTrigger(value string) (OrderTrigger, error) {
	for _, candidate := range validOrderTriggers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order trigger %q", value)
}
