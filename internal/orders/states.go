package orders

import (
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

type transitionKey struct {
	from    enums.OrderStatus
	trigger enums.OrderTrigger
}

// transitionTable is the single source of truth for legal order moves. The
// two escape hatches (cancellation and admin force-complete) are handled in
// NextStatus because they apply from every non-terminal state.
var transitionTable = map[transitionKey]enums.OrderStatus{
	{enums.OrderStatusPending, enums.TriggerPaymentCompleted}: enums.OrderStatusProcessing,
	{enums.OrderStatusPending, enums.TriggerPaymentFailed}:    enums.OrderStatusFailed,
	{enums.OrderStatusPending, enums.TriggerDebtRecorded}:     enums.OrderStatusDebtPending,

	{enums.OrderStatusProcessing, enums.TriggerSellerMarksReady}:      enums.OrderStatusReadyForPickup,
	{enums.OrderStatusProcessing, enums.TriggerDeliveryStarted}:       enums.OrderStatusDeliveryPending,
	{enums.OrderStatusProcessing, enums.TriggerServiceStarted}:        enums.OrderStatusServicePending,
	{enums.OrderStatusProcessing, enums.TriggerCollectionRequested}:   enums.OrderStatusCollectionPending,
	{enums.OrderStatusProcessing, enums.TriggerClientPaymentRequired}: enums.OrderStatusClientPaymentPending,

	{enums.OrderStatusDeliveryPending, enums.TriggerSellerMarksDelivered}: enums.OrderStatusDeliveryComplete,

	{enums.OrderStatusDeliveryComplete, enums.TriggerBuyerConfirmsReceipt}:  enums.OrderStatusConfirmed,
	{enums.OrderStatusReadyForPickup, enums.TriggerBuyerConfirmsReceipt}:    enums.OrderStatusConfirmed,
	{enums.OrderStatusServicePending, enums.TriggerBuyerConfirmsReceipt}:    enums.OrderStatusConfirmed,
	{enums.OrderStatusCollectionPending, enums.TriggerBuyerConfirmsReceipt}: enums.OrderStatusConfirmed,

	{enums.OrderStatusClientPaymentPending, enums.TriggerPaymentCompleted}: enums.OrderStatusConfirmed,

	{enums.OrderStatusConfirmed, enums.TriggerBuyerConfirmsReceipt}: enums.OrderStatusCompleted,

	{enums.OrderStatusDebtPending, enums.TriggerDebtSettled}: enums.OrderStatusCompleted,
}

// NextStatus resolves the target status for a trigger, or false when the
// move is not legal from the current status.
func NextStatus(from enums.OrderStatus, trigger enums.OrderTrigger) (enums.OrderStatus, bool) {
	if from.IsTerminal() {
		return "", false
	}
	switch trigger {
	case enums.TriggerCancellationRequested:
		return enums.OrderStatusCancelled, true
	case enums.TriggerAdminForceComplete:
		return enums.OrderStatusCompleted, true
	}
	next, ok := transitionTable[transitionKey{from: from, trigger: trigger}]
	return next, ok
}
