package payments

import (
	"strings"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// providerStatusMap translates the provider's status vocabulary into the
// canonical payment statuses. Keys are upper-cased trimmed provider strings.
var providerStatusMap = map[string]enums.PaymentStatus{
	"PENDING":          enums.PaymentStatusPending,
	"NEW":              enums.PaymentStatusPending,
	"CREATED":          enums.PaymentStatusPending,
	"AWAITING_PAYMENT": enums.PaymentStatusPending,

	"PROCESSING":  enums.PaymentStatusProcessing,
	"IN_PROGRESS": enums.PaymentStatusProcessing,
	"RETRY":       enums.PaymentStatusProcessing,

	"COMPLETE":   enums.PaymentStatusCompleted,
	"COMPLETED":  enums.PaymentStatusCompleted,
	"PAID":       enums.PaymentStatusCompleted,
	"SUCCESS":    enums.PaymentStatusCompleted,
	"SUCCESSFUL": enums.PaymentStatusCompleted,
	"SETTLED":    enums.PaymentStatusCompleted,

	"FAILED":   enums.PaymentStatusFailed,
	"FAILURE":  enums.PaymentStatusFailed,
	"ERROR":    enums.PaymentStatusFailed,
	"DECLINED": enums.PaymentStatusFailed,

	"CANCELLED": enums.PaymentStatusCancelled,
	"CANCELED":  enums.PaymentStatusCancelled,
	"VOIDED":    enums.PaymentStatusCancelled,

	"REFUNDED":   enums.PaymentStatusRefunded,
	"REVERSED":   enums.PaymentStatusRefunded,
	"CHARGEBACK": enums.PaymentStatusRefunded,
}

// MapProviderStatus normalizes a raw provider status string. Unrecognized
// strings map to pending with known=false so an unexpected vocabulary
// addition degrades to a retry on the next event instead of a wrong terminal
// state.
func MapProviderStatus(raw string) (enums.PaymentStatus, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if status, ok := providerStatusMap[normalized]; ok {
		return status, true
	}
	return enums.PaymentStatusPending, false
}
