package ledger

import (
	"fmt"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// TicketDelta returns the signed balance movement for a ticket status
// transition. Every supported transition is enumerated; anything else is an
// error rather than a silent zero, so a new status cannot slip through
// without a deliberate mapping.
func TicketDelta(from, to enums.TicketStatus, priceCents int) (int, error) {
	switch {
	case from == enums.TicketStatusPending && to == enums.TicketStatusPaid:
		return priceCents, nil
	case from == enums.TicketStatusPaid && to == enums.TicketStatusCancelled:
		return -priceCents, nil
	case from == enums.TicketStatusPaid && to == enums.TicketStatusRefunded:
		return -priceCents, nil
	case from == enums.TicketStatusPending && to == enums.TicketStatusCancelled:
		// Never paid, nothing was credited.
		return 0, nil
	default:
		return 0, fmt.Errorf("no ledger mapping for ticket transition %s -> %s", from, to)
	}
}

// PayoutDelta returns the signed balance movement for a payout status
// transition. Payout settlement does not move the holder balance (revenue was
// credited when the order completed); the zero is explicit so the settlement
// still produces a ledger entry.
func PayoutDelta(from, to enums.PayoutStatus) (int, error) {
	switch {
	case from == enums.PayoutStatusPending && to == enums.PayoutStatusProcessing:
		return 0, nil
	case from == enums.PayoutStatusProcessing && to == enums.PayoutStatusCompleted:
		return 0, nil
	case from == enums.PayoutStatusPending && to == enums.PayoutStatusCancelled:
		return 0, nil
	case from == enums.PayoutStatusProcessing && to == enums.PayoutStatusFailed:
		return 0, nil
	default:
		return 0, fmt.Errorf("no ledger mapping for payout transition %s -> %s", from, to)
	}
}
