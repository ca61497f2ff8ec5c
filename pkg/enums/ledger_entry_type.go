package enums

import "fmt"

// LedgerEntryType classifies an append-only balance-affecting event.
type LedgerEntryType string

const (
	LedgerEntryTicketSale           LedgerEntryType = "ticket_sale"
	LedgerEntryTicketReversal       LedgerEntryType = "ticket_reversal"
	LedgerEntryOrderRevenue         LedgerEntryType = "order_revenue"
	LedgerEntryOrderRevenueReversal LedgerEntryType = "order_revenue_reversal"
	LedgerEntryPayoutSettlement     LedgerEntryType = "payout_settlement"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTicketSale,
	LedgerEntryTicketReversal,
	LedgerEntryOrderRevenue,
	LedgerEntryOrderRevenueReversal,
	LedgerEntryPayoutSettlement,
}

// String implements fmt.Stringer.
func (l LedgerEntryType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (l LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
