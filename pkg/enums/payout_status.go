package enums

import "fmt"

// PayoutStatus tracks the lifecycle of a seller payout.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusCompleted,
	PayoutStatusFailed,
	PayoutStatusCancelled,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
