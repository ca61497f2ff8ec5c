package enums

import "fmt"

// TicketStatus tracks the lifecycle of an issued ticket.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusPaid      TicketStatus = "paid"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusPaid,
	TicketStatusCancelled,
	TicketStatusRefunded,
}

// String implements fmt.Stringer.
func (t TicketStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TicketStatus.
func (t TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
