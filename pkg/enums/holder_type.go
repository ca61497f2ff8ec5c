package enums

import "fmt"

// HolderType identifies which kind of record owns a running balance.
type HolderType string

const (
	HolderTypeSeller    HolderType = "seller"
	HolderTypeEvent     HolderType = "event"
	HolderTypeOrganizer HolderType = "organizer"
)

var validHolderTypes = []HolderType{
	HolderTypeSeller,
	HolderTypeEvent,
	HolderTypeOrganizer,
}

// String implements fmt.Stringer.
func (h HolderType) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HolderType.
func (h HolderType) IsValid() bool {
	for _, candidate := range validHolderTypes {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHolderType converts raw input into a HolderType.
func ParseHolderType(value string) (HolderType, error) {
	for _, candidate := range validHolderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid holder type %q", value)
}
