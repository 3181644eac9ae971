package enums

import "fmt"

// InventoryStatus tracks whether a unique device can be sold.
type InventoryStatus string

const (
	InventoryStatusAvailable   InventoryStatus = "AVAILABLE"
	InventoryStatusReserved    InventoryStatus = "RESERVED"
	InventoryStatusSold        InventoryStatus = "SOLD"
	InventoryStatusUnavailable InventoryStatus = "UNAVAILABLE"
)

var validInventoryStatuses = []InventoryStatus{
	InventoryStatusAvailable,
	InventoryStatusReserved,
	InventoryStatusSold,
	InventoryStatusUnavailable,
}

// String implements fmt.Stringer.
func (s InventoryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InventoryStatus.
func (s InventoryStatus) IsValid() bool {
	for _, candidate := range validInventoryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInventoryStatus converts raw input into an InventoryStatus.
func ParseInventoryStatus(value string) (InventoryStatus, error) {
	for _, candidate := range validInventoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory status %q", value)
}
