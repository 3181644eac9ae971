package enums

import "fmt"

// SellRequestStatus tracks a customer's device intake.
type SellRequestStatus string

const (
	SellRequestStatusPending    SellRequestStatus = "PENDING"
	SellRequestStatusQuoted     SellRequestStatus = "QUOTED"
	SellRequestStatusAccepted   SellRequestStatus = "ACCEPTED"
	SellRequestStatusShipping   SellRequestStatus = "SHIPPING"
	SellRequestStatusInspecting SellRequestStatus = "INSPECTING"
	SellRequestStatusCompleted  SellRequestStatus = "COMPLETED"
	SellRequestStatusCancelled  SellRequestStatus = "CANCELLED"
)

var validSellRequestStatuses = []SellRequestStatus{
	SellRequestStatusPending,
	SellRequestStatusQuoted,
	SellRequestStatusAccepted,
	SellRequestStatusShipping,
	SellRequestStatusInspecting,
	SellRequestStatusCompleted,
	SellRequestStatusCancelled,
}

// String implements fmt.Stringer.
func (s SellRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SellRequestStatus.
func (s SellRequestStatus) IsValid() bool {
	for _, candidate := range validSellRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSellRequestStatus converts raw input into a SellRequestStatus.
func ParseSellRequestStatus(value string) (SellRequestStatus, error) {
	for _, candidate := range validSellRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sell request status %q", value)
}
