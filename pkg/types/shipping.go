package types

import "strings"

// ShippingInfo is the delivery destination captured on an order.
// It is stored as flat shipping_* columns on the owning row.
type ShippingInfo struct {
	RecipientName string  `json:"recipient_name" gorm:"column:recipient_name;not null" validate:"required,notblank,max=100"`
	Phone         string  `json:"phone" gorm:"column:phone;not null" validate:"required,max=32"`
	PostalCode    string  `json:"postal_code" gorm:"column:postal_code;not null" validate:"required,max=10"`
	Line1         string  `json:"line1" gorm:"column:line1;not null" validate:"required,notblank,max=255"`
	Line2         *string `json:"line2,omitempty" gorm:"column:line2" validate:"omitempty,max=255"`
	Memo          *string `json:"memo,omitempty" gorm:"column:memo" validate:"omitempty,max=255"`
}

// Normalize trims whitespace and drops empty optional fields.
func (s ShippingInfo) Normalize() ShippingInfo {
	s.RecipientName = strings.TrimSpace(s.RecipientName)
	s.Phone = strings.TrimSpace(s.Phone)
	s.PostalCode = strings.TrimSpace(s.PostalCode)
	s.Line1 = strings.TrimSpace(s.Line1)
	s.Line2 = trimOptional(s.Line2)
	s.Memo = trimOptional(s.Memo)
	return s
}

// Missing lists the required fields that are blank.
func (s ShippingInfo) Missing() []string {
	var missing []string
	if s.RecipientName == "" {
		missing = append(missing, "recipient_name")
	}
	if s.Phone == "" {
		missing = append(missing, "phone")
	}
	if s.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if s.Line1 == "" {
		missing = append(missing, "line1")
	}
	return missing
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
