package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is the settlement channel reported by the payment gateway.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodTransfer       PaymentMethod = "TRANSFER"
	PaymentMethodVirtualAccount PaymentMethod = "VIRTUAL_ACCOUNT"
	PaymentMethodEasyPay        PaymentMethod = "EASY_PAY"
	PaymentMethodMobile         PaymentMethod = "MOBILE"
	PaymentMethodUnknown        PaymentMethod = "UNKNOWN"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodTransfer,
	PaymentMethodVirtualAccount,
	PaymentMethodEasyPay,
	PaymentMethodMobile,
	PaymentMethodUnknown,
}

// gateway method labels, localized and API forms
var paymentMethodAliases = map[string]PaymentMethod{
	"카드":              PaymentMethodCard,
	"CARD":            PaymentMethodCard,
	"계좌이체":            PaymentMethodTransfer,
	"TRANSFER":        PaymentMethodTransfer,
	"가상계좌":            PaymentMethodVirtualAccount,
	"VIRTUAL_ACCOUNT": PaymentMethodVirtualAccount,
	"간편결제":            PaymentMethodEasyPay,
	"EASY_PAY":        PaymentMethodEasyPay,
	"휴대폰":             PaymentMethodMobile,
	"MOBILE_PHONE":    PaymentMethodMobile,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCard distinguishes card captures from bank-transfer style settlement.
func (p PaymentMethod) IsCard() bool {
	return p == PaymentMethodCard
}

// ClassifyPaymentMethod maps the gateway's method label onto a PaymentMethod.
func ClassifyPaymentMethod(raw string) PaymentMethod {
	key := strings.TrimSpace(raw)
	if method, ok := paymentMethodAliases[key]; ok {
		return method
	}
	if method, ok := paymentMethodAliases[strings.ToUpper(key)]; ok {
		return method
	}
	return PaymentMethodUnknown
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
