package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

const (
	confirmedMessage      = "payment confirmed"
	defaultFailureMessage = "payment confirmation failed"
	notSettledMessage     = "payment has not been settled by the gateway"
)

// ConfirmInput is the gateway success callback forwarded by the buyer.
type ConfirmInput struct {
	TenantID    uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	PaymentKey  string
	OrderNumber string
	Amount      int64
}

// ConfirmResult is returned once the order is PAID.
type ConfirmResult struct {
	Message     string              `json:"message"`
	OrderNumber string              `json:"orderNumber"`
	PaymentID   uuid.UUID           `json:"paymentId"`
	Method      enums.PaymentMethod `json:"method"`
	Recovered   bool                `json:"recovered,omitempty"`
}

// AmountDetails names the mismatching amounts.
type AmountDetails struct {
	Expected int64 `json:"expected"`
	Received int64 `json:"received"`
}
