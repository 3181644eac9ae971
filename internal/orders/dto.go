package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/types"
)

// CancelReasonPaymentTimeout marks orders cancelled by the pending-payment TTL job.
const CancelReasonPaymentTimeout = "payment_timeout"

const (
	defaultExpireBatch     = 100
	maxOrderNumberAttempts = 3
)

// ItemRequest references one device in a create request.
type ItemRequest struct {
	ItemID   uuid.UUID
	Quantity int
}

// CreateInput carries the data needed to place an order.
type CreateInput struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Items    []ItemRequest
	Shipping types.ShippingInfo
}

// CancelInput identifies the order to cancel and who is asking.
type CancelInput struct {
	TenantID    uuid.UUID
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Reason      string
}

// TransitionInput is an operator fulfilment move.
type TransitionInput struct {
	TenantID    uuid.UUID
	OrderID     uuid.UUID
	To          enums.OrderStatus
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// GetInput scopes an order read to its owner unless the actor is staff.
type GetInput struct {
	TenantID    uuid.UUID
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// ExpireResult summarizes an ExpireStale run.
type ExpireResult struct {
	Scanned   int
	Cancelled int
	Skipped   int
}
