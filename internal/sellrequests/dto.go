package sellrequests

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

// Actor identifies the caller of a sell request operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// CreateInput describes the device a customer offers.
type CreateInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Brand       string
	ModelName   string
	Storage     *string
	Condition   string
	Description *string
}

// AddQuoteInput is an operator price offer.
type AddQuoteInput struct {
	TenantID      uuid.UUID
	SellRequestID uuid.UUID
	Price         int64
	Note          *string
	Actor         Actor
}

// AcceptQuoteInput picks one quote of a QUOTED sell request.
type AcceptQuoteInput struct {
	TenantID      uuid.UUID
	SellRequestID uuid.UUID
	QuoteID       uuid.UUID
	Actor         Actor
}

// TrackingInput registers the parcel the customer sent the device in.
type TrackingInput struct {
	TenantID       uuid.UUID
	SellRequestID  uuid.UUID
	Carrier        string
	TrackingNumber string
	Actor          Actor
}

// TransitionInput is an operator intake move.
type TransitionInput struct {
	TenantID      uuid.UUID
	SellRequestID uuid.UUID
	To            enums.SellRequestStatus
	Actor         Actor
}

// CancelInput withdraws a sell request before the device ships.
type CancelInput struct {
	TenantID      uuid.UUID
	SellRequestID uuid.UUID
	Reason        string
	Actor         Actor
}
