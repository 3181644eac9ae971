package payloads

import (
	"time"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted once items are reserved and the order is persisted.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	TenantID    uuid.UUID   `json:"tenant_id"`
	UserID      uuid.UUID   `json:"user_id"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
	TotalAmount int64       `json:"total_amount"`
}

// OrderCancelledEvent reports a pre-payment cancellation and the released items.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	TenantID       uuid.UUID         `json:"tenant_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	ReleasedItems  []uuid.UUID       `json:"released_items"`
	Reason         string            `json:"reason,omitempty"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// OrderStatusChangedEvent covers fulfilment moves after payment.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	TenantID    uuid.UUID         `json:"tenant_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// PaymentCompletedEvent is emitted in the same transaction that marks the order PAID.
type PaymentCompletedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	TenantID    uuid.UUID           `json:"tenant_id"`
	PaymentID   uuid.UUID           `json:"payment_id"`
	PaymentKey  string              `json:"payment_key"`
	Amount      int64               `json:"amount"`
	Method      enums.PaymentMethod `json:"method"`
	SoldItems   []uuid.UUID         `json:"sold_items"`
	PaidAt      time.Time           `json:"paid_at"`
}

// SellRequestStatusChangedEvent mirrors OrderStatusChangedEvent for device intake.
type SellRequestStatusChangedEvent struct {
	SellRequestID uuid.UUID               `json:"sell_request_id"`
	TenantID      uuid.UUID               `json:"tenant_id"`
	UserID        uuid.UUID               `json:"user_id"`
	From          enums.SellRequestStatus `json:"from"`
	To            enums.SellRequestStatus `json:"to"`
	FinalPrice    *int64                  `json:"final_price,omitempty"`
	ChangedAt     time.Time               `json:"changed_at"`
}
