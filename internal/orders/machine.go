package orders

import (
	"time"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/statemachine"
)

// Machine is the order lifecycle. COMPLETED, CANCELLED and REFUNDED are terminal.
var Machine = statemachine.New(statemachine.Definition[enums.OrderStatus]{
	Name: "order",
	Transitions: map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPendingPayment: {enums.OrderStatusPaid, enums.OrderStatusCancelled},
		enums.OrderStatusPaid:           {enums.OrderStatusPreparing, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
		enums.OrderStatusPreparing:      {enums.OrderStatusShipping},
		enums.OrderStatusShipping:       {enums.OrderStatusDelivered},
		enums.OrderStatusDelivered:      {enums.OrderStatusCompleted},
	},
	Terminal: []enums.OrderStatus{
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	},
})

type timestampColumn struct {
	column string
	field  func(*models.Order) **time.Time
}

var orderTimestamps = map[enums.OrderStatus]timestampColumn{
	enums.OrderStatusPaid:      {"paid_at", func(o *models.Order) **time.Time { return &o.PaidAt }},
	enums.OrderStatusPreparing: {"preparing_at", func(o *models.Order) **time.Time { return &o.PreparingAt }},
	enums.OrderStatusShipping:  {"shipped_at", func(o *models.Order) **time.Time { return &o.ShippedAt }},
	enums.OrderStatusDelivered: {"delivered_at", func(o *models.Order) **time.Time { return &o.DeliveredAt }},
	enums.OrderStatusCompleted: {"completed_at", func(o *models.Order) **time.Time { return &o.CompletedAt }},
	enums.OrderStatusCancelled: {"cancelled_at", func(o *models.Order) **time.Time { return &o.CancelledAt }},
	enums.OrderStatusRefunded:  {"refunded_at", func(o *models.Order) **time.Time { return &o.RefundedAt }},
}

// ApplyTransition validates from -> to for order, stamps the matching *_at field
// in memory and returns the column updates for a conditional status write.
func ApplyTransition(order *models.Order, to enums.OrderStatus, at time.Time) (map[string]any, error) {
	hooks := statemachine.Hooks[enums.OrderStatus]{}
	ts, stamped := orderTimestamps[to]
	if stamped {
		hooks.On(to, statemachine.SetTime(ts.field(order)))
	}
	if err := Machine.Apply(order.Status, to, at, hooks); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": at.UTC(),
	}
	if stamped {
		updates[ts.column] = *ts.field(order)
	}
	order.Status = to
	return updates, nil
}
