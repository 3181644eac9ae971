package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
	"github.com/angelmondragon/devicetrade-backend/pkg/types"
)

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	Subtotal  int64     `json:"subtotal"`
}

type paymentResponse struct {
	ID         uuid.UUID           `json:"id"`
	Amount     int64               `json:"amount"`
	Method     enums.PaymentMethod `json:"method"`
	Status     enums.PaymentStatus `json:"status"`
	ApprovedAt *time.Time          `json:"approved_at,omitempty"`
}

type orderResponse struct {
	ID           uuid.UUID           `json:"id"`
	OrderNumber  string              `json:"order_number"`
	Status       enums.OrderStatus   `json:"status"`
	TotalAmount  int64               `json:"total_amount"`
	Shipping     types.ShippingInfo  `json:"shipping"`
	Items        []orderItemResponse `json:"items"`
	Payment      *paymentResponse    `json:"payment,omitempty"`
	CancelReason *string             `json:"cancel_reason,omitempty"`
	PaidAt       *time.Time          `json:"paid_at,omitempty"`
	ShippedAt    *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time          `json:"delivered_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	CancelledAt  *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type cancelResponse struct {
	Message     string    `json:"message"`
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ItemID:    item.InventoryItemID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})
	}
	resp := orderResponse{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		Shipping:     order.Shipping,
		Items:        items,
		CancelReason: order.CancelReason,
		PaidAt:       order.PaidAt,
		ShippedAt:    order.ShippedAt,
		DeliveredAt:  order.DeliveredAt,
		CompletedAt:  order.CompletedAt,
		CancelledAt:  order.CancelledAt,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	if p := order.Payment; p != nil {
		resp.Payment = &paymentResponse{ID: p.ID, Amount: p.Amount, Method: p.Method, Status: p.Status, ApprovedAt: p.ApprovedAt}
	}
	return resp
}

func newOrderPage(page pagination.Page[models.Order]) pagination.Page[orderResponse] {
	items := make([]orderResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, newOrderResponse(&page.Items[i]))
	}
	return pagination.Page[orderResponse]{Items: items, NextCursor: page.NextCursor}
}
