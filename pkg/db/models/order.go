package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/types"
)

// Order is a buyer's purchase of one or more reserved devices.
type Order struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	OrderNumber  string             `gorm:"column:order_number;not null;uniqueIndex"`
	Status       enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'PENDING_PAYMENT'"`
	TotalAmount  int64              `gorm:"column:total_amount;not null"`
	Shipping     types.ShippingInfo `gorm:"embedded;embeddedPrefix:shipping_"`
	CancelReason *string            `gorm:"column:cancel_reason"`
	PaidAt       *time.Time         `gorm:"column:paid_at"`
	PreparingAt  *time.Time         `gorm:"column:preparing_at"`
	ShippedAt    *time.Time         `gorm:"column:shipped_at"`
	DeliveredAt  *time.Time         `gorm:"column:delivered_at"`
	CompletedAt  *time.Time         `gorm:"column:completed_at"`
	CancelledAt  *time.Time         `gorm:"column:cancelled_at"`
	RefundedAt   *time.Time         `gorm:"column:refunded_at"`
	Items        []OrderItem        `gorm:"foreignKey:OrderID"`
	Payment      *Payment           `gorm:"foreignKey:OrderID"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// ItemIDs returns the inventory item ids referenced by the order items.
func (o Order) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.InventoryItemID)
	}
	return ids
}
