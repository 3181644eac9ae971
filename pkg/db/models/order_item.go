package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem snapshots the device and price at the moment the order was placed.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	InventoryItemID uuid.UUID `gorm:"column:inventory_item_id;type:uuid;not null;index"`
	Name            string    `gorm:"column:name;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	UnitPrice       int64     `gorm:"column:unit_price;not null"`
	Subtotal        int64     `gorm:"column:subtotal;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
