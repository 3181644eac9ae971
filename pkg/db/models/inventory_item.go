package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

// InventoryItem is a uniquely identifiable used device offered for sale.
type InventoryItem struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:inventory_items_tenant_sku_idx"`
	SKU       string                `gorm:"column:sku;not null;uniqueIndex:inventory_items_tenant_sku_idx"`
	Name      string                `gorm:"column:name;not null"`
	ModelName string                `gorm:"column:model_name;not null"`
	Grade     string                `gorm:"column:grade;not null;default:'B'"`
	Price     int64                 `gorm:"column:price;not null"`
	Status    enums.InventoryStatus `gorm:"column:status;type:text;not null;default:'AVAILABLE'"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
