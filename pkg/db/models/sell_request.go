package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

// SellRequest is a customer's offer to sell a device to the marketplace.
type SellRequest struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Brand          string                  `gorm:"column:brand;not null"`
	ModelName      string                  `gorm:"column:model_name;not null"`
	Storage        *string                 `gorm:"column:storage"`
	Condition      string                  `gorm:"column:condition;not null"`
	Description    *string                 `gorm:"column:description"`
	Status         enums.SellRequestStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	FinalPrice     *int64                  `gorm:"column:final_price"`
	Carrier        *string                 `gorm:"column:carrier"`
	TrackingNumber *string                 `gorm:"column:tracking_number"`
	CancelReason   *string                 `gorm:"column:cancel_reason"`
	QuotedAt       *time.Time              `gorm:"column:quoted_at"`
	AcceptedAt     *time.Time              `gorm:"column:accepted_at"`
	ShippedAt      *time.Time              `gorm:"column:shipped_at"`
	InspectingAt   *time.Time              `gorm:"column:inspecting_at"`
	CompletedAt    *time.Time              `gorm:"column:completed_at"`
	CancelledAt    *time.Time              `gorm:"column:cancelled_at"`
	Quotes         []Quote                 `gorm:"foreignKey:SellRequestID"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (SellRequest) TableName() string { return "sell_requests" }

func (s *SellRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
