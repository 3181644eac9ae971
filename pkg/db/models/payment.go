package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

// Payment records the gateway settlement for an order, at most one per order.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TenantID      uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null"`
	PaymentKey    string              `gorm:"column:payment_key;not null"`
	Amount        int64               `gorm:"column:amount;not null"`
	Method        enums.PaymentMethod `gorm:"column:method;type:text;not null;default:'UNKNOWN'"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	RawResponse   json.RawMessage     `gorm:"column:raw_response;type:jsonb"`
	FailureReason *string             `gorm:"column:failure_reason"`
	ApprovedAt    *time.Time          `gorm:"column:approved_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsCompleted reports whether the payment was captured by the gateway.
func (p *Payment) IsCompleted() bool {
	return p != nil && p.Status == enums.PaymentStatusCompleted
}
