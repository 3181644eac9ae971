package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Quote is a price offered by the marketplace for a sell request.
type Quote struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellRequestID uuid.UUID `gorm:"column:sell_request_id;type:uuid;not null;index"`
	Price         int64     `gorm:"column:price;not null"`
	Note          *string   `gorm:"column:note"`
	Accepted      bool      `gorm:"column:accepted;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Quote) TableName() string { return "quotes" }

func (q *Quote) BeforeCreate(*gorm.DB) error {
	ensureID(&q.ID)
	return nil
}
