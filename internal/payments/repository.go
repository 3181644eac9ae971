package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

var upsertColumns = []string{
	"payment_key",
	"amount",
	"method",
	"status",
	"raw_response",
	"failure_reason",
	"approved_at",
	"updated_at",
}

// Repository persists the single payment row of an order.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// UpsertCompleted inserts or overwrites the order's payment and reloads it, so
// payment.ID is the persisted row id even when an earlier attempt created it.
func (r *Repository) UpsertCompleted(ctx context.Context, payment *models.Payment) error {
	payment.Status = enums.PaymentStatusCompleted
	payment.FailureReason = nil
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(payment).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).First(payment, "order_id = ?", payment.OrderID).Error
}

// RecordAttempt stores a failed or unsettled attempt. A COMPLETED row is never overwritten.
func (r *Repository) RecordAttempt(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Neq{Column: clause.Column{Table: models.Payment{}.TableName(), Name: "status"}, Value: enums.PaymentStatusCompleted},
			}},
		}).
		Create(payment).Error
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
