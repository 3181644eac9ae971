package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error)
	ListForUser(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx), "tenant_id = ? AND id = ?", tenantID, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	return r.findOne(db.ForUpdate(r.db.WithContext(ctx)), "tenant_id = ? AND id = ?", tenantID, id)
}

func (r *repository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx), "tenant_id = ? AND order_number = ?", tenantID, number)
}

func (r *repository) findOne(query *gorm.DB, where string, args ...any) (*models.Order, error) {
	var order models.Order
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Payment").
		Where(where, args...).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListForUser(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	return pagination.Fetch(query, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = defaultExpireBatch
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UpdateStatus writes updates only while the row still holds from. It reports
// false when another transaction moved the order first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
