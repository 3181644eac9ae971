package sellrequests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

// Repository persists sell requests and their quotes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sr *models.SellRequest) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.SellRequest, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.SellRequest, error)
	CreateQuote(ctx context.Context, quote *models.Quote) error
	FindQuote(ctx context.Context, sellRequestID, quoteID uuid.UUID) (*models.Quote, error)
	AcceptQuote(ctx context.Context, quoteID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.SellRequestStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sr *models.SellRequest) error {
	return r.db.WithContext(ctx).Create(sr).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.SellRequest, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.SellRequest, error) {
	return r.findOne(db.ForUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *repository) findOne(query *gorm.DB, tenantID, id uuid.UUID) (*models.SellRequest, error) {
	var sr models.SellRequest
	err := query.
		Preload("Quotes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&sr).Error
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

func (r *repository) CreateQuote(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindQuote(ctx context.Context, sellRequestID, quoteID uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Where("id = ? AND sell_request_id = ?", quoteID, sellRequestID).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// AcceptQuote flips accepted on a quote that is not accepted yet.
func (r *repository) AcceptQuote(ctx context.Context, quoteID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND accepted = ?", quoteID, false).
		Update("accepted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.SellRequestStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SellRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
