package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

// ListFilters narrows catalog listings.
type ListFilters struct {
	Status *enums.InventoryStatus
}

// Repository owns inventory item identity and attributes.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new inventory item.
func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID loads one tenant-scoped item.
func (r *Repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDs loads tenant-scoped items without locking.
func (r *Repository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// LockByIDs reads items inside tx with a row lock, in id order so concurrent
// reservations acquire locks in the same sequence.
func (r *Repository) LockByIDs(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if len(ids) == 0 {
		return items, nil
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction required for locked read")
	}
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// List returns a cursor page of items, newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) (pagination.Page[models.InventoryItem], error) {
	query := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("tenant_id = ?", tenantID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return pagination.Fetch(query, params, func(item models.InventoryItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
	})
}
