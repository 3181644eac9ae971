package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

// AvailabilitySetter toggles AVAILABLE/UNAVAILABLE through the reservation manager.
type AvailabilitySetter interface {
	SetAvailability(ctx context.Context, tx *gorm.DB, tenantID, itemID uuid.UUID, available bool) (*models.InventoryItem, error)
}

// CreateInput describes a device taken into inventory.
type CreateInput struct {
	TenantID  uuid.UUID
	SKU       string
	Name      string
	ModelName string
	Grade     string
	Price     int64
}

// Service exposes catalog reads and intake.
type Service struct {
	repo         *Repository
	availability AvailabilitySetter
}

// NewService builds the catalog service.
func NewService(repo *Repository, availability AvailabilitySetter) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	if availability == nil {
		return nil, errors.New("availability setter required")
	}
	return &Service{repo: repo, availability: availability}, nil
}

// Create stores a new AVAILABLE item.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.InventoryItem, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	item := &models.InventoryItem{
		TenantID:  input.TenantID,
		SKU:       strings.TrimSpace(input.SKU),
		Name:      strings.TrimSpace(input.Name),
		ModelName: strings.TrimSpace(input.ModelName),
		Grade:     strings.ToUpper(strings.TrimSpace(input.Grade)),
		Price:     input.Price,
		Status:    enums.InventoryStatusAvailable,
	}
	if item.SKU == "" || item.Name == "" || item.ModelName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku, name and model name are required")
	}
	if item.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if item.Grade == "" {
		item.Grade = "B"
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
	}
	return item, nil
}

// Get loads one item.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

// List returns a page of items.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) (pagination.Page[models.InventoryItem], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return pagination.Page[models.InventoryItem]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.InventoryItem]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, tenantID, params, filters)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory items")
	}
	return page, nil
}

// SetAvailability marks an item AVAILABLE or UNAVAILABLE.
func (s *Service) SetAvailability(ctx context.Context, tenantID, id uuid.UUID, available bool) (*models.InventoryItem, error) {
	return s.availability.SetAvailability(ctx, nil, tenantID, id, available)
}
