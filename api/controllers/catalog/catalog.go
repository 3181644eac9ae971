package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/api/middleware"
	"github.com/angelmondragon/devicetrade-backend/api/responses"
	"github.com/angelmondragon/devicetrade-backend/api/validators"
	internalcatalog "github.com/angelmondragon/devicetrade-backend/internal/catalog"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

// Service is the catalog surface the handlers depend on.
type Service interface {
	Create(ctx context.Context, input internalcatalog.CreateInput) (*models.InventoryItem, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.InventoryItem, error)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters internalcatalog.ListFilters) (pagination.Page[models.InventoryItem], error)
	SetAvailability(ctx context.Context, tenantID, id uuid.UUID, available bool) (*models.InventoryItem, error)
}

type createItemRequest struct {
	SKU       string `json:"sku" validate:"required,notblank,max=64"`
	Name      string `json:"name" validate:"required,notblank,max=255"`
	ModelName string `json:"model_name" validate:"required,notblank,max=255"`
	Grade     string `json:"grade" validate:"omitempty,max=8"`
	Price     int64  `json:"price" validate:"min=0"`
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// List returns a page of the tenant's items, optionally filtered by status.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filters internalcatalog.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseInventoryStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		page, err := svc.List(r.Context(), middleware.TenantIDFromContext(r.Context()), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemPage(page))
	}
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), middleware.TenantIDFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// Create takes a device into inventory. Operator only.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), internalcatalog.CreateInput{
			TenantID:  middleware.TenantIDFromContext(r.Context()),
			SKU:       validators.SanitizeString(payload.SKU, 64),
			Name:      validators.SanitizeString(payload.Name, 255),
			ModelName: validators.SanitizeString(payload.ModelName, 255),
			Grade:     validators.SanitizeString(payload.Grade, 8),
			Price:     payload.Price,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item))
	}
}

// SetAvailability toggles an item between AVAILABLE and UNAVAILABLE. Operator only.
func SetAvailability(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload availabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.SetAvailability(r.Context(), middleware.TenantIDFromContext(r.Context()), itemID, *payload.Available)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}
