package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

type itemResponse struct {
	ID        uuid.UUID             `json:"id"`
	SKU       string                `json:"sku"`
	Name      string                `json:"name"`
	ModelName string                `json:"model_name"`
	Grade     string                `json:"grade"`
	Price     int64                 `json:"price"`
	Status    enums.InventoryStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func newItemResponse(item *models.InventoryItem) itemResponse {
	return itemResponse{
		ID:        item.ID,
		SKU:       item.SKU,
		Name:      item.Name,
		ModelName: item.ModelName,
		Grade:     item.Grade,
		Price:     item.Price,
		Status:    item.Status,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func newItemPage(page pagination.Page[models.InventoryItem]) pagination.Page[itemResponse] {
	items := make([]itemResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, newItemResponse(&page.Items[i]))
	}
	return pagination.Page[itemResponse]{Items: items, NextCursor: page.NextCursor}
}
