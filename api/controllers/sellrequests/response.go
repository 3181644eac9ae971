package sellrequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

type quoteResponse struct {
	ID        uuid.UUID `json:"id"`
	Price     int64     `json:"price"`
	Note      *string   `json:"note,omitempty"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

type sellRequestResponse struct {
	ID             uuid.UUID               `json:"id"`
	Brand          string                  `json:"brand"`
	ModelName      string                  `json:"model_name"`
	Storage        *string                 `json:"storage,omitempty"`
	Condition      string                  `json:"condition"`
	Description    *string                 `json:"description,omitempty"`
	Status         enums.SellRequestStatus `json:"status"`
	FinalPrice     *int64                  `json:"final_price,omitempty"`
	Carrier        *string                 `json:"carrier,omitempty"`
	TrackingNumber *string                 `json:"tracking_number,omitempty"`
	CancelReason   *string                 `json:"cancel_reason,omitempty"`
	Quotes         []quoteResponse         `json:"quotes"`
	QuotedAt       *time.Time              `json:"quoted_at,omitempty"`
	AcceptedAt     *time.Time              `json:"accepted_at,omitempty"`
	ShippedAt      *time.Time              `json:"shipped_at,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	CancelledAt    *time.Time              `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func newQuoteResponse(q *models.Quote) quoteResponse {
	return quoteResponse{ID: q.ID, Price: q.Price, Note: q.Note, Accepted: q.Accepted, CreatedAt: q.CreatedAt}
}

func newSellRequestResponse(sr *models.SellRequest) sellRequestResponse {
	quotes := make([]quoteResponse, 0, len(sr.Quotes))
	for i := range sr.Quotes {
		quotes = append(quotes, newQuoteResponse(&sr.Quotes[i]))
	}
	return sellRequestResponse{
		ID:             sr.ID,
		Brand:          sr.Brand,
		ModelName:      sr.ModelName,
		Storage:        sr.Storage,
		Condition:      sr.Condition,
		Description:    sr.Description,
		Status:         sr.Status,
		FinalPrice:     sr.FinalPrice,
		Carrier:        sr.Carrier,
		TrackingNumber: sr.TrackingNumber,
		CancelReason:   sr.CancelReason,
		Quotes:         quotes,
		QuotedAt:       sr.QuotedAt,
		AcceptedAt:     sr.AcceptedAt,
		ShippedAt:      sr.ShippedAt,
		CompletedAt:    sr.CompletedAt,
		CancelledAt:    sr.CancelledAt,
		CreatedAt:      sr.CreatedAt,
		UpdatedAt:      sr.UpdatedAt,
	}
}
