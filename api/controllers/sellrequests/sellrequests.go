package sellrequests

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/devicetrade-backend/api/middleware"
	"github.com/angelmondragon/devicetrade-backend/api/responses"
	"github.com/angelmondragon/devicetrade-backend/api/validators"
	internalsellrequests "github.com/angelmondragon/devicetrade-backend/internal/sellrequests"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
)

type createRequest struct {
	Brand       string  `json:"brand" validate:"required,notblank,max=64"`
	ModelName   string  `json:"model_name" validate:"required,notblank,max=128"`
	Storage     *string `json:"storage,omitempty" validate:"omitempty,max=32"`
	Condition   string  `json:"condition" validate:"required,notblank,max=32"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type quoteRequest struct {
	Price int64   `json:"price" validate:"required,min=1"`
	Note  *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type trackingRequest struct {
	Carrier        string `json:"carrier" validate:"required,notblank,max=64"`
	TrackingNumber string `json:"tracking_number" validate:"required,notblank,max=64"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

func actorFrom(r *http.Request) internalsellrequests.Actor {
	return internalsellrequests.Actor{
		UserID: middleware.UserIDFromContext(r.Context()),
		Role:   middleware.RoleFromContext(r.Context()),
	}
}

// Create opens a PENDING sell request for the caller.
func Create(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sr, err := svc.Create(r.Context(), internalsellrequests.CreateInput{
			TenantID:    middleware.TenantIDFromContext(r.Context()),
			UserID:      middleware.UserIDFromContext(r.Context()),
			Brand:       payload.Brand,
			ModelName:   payload.ModelName,
			Storage:     payload.Storage,
			Condition:   payload.Condition,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSellRequestResponse(sr))
	}
}

func Get(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "sellRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sr, err := svc.Get(r.Context(), middleware.TenantIDFromContext(r.Context()), id, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSellRequestResponse(sr))
	}
}

// AddQuote offers a price. Operator only.
func AddQuote(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "sellRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.AddQuote(r.Context(), internalsellrequests.AddQuoteInput{
			TenantID:      middleware.TenantIDFromContext(r.Context()),
			SellRequestID: id,
			Price:         payload.Price,
			Note:          payload.Note,
			Actor:         actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newQuoteResponse(quote))
	}
}

func AcceptQuote(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "sellRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sr, err := svc.AcceptQuote(r.Context(), internalsellrequests.AcceptQuoteInput{
			TenantID:      middleware.TenantIDFromContext(r.Context()),
			SellRequestID: id,
			QuoteID:       quoteID,
			Actor:         actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSellRequestResponse(sr))
	}
}

// AddTrackingNumber records the parcel and moves the request to SHIPPING.
func AddTrackingNumber(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "sellRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload trackingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sr, err := svc.AddTrackingNumber(r.Context(), internalsellrequests.TrackingInput{
			TenantID:       middleware.TenantIDFromContext(r.Context()),
			SellRequestID:  id,
			Carrier:        payload.Carrier,
			TrackingNumber: payload.TrackingNumber,
			Actor:          actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSellRequestResponse(sr))
	}
}

// Transition moves a request through inspection. Operator only.
func Transition(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "sellRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseSellRequestStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
			return
		}

		sr, err := svc.Transition(r.Context(), internalsellrequests.TransitionInput{
			TenantID:      middleware.TenantIDFromContext(r.Context()),
			SellRequestID: id,
			To:            to,
			Actor:         actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSellRequestResponse(sr))
	}
}

func Cancel(svc internalsellrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "sellRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sr, err := svc.Cancel(r.Context(), internalsellrequests.CancelInput{
			TenantID:      middleware.TenantIDFromContext(r.Context()),
			SellRequestID: id,
			Reason:        validators.SanitizeString(payload.Reason, 255),
			Actor:         actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSellRequestResponse(sr))
	}
}
