package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/api/middleware"
	"github.com/angelmondragon/devicetrade-backend/api/responses"
	"github.com/angelmondragon/devicetrade-backend/api/validators"
	internalorders "github.com/angelmondragon/devicetrade-backend/internal/orders"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/types"
)

const (
	cancelledMessage = "order cancelled"
	maxReasonLength  = 255
)

type createOrderItem struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items    []createOrderItem  `json:"items" validate:"required,min=1,dive"`
	Shipping types.ShippingInfo `json:"shipping"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create reserves the requested devices and opens a PENDING_PAYMENT order.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]internalorders.ItemRequest, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, internalorders.ItemRequest{ItemID: item.ItemID, Quantity: item.Quantity})
		}

		order, err := svc.Create(r.Context(), internalorders.CreateInput{
			TenantID: middleware.TenantIDFromContext(r.Context()),
			UserID:   middleware.UserIDFromContext(r.Context()),
			Items:    items,
			Shipping: payload.Shipping.Normalize(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForUser(r.Context(), middleware.TenantIDFromContext(r.Context()), middleware.UserIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPage(page))
	}
}

func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), internalorders.GetInput{
			TenantID:    middleware.TenantIDFromContext(r.Context()),
			OrderID:     orderID,
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// Cancel cancels an unpaid order and releases its reservations.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelOrderRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			TenantID:    middleware.TenantIDFromContext(r.Context()),
			OrderID:     orderID,
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
			Reason:      validators.SanitizeString(payload.Reason, maxReasonLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{Message: cancelledMessage, OrderID: order.ID, OrderNumber: order.OrderNumber})
	}
}

// Transition moves a paid order through fulfilment. Operator only.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			TenantID:    middleware.TenantIDFromContext(r.Context()),
			OrderID:     orderID,
			To:          to,
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
