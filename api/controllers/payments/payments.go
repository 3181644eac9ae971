package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/devicetrade-backend/api/middleware"
	"github.com/angelmondragon/devicetrade-backend/api/responses"
	"github.com/angelmondragon/devicetrade-backend/api/validators"
	internalpayments "github.com/angelmondragon/devicetrade-backend/internal/payments"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
)

// Confirmer settles a gateway payment against a pending order.
type Confirmer interface {
	Confirm(ctx context.Context, input internalpayments.ConfirmInput) (*internalpayments.ConfirmResult, error)
}

// confirmRequest mirrors the gateway success redirect, where orderId carries
// the order number. The descriptive aliases are accepted as well.
type confirmRequest struct {
	PaymentKey           string `json:"paymentKey" validate:"required_without=GatewayTransactionID,max=200"`
	GatewayTransactionID string `json:"gatewayTransactionId" validate:"omitempty,max=200"`
	OrderID              string `json:"orderId" validate:"required_without=OrderNumber,max=64"`
	OrderNumber          string `json:"orderNumber" validate:"omitempty,max=64"`
	Amount               int64  `json:"amount" validate:"required,min=1"`
}

func (c confirmRequest) paymentKey() string {
	if key := strings.TrimSpace(c.PaymentKey); key != "" {
		return key
	}
	return strings.TrimSpace(c.GatewayTransactionID)
}

func (c confirmRequest) orderNumber() string {
	if number := strings.TrimSpace(c.OrderID); number != "" {
		return number
	}
	return strings.TrimSpace(c.OrderNumber)
}

// Confirm verifies the payment with the gateway and marks the order PAID.
func Confirm(svc Confirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), internalpayments.ConfirmInput{
			TenantID:    middleware.TenantIDFromContext(r.Context()),
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
			PaymentKey:  payload.paymentKey(),
			OrderNumber: payload.orderNumber(),
			Amount:      payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
