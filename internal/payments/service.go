package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/internal/orders"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/devicetrade-backend/pkg/paymentgateway"
	"github.com/angelmondragon/devicetrade-backend/pkg/statemachine"
)

const (
	gatewayOpConfirm = "confirm"
	gatewayOpLookup  = "lookup"
)

// Gateway is the external payment processor.
type Gateway interface {
	Confirm(ctx context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*paymentgateway.Payment, error)
}

// Finalizer marks reserved items SOLD inside the caller's transaction.
type Finalizer interface {
	Finalize(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service confirms client-authorized payments with the gateway and settles orders.
type Service interface {
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
}

type service struct {
	orders    orders.Repository
	payments  *Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory Finalizer
	gateway   Gateway
	lock      Locker
	metrics   *metrics.TradeMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// Deps groups the collaborators of the payment service.
type Deps struct {
	Orders    orders.Repository
	Payments  *Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Inventory Finalizer
	Gateway   Gateway
	Lock      Locker
	Metrics   *metrics.TradeMetrics
	Logger    *logger.Logger
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("inventory finalizer required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case deps.Lock == nil:
		return nil, fmt.Errorf("confirm lock required")
	}
	return &service{
		orders:    deps.Orders,
		payments:  deps.Payments,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		inventory: deps.Inventory,
		gateway:   deps.Gateway,
		lock:      deps.Lock,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Confirm runs the gateway call outside any transaction and applies its result
// in one transaction: payment COMPLETED, order PAID and items SOLD together.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	input.PaymentKey = strings.TrimSpace(input.PaymentKey)
	input.OrderNumber = strings.TrimSpace(input.OrderNumber)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	unlock, ok, err := s.lock.TryLock(ctx, input.OrderNumber)
	if err != nil {
		s.metrics.ObserveConfirmation(metrics.ConfirmResultError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire confirmation lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment confirmation already in progress for this order")
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil && s.logg != nil {
			s.logg.Error(ctx, "release confirmation lock", err)
		}
	}()

	order, err := s.orders.FindByNumber(ctx, input.TenantID, input.OrderNumber)
	if err != nil {
		return nil, s.fail(metrics.ConfirmResultError, orderLookupError(err))
	}
	if !input.ActorRole.IsStaff() && order.UserID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err := requirePending(order); err != nil {
		return nil, s.fail(metrics.ConfirmResultStale, err)
	}
	if input.Amount != order.TotalAmount {
		return nil, s.fail(metrics.ConfirmResultMismatch, amountMismatch(order.TotalAmount, input.Amount))
	}

	settled, recovered, err := s.callGateway(ctx, order, input)
	if err != nil {
		return nil, s.reject(ctx, order, input, nil, err)
	}
	if !settled.IsDone() {
		return nil, s.reject(ctx, order, input, settled, pkgerrors.New(pkgerrors.CodePaymentFailed, notSettledMessage))
	}
	if settled.TotalAmount != order.TotalAmount {
		return nil, s.reject(ctx, order, input, settled, amountMismatch(order.TotalAmount, settled.TotalAmount))
	}

	result, err := s.settle(ctx, order.ID, input, settled)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidState) {
			return nil, s.fail(metrics.ConfirmResultStale, err)
		}
		return nil, s.fail(metrics.ConfirmResultError, err)
	}
	result.Recovered = recovered

	outcome := metrics.ConfirmResultCompleted
	if recovered {
		outcome = metrics.ConfirmResultRecovered
	}
	s.metrics.ObserveConfirmation(outcome)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber), map[string]any{
			"tenant_id":  order.TenantID.String(),
			"payment_id": result.PaymentID.String(),
			"method":     string(result.Method),
			"recovered":  recovered,
		})
		s.logg.Info(logCtx, "payment confirmed")
	}
	return result, nil
}

// callGateway confirms the payment. When the gateway reports the key as already
// processed, a settlement lookup recovers a confirm whose local commit was lost.
func (s *service) callGateway(ctx context.Context, order *models.Order, input ConfirmInput) (*paymentgateway.Payment, bool, error) {
	started := time.Now()
	settled, err := s.gateway.Confirm(ctx, paymentgateway.ConfirmRequest{
		PaymentKey: input.PaymentKey,
		OrderID:    order.OrderNumber,
		Amount:     input.Amount,
	})
	s.metrics.ObserveGateway(gatewayOpConfirm, time.Since(started))
	if err == nil {
		return settled, false, nil
	}

	gwErr, ok := paymentgateway.AsGatewayError(err)
	if !ok || gwErr.Code != paymentgateway.CodeAlreadyProcessed {
		return nil, false, err
	}

	started = time.Now()
	existing, lookupErr := s.gateway.GetByOrderID(ctx, order.OrderNumber)
	s.metrics.ObserveGateway(gatewayOpLookup, time.Since(started))
	if lookupErr != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber), "settlement lookup failed: "+lookupErr.Error())
		}
		return nil, false, err
	}
	if !existing.IsDone() || existing.PaymentKey != input.PaymentKey || existing.TotalAmount != order.TotalAmount {
		return nil, false, err
	}
	return existing, true, nil
}

func (s *service) settle(ctx context.Context, orderID uuid.UUID, input ConfirmInput, settled *paymentgateway.Payment) (*ConfirmResult, error) {
	var result *ConfirmResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.TenantID, orderID)
		if err != nil {
			return orderLookupError(err)
		}
		if err := requirePending(order); err != nil {
			return err
		}

		now := s.now()
		approvedAt := now
		if settled.ApprovedAt != nil {
			approvedAt = settled.ApprovedAt.UTC()
		}
		payment := &models.Payment{
			OrderID:     order.ID,
			TenantID:    order.TenantID,
			PaymentKey:  input.PaymentKey,
			Amount:      order.TotalAmount,
			Method:      enums.ClassifyPaymentMethod(settled.Method),
			RawResponse: settled.Raw,
			ApprovedAt:  &approvedAt,
		}
		if err := s.payments.WithTx(tx).UpsertCompleted(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}

		updates, err := orders.ApplyTransition(order, enums.OrderStatusPaid, now)
		if err != nil {
			return err
		}
		ok, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPendingPayment, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order status changed concurrently").
				WithDetails(paidTransition(enums.OrderStatusPendingPayment))
		}

		itemIDs := order.ItemIDs()
		if err := s.inventory.Finalize(ctx, tx, itemIDs); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.NewActor(input.ActorUserID, order.TenantID, input.ActorRole),
			OccurredAt:    now,
			Data: payloads.PaymentCompletedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				TenantID:    order.TenantID,
				PaymentID:   payment.ID,
				PaymentKey:  payment.PaymentKey,
				Amount:      payment.Amount,
				Method:      payment.Method,
				SoldItems:   itemIDs,
				PaidAt:      now,
			},
		}); err != nil {
			return err
		}

		result = &ConfirmResult{
			Message:     confirmedMessage,
			OrderNumber: order.OrderNumber,
			PaymentID:   payment.ID,
			Method:      payment.Method,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reject records the failed attempt in its own transaction, leaving the order
// PENDING_PAYMENT, and surfaces the failure as a payment rejection.
func (s *service) reject(ctx context.Context, order *models.Order, input ConfirmInput, settled *paymentgateway.Payment, cause error) error {
	status := enums.PaymentStatusFailed
	method := enums.PaymentMethodUnknown
	var raw []byte
	if settled != nil {
		if !settled.IsDone() {
			status = enums.PaymentStatusPending
		}
		method = enums.ClassifyPaymentMethod(settled.Method)
		raw = settled.Raw
	}
	reason := rejectionMessage(cause)
	attempt := &models.Payment{
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		PaymentKey:    input.PaymentKey,
		Amount:        input.Amount,
		Method:        method,
		Status:        status,
		RawResponse:   raw,
		FailureReason: &reason,
	}
	recordErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.payments.WithTx(tx).RecordAttempt(ctx, attempt)
	})

	if s.logg != nil {
		logCtx := s.logg.WithField(s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber), "tenant_id", order.TenantID.String())
		s.logg.Warn(s.logg.WithFields(logCtx, pkgerrors.Dump(cause).Fields()), "payment confirmation rejected")
		if recordErr != nil {
			s.logg.Error(logCtx, "record failed payment attempt", recordErr)
		}
	}

	if pkgerrors.IsCode(cause, pkgerrors.CodeConflict) {
		s.metrics.ObserveConfirmation(metrics.ConfirmResultMismatch)
		return cause
	}
	s.metrics.ObserveConfirmation(metrics.ConfirmResultRejected)
	if gwErr, ok := paymentgateway.AsGatewayError(cause); ok {
		return pkgerrors.Wrap(pkgerrors.CodePaymentFailed, gwErr, reason).
			WithDetails(map[string]string{"gatewayCode": gwErr.Code})
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentFailed, cause, reason)
}

func (s *service) fail(outcome string, err error) error {
	s.metrics.ObserveConfirmation(outcome)
	return err
}

func validateInput(input ConfirmInput) error {
	switch {
	case input.TenantID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	case input.ActorUserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	case input.PaymentKey == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "payment key required")
	case input.OrderNumber == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	case input.Amount <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func requirePending(order *models.Order) error {
	if order.Status == enums.OrderStatusPendingPayment {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeInvalidState, "order is %s and cannot be paid", order.Status).
		WithDetails(paidTransition(order.Status))
}

func paidTransition(from enums.OrderStatus) statemachine.TransitionDetails {
	return statemachine.TransitionDetails{
		Entity: orders.Machine.Name(),
		From:   string(from),
		To:     string(enums.OrderStatusPaid),
	}
}

func amountMismatch(expected, received int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "payment amount does not match order total").
		WithDetails(AmountDetails{Expected: expected, Received: received})
}

func rejectionMessage(err error) string {
	if gwErr, ok := paymentgateway.AsGatewayError(err); ok && strings.TrimSpace(gwErr.Message) != "" {
		return gwErr.Message
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency {
		return typed.Message()
	}
	return defaultFailureMessage
}

func orderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
