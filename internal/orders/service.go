package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
	"github.com/angelmondragon/devicetrade-backend/pkg/statemachine"
)

const orderNumberSavepoint = "order_number"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Reserver claims and returns inventory for an order inside the caller's transaction.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, itemIDs []uuid.UUID) ([]models.InventoryItem, error)
	Release(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) error
}

// Service is the order lifecycle controller.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, input GetInput) (*models.Order, error)
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error)
	ListForUser(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (ExpireResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory Reserver
	numbers   NumberGenerator
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, inventory Reserver, numbers NumberGenerator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if numbers == nil {
		numbers = NewNumberGenerator("")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		numbers:   numbers,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ShippingDetails lists blank required shipping fields.
type ShippingDetails struct {
	Missing []string `json:"missing"`
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	itemIDs, err := validateItems(input.Items)
	if err != nil {
		return nil, err
	}
	shipping := input.Shipping.Normalize()
	if missing := shipping.Missing(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping information is incomplete").
			WithDetails(ShippingDetails{Missing: missing})
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reserved, err := s.inventory.Reserve(ctx, tx, input.TenantID, itemIDs)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.InventoryItem, len(reserved))
		for _, item := range reserved {
			byID[item.ID] = item
		}

		var total int64
		lines := make([]models.OrderItem, 0, len(input.Items))
		for _, req := range input.Items {
			item, ok := byID[req.ItemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "some items no longer exist")
			}
			subtotal := item.Price * int64(req.Quantity)
			total += subtotal
			lines = append(lines, models.OrderItem{
				InventoryItemID: item.ID,
				Name:            item.Name,
				Quantity:        req.Quantity,
				UnitPrice:       item.Price,
				Subtotal:        subtotal,
			})
		}

		order := &models.Order{
			TenantID:    input.TenantID,
			UserID:      input.UserID,
			Status:      enums.OrderStatusPendingPayment,
			TotalAmount: total,
			Shipping:    shipping,
			Items:       lines,
		}
		if err := s.insertWithNumber(ctx, tx, order); err != nil {
			return err
		}

		created = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.NewActor(input.UserID, input.TenantID, enums.ActorRoleCustomer),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				TenantID:    order.TenantID,
				UserID:      order.UserID,
				ItemIDs:     order.ItemIDs(),
				TotalAmount: order.TotalAmount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, created, "", created.Status)
	return created, nil
}

// insertWithNumber retries on an order number collision. Each attempt runs
// behind a savepoint because postgres aborts the transaction on a failed insert.
func (s *service) insertWithNumber(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	for attempt := 1; ; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number

		if err := tx.SavePoint(orderNumberSavepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create savepoint")
		}
		err = repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") || attempt >= maxOrderNumberAttempts {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		if rbErr := tx.RollbackTo(orderNumberSavepoint).Error; rbErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rollback to savepoint")
		}
	}
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.TenantID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.OrderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if !input.ActorRole.IsStaff() && loaded.UserID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		order = loaded
		actor := outbox.NewActor(input.ActorUserID, input.TenantID, input.ActorRole)
		return s.cancelLocked(ctx, tx, repo, loaded, strings.TrimSpace(input.Reason), actor)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// cancelLocked releases the order's items and moves it to CANCELLED. The status
// write is conditional on the status read under lock, so a confirm that
// committed first makes this fail with INVALID_STATE instead of overwriting PAID.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, reason string, actor *outbox.ActorRef) error {
	from := order.Status
	if from == enums.OrderStatusPaid && order.Payment.IsCompleted() {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "order has a completed payment and must be refunded instead").
			WithDetails(statemachine.TransitionDetails{Entity: Machine.Name(), From: string(from), To: string(enums.OrderStatusCancelled)})
	}

	now := s.now()
	updates, err := ApplyTransition(order, enums.OrderStatusCancelled, now)
	if err != nil {
		return err
	}
	if reason != "" {
		updates["cancel_reason"] = reason
		order.CancelReason = &reason
	}

	itemIDs := order.ItemIDs()
	if err := s.inventory.Release(ctx, tx, itemIDs); err != nil {
		return err
	}
	ok, err := repo.UpdateStatus(ctx, order.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "order status changed concurrently").
			WithDetails(statemachine.TransitionDetails{Entity: Machine.Name(), From: string(from), To: string(enums.OrderStatusCancelled)})
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.OrderCancelledEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			TenantID:       order.TenantID,
			PreviousStatus: from,
			ReleasedItems:  itemIDs,
			Reason:         reason,
			CancelledAt:    now,
		},
	}); err != nil {
		return err
	}

	s.logTransition(ctx, order, from, order.Status)
	return nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.TenantID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and order id required")
	}
	if !input.ActorRole.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if !isFulfilmentStatus(input.To) {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidState, "order cannot be moved to %s through a status update", input.To)
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.OrderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}

		from := loaded.Status
		now := s.now()
		updates, err := ApplyTransition(loaded, input.To, now)
		if err != nil {
			return err
		}
		ok, err := repo.UpdateStatus(ctx, loaded.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order status changed concurrently")
		}

		order = loaded
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   loaded.ID,
			Actor:         outbox.NewActor(input.ActorUserID, input.TenantID, input.ActorRole),
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     loaded.ID,
				OrderNumber: loaded.OrderNumber,
				TenantID:    loaded.TenantID,
				From:        from,
				To:          input.To,
				ChangedAt:   now,
			},
		}); err != nil {
			return err
		}
		s.logTransition(ctx, loaded, from, loaded.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, input.TenantID, input.OrderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	if !input.ActorRole.IsStaff() && order.UserID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, tenantID, number)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.ListForUser(ctx, tenantID, userID, params)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return page, nil
}

// ExpireStale cancels PENDING_PAYMENT orders created before cutoff. Orders that
// left PENDING_PAYMENT in the meantime are skipped; other failures are collected.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (ExpireResult, error) {
	var result ExpireResult
	candidates, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}
	result.Scanned = len(candidates)

	var errs error
	for _, candidate := range candidates {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByIDForUpdate(ctx, candidate.TenantID, candidate.ID)
			if err != nil {
				return notFoundOr(err, "load order")
			}
			if order.Status != enums.OrderStatusPendingPayment {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "order no longer pending payment")
			}
			return s.cancelLocked(ctx, tx, repo, order, CancelReasonPaymentTimeout, nil)
		})
		switch {
		case err == nil:
			result.Cancelled++
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidState), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			result.Skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", candidate.ID, err))
		}
	}
	return result, errs
}

func (s *service) logTransition(ctx context.Context, order *models.Order, from, to enums.OrderStatus) {
	if s.logg == nil || order == nil {
		return
	}
	ctx = s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"tenant_id": order.TenantID.String(),
		"from":      string(from),
		"to":        string(to),
	})
	s.logg.Info(ctx, "order status changed")
}

func validateItems(items []ItemRequest) ([]uuid.UUID, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if item.Quantity > 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each device is unique; quantity must be 1")
		}
		if _, dup := seen[item.ItemID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate item in order")
		}
		seen[item.ItemID] = struct{}{}
		ids = append(ids, item.ItemID)
	}
	return ids, nil
}

func isFulfilmentStatus(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPreparing, enums.OrderStatusShipping, enums.OrderStatusDelivered, enums.OrderStatusCompleted:
		return true
	default:
		return false
	}
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

