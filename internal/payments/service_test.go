package payments

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/internal/catalog"
	"github.com/angelmondragon/devicetrade-backend/internal/orders"
	"github.com/angelmondragon/devicetrade-backend/internal/reservation"
	pkgdb "github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox"
	"github.com/angelmondragon/devicetrade-backend/pkg/paymentgateway"
	"github.com/angelmondragon/devicetrade-backend/pkg/types"
)

type memoryLockStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) LockKey(scope, id string) string {
	return "dt:lock:" + scope + ":" + id
}

func (m *memoryLockStore) ReleaseLock(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

type stubGateway struct {
	confirmFn    func(ctx context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error)
	lookupFn     func(ctx context.Context, orderID string) (*paymentgateway.Payment, error)
	confirmCalls int
	lookupCalls  int
}

func (s *stubGateway) Confirm(ctx context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
	s.confirmCalls++
	return s.confirmFn(ctx, req)
}

func (s *stubGateway) GetByOrderID(ctx context.Context, orderID string) (*paymentgateway.Payment, error) {
	s.lookupCalls++
	if s.lookupFn == nil {
		return nil, errors.New("lookup not stubbed")
	}
	return s.lookupFn(ctx, orderID)
}

func donePayment(req paymentgateway.ConfirmRequest, method string) *paymentgateway.Payment {
	approved := time.Date(2026, 10, 17, 5, 0, 0, 0, time.UTC)
	return &paymentgateway.Payment{
		PaymentKey:  req.PaymentKey,
		OrderID:     req.OrderID,
		Status:      paymentgateway.StatusDone,
		Method:      method,
		TotalAmount: req.Amount,
		ApprovedAt:  &approved,
		Raw:         json.RawMessage(`{"status":"DONE"}`),
	}
}

func succeedingGateway(method string) *stubGateway {
	return &stubGateway{confirmFn: func(_ context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		return donePayment(req, method), nil
	}}
}

type testEnv struct {
	db       *gorm.DB
	orders   orders.Service
	svc      Service
	gateway  *stubGateway
	locks    *memoryLockStore
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.TradeModels()...))
	return db
}

func newTestEnv(t *testing.T, gateway *stubGateway) *testEnv {
	t.Helper()
	db := newTestDB(t)
	client := pkgdb.NewFromConn(db)
	manager, err := reservation.NewManager(catalog.NewRepository(db), client, metrics.NewTradeMetrics(nil))
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	orderRepo := orders.NewRepository(db)
	orderSvc, err := orders.NewService(orderRepo, client, publisher, manager, nil, nil)
	require.NoError(t, err)

	locks := newMemoryLockStore()
	locker, err := NewRedisLocker(locks, time.Minute)
	require.NoError(t, err)
	svc, err := NewService(Deps{
		Orders:    orderRepo,
		Payments:  NewRepository(db),
		Tx:        client,
		Outbox:    publisher,
		Inventory: manager,
		Gateway:   gateway,
		Lock:      locker,
		Metrics:   metrics.NewTradeMetrics(nil),
	})
	require.NoError(t, err)
	return &testEnv{
		db:       db,
		orders:   orderSvc,
		svc:      svc,
		gateway:  gateway,
		locks:    locks,
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
}

func (e *testEnv) placeOrder(t *testing.T, prices ...int64) (*models.Order, []uuid.UUID) {
	t.Helper()
	input := orders.CreateInput{
		TenantID: e.tenantID,
		UserID:   e.userID,
		Shipping: types.ShippingInfo{RecipientName: "Park Jisoo", Phone: "010-9876-5432", PostalCode: "04524", Line1: "1 Sejong-daero"},
	}
	ids := make([]uuid.UUID, 0, len(prices))
	for _, price := range prices {
		item := models.InventoryItem{
			TenantID:  e.tenantID,
			SKU:       "SKU-" + uuid.NewString()[:8],
			Name:      "Galaxy Z Flip5",
			ModelName: "SM-F731N",
			Grade:     "A",
			Price:     price,
			Status:    enums.InventoryStatusAvailable,
		}
		require.NoError(t, e.db.Create(&item).Error)
		ids = append(ids, item.ID)
		input.Items = append(input.Items, orders.ItemRequest{ItemID: item.ID, Quantity: 1})
	}
	order, err := e.orders.Create(context.Background(), input)
	require.NoError(t, err)
	return order, ids
}

func (e *testEnv) confirmInput(order *models.Order, amount int64) ConfirmInput {
	return ConfirmInput{
		TenantID:    e.tenantID,
		ActorUserID: e.userID,
		ActorRole:   enums.ActorRoleCustomer,
		PaymentKey:  "tgen_20261017_" + order.OrderNumber,
		OrderNumber: order.OrderNumber,
		Amount:      amount,
	}
}

func (e *testEnv) orderStatus(t *testing.T, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, e.db.First(&order, "id = ?", id).Error)
	return order.Status
}

func (e *testEnv) itemStatuses(t *testing.T, ids []uuid.UUID) []enums.InventoryStatus {
	t.Helper()
	var items []models.InventoryItem
	require.NoError(t, e.db.Where("id IN ?", ids).Find(&items).Error)
	out := make([]enums.InventoryStatus, 0, len(items))
	for _, item := range items {
		out = append(out, item.Status)
	}
	return out
}

func (e *testEnv) payments(t *testing.T) []models.Payment {
	t.Helper()
	var rows []models.Payment
	require.NoError(t, e.db.Find(&rows).Error)
	return rows
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), typed.Message())
	return typed
}

func TestConfirmSettlesOrderAndIsNotRepeatable(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("카드"))
	order, itemIDs := env.placeOrder(t, 1_200_000, 800_000)
	require.EqualValues(t, 2_000_000, order.TotalAmount)

	result, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 2_000_000))
	require.NoError(t, err)
	assert.Equal(t, "payment confirmed", result.Message)
	assert.Equal(t, order.OrderNumber, result.OrderNumber)
	assert.Equal(t, enums.PaymentMethodCard, result.Method)
	assert.False(t, result.Recovered)

	assert.Equal(t, enums.OrderStatusPaid, env.orderStatus(t, order.ID))
	assert.Equal(t, []enums.InventoryStatus{enums.InventoryStatusSold, enums.InventoryStatusSold}, env.itemStatuses(t, itemIDs))

	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, result.PaymentID, rows[0].ID)
	assert.Equal(t, enums.PaymentStatusCompleted, rows[0].Status)
	assert.EqualValues(t, 2_000_000, rows[0].Amount)
	assert.JSONEq(t, `{"status":"DONE"}`, string(rows[0].RawResponse))
	require.NotNil(t, rows[0].ApprovedAt)

	var events int64
	require.NoError(t, env.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPaymentCompleted).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	_, err = env.svc.Confirm(context.Background(), env.confirmInput(order, 2_000_000))
	requireCode(t, err, pkgerrors.CodeInvalidState)
	assert.Len(t, env.payments(t), 1)
	assert.Equal(t, 1, env.gateway.confirmCalls)

	_, err = env.orders.Cancel(context.Background(), orders.CancelInput{
		TenantID:    env.tenantID,
		OrderID:     order.ID,
		ActorUserID: env.userID,
		ActorRole:   enums.ActorRoleCustomer,
	})
	requireCode(t, err, pkgerrors.CodeInvalidState)
	assert.Equal(t, enums.OrderStatusPaid, env.orderStatus(t, order.ID))
}

func TestConfirmRejectsAmountMismatch(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("CARD"))
	order, itemIDs := env.placeOrder(t, 1_200_000, 800_000)

	for _, amount := range []int64{1_999_999, 2_000_001} {
		_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, amount))
		typed := requireCode(t, err, pkgerrors.CodeConflict)
		details, ok := typed.Details().(AmountDetails)
		require.True(t, ok)
		assert.EqualValues(t, 2_000_000, details.Expected)
		assert.Equal(t, amount, details.Received)
	}

	assert.Zero(t, env.gateway.confirmCalls)
	assert.Empty(t, env.payments(t))
	assert.Equal(t, enums.OrderStatusPendingPayment, env.orderStatus(t, order.ID))
	assert.Equal(t, []enums.InventoryStatus{enums.InventoryStatusReserved, enums.InventoryStatusReserved}, env.itemStatuses(t, itemIDs))
}

func TestConfirmGatewayRejectionRecordsFailureAndAllowsRetry(t *testing.T) {
	gateway := &stubGateway{confirmFn: func(context.Context, paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		return nil, &paymentgateway.GatewayError{StatusCode: 400, Code: "REJECT_CARD_PAYMENT", Message: "한도초과 혹은 잔액부족으로 결제에 실패했습니다."}
	}}
	env := newTestEnv(t, gateway)
	order, itemIDs := env.placeOrder(t, 650_000)

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 650_000))
	typed := requireCode(t, err, pkgerrors.CodePaymentFailed)
	assert.Equal(t, "한도초과 혹은 잔액부족으로 결제에 실패했습니다.", typed.Message())

	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.PaymentStatusFailed, rows[0].Status)
	require.NotNil(t, rows[0].FailureReason)
	assert.Equal(t, enums.OrderStatusPendingPayment, env.orderStatus(t, order.ID))
	assert.Equal(t, []enums.InventoryStatus{enums.InventoryStatusReserved}, env.itemStatuses(t, itemIDs))

	gateway.confirmFn = func(_ context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		return donePayment(req, "간편결제"), nil
	}
	result, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 650_000))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodEasyPay, result.Method)

	rows = env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, rows[0].ID, result.PaymentID)
	assert.Equal(t, enums.PaymentStatusCompleted, rows[0].Status)
	assert.Nil(t, rows[0].FailureReason)
}

func TestConfirmTransportFailureUsesGenericMessage(t *testing.T) {
	gateway := &stubGateway{confirmFn: func(context.Context, paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, context.DeadlineExceeded, "payment gateway request failed")
	}}
	env := newTestEnv(t, gateway)
	order, _ := env.placeOrder(t, 300_000)

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 300_000))
	typed := requireCode(t, err, pkgerrors.CodePaymentFailed)
	assert.Equal(t, "payment confirmation failed", typed.Message())
	assert.Equal(t, enums.OrderStatusPendingPayment, env.orderStatus(t, order.ID))
}

func TestConfirmUnrecognizedGatewayBodyUsesGenericMessage(t *testing.T) {
	const page = "<html><head><title>502 Bad Gateway</title></head><body>nginx upstream 10.0.4.17:8443</body></html>"
	gateway := &stubGateway{confirmFn: func(context.Context, paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		return nil, &paymentgateway.GatewayError{StatusCode: 502, Body: page}
	}}
	env := newTestEnv(t, gateway)
	order, _ := env.placeOrder(t, 300_000)

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 300_000))
	typed := requireCode(t, err, pkgerrors.CodePaymentFailed)
	assert.Equal(t, "payment confirmation failed", typed.Message())

	rows := env.payments(t)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].FailureReason)
	assert.Equal(t, "payment confirmation failed", *rows[0].FailureReason)
	assert.Equal(t, enums.OrderStatusPendingPayment, env.orderStatus(t, order.ID))
}

func TestConfirmRecoversAlreadyProcessedPayment(t *testing.T) {
	var confirmed paymentgateway.ConfirmRequest
	gateway := &stubGateway{
		confirmFn: func(_ context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
			confirmed = req
			return nil, &paymentgateway.GatewayError{StatusCode: 400, Code: paymentgateway.CodeAlreadyProcessed, Message: "이미 처리된 결제 입니다."}
		},
		lookupFn: func(_ context.Context, orderID string) (*paymentgateway.Payment, error) {
			return donePayment(confirmed, "TRANSFER"), nil
		},
	}
	env := newTestEnv(t, gateway)
	order, itemIDs := env.placeOrder(t, 410_000)

	result, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 410_000))
	require.NoError(t, err)
	assert.True(t, result.Recovered)
	assert.Equal(t, enums.PaymentMethodTransfer, result.Method)
	assert.Equal(t, 1, gateway.lookupCalls)
	assert.Equal(t, enums.OrderStatusPaid, env.orderStatus(t, order.ID))
	assert.Equal(t, []enums.InventoryStatus{enums.InventoryStatusSold}, env.itemStatuses(t, itemIDs))
}

func TestConfirmAlreadyProcessedWithForeignKeyIsRejected(t *testing.T) {
	gateway := &stubGateway{
		confirmFn: func(context.Context, paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
			return nil, &paymentgateway.GatewayError{StatusCode: 400, Code: paymentgateway.CodeAlreadyProcessed, Message: "이미 처리된 결제 입니다."}
		},
		lookupFn: func(_ context.Context, orderID string) (*paymentgateway.Payment, error) {
			return &paymentgateway.Payment{PaymentKey: "someone-else", OrderID: orderID, Status: paymentgateway.StatusDone, TotalAmount: 410_000}, nil
		},
	}
	env := newTestEnv(t, gateway)
	order, _ := env.placeOrder(t, 410_000)

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 410_000))
	requireCode(t, err, pkgerrors.CodePaymentFailed)
	assert.Equal(t, enums.OrderStatusPendingPayment, env.orderStatus(t, order.ID))
}

func TestConfirmUnsettledPaymentStaysPending(t *testing.T) {
	gateway := &stubGateway{confirmFn: func(_ context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		p := donePayment(req, "가상계좌")
		p.Status = "WAITING_FOR_DEPOSIT"
		return p, nil
	}}
	env := newTestEnv(t, gateway)
	order, _ := env.placeOrder(t, 120_000)

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 120_000))
	requireCode(t, err, pkgerrors.CodePaymentFailed)

	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.PaymentStatusPending, rows[0].Status)
	assert.Equal(t, enums.PaymentMethodVirtualAccount, rows[0].Method)
	assert.Equal(t, enums.OrderStatusPendingPayment, env.orderStatus(t, order.ID))
}

func TestConfirmCancelledOrderIsInvalidState(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("CARD"))
	order, _ := env.placeOrder(t, 99_000)
	_, err := env.orders.Cancel(context.Background(), orders.CancelInput{
		TenantID:    env.tenantID,
		OrderID:     order.ID,
		ActorUserID: env.userID,
		ActorRole:   enums.ActorRoleCustomer,
	})
	require.NoError(t, err)

	_, err = env.svc.Confirm(context.Background(), env.confirmInput(order, 99_000))
	requireCode(t, err, pkgerrors.CodeInvalidState)
	assert.Zero(t, env.gateway.confirmCalls)
	assert.Empty(t, env.payments(t))
}

func TestConfirmLosesRaceWithCancel(t *testing.T) {
	gateway := &stubGateway{}
	env := newTestEnv(t, gateway)
	order, itemIDs := env.placeOrder(t, 250_000)
	gateway.confirmFn = func(_ context.Context, req paymentgateway.ConfirmRequest) (*paymentgateway.Payment, error) {
		// the buyer cancels while the gateway call is in flight
		_, err := env.orders.Cancel(context.Background(), orders.CancelInput{
			TenantID:    env.tenantID,
			OrderID:     order.ID,
			ActorUserID: env.userID,
			ActorRole:   enums.ActorRoleCustomer,
		})
		if err != nil {
			return nil, err
		}
		return donePayment(req, "CARD"), nil
	}

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 250_000))
	requireCode(t, err, pkgerrors.CodeInvalidState)
	assert.Equal(t, enums.OrderStatusCancelled, env.orderStatus(t, order.ID))
	assert.Equal(t, []enums.InventoryStatus{enums.InventoryStatusAvailable}, env.itemStatuses(t, itemIDs))
	assert.Empty(t, env.payments(t))
}

func TestConfirmWhileLockHeldIsConflict(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("CARD"))
	order, _ := env.placeOrder(t, 180_000)
	env.locks.values[env.locks.LockKey(confirmLockScope, order.OrderNumber)] = "other-owner"

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 180_000))
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Zero(t, env.gateway.confirmCalls)
	assert.Equal(t, "other-owner", env.locks.values[env.locks.LockKey(confirmLockScope, order.OrderNumber)])
}

func TestConfirmReleasesLock(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("CARD"))
	order, _ := env.placeOrder(t, 180_000)

	_, err := env.svc.Confirm(context.Background(), env.confirmInput(order, 180_000))
	require.NoError(t, err)
	assert.Empty(t, env.locks.values)
}

func TestConfirmScopesToBuyer(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("CARD"))
	order, _ := env.placeOrder(t, 180_000)

	input := env.confirmInput(order, 180_000)
	input.ActorUserID = uuid.New()
	_, err := env.svc.Confirm(context.Background(), input)
	requireCode(t, err, pkgerrors.CodeNotFound)

	input.OrderNumber = "20990101-MISSING0"
	input.ActorUserID = env.userID
	_, err = env.svc.Confirm(context.Background(), input)
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Zero(t, env.gateway.confirmCalls)
}

func TestConfirmValidatesInput(t *testing.T) {
	env := newTestEnv(t, succeedingGateway("CARD"))
	base := ConfirmInput{TenantID: env.tenantID, ActorUserID: env.userID, PaymentKey: "pk", OrderNumber: "20261017-AAAAAAAA", Amount: 1000}

	noKey := base
	noKey.PaymentKey = "  "
	noNumber := base
	noNumber.OrderNumber = ""
	zero := base
	zero.Amount = 0

	for _, input := range []ConfirmInput{noKey, noNumber, zero} {
		_, err := env.svc.Confirm(context.Background(), input)
		requireCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestRedisLockerOnlyReleasesOwnToken(t *testing.T) {
	t.Parallel()

	store := newMemoryLockStore()
	locker, err := NewRedisLocker(store, 0)
	require.NoError(t, err)

	unlock, ok, err := locker.TryLock(context.Background(), "20261017-AAAAAAAA")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(context.Background(), "20261017-AAAAAAAA")
	require.NoError(t, err)
	assert.False(t, ok)

	key := store.LockKey(confirmLockScope, "20261017-AAAAAAAA")
	store.values[key] = "taken-over"
	require.NoError(t, unlock(context.Background()))
	assert.Equal(t, "taken-over", store.values[key])

	delete(store.values, key)
	require.NoError(t, unlock(context.Background()))

	_, err = NewRedisLocker(nil, time.Second)
	require.Error(t, err)
}

func TestRecordAttemptNeverOverwritesCompleted(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	orderID := uuid.New()

	completed := &models.Payment{OrderID: orderID, TenantID: uuid.New(), PaymentKey: "pk_1", Amount: 5000, Method: enums.PaymentMethodCard}
	require.NoError(t, repo.UpsertCompleted(context.Background(), completed))

	reason := "late failure"
	require.NoError(t, repo.RecordAttempt(context.Background(), &models.Payment{
		OrderID:       orderID,
		TenantID:      completed.TenantID,
		PaymentKey:    "pk_2",
		Amount:        5000,
		Method:        enums.PaymentMethodUnknown,
		Status:        enums.PaymentStatusFailed,
		FailureReason: &reason,
	}))

	stored, err := repo.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, completed.ID, stored.ID)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, "pk_1", stored.PaymentKey)
	assert.Nil(t, stored.FailureReason)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewService(Deps{})
	require.Error(t, err)
}
