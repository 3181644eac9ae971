package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	internalcatalog "github.com/angelmondragon/devicetrade-backend/internal/catalog"
	internalorders "github.com/angelmondragon/devicetrade-backend/internal/orders"
	internalpayments "github.com/angelmondragon/devicetrade-backend/internal/payments"
	internalsellrequests "github.com/angelmondragon/devicetrade-backend/internal/sellrequests"
	"github.com/angelmondragon/devicetrade-backend/pkg/auth"
	"github.com/angelmondragon/devicetrade-backend/pkg/config"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryStore) RateLimitKey(scope string) string {
	return "rate:" + scope
}

func (m *memoryStore) Ping(context.Context) error {
	return nil
}

type stubCatalog struct{ creates int }

func (s *stubCatalog) Create(_ context.Context, input internalcatalog.CreateInput) (*models.InventoryItem, error) {
	s.creates++
	return &models.InventoryItem{ID: uuid.New(), TenantID: input.TenantID, SKU: input.SKU, Status: enums.InventoryStatusAvailable}, nil
}

func (s *stubCatalog) Get(_ context.Context, tenantID, id uuid.UUID) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id, TenantID: tenantID, Status: enums.InventoryStatusAvailable}, nil
}

func (s *stubCatalog) List(context.Context, uuid.UUID, pagination.Params, internalcatalog.ListFilters) (pagination.Page[models.InventoryItem], error) {
	return pagination.Page[models.InventoryItem]{Items: []models.InventoryItem{}}, nil
}

func (s *stubCatalog) SetAvailability(_ context.Context, tenantID, id uuid.UUID, available bool) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id, TenantID: tenantID}, nil
}

type stubOrders struct{}

func (stubOrders) Create(_ context.Context, input internalorders.CreateInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), TenantID: input.TenantID, UserID: input.UserID, Status: enums.OrderStatusPendingPayment}, nil
}

func (stubOrders) Cancel(_ context.Context, input internalorders.CancelInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (stubOrders) Transition(_ context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: input.To}, nil
}

func (stubOrders) Get(_ context.Context, input internalorders.GetInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID}, nil
}

func (stubOrders) GetByNumber(context.Context, uuid.UUID, string) (*models.Order, error) {
	return nil, errors.New("not implemented")
}

func (stubOrders) ListForUser(context.Context, uuid.UUID, uuid.UUID, pagination.Params) (pagination.Page[models.Order], error) {
	return pagination.Page[models.Order]{Items: []models.Order{}}, nil
}

func (stubOrders) ExpireStale(context.Context, time.Time, int) (internalorders.ExpireResult, error) {
	return internalorders.ExpireResult{}, nil
}

type stubPayments struct{ calls int }

func (s *stubPayments) Confirm(_ context.Context, input internalpayments.ConfirmInput) (*internalpayments.ConfirmResult, error) {
	s.calls++
	return &internalpayments.ConfirmResult{Message: "payment confirmed", OrderNumber: input.OrderNumber}, nil
}

type stubSellRequests struct{}

func (stubSellRequests) Create(_ context.Context, input internalsellrequests.CreateInput) (*models.SellRequest, error) {
	return &models.SellRequest{ID: uuid.New(), Status: enums.SellRequestStatusPending}, nil
}

func (stubSellRequests) Get(_ context.Context, _, id uuid.UUID, _ internalsellrequests.Actor) (*models.SellRequest, error) {
	return &models.SellRequest{ID: id}, nil
}

func (stubSellRequests) AddQuote(_ context.Context, input internalsellrequests.AddQuoteInput) (*models.Quote, error) {
	return &models.Quote{ID: uuid.New(), Price: input.Price}, nil
}

func (stubSellRequests) AcceptQuote(_ context.Context, input internalsellrequests.AcceptQuoteInput) (*models.SellRequest, error) {
	return &models.SellRequest{ID: input.SellRequestID, Status: enums.SellRequestStatusAccepted}, nil
}

func (stubSellRequests) AddTrackingNumber(_ context.Context, input internalsellrequests.TrackingInput) (*models.SellRequest, error) {
	return &models.SellRequest{ID: input.SellRequestID, Status: enums.SellRequestStatusShipping}, nil
}

func (stubSellRequests) Transition(_ context.Context, input internalsellrequests.TransitionInput) (*models.SellRequest, error) {
	return &models.SellRequest{ID: input.SellRequestID, Status: input.To}, nil
}

func (stubSellRequests) Cancel(_ context.Context, input internalsellrequests.CancelInput) (*models.SellRequest, error) {
	return &models.SellRequest{ID: input.SellRequestID, Status: enums.SellRequestStatusCancelled}, nil
}

var testTenant = uuid.MustParse("0b1c2d3e-0000-4000-8000-0000000000aa")

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		Eventing: config.EventingConfig{IdempotencyTTL: time.Hour},
	}
}

type testRouter struct {
	handler  http.Handler
	store    *memoryStore
	catalog  *stubCatalog
	payments *stubPayments
}

func newTestRouter(cfg *config.Config, db stubPinger) testRouter {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	catalog := &stubCatalog{}
	payments := &stubPayments{}
	store := newMemoryStore()
	handler := NewRouter(cfg, logg, db, store, http.NotFoundHandler(), Services{
		Catalog:      catalog,
		Orders:       stubOrders{},
		Payments:     payments,
		SellRequests: stubSellRequests{},
	})
	return testRouter{handler: handler, store: store, catalog: catalog, payments: payments}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func apiRequest(t *testing.T, cfg *config.Config, method, path, body string, role enums.ActorRole) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
	req.Header.Set("X-Tenant-ID", testTenant.String())
	return req
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})

	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from live got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from ready got %d", resp.Code)
	}

	down := newTestRouter(testConfig(), stubPinger{err: errors.New("db down")})
	resp = httptest.NewRecorder()
	down.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when db is down got %d", resp.Code)
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAPIRequiresTenantHeader(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	req := apiRequest(t, cfg, http.MethodGet, "/api/v1/orders", "", enums.ActorRoleCustomer)
	req.Header.Del("X-Tenant-ID")
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant got %d", resp.Code)
	}
}

func TestCustomerRoutesSucceed(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	paths := []string{
		"/api/v1/items",
		"/api/v1/items/" + uuid.NewString(),
		"/api/v1/orders",
		"/api/v1/orders/" + uuid.NewString(),
		"/api/v1/sell-requests/" + uuid.NewString(),
	}
	for _, path := range paths {
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, apiRequest(t, cfg, http.MethodGet, path, "", enums.ActorRoleCustomer))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestOperatorRoutesRequireStaff(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/v1/items", `{"sku":"S-1","name":"Galaxy S21","model_name":"SM-G991N","price":400000}`},
		{http.MethodPost, "/api/v1/items/" + uuid.NewString() + "/availability", `{"available":false}`},
		{http.MethodPost, "/api/v1/orders/" + uuid.NewString() + "/status", `{"status":"PREPARING"}`},
		{http.MethodPost, "/api/v1/sell-requests/" + uuid.NewString() + "/quotes", `{"price":1000}`},
		{http.MethodPost, "/api/v1/sell-requests/" + uuid.NewString() + "/status", `{"status":"INSPECTING"}`},
	}
	for i, tc := range cases {
		customer := apiRequest(t, cfg, tc.method, tc.path, tc.body, enums.ActorRoleCustomer)
		customer.Header.Set("Idempotency-Key", fmt.Sprintf("customer-%d", i))
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, customer)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for customer on %s got %d", tc.path, resp.Code)
		}

		operator := apiRequest(t, cfg, tc.method, tc.path, tc.body, enums.ActorRoleOperator)
		operator.Header.Set("Idempotency-Key", fmt.Sprintf("operator-%d", i))
		resp = httptest.NewRecorder()
		router.handler.ServeHTTP(resp, operator)
		if resp.Code >= 300 {
			t.Fatalf("expected success for operator on %s got %d: %s", tc.path, resp.Code, resp.Body.String())
		}
	}
}

func TestMutatingRoutesRequireIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	req := apiRequest(t, cfg, http.MethodPost, "/api/v1/payments/confirm", `{"paymentKey":"pk","orderId":"DT-1","amount":1000}`, enums.ActorRoleCustomer)
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
	if router.payments.calls != 0 {
		t.Fatalf("confirm should not run without a key")
	}
}

func TestConfirmReplaysStoredResponse(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	body := `{"paymentKey":"pk","orderId":"DT-1","amount":1000}`

	for i := 0; i < 2; i++ {
		req := apiRequest(t, cfg, http.MethodPost, "/api/v1/payments/confirm", body, enums.ActorRoleCustomer)
		req.Header.Set("Idempotency-Key", "confirm-1")
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if router.payments.calls != 1 {
		t.Fatalf("expected confirm to run once, ran %d times", router.payments.calls)
	}
}

func TestConfirmIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.ConfirmWindow = time.Minute
	cfg.RateLimit.ConfirmActorLimit = 1
	router := newTestRouter(cfg, stubPinger{})
	token := buildToken(t, cfg, enums.ActorRoleCustomer)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader(`{"paymentKey":"pk","orderId":"DT-1","amount":1000}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Tenant-ID", testTenant.String())
		req.Header.Set("Idempotency-Key", fmt.Sprintf("confirm-%d", i))
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 429] got %v", codes)
	}
}

func TestRateLimitedConfirmCanRetryWithSameKey(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.ConfirmWindow = time.Minute
	cfg.RateLimit.ConfirmActorLimit = 1
	router := newTestRouter(cfg, stubPinger{})
	token := buildToken(t, cfg, enums.ActorRoleCustomer)

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader(`{"paymentKey":"pk","orderId":"DT-1","amount":1000}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Tenant-ID", testTenant.String())
		req.Header.Set("Idempotency-Key", key)
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, req)
		return resp
	}

	if resp := send("confirm-a"); resp.Code != http.StatusOK {
		t.Fatalf("expected first confirm to pass, got %d", resp.Code)
	}
	if resp := send("confirm-b"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}

	// window rolls over
	router.store.mu.Lock()
	router.store.counters = map[string]int64{}
	router.store.mu.Unlock()

	resp := send("confirm-b")
	if resp.Code != http.StatusOK || resp.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("expected retry after 429 to run, got %d replayed=%q", resp.Code, resp.Header().Get("Idempotent-Replayed"))
	}
	if router.payments.calls != 2 {
		t.Fatalf("expected confirm to run twice, ran %d times", router.payments.calls)
	}
}
