package sellrequests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicetrade-backend/api/middleware"
	internalsellrequests "github.com/angelmondragon/devicetrade-backend/internal/sellrequests"
	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
)

type stubService struct {
	create     internalsellrequests.CreateInput
	quote      internalsellrequests.AddQuoteInput
	accept     internalsellrequests.AcceptQuoteInput
	tracking   internalsellrequests.TrackingInput
	transition internalsellrequests.TransitionInput
	cancel     internalsellrequests.CancelInput
	getActor   internalsellrequests.Actor
	sr         *models.SellRequest
	err        error
}

func (s *stubService) Create(_ context.Context, input internalsellrequests.CreateInput) (*models.SellRequest, error) {
	s.create = input
	return s.sr, s.err
}

func (s *stubService) Get(_ context.Context, _, _ uuid.UUID, actor internalsellrequests.Actor) (*models.SellRequest, error) {
	s.getActor = actor
	return s.sr, s.err
}

func (s *stubService) AddQuote(_ context.Context, input internalsellrequests.AddQuoteInput) (*models.Quote, error) {
	s.quote = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Quote{ID: uuid.New(), SellRequestID: input.SellRequestID, Price: input.Price, Note: input.Note}, nil
}

func (s *stubService) AcceptQuote(_ context.Context, input internalsellrequests.AcceptQuoteInput) (*models.SellRequest, error) {
	s.accept = input
	return s.sr, s.err
}

func (s *stubService) AddTrackingNumber(_ context.Context, input internalsellrequests.TrackingInput) (*models.SellRequest, error) {
	s.tracking = input
	return s.sr, s.err
}

func (s *stubService) Transition(_ context.Context, input internalsellrequests.TransitionInput) (*models.SellRequest, error) {
	s.transition = input
	return s.sr, s.err
}

func (s *stubService) Cancel(_ context.Context, input internalsellrequests.CancelInput) (*models.SellRequest, error) {
	s.cancel = input
	return s.sr, s.err
}

func newRequest(method, body string, role enums.ActorRole, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithActor(ctx, uuid.New(), role)
	ctx = middleware.WithTenantID(ctx, uuid.New())
	return req.WithContext(ctx)
}

func sampleSellRequest(status enums.SellRequestStatus) *models.SellRequest {
	return &models.SellRequest{
		ID:        uuid.New(),
		Brand:     "Apple",
		ModelName: "iPhone 12",
		Condition: "B",
		Status:    status,
		Quotes:    []models.Quote{{ID: uuid.New(), Price: 300000}},
	}
}

func TestCreateSellRequest(t *testing.T) {
	svc := &stubService{sr: sampleSellRequest(enums.SellRequestStatusPending)}
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"brand":"Apple","model_name":"iPhone 12","storage":"128GB","condition":"B"}`, enums.ActorRoleCustomer, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Apple", svc.create.Brand)
	require.NotNil(t, svc.create.Storage)
	assert.Equal(t, "128GB", *svc.create.Storage)

	var body struct {
		Data sellRequestResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, enums.SellRequestStatusPending, body.Data.Status)
	assert.Len(t, body.Data.Quotes, 1)

	rec = httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"brand":"Apple"}`, enums.ActorRoleCustomer, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSellRequestForwardsActor(t *testing.T) {
	svc := &stubService{sr: sampleSellRequest(enums.SellRequestStatusPending)}
	rec := httptest.NewRecorder()
	Get(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "", enums.ActorRoleOperator, map[string]string{"sellRequestId": uuid.NewString()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ActorRoleOperator, svc.getActor.Role)
}

func TestAddQuote(t *testing.T) {
	svc := &stubService{}
	id := uuid.New()
	rec := httptest.NewRecorder()
	AddQuote(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"price":320000,"note":"minor scratches"}`, enums.ActorRoleOperator, map[string]string{"sellRequestId": id.String()}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, id, svc.quote.SellRequestID)
	assert.Equal(t, int64(320000), svc.quote.Price)

	rec = httptest.NewRecorder()
	AddQuote(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"price":0}`, enums.ActorRoleOperator, map[string]string{"sellRequestId": id.String()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptQuote(t *testing.T) {
	svc := &stubService{sr: sampleSellRequest(enums.SellRequestStatusAccepted)}
	quoteID := uuid.New()
	rec := httptest.NewRecorder()
	AcceptQuote(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "", enums.ActorRoleCustomer, map[string]string{"sellRequestId": uuid.NewString(), "quoteId": quoteID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, quoteID, svc.accept.QuoteID)

	rec = httptest.NewRecorder()
	AcceptQuote(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "", enums.ActorRoleCustomer, map[string]string{"sellRequestId": uuid.NewString(), "quoteId": "bad"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddTrackingNumber(t *testing.T) {
	svc := &stubService{sr: sampleSellRequest(enums.SellRequestStatusShipping)}
	rec := httptest.NewRecorder()
	AddTrackingNumber(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"carrier":"CJ","tracking_number":"1234-5678"}`, enums.ActorRoleCustomer, map[string]string{"sellRequestId": uuid.NewString()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CJ", svc.tracking.Carrier)
	assert.Equal(t, "1234-5678", svc.tracking.TrackingNumber)
}

func TestTransitionSellRequest(t *testing.T) {
	svc := &stubService{sr: sampleSellRequest(enums.SellRequestStatusInspecting)}
	rec := httptest.NewRecorder()
	Transition(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"status":"inspecting"}`, enums.ActorRoleOperator, map[string]string{"sellRequestId": uuid.NewString()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.SellRequestStatusInspecting, svc.transition.To)

	svc.err = pkgerrors.New(pkgerrors.CodeInvalidState, "sell request cannot be moved to COMPLETED")
	rec = httptest.NewRecorder()
	Transition(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"status":"completed"}`, enums.ActorRoleOperator, map[string]string{"sellRequestId": uuid.NewString()}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCancelSellRequest(t *testing.T) {
	svc := &stubService{sr: sampleSellRequest(enums.SellRequestStatusCancelled)}
	rec := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "", enums.ActorRoleCustomer, map[string]string{"sellRequestId": uuid.NewString()}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.cancel.Reason)

	rec = httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, `{"reason":"sold elsewhere"}`, enums.ActorRoleCustomer, map[string]string{"sellRequestId": uuid.NewString()}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sold elsewhere", svc.cancel.Reason)
}
