package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/pagination"
)

type stubAvailability struct {
	setAvailability func(ctx context.Context, tx *gorm.DB, tenantID, itemID uuid.UUID, available bool) (*models.InventoryItem, error)
}

func (s stubAvailability) SetAvailability(ctx context.Context, tx *gorm.DB, tenantID, itemID uuid.UUID, available bool) (*models.InventoryItem, error) {
	return s.setAvailability(ctx, tx, tenantID, itemID, available)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.InventoryItem{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), stubAvailability{
		setAvailability: func(ctx context.Context, tx *gorm.DB, tenantID, itemID uuid.UUID, available bool) (*models.InventoryItem, error) {
			return &models.InventoryItem{ID: itemID, TenantID: tenantID, Status: enums.InventoryStatusUnavailable}, nil
		},
	})
	require.NoError(t, err)
	return svc
}

func TestCreateStartsAvailable(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, newTestDB(t))
	tenant := uuid.New()

	item, err := svc.Create(context.Background(), CreateInput{
		TenantID:  tenant,
		SKU:       " IP15-128-BLK ",
		Name:      "iPhone 15",
		ModelName: "A3090",
		Grade:     "s",
		Price:     950000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.InventoryStatusAvailable, item.Status)
	assert.Equal(t, "IP15-128-BLK", item.SKU)
	assert.Equal(t, "S", item.Grade)

	got, err := svc.Get(context.Background(), tenant, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(950000), got.Price)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, newTestDB(t))
	input := CreateInput{TenantID: uuid.New(), SKU: "DUP", Name: "Pixel 8", ModelName: "GKWS6", Price: 500000}

	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, newTestDB(t))

	_, err := svc.Create(context.Background(), CreateInput{TenantID: uuid.New(), SKU: "X", Name: "Y", ModelName: "Z", Price: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(context.Background(), CreateInput{SKU: "X", Name: "Y", ModelName: "Z"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetOtherTenantIsNotFound(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, newTestDB(t))
	item, err := svc.Create(context.Background(), CreateInput{TenantID: uuid.New(), SKU: "A", Name: "n", ModelName: "m", Price: 1})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), item.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginatesNewestFirstWithStatusFilter(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := newTestService(t, db)
	tenant := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		item := models.InventoryItem{
			TenantID:  tenant,
			SKU:       uuid.NewString(),
			Name:      "device",
			ModelName: "model",
			Price:     int64(1000 * (i + 1)),
			Status:    enums.InventoryStatusAvailable,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&item).Error)
		ids = append(ids, item.ID)
	}
	sold := models.InventoryItem{TenantID: tenant, SKU: "sold", Name: "d", ModelName: "m", Status: enums.InventoryStatusSold}
	require.NoError(t, db.Create(&sold).Error)

	status := enums.InventoryStatusAvailable
	first, err := svc.List(context.Background(), tenant, pagination.Params{Limit: 2}, ListFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[2], first.Items[0].ID)
	assert.Equal(t, ids[1], first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(context.Background(), tenant, pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[0], second.Items[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = svc.List(context.Background(), tenant, pagination.Params{Cursor: "not-base64!"}, ListFilters{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSetAvailabilityDelegates(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, newTestDB(t))
	item, err := svc.SetAvailability(context.Background(), uuid.New(), uuid.New(), false)
	require.NoError(t, err)
	assert.Equal(t, enums.InventoryStatusUnavailable, item.Status)
}
