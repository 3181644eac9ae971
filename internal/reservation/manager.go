package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ItemLocker reads inventory rows with a row lock inside the caller's transaction.
type ItemLocker interface {
	LockByIDs(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]models.InventoryItem, error)
}

// ItemIDsDetails lists the inventory ids that caused a reservation failure.
type ItemIDsDetails struct {
	ItemIDs []uuid.UUID `json:"item_ids"`
}

// Manager flips inventory item statuses between AVAILABLE, RESERVED and SOLD.
// Every batch is applied in one transaction: the caller's when given, its own otherwise.
type Manager struct {
	items   ItemLocker
	tx      txRunner
	metrics *metrics.TradeMetrics
	now     func() time.Time
}

// NewManager builds a Manager. tx may be nil when every caller supplies its own transaction.
func NewManager(items ItemLocker, tx txRunner, m *metrics.TradeMetrics) (*Manager, error) {
	if items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "item locker required")
	}
	return &Manager{
		items:   items,
		tx:      tx,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Reserve moves every requested item from AVAILABLE to RESERVED or fails without changing any.
// It returns the locked rows so the caller can snapshot prices read in the same transaction.
func (m *Manager) Reserve(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, itemIDs []uuid.UUID) ([]models.InventoryItem, error) {
	var reserved []models.InventoryItem
	err := m.within(ctx, tx, func(tx *gorm.DB) error {
		ids := uniqueIDs(itemIDs)
		if len(ids) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
		}

		items, err := m.items.LockByIDs(ctx, tx, tenantID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory items")
		}
		if len(items) < len(ids) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "some items no longer exist").
				WithDetails(ItemIDsDetails{ItemIDs: missingIDs(ids, items)})
		}

		var unavailable []uuid.UUID
		for _, item := range items {
			if item.Status != enums.InventoryStatusAvailable || !InventoryMachine.Can(item.Status, enums.InventoryStatusReserved) {
				unavailable = append(unavailable, item.ID)
			}
		}
		if len(unavailable) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "some items are unavailable").
				WithDetails(ItemIDsDetails{ItemIDs: unavailable})
		}

		affected, err := m.flip(ctx, tx, ids, enums.InventoryStatusAvailable, enums.InventoryStatusReserved)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "some items are unavailable").
				WithDetails(ItemIDsDetails{ItemIDs: ids})
		}

		for i := range items {
			items[i].Status = enums.InventoryStatusReserved
		}
		reserved = items
		return nil
	})
	m.observe(metrics.ReservationOpReserve, err)
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// Release returns RESERVED items to AVAILABLE. Items in any other status are left alone,
// so calling it again, or after finalize won a race, is harmless.
func (m *Manager) Release(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) error {
	err := m.within(ctx, tx, func(tx *gorm.DB) error {
		ids := uniqueIDs(itemIDs)
		if len(ids) == 0 {
			return nil
		}
		_, err := m.flip(ctx, tx, ids, enums.InventoryStatusReserved, enums.InventoryStatusAvailable)
		return err
	})
	m.observe(metrics.ReservationOpRelease, err)
	return err
}

// Finalize moves RESERVED items to SOLD. Any item not RESERVED fails the whole batch.
func (m *Manager) Finalize(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) error {
	err := m.within(ctx, tx, func(tx *gorm.DB) error {
		ids := uniqueIDs(itemIDs)
		if len(ids) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
		}
		affected, err := m.flip(ctx, tx, ids, enums.InventoryStatusReserved, enums.InventoryStatusSold)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "some items are no longer reserved").
				WithDetails(ItemIDsDetails{ItemIDs: ids})
		}
		return nil
	})
	m.observe(metrics.ReservationOpFinalize, err)
	return err
}

// SetAvailability is the catalog toggle between AVAILABLE and UNAVAILABLE.
// Reserved and sold items are refused with INVALID_STATE.
func (m *Manager) SetAvailability(ctx context.Context, tx *gorm.DB, tenantID, itemID uuid.UUID, available bool) (*models.InventoryItem, error) {
	var result *models.InventoryItem
	err := m.within(ctx, tx, func(tx *gorm.DB) error {
		items, err := m.items.LockByIDs(ctx, tx, tenantID, []uuid.UUID{itemID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		item := items[0]

		to := enums.InventoryStatusUnavailable
		if available {
			to = enums.InventoryStatusAvailable
		}
		if item.Status == to {
			result = &item
			return nil
		}
		if item.Status != enums.InventoryStatusAvailable && item.Status != enums.InventoryStatusUnavailable {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "reserved or sold items cannot change availability").
				WithDetails(ItemIDsDetails{ItemIDs: []uuid.UUID{item.ID}})
		}
		if err := InventoryMachine.Validate(item.Status, to); err != nil {
			return err
		}
		affected, err := m.flip(ctx, tx, []uuid.UUID{item.ID}, item.Status, to)
		if err != nil {
			return err
		}
		if affected != 1 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "item status changed concurrently")
		}
		item.Status = to
		result = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) within(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	if m.tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation")
	}
	return m.tx.WithTx(ctx, fn)
}

func (m *Manager) flip(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, from, to enums.InventoryStatus) (int64, error) {
	if err := InventoryMachine.Validate(from, to); err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": m.now(),
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update inventory status")
	}
	return res.RowsAffected, nil
}

func (m *Manager) observe(op string, err error) {
	switch {
	case err == nil:
		m.metrics.ObserveReservation(op, metrics.ResultOK)
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict), pkgerrors.IsCode(err, pkgerrors.CodeInvalidState), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		m.metrics.ObserveReservation(op, metrics.ResultConflict)
	default:
		m.metrics.ObserveReservation(op, metrics.ResultError)
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(requested []uuid.UUID, found []models.InventoryItem) []uuid.UUID {
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, item := range found {
		present[item.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
