package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/db/models"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

// Delta is a signed change to one item's balance.
type Delta struct {
	ItemID uuid.UUID
	Amount decimal.Decimal
}

// Store is the only writer of items.current_stock_level.
type Store interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, delta Delta) (*models.Item, error)
	ApplyBatch(ctx context.Context, tx *gorm.DB, deltas []Delta) ([]models.Item, error)
	LoadItems(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

type gormStore struct{}

// NewStore returns the SQL-backed store. It is stateless; every call runs on the given transaction.
func NewStore() Store {
	return gormStore{}
}

const applyDeltaSQL = `
	UPDATE items
	SET current_stock_level = current_stock_level + ?,
		updated_at = ?
	WHERE id = ? AND current_stock_level + ? >= 0
`

// ApplyDelta adds delta.Amount in a single conditional statement so the
// check and the write cannot interleave with another transaction.
func (gormStore) ApplyDelta(ctx context.Context, tx *gorm.DB, delta Delta) (*models.Item, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock update")
	}
	res := tx.WithContext(ctx).Exec(applyDeltaSQL, delta.Amount, time.Now().UTC(), delta.ItemID, delta.Amount)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "apply stock delta")
	}

	var item models.Item
	if err := tx.WithContext(ctx).First(&item, "id = ?", delta.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Item not found").
				WithDetails(map[string]any{"item_id": delta.ItemID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if res.RowsAffected == 0 {
		return nil, InsufficientStock(item, delta.Amount.Neg())
	}
	return &item, nil
}

// ApplyBatch applies deltas in order and stops at the first failure. The
// caller's transaction must be rolled back on error.
func (s gormStore) ApplyBatch(ctx context.Context, tx *gorm.DB, deltas []Delta) ([]models.Item, error) {
	items := make([]models.Item, 0, len(deltas))
	for _, delta := range deltas {
		item, err := s.ApplyDelta(ctx, tx, delta)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (gormStore) LoadItems(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Item
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientStockDetails struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
}

// InsufficientStock builds the error for an outgoing movement larger than the balance.
func InsufficientStock(item models.Item, requested decimal.Decimal) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
		"Insufficient stock for %s. Available: %s, Requested: %s",
		item.Name, item.CurrentStockLevel.String(), requested.String(),
	).WithDetails(InsufficientStockDetails{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Available: item.CurrentStockLevel,
		Requested: requested,
	})
}
