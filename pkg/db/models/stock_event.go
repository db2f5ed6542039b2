package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/openaid/aid-inventory/pkg/db/types"
	"github.com/openaid/aid-inventory/pkg/enums"
)

// StockEvent is an append-only audit record of one stock operation.
type StockEvent struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Kind        enums.StockEventKind `gorm:"column:kind;type:stock_event_kind_enum;not null;index"`
	ActorUserID *uuid.UUID           `gorm:"column:actor_user_id;type:uuid;index"`
	Notes       *string              `gorm:"column:notes"`
	Metadata    dbtypes.JSON         `gorm:"column:metadata;type:jsonb"`
	OccurredAt  time.Time            `gorm:"column:occurred_at;not null;index"`
	Lines       []StockEventLine     `gorm:"foreignKey:EventID"`
}

func (e *StockEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// StockEventLine is one (item, quantity) movement inside an event. Quantity
// is always positive; Direction carries the sign.
type StockEventLine struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	EventID      uuid.UUID               `gorm:"column:event_id;type:uuid;not null;index"`
	ItemID       uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index"`
	Position     int                     `gorm:"column:position;not null"`
	Direction    enums.MovementDirection `gorm:"column:direction;type:movement_direction_enum;not null"`
	Role         enums.LineRole          `gorm:"column:role;type:text;not null"`
	Quantity     decimal.Decimal         `gorm:"column:quantity;type:numeric(12,2);not null"`
	UnitCost     decimal.NullDecimal     `gorm:"column:unit_cost;type:numeric(12,2)"`
	BalanceAfter decimal.Decimal         `gorm:"column:balance_after;type:numeric(12,2);not null"`
}

func (l *StockEventLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Signed returns the quantity with the direction applied.
func (l StockEventLine) Signed() decimal.Decimal {
	if l.Direction == enums.MovementOut {
		return l.Quantity.Neg()
	}
	return l.Quantity
}
