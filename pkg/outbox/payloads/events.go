package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/pkg/enums"
)

// StockEventLine is one item movement inside a recorded stock event.
type StockEventLine struct {
	ItemID       uuid.UUID               `json:"item_id"`
	Direction    enums.MovementDirection `json:"direction"`
	Role         enums.LineRole          `json:"role"`
	Quantity     decimal.Decimal         `json:"quantity"`
	BalanceAfter decimal.Decimal         `json:"balance_after"`
}

// StockEventRecorded is emitted in the same transaction as every stock event.
type StockEventRecorded struct {
	StockEventID uuid.UUID            `json:"stock_event_id"`
	Kind         enums.StockEventKind `json:"kind"`
	ActorUserID  *uuid.UUID           `json:"actor_user_id,omitempty"`
	OccurredAt   time.Time            `json:"occurred_at"`
	Lines        []StockEventLine     `json:"lines"`
}

// ItemIDs returns the distinct items touched by the event in line order.
func (e StockEventRecorded) ItemIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(e.Lines))
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for _, line := range e.Lines {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	return ids
}

// ItemLowStock is raised by the event worker when an outgoing movement leaves
// an item at or below its minimum level.
type ItemLowStock struct {
	ItemID            uuid.UUID          `json:"item_id"`
	Name              string             `json:"name"`
	Category          enums.ItemCategory `json:"category"`
	CurrentStockLevel decimal.Decimal    `json:"current_stock_level"`
	MinimumStockLevel decimal.Decimal    `json:"minimum_stock_level"`
	UnitOfMeasure     string             `json:"unit_of_measure"`
	StockEventID      uuid.UUID          `json:"stock_event_id"`
}

// KitTemplateChangeAction distinguishes template creation from edits.
type KitTemplateChangeAction string

const (
	KitTemplateCreated KitTemplateChangeAction = "created"
	KitTemplateUpdated KitTemplateChangeAction = "updated"
)

// KitTemplateChanged announces a new or edited kit recipe.
type KitTemplateChanged struct {
	TemplateID     uuid.UUID               `json:"template_id"`
	Name           string                  `json:"name"`
	KitItemID      uuid.UUID               `json:"kit_item_id"`
	IsActive       bool                    `json:"is_active"`
	ComponentCount int                     `json:"component_count"`
	Action         KitTemplateChangeAction `json:"action"`
}
