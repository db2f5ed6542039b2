package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/pkg/enums"
)

// Event is the read model of one stock event. Concrete types are
// ProductionEvent, PurchaseEvent, DistributionEvent, AssemblyEvent and
// AdjustmentEvent; the JSON "kind" field tells them apart.
type Event interface {
	EventKind() enums.StockEventKind
	Header() EventHeader
}

// EventHeader holds the fields every kind shares.
type EventHeader struct {
	ID            uuid.UUID            `json:"id"`
	Kind          enums.StockEventKind `json:"kind"`
	OccurredAt    time.Time            `json:"occurred_at"`
	ActorUserID   *uuid.UUID           `json:"actor_user_id,omitempty"`
	ActorUsername string               `json:"actor_username,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
}

func (h EventHeader) EventKind() enums.StockEventKind { return h.Kind }
func (h EventHeader) Header() EventHeader             { return h }

// ItemLine is one movement as shown to clients.
type ItemLine struct {
	ItemID        uuid.UUID               `json:"item_id"`
	ItemName      string                  `json:"item_name"`
	UnitOfMeasure string                  `json:"unit_of_measure,omitempty"`
	Quantity      decimal.Decimal         `json:"quantity"`
	Direction     enums.MovementDirection `json:"direction"`
	BalanceAfter  decimal.Decimal         `json:"balance_after"`
}

type ProductionEvent struct {
	EventHeader
	Item ItemLine `json:"item"`
}

type PurchaseLine struct {
	ItemLine
	UnitCost decimal.NullDecimal `json:"unit_cost"`
	LineCost decimal.NullDecimal `json:"line_cost"`
}

type PurchaseEvent struct {
	EventHeader
	SupplierName *string             `json:"supplier_name,omitempty"`
	TotalCost    decimal.NullDecimal `json:"total_cost"`
	Items        []PurchaseLine      `json:"items"`
}

type DistributionEvent struct {
	EventHeader
	DistributionType enums.DistributionType `json:"distribution_type"`
	RecipientID      *uuid.UUID             `json:"recipient_id,omitempty"`
	RecipientName    string                 `json:"recipient_name,omitempty"`
	RecipientInfo    *string                `json:"recipient_info,omitempty"`
	TotalQuantity    decimal.Decimal        `json:"total_quantity"`
	Items            []ItemLine             `json:"items"`
}

type AssemblyEvent struct {
	EventHeader
	TemplateID    uuid.UUID  `json:"kit_template_id"`
	TemplateName  string     `json:"kit_template_name"`
	KitsAssembled int        `json:"quantity"`
	Kit           ItemLine   `json:"kit"`
	Consumed      []ItemLine `json:"components_consumed"`
}

type AdjustmentEvent struct {
	EventHeader
	Reason *string         `json:"reason,omitempty"`
	Delta  decimal.Decimal `json:"delta"`
	Item   ItemLine        `json:"item"`
}

// TouchedItems lists every item id referenced by the event.
func TouchedItems(e Event) []uuid.UUID {
	switch v := e.(type) {
	case *ProductionEvent:
		return []uuid.UUID{v.Item.ItemID}
	case *AdjustmentEvent:
		return []uuid.UUID{v.Item.ItemID}
	case *PurchaseEvent:
		ids := make([]uuid.UUID, 0, len(v.Items))
		for _, line := range v.Items {
			ids = append(ids, line.ItemID)
		}
		return ids
	case *DistributionEvent:
		ids := make([]uuid.UUID, 0, len(v.Items))
		for _, line := range v.Items {
			ids = append(ids, line.ItemID)
		}
		return ids
	case *AssemblyEvent:
		ids := []uuid.UUID{v.Kit.ItemID}
		for _, line := range v.Consumed {
			ids = append(ids, line.ItemID)
		}
		return ids
	}
	return nil
}
