package stock

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/pkg/enums"
)

// Movement is one stock event to apply: its lines become deltas and event lines.
type Movement struct {
	Kind     enums.StockEventKind
	Notes    *string
	Metadata any
	Lines    []MovementLine
}

// MovementLine quantities are positive; Direction gives the sign.
type MovementLine struct {
	ItemID    uuid.UUID
	Quantity  decimal.Decimal
	Direction enums.MovementDirection
	Role      enums.LineRole
	UnitCost  decimal.NullDecimal
}

func (l MovementLine) delta() Delta {
	amount := l.Quantity
	if l.Direction == enums.MovementOut {
		amount = amount.Neg()
	}
	return Delta{ItemID: l.ItemID, Amount: amount}
}

type AdjustInput struct {
	ItemID uuid.UUID
	Delta  decimal.Decimal
	Reason *string
}

type ProductionInput struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
	Notes    *string
}

type PurchaseLineInput struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
	UnitCost decimal.NullDecimal
}

type PurchaseInput struct {
	Items        []PurchaseLineInput
	SupplierName *string
	Notes        *string
}

type DistributionLineInput struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

type DistributionInput struct {
	Type          enums.DistributionType
	Items         []DistributionLineInput
	RecipientID   *uuid.UUID
	RecipientInfo *string
	Notes         *string
}

// LineError describes one rejected input line.
type LineError struct {
	Index   int        `json:"index"`
	ItemID  *uuid.UUID `json:"item_id,omitempty"`
	Field   string     `json:"field"`
	Message string     `json:"message"`
}

func (e LineError) Error() string {
	return e.Message
}
