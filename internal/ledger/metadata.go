package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/pkg/enums"
)

// Kind-specific fields kept in stock_events.metadata.

type PurchaseMetadata struct {
	SupplierName *string             `json:"supplier_name,omitempty"`
	TotalCost    decimal.NullDecimal `json:"total_cost"`
}

type DistributionMetadata struct {
	DistributionType enums.DistributionType `json:"distribution_type"`
	RecipientID      *uuid.UUID             `json:"recipient_id,omitempty"`
	RecipientName    string                 `json:"recipient_name,omitempty"`
	RecipientInfo    *string                `json:"recipient_info,omitempty"`
}

type AssemblyMetadata struct {
	TemplateID    uuid.UUID `json:"kit_template_id"`
	TemplateName  string    `json:"kit_template_name"`
	KitsAssembled int       `json:"kits_assembled"`
}

type AdjustmentMetadata struct {
	Reason *string `json:"reason,omitempty"`
}
