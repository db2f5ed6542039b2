package items

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/types"
)

// ItemDTO is the transport shape of an inventory item.
type ItemDTO struct {
	ID                uuid.UUID           `json:"id"`
	Name              string              `json:"name"`
	Description       *string             `json:"description,omitempty"`
	Category          enums.ItemCategory  `json:"category"`
	UnitOfMeasure     string              `json:"unit_of_measure"`
	CurrentStockLevel decimal.Decimal     `json:"current_stock_level"`
	MinimumStockLevel decimal.NullDecimal `json:"minimum_stock_level"`
	UnitCost          decimal.NullDecimal `json:"unit_cost"`
	SKU               *string             `json:"sku,omitempty"`
	Notes             *string             `json:"notes,omitempty"`
	IsLowStock        bool                `json:"is_low_stock"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func FromModel(item *models.Item) *ItemDTO {
	if item == nil {
		return nil
	}
	return &ItemDTO{
		ID:                item.ID,
		Name:              item.Name,
		Description:       item.Description,
		Category:          item.Category,
		UnitOfMeasure:     item.UnitOfMeasure,
		CurrentStockLevel: item.CurrentStockLevel,
		MinimumStockLevel: item.MinimumStockLevel,
		UnitCost:          item.UnitCost,
		SKU:               item.SKU,
		Notes:             item.Notes,
		IsLowStock:        item.IsLowStock(),
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

// ListFilter narrows the item list; zero values mean no filter.
type ListFilter struct {
	Category     *enums.ItemCategory
	LowStockOnly bool
	Query        string
}

type CreateInput struct {
	Name              string
	Description       *string
	Category          enums.ItemCategory
	UnitOfMeasure     string
	CurrentStockLevel decimal.NullDecimal
	MinimumStockLevel decimal.NullDecimal
	UnitCost          decimal.NullDecimal
	SKU               *string
	Notes             *string
}

// UpdateInput is a partial update. Nullable fields distinguish "clear" from "leave".
type UpdateInput struct {
	Name              *string
	Description       types.Nullable[string]
	Category          *enums.ItemCategory
	UnitOfMeasure     *string
	MinimumStockLevel types.Nullable[decimal.Decimal]
	UnitCost          types.Nullable[decimal.Decimal]
	SKU               types.Nullable[string]
	Notes             types.Nullable[string]
}
