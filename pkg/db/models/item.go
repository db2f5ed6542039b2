package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/enums"
)

// Item is a tracked inventory unit. CurrentStockLevel is only ever changed
// through the stock store's conditional delta update.
type Item struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name              string              `gorm:"column:name;not null;index"`
	Description       *string             `gorm:"column:description"`
	Category          enums.ItemCategory  `gorm:"column:category;type:item_category_enum;not null;index"`
	UnitOfMeasure     string              `gorm:"column:unit_of_measure;not null"`
	CurrentStockLevel decimal.Decimal     `gorm:"column:current_stock_level;type:numeric(12,2);not null;default:0"`
	MinimumStockLevel decimal.NullDecimal `gorm:"column:minimum_stock_level;type:numeric(12,2)"`
	UnitCost          decimal.NullDecimal `gorm:"column:unit_cost;type:numeric(12,2)"`
	SKU               *string             `gorm:"column:sku;uniqueIndex"`
	Notes             *string             `gorm:"column:notes"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// IsLowStock reports whether the balance sits at or under the minimum.
func (i Item) IsLowStock() bool {
	if !i.MinimumStockLevel.Valid {
		return false
	}
	return i.CurrentStockLevel.LessThanOrEqual(i.MinimumStockLevel.Decimal)
}
