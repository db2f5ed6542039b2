package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// KitTemplate maps one assembled_kit item to the components it consumes.
type KitTemplate struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Name        string                 `gorm:"column:name;not null;uniqueIndex"`
	Description *string                `gorm:"column:description"`
	KitItemID   uuid.UUID              `gorm:"column:kit_item_id;type:uuid;not null;index"`
	IsActive    bool                   `gorm:"column:is_active;not null"`
	CreatedBy   *uuid.UUID             `gorm:"column:created_by;type:uuid"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	Components  []KitTemplateComponent `gorm:"foreignKey:TemplateID"`
}

func (t *KitTemplate) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

type KitTemplateComponent struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TemplateID     uuid.UUID       `gorm:"column:template_id;type:uuid;not null;index"`
	ItemID         uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	QuantityPerKit decimal.Decimal `gorm:"column:quantity_per_kit;type:numeric(12,2);not null"`
	Position       int             `gorm:"column:position;not null"`
}

func (c *KitTemplateComponent) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
