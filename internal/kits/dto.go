package kits

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/types"
)

// ComponentDTO is one template component as returned to clients.
type ComponentDTO struct {
	ItemID         uuid.UUID       `json:"item_id"`
	ItemName       string          `json:"item_name"`
	UnitOfMeasure  string          `json:"unit_of_measure"`
	QuantityPerKit decimal.Decimal `json:"quantity"`
}

// TemplateDTO is the API shape of a kit template.
type TemplateDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	KitItemID   uuid.UUID      `json:"kit_item_id"`
	KitItemName string         `json:"kit_item_name"`
	IsActive    bool           `json:"is_active"`
	CreatedBy   *uuid.UUID     `json:"created_by_user_id,omitempty"`
	Components  []ComponentDTO `json:"components"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toTemplateDTO(t models.KitTemplate, items map[uuid.UUID]models.Item) TemplateDTO {
	dto := TemplateDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		KitItemID:   t.KitItemID,
		KitItemName: items[t.KitItemID].Name,
		IsActive:    t.IsActive,
		CreatedBy:   t.CreatedBy,
		Components:  make([]ComponentDTO, 0, len(t.Components)),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	for _, c := range t.Components {
		item := items[c.ItemID]
		dto.Components = append(dto.Components, ComponentDTO{
			ItemID:         c.ItemID,
			ItemName:       item.Name,
			UnitOfMeasure:  item.UnitOfMeasure,
			QuantityPerKit: c.QuantityPerKit,
		})
	}
	return dto
}

// ComponentInput is a requested (item, quantity per kit) pair.
type ComponentInput struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

type CreateTemplateInput struct {
	Name        string
	Description *string
	KitItemID   uuid.UUID
	Components  []ComponentInput
}

// UpdateTemplateInput carries a partial update; nil fields are left alone.
type UpdateTemplateInput struct {
	Name        *string
	Description types.Nullable[string]
	IsActive    *bool
	Components  *[]ComponentInput
}

// PlanLine is the requirement for one component at a given kit count.
type PlanLine struct {
	ItemID         uuid.UUID       `json:"item_id"`
	ItemName       string          `json:"item_name"`
	QuantityPerKit decimal.Decimal `json:"quantity_per_kit"`
	Required       decimal.Decimal `json:"required_quantity"`
}

// Plan lists what assembling Quantity kits consumes.
type Plan struct {
	TemplateID uuid.UUID  `json:"kit_template_id"`
	Quantity   int        `json:"quantity"`
	Lines      []PlanLine `json:"components"`
}

type PreviewLine struct {
	PlanLine
	Available  decimal.Decimal `json:"available_quantity"`
	Sufficient bool            `json:"sufficient"`
}

// Preview reports availability for a prospective assembly without changing stock.
type Preview struct {
	TemplateID        uuid.UUID     `json:"kit_template_id"`
	TemplateName      string        `json:"template_name"`
	KitItemID         uuid.UUID     `json:"kit_item_id"`
	KitItemName       string        `json:"kit_item_name"`
	Quantity          int           `json:"kits_to_assemble"`
	Components        []PreviewLine `json:"components"`
	CanAssemble       bool          `json:"can_assemble"`
	InsufficientItems []string      `json:"insufficient_items"`
}

type AssembleInput struct {
	TemplateID uuid.UUID
	Quantity   int
	Notes      *string
}

// ShortComponent is one entry of an INSUFFICIENT_COMPONENTS error.
type ShortComponent struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}
