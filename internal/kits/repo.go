package kits

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/repo"
	"github.com/openaid/aid-inventory/pkg/db/models"
)

// Repository persists kit templates and their components.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, template *models.KitTemplate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.KitTemplate, error)
	NameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error)
	List(ctx context.Context, includeInactive bool) ([]models.KitTemplate, error)
	Save(ctx context.Context, template *models.KitTemplate) error
	ReplaceComponents(ctx context.Context, templateID uuid.UUID, components []models.KitTemplateComponent) error
	UsedAsKit(ctx context.Context, itemID uuid.UUID) (bool, error)
	UsedAsComponent(ctx context.Context, itemID uuid.UUID) (bool, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func orderedComponents(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *repository) Create(ctx context.Context, template *models.KitTemplate) error {
	for i := range template.Components {
		template.Components[i].Position = i
	}
	return r.DB(ctx).Create(template).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.KitTemplate, error) {
	return repo.FirstOrNil[models.KitTemplate](r.DB(ctx).Preload("Components", orderedComponents), "id = ?", id)
}

func (r *repository) NameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error) {
	query := r.DB(ctx).Model(&models.KitTemplate{}).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, includeInactive bool) ([]models.KitTemplate, error) {
	query := r.DB(ctx).Preload("Components", orderedComponents).Order("name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var templates []models.KitTemplate
	if err := query.Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// Save writes the template row only; components go through ReplaceComponents.
func (r *repository) Save(ctx context.Context, template *models.KitTemplate) error {
	return r.DB(ctx).Omit("Components").Save(template).Error
}

func (r *repository) ReplaceComponents(ctx context.Context, templateID uuid.UUID, components []models.KitTemplateComponent) error {
	db := r.DB(ctx)
	if err := db.Where("template_id = ?", templateID).Delete(&models.KitTemplateComponent{}).Error; err != nil {
		return err
	}
	if len(components) == 0 {
		return nil
	}
	for i := range components {
		components[i].TemplateID = templateID
		components[i].Position = i
	}
	return db.Create(&components).Error
}

func (r *repository) UsedAsKit(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.KitTemplate{}).Where("kit_item_id = ?", itemID).Count(&count).Error
	return count > 0, err
}

func (r *repository) UsedAsComponent(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.KitTemplateComponent{}).Where("item_id = ?", itemID).Count(&count).Error
	return count > 0, err
}
