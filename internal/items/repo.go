package items

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/repo"
	"github.com/openaid/aid-inventory/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	List(ctx context.Context, filter ListFilter) ([]models.Item, error)
	Save(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	SKUTaken(ctx context.Context, sku string, exclude *uuid.UUID) (bool, error)
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

func (r *repository) Create(ctx context.Context, item *models.Item) error {
	return r.DB(ctx).Create(item).Error
}

// FindByID returns nil, nil when the item does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return repo.FirstOrNil[models.Item](r.DB(ctx), "id = ?", id)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Item, error) {
	query := r.DB(ctx).Model(&models.Item{})
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.LowStockOnly {
		query = query.Where("minimum_stock_level IS NOT NULL AND current_stock_level <= minimum_stock_level")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	var items []models.Item
	if err := query.Order("name ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save writes descriptive columns. current_stock_level is left to the stock store.
func (r *repository) Save(ctx context.Context, item *models.Item) error {
	return r.DB(ctx).Model(item).Select(
		"name", "description", "category", "unit_of_measure",
		"minimum_stock_level", "unit_cost", "sku", "notes", "updated_at",
	).Updates(item).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Delete(&models.Item{}, "id = ?", id).Error
}

func (r *repository) SKUTaken(ctx context.Context, sku string, exclude *uuid.UUID) (bool, error) {
	query := r.DB(ctx).Model(&models.Item{}).Where("sku = ?", sku)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
