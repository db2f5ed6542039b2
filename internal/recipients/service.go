package recipients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/repo"
	"github.com/openaid/aid-inventory/pkg/db/models"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/types"
)

type RecipientDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Notes     *string   `json:"notes,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func fromModel(r models.Recipient) RecipientDTO {
	return RecipientDTO{
		ID:        r.ID,
		Name:      r.Name,
		Notes:     r.Notes,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type ListFilter struct {
	Query      string
	ActiveOnly bool
}

type CreateInput struct {
	Name  string
	Notes *string
}

type UpdateInput struct {
	Name     *string
	Notes    types.Nullable[string]
	IsActive *bool
}

// Service manages the recipient lookup list used by distributions.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]RecipientDTO, error)
	Create(ctx context.Context, input CreateInput) (*RecipientDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*RecipientDTO, error)
}

type service struct {
	repo.Base
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection required")
	}
	return &service{Base: repo.NewBase(db)}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]RecipientDTO, error) {
	query := s.DB(ctx).Model(&models.Recipient{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.Recipient
	if err := query.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recipients")
	}
	out := make([]RecipientDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromModel(r))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*RecipientDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Recipient name is required")
	}
	if err := s.ensureNameFree(ctx, name, nil); err != nil {
		return nil, err
	}
	row := models.Recipient{Name: name, Notes: input.Notes, IsActive: true}
	if err := s.DB(ctx).Create(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create recipient")
	}
	dto := fromModel(row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*RecipientDTO, error) {
	var row models.Recipient
	if err := s.DB(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Recipient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Recipient name is required")
		}
		if err := s.ensureNameFree(ctx, name, &row.ID); err != nil {
			return nil, err
		}
		row.Name = name
	}
	if input.Notes.Set {
		row.Notes = input.Notes.Value
	}
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}
	if err := s.DB(ctx).Save(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update recipient")
	}
	dto := fromModel(row)
	return &dto, nil
}

func (s *service) ensureNameFree(ctx context.Context, name string, exclude *uuid.UUID) error {
	query := s.DB(ctx).Model(&models.Recipient{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check recipient name")
	}
	if count > 0 {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "Recipient '%s' already exists", name)
	}
	return nil
}
