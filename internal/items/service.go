package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/kits"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/stock"
	dbpkg "github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

const openingBalanceReason = "Opening balance"

type stockAdjuster interface {
	AdjustTx(ctx context.Context, tx *gorm.DB, actor ledger.Actor, input stock.AdjustInput) (*models.StockEvent, error)
}

// Service manages the item catalogue. Stock levels change only through the stock engine.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]ItemDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	Create(ctx context.Context, actor ledger.Actor, input CreateInput) (*ItemDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ItemDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ServiceParams struct {
	DB     dbpkg.TxRunner
	Repo   Repository
	Kits   kits.Repository
	Ledger ledger.Repository
	Stock  stockAdjuster
}

type service struct {
	db     dbpkg.TxRunner
	repo   Repository
	kits   kits.Repository
	ledger ledger.Repository
	stock  stockAdjuster
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("item repository required")
	case params.Kits == nil:
		return nil, fmt.Errorf("kit repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock adjuster required")
	}
	return &service{
		db:     params.DB,
		repo:   params.Repo,
		kits:   params.Kits,
		ledger: params.Ledger,
		stock:  params.Stock,
	}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]ItemDTO, error) {
	if filter.Category != nil && !filter.Category.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid category %q", *filter.Category)
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.find(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(item), nil
}

// Create inserts the item at zero and books any opening stock as an adjustment
// in the same transaction.
func (s *service) Create(ctx context.Context, actor ledger.Actor, input CreateInput) (*ItemDTO, error) {
	item := &models.Item{
		Name:              strings.TrimSpace(input.Name),
		Description:       input.Description,
		Category:          input.Category,
		UnitOfMeasure:     strings.TrimSpace(input.UnitOfMeasure),
		CurrentStockLevel: decimal.Zero,
		MinimumStockLevel: input.MinimumStockLevel,
		UnitCost:          input.UnitCost,
		SKU:               normalizeSKU(input.SKU),
		Notes:             input.Notes,
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	opening := input.CurrentStockLevel
	if opening.Valid && opening.Decimal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "Current stock level cannot be negative")
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureSKUFree(ctx, repo, item.SKU, nil); err != nil {
			return err
		}
		if err := repo.Create(ctx, item); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errSKUExists
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
		}
		if opening.Valid && opening.Decimal.IsPositive() {
			reason := openingBalanceReason
			if _, err := s.stock.AdjustTx(ctx, tx, actor, stock.AdjustInput{
				ItemID: item.ID,
				Delta:  opening.Decimal,
				Reason: &reason,
			}); err != nil {
				return err
			}
			reloaded, err := repo.FindByID(ctx, item.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
			}
			item = reloaded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(item), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ItemDTO, error) {
	var item *models.Item
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		item, err = s.find(ctx, repo, id)
		if err != nil {
			return err
		}

		if input.Name != nil {
			item.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description.Set {
			item.Description = input.Description.Value
		}
		if input.UnitOfMeasure != nil {
			item.UnitOfMeasure = strings.TrimSpace(*input.UnitOfMeasure)
		}
		if input.MinimumStockLevel.Set {
			item.MinimumStockLevel = nullDecimal(input.MinimumStockLevel.Value)
		}
		if input.UnitCost.Set {
			item.UnitCost = nullDecimal(input.UnitCost.Value)
		}
		if input.Notes.Set {
			item.Notes = input.Notes.Value
		}
		if input.SKU.Set {
			item.SKU = normalizeSKU(input.SKU.Value)
			if err := s.ensureSKUFree(ctx, repo, item.SKU, &item.ID); err != nil {
				return err
			}
		}
		if input.Category != nil && *input.Category != item.Category {
			if err := s.checkCategoryChange(ctx, tx, item, *input.Category); err != nil {
				return err
			}
			item.Category = *input.Category
		}
		if err := validateItem(item); err != nil {
			return err
		}
		if err := repo.Save(ctx, item); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errSKUExists
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(item), nil
}

// Delete refuses items that appear in the event log or in any kit template.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.find(ctx, repo, id)
		if err != nil {
			return err
		}
		referenced, err := s.ledger.WithTx(tx).ReferencesItem(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check stock history")
		}
		if referenced {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "Item '%s' has stock history and cannot be deleted", item.Name)
		}
		kitRepo := s.kits.WithTx(tx)
		asKit, err := kitRepo.UsedAsKit(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check kit usage")
		}
		asComponent, err := kitRepo.UsedAsComponent(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check kit usage")
		}
		if asKit || asComponent {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "Item '%s' is used by a kit template and cannot be deleted", item.Name)
		}
		if err := repo.Delete(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
		}
		return nil
	})
}

func (s *service) checkCategoryChange(ctx context.Context, tx *gorm.DB, item *models.Item, next enums.ItemCategory) error {
	if !next.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid category %q", next)
	}
	kitRepo := s.kits.WithTx(tx)
	if item.Category == enums.ItemCategoryAssembledKit {
		used, err := kitRepo.UsedAsKit(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check kit usage")
		}
		if used {
			return pkgerrors.New(pkgerrors.CodeValidation, "Item is the kit of a kit template; its category must stay 'assembled_kit'")
		}
	}
	if next == enums.ItemCategoryAssembledKit {
		used, err := kitRepo.UsedAsComponent(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check kit usage")
		}
		if used {
			return pkgerrors.New(pkgerrors.CodeValidation, "Item is a kit component and cannot become an assembled kit")
		}
	}
	return nil
}

var errSKUExists = pkgerrors.New(pkgerrors.CodeConflict, "SKU already exists")

func (s *service) ensureSKUFree(ctx context.Context, repo Repository, sku *string, exclude *uuid.UUID) error {
	if sku == nil {
		return nil
	}
	taken, err := repo.SKUTaken(ctx, *sku, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
	}
	if taken {
		return errSKUExists
	}
	return nil
}

func (s *service) find(ctx context.Context, repo Repository, id uuid.UUID) (*models.Item, error) {
	item, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Item not found")
	}
	return item, nil
}

func validateItem(item *models.Item) error {
	if item.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Item name is required")
	}
	if item.UnitOfMeasure == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Unit of measure is required")
	}
	if !item.Category.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid category %q", item.Category)
	}
	if item.MinimumStockLevel.Valid && item.MinimumStockLevel.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Minimum stock level cannot be negative")
	}
	if item.UnitCost.Valid && item.UnitCost.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Unit cost cannot be negative")
	}
	return nil
}

func normalizeSKU(sku *string) *string {
	if sku == nil {
		return nil
	}
	v := strings.TrimSpace(*sku)
	if v == "" {
		return nil
	}
	return &v
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}
