package kits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

// validateComposition checks a kit item and its components and returns the loaded items.
func validateComposition(ctx context.Context, tx *gorm.DB, kitItemID uuid.UUID, components []ComponentInput) (map[uuid.UUID]models.Item, error) {
	if len(components) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "A kit template needs at least one component")
	}
	ids := make([]uuid.UUID, 0, len(components)+1)
	ids = append(ids, kitItemID)
	for _, c := range components {
		ids = append(ids, c.ItemID)
	}
	items, err := loadItems(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	kit, ok := items[kitItemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Kit item not found")
	}
	if kit.Category != enums.ItemCategoryAssembledKit {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Kit item must be category 'assembled_kit', not '%s'", kit.Category)
	}

	seen := make(map[uuid.UUID]struct{}, len(components))
	for _, c := range components {
		item, ok := items[c.ItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "One or more component items not found").
				WithDetails(map[string]any{"item_id": c.ItemID})
		}
		if c.ItemID == kitItemID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "A kit cannot contain itself")
		}
		if item.Category == enums.ItemCategoryAssembledKit {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Component '%s' cannot be an assembled kit. Kits cannot contain other kits.", item.Name)
		}
		if _, dup := seen[c.ItemID]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Component '%s' is listed more than once", item.Name)
		}
		seen[c.ItemID] = struct{}{}
		if err := stock.ValidateQuantity(fmt.Sprintf("Quantity for '%s'", item.Name), c.Quantity); err != nil {
			return nil, err
		}
	}
	return items, nil
}
