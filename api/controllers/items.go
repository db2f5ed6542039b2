package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/api/responses"
	"github.com/openaid/aid-inventory/api/validators"
	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/types"
)

type stockAdjuster interface {
	Adjust(ctx context.Context, actor ledger.Actor, input stock.AdjustInput) (*models.Item, error)
}

func ListItems(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
			return
		}

		filter, err := parseItemFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseItemFilter(r *http.Request) (items.ListFilter, error) {
	var filter items.ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := enums.ParseItemCategory(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").WithDetails(map[string]any{"field": "category"})
		}
		filter.Category = &category
	}
	lowOnly, err := validators.ParseQueryBool(r, "low_stock_only", false)
	if err != nil {
		return filter, err
	}
	filter.LowStockOnly = lowOnly
	filter.Query = validators.SanitizeString(r.URL.Query().Get("q"), 100)
	return filter, nil
}

func GetItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// CreateItem registers a new stock item, optionally with an opening balance.
func CreateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, item)
	}
}

type createItemRequest struct {
	Name              string              `json:"name" validate:"required,max=255"`
	Description       *string             `json:"description,omitempty"`
	Category          string              `json:"category" validate:"required"`
	UnitOfMeasure     string              `json:"unit_of_measure" validate:"required,max=50"`
	CurrentStockLevel decimal.NullDecimal `json:"current_stock_level"`
	MinimumStockLevel decimal.NullDecimal `json:"minimum_stock_level"`
	UnitCost          decimal.NullDecimal `json:"unit_cost"`
	SKU               *string             `json:"sku,omitempty" validate:"omitempty,max=100"`
	Notes             *string             `json:"notes,omitempty"`
}

func (r createItemRequest) toInput() (items.CreateInput, error) {
	category, err := enums.ParseItemCategory(r.Category)
	if err != nil {
		return items.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").WithDetails(map[string]any{"field": "category"})
	}
	return items.CreateInput{
		Name:              r.Name,
		Description:       r.Description,
		Category:          category,
		UnitOfMeasure:     r.UnitOfMeasure,
		CurrentStockLevel: r.CurrentStockLevel,
		MinimumStockLevel: r.MinimumStockLevel,
		UnitCost:          r.UnitCost,
		SKU:               r.SKU,
		Notes:             r.Notes,
	}, nil
}

// UpdateItem applies a partial update. Stock levels only move through stock events.
func UpdateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

type updateItemRequest struct {
	Name              *string                         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description       types.Nullable[string]          `json:"description"`
	Category          *string                         `json:"category,omitempty"`
	UnitOfMeasure     *string                         `json:"unit_of_measure,omitempty" validate:"omitempty,min=1,max=50"`
	MinimumStockLevel types.Nullable[decimal.Decimal] `json:"minimum_stock_level"`
	UnitCost          types.Nullable[decimal.Decimal] `json:"unit_cost"`
	SKU               types.Nullable[string]          `json:"sku"`
	Notes             types.Nullable[string]          `json:"notes"`
}

func (r updateItemRequest) toInput() (items.UpdateInput, error) {
	input := items.UpdateInput{
		Name:              r.Name,
		Description:       r.Description,
		UnitOfMeasure:     r.UnitOfMeasure,
		MinimumStockLevel: r.MinimumStockLevel,
		UnitCost:          r.UnitCost,
		SKU:               r.SKU,
		Notes:             r.Notes,
	}
	if r.Category != nil {
		category, err := enums.ParseItemCategory(*r.Category)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").WithDetails(map[string]any{"field": "category"})
		}
		input.Category = &category
	}
	return input, nil
}

func DeleteItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type adjustRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason *string         `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// AdjustItemStock books a signed correction and returns the updated item.
func AdjustItemStock(engine stockAdjuster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock engine unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := engine.Adjust(r.Context(), actor, stock.AdjustInput{ItemID: id, Delta: body.Delta, Reason: body.Reason})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items.FromModel(item))
	}
}
