package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/api/responses"
	"github.com/openaid/aid-inventory/api/validators"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/reports"
	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
)

// StockRecorder records the quick stock operations.
type StockRecorder interface {
	RecordProduction(ctx context.Context, actor ledger.Actor, input stock.ProductionInput) (ledger.Event, error)
	RecordPurchase(ctx context.Context, actor ledger.Actor, input stock.PurchaseInput) (ledger.Event, error)
	RecordDistribution(ctx context.Context, actor ledger.Actor, input stock.DistributionInput) (ledger.Event, error)
}

type dashboardReader interface {
	Dashboard(ctx context.Context) (*reports.DashboardStats, error)
}

type productionRequest struct {
	ProducedItemID   uuid.UUID       `json:"produced_item_id" validate:"required"`
	QuantityProduced decimal.Decimal `json:"quantity_produced"`
	Notes            *string         `json:"notes,omitempty"`
}

func RecordProduction(svc StockRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock engine unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body productionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.RecordProduction(r.Context(), actor, stock.ProductionInput{
			ItemID:   body.ProducedItemID,
			Quantity: body.QuantityProduced,
			Notes:    body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, event)
	}
}

type purchaseLineRequest struct {
	ItemID   uuid.UUID           `json:"item_id" validate:"required"`
	Quantity decimal.Decimal     `json:"quantity"`
	UnitCost decimal.NullDecimal `json:"unit_cost"`
}

type purchaseRequest struct {
	Items        []purchaseLineRequest `json:"items" validate:"required,min=1,dive"`
	SupplierName *string               `json:"supplier_name,omitempty" validate:"omitempty,max=255"`
	Notes        *string               `json:"notes,omitempty"`
}

// RecordPurchase books a multi-line purchase; one bad line rejects the whole request.
func RecordPurchase(svc StockRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock engine unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body purchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stock.PurchaseInput{SupplierName: body.SupplierName, Notes: body.Notes}
		for _, line := range body.Items {
			input.Items = append(input.Items, stock.PurchaseLineInput{
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
				UnitCost: line.UnitCost,
			})
		}

		event, err := svc.RecordPurchase(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, event)
	}
}

type distributionLineRequest struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

type distributionRequest struct {
	DistributionType string                    `json:"distribution_type" validate:"required"`
	Items            []distributionLineRequest `json:"items" validate:"required,min=1,dive"`
	RecipientID      *uuid.UUID                `json:"recipient_id,omitempty"`
	RecipientInfo    *string                   `json:"recipient_info,omitempty" validate:"omitempty,max=500"`
	Notes            *string                   `json:"notes,omitempty"`
}

func RecordDistribution(svc StockRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock engine unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body distributionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseDistributionType(body.DistributionType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid distribution type").WithDetails(map[string]any{"field": "distribution_type"}))
			return
		}

		input := stock.DistributionInput{
			Type:          kind,
			RecipientID:   body.RecipientID,
			RecipientInfo: body.RecipientInfo,
			Notes:         body.Notes,
		}
		for _, line := range body.Items {
			input.Items = append(input.Items, stock.DistributionLineInput{ItemID: line.ItemID, Quantity: line.Quantity})
		}

		event, err := svc.RecordDistribution(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, event)
	}
}

func DashboardStats(svc dashboardReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}

		stats, err := svc.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
