package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/openaid/aid-inventory/api/responses"
	"github.com/openaid/aid-inventory/api/validators"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/reports"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/pagination"
)

type activityReader interface {
	Activity(ctx context.Context, q reports.ActivityQuery) (*reports.ActivityReport, error)
}

type distributionsReader interface {
	Distributions(ctx context.Context, q reports.DistributionsQuery) ([]reports.DistributionSummary, error)
}

// DistributionsReport lists the period's distributions, optionally of one type.
func DistributionsReport(svc distributionsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}

		q := r.URL.Query()
		rows, err := svc.Distributions(r.Context(), reports.DistributionsQuery{
			Period:           strings.TrimSpace(q.Get("period")),
			DistributionType: strings.TrimSpace(q.Get("distribution_type")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// EventPager lists stock events newest first.
type EventPager interface {
	ListPage(ctx context.Context, filter ledger.Filter, params pagination.Params) (*ledger.Page, error)
}

func ActivityReport(svc activityReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}

		q := r.URL.Query()
		report, err := svc.Activity(r.Context(), reports.ActivityQuery{
			Period:    strings.TrimSpace(q.Get("period")),
			StartDate: strings.TrimSpace(q.Get("start_date")),
			EndDate:   strings.TrimSpace(q.Get("end_date")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ListEvents pages through the stock event history, optionally by kind and item.
func ListEvents(svc EventPager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		var filter ledger.Filter
		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, err := enums.ParseStockEventKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event kind").WithDetails(map[string]any{"field": "kind"}))
				return
			}
			filter.Kinds = []enums.StockEventKind{kind}
		}

		itemID, err := validators.ParseQueryUUID(r, "item_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.ItemID = itemID

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListPage(r.Context(), filter, pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
