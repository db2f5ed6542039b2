package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/reports"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/pagination"
)

type stubPager func(ledger.Filter, pagination.Params) (*ledger.Page, error)

func (f stubPager) ListPage(_ context.Context, filter ledger.Filter, params pagination.Params) (*ledger.Page, error) {
	return f(filter, params)
}

type stubActivity func(reports.ActivityQuery) (*reports.ActivityReport, error)

func (f stubActivity) Activity(_ context.Context, q reports.ActivityQuery) (*reports.ActivityReport, error) {
	return f(q)
}

func TestListEventsFilters(t *testing.T) {
	itemID := uuid.New()
	pager := stubPager(func(filter ledger.Filter, params pagination.Params) (*ledger.Page, error) {
		if len(filter.Kinds) != 1 || filter.Kinds[0] != enums.StockEventDistribution {
			t.Fatalf("unexpected kinds %v", filter.Kinds)
		}
		if filter.ItemID == nil || *filter.ItemID != itemID {
			t.Fatalf("unexpected item filter %v", filter.ItemID)
		}
		if params.Limit != 10 {
			t.Fatalf("expected limit 10 got %d", params.Limit)
		}
		return &ledger.Page{NextCursor: "next"}, nil
	})

	rec := httptest.NewRecorder()
	target := "/api/events?kind=distribution&item_id=" + itemID.String() + "&limit=10"
	ListEvents(pager, nil).ServeHTTP(rec, authedRequest(http.MethodGet, target, "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		NextCursor string `json:"next_cursor"`
	}
	decodeData(t, rec, &page)
	if page.NextCursor != "next" {
		t.Fatalf("expected next cursor got %q", page.NextCursor)
	}
}

func TestListEventsRejectsBadKind(t *testing.T) {
	pager := stubPager(func(ledger.Filter, pagination.Params) (*ledger.Page, error) {
		t.Fatal("pager should not be called")
		return nil, nil
	})
	for _, target := range []string{"/api/events?kind=refund", "/api/events?item_id=42"} {
		rec := httptest.NewRecorder()
		ListEvents(pager, nil).ServeHTTP(rec, authedRequest(http.MethodGet, target, "", nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rec.Code)
		}
	}
}

func TestActivityReportPassesQuery(t *testing.T) {
	svc := stubActivity(func(q reports.ActivityQuery) (*reports.ActivityReport, error) {
		if q.StartDate != "2026-01-01" || q.EndDate != "2026-01-31" || q.Period != "" {
			t.Fatalf("unexpected query %+v", q)
		}
		return &reports.ActivityReport{}, nil
	})
	rec := httptest.NewRecorder()
	ActivityReport(svc, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/reports/activity?start_date=2026-01-01&end_date=2026-01-31", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestActivityReportInvalidPeriod(t *testing.T) {
	svc := stubActivity(func(reports.ActivityQuery) (*reports.ActivityReport, error) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid period")
	})
	rec := httptest.NewRecorder()
	ActivityReport(svc, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/reports/activity?period=decade", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

type stubDistributions func(reports.DistributionsQuery) ([]reports.DistributionSummary, error)

func (f stubDistributions) Distributions(_ context.Context, q reports.DistributionsQuery) ([]reports.DistributionSummary, error) {
	return f(q)
}

func TestDistributionsReportPassesQuery(t *testing.T) {
	id := uuid.New()
	svc := stubDistributions(func(q reports.DistributionsQuery) ([]reports.DistributionSummary, error) {
		if q.Period != "month" || q.DistributionType != "crisis_aid" {
			t.Fatalf("unexpected query %+v", q)
		}
		return []reports.DistributionSummary{{ID: id, DistributionType: enums.DistributionCrisisAid, UserName: "Unknown"}}, nil
	})
	rec := httptest.NewRecorder()
	DistributionsReport(svc, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/reports/distributions?period=month&distribution_type=crisis_aid", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var rows []reports.DistributionSummary
	decodeData(t, rec, &rows)
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestDistributionsReportRejectsUnknownType(t *testing.T) {
	svc := stubDistributions(func(reports.DistributionsQuery) ([]reports.DistributionSummary, error) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid distribution_type")
	})
	rec := httptest.NewRecorder()
	DistributionsReport(svc, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/reports/distributions?distribution_type=yearly", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
