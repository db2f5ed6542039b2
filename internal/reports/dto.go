package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/pkg/enums"
)

type DashboardStats struct {
	TotalItems            int64          `json:"total_items"`
	LowStockItems         int64          `json:"low_stock_items"`
	ProductionsThisWeek   int64          `json:"productions_this_week"`
	PurchasesThisWeek     int64          `json:"purchases_this_week"`
	DistributionsThisWeek int64          `json:"distributions_this_week"`
	AssembliesThisWeek    int64          `json:"assemblies_this_week"`
	RecentActivity        []ledger.Event `json:"recent_activity"`
}

// ActivityQuery selects the report window: either Period or both dates (YYYY-MM-DD, inclusive).
type ActivityQuery struct {
	Period    string
	StartDate string
	EndDate   string
}

type ActivitySummary struct {
	Period                string          `json:"period"`
	DateFrom              time.Time       `json:"date_from"`
	DateTo                time.Time       `json:"date_to"`
	TotalProductions      int             `json:"total_productions"`
	TotalPurchases        int             `json:"total_purchases"`
	TotalDistributions    int             `json:"total_distributions"`
	TotalAssemblies       int             `json:"total_assemblies"`
	TotalAdjustments      int             `json:"total_adjustments"`
	TotalItemsDistributed decimal.Decimal `json:"total_items_distributed"`
	UniqueUsers           int             `json:"unique_users"`
}

type UserActivity struct {
	UserID             uuid.UUID `json:"user_id"`
	Username           string    `json:"username"`
	ProductionsCount   int       `json:"productions_count"`
	PurchasesCount     int       `json:"purchases_count"`
	DistributionsCount int       `json:"distributions_count"`
	AssembliesCount    int       `json:"assemblies_count"`
	AdjustmentsCount   int       `json:"adjustments_count"`
	TotalEntries       int       `json:"total_entries"`
}

// ActivityReport groups the window's events by kind; every entry keeps its "kind" tag.
type ActivityReport struct {
	Summary        ActivitySummary             `json:"summary"`
	UserActivities []UserActivity              `json:"user_activities"`
	Productions    []*ledger.ProductionEvent   `json:"productions"`
	Purchases      []*ledger.PurchaseEvent     `json:"purchases"`
	Distributions  []*ledger.DistributionEvent `json:"distributions"`
	Assemblies     []*ledger.AssemblyEvent     `json:"assemblies"`
	Adjustments    []*ledger.AdjustmentEvent   `json:"adjustments"`
}

// DistributionsQuery selects a named period and optionally one distribution type.
type DistributionsQuery struct {
	Period           string
	DistributionType string
}

type DistributedItem struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ItemName      string          `json:"item_name"`
	UnitOfMeasure string          `json:"unit_of_measure,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// DistributionSummary is one row of the distributions report.
type DistributionSummary struct {
	ID               uuid.UUID              `json:"id"`
	Date             time.Time              `json:"date"`
	DistributionType enums.DistributionType `json:"distribution_type"`
	Items            []DistributedItem      `json:"items"`
	RecipientID      *uuid.UUID             `json:"recipient_id,omitempty"`
	RecipientName    string                 `json:"recipient_name,omitempty"`
	RecipientInfo    *string                `json:"recipient_info,omitempty"`
	UserName         string                 `json:"user_name"`
	Notes            *string                `json:"notes,omitempty"`
}
