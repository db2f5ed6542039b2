package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

const (
	PeriodDay    = "day"
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodCustom = "custom"

	dateLayout = "2006-01-02"
)

type eventReader interface {
	ListAll(ctx context.Context, filter ledger.Filter) ([]ledger.Event, error)
	Recent(ctx context.Context, limit int) ([]ledger.Event, error)
	Repository() ledger.Repository
}

type Service struct {
	db          *gorm.DB
	events      eventReader
	recentLimit int
	window      time.Duration
	now         func() time.Time
}

type Options struct {
	RecentLimit int
	Window      time.Duration
	Now         func() time.Time
}

func NewService(db *gorm.DB, events eventReader, opts Options) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if events == nil {
		return nil, fmt.Errorf("event reader required")
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	if opts.Window <= 0 {
		opts.Window = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, events: events, recentLimit: opts.RecentLimit, window: opts.Window, now: opts.Now}, nil
}

func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Item{}).Count(&stats.TotalItems).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count items")
	}
	err := db.Model(&models.Item{}).
		Where("minimum_stock_level IS NOT NULL AND current_stock_level <= minimum_stock_level").
		Count(&stats.LowStockItems).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count low stock items")
	}

	since := s.now().UTC().Add(-s.window)
	counts, err := s.events.Repository().CountByKind(ctx, &since, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count stock events")
	}
	stats.ProductionsThisWeek = counts[enums.StockEventProduction]
	stats.PurchasesThisWeek = counts[enums.StockEventPurchase]
	stats.DistributionsThisWeek = counts[enums.StockEventDistribution]
	stats.AssembliesThisWeek = counts[enums.StockEventAssembly]

	stats.RecentActivity, err = s.events.Recent(ctx, s.recentLimit)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ResolveRange turns a query into [from, to). Named periods end now; explicit
// dates cover whole UTC days.
func (s *Service) ResolveRange(q ActivityQuery) (period string, from, to time.Time, err error) {
	now := s.now().UTC()
	start, end := strings.TrimSpace(q.StartDate), strings.TrimSpace(q.EndDate)
	if start != "" || end != "" {
		if start == "" || end == "" {
			return "", time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "start_date and end_date must be given together")
		}
		from, err = time.Parse(dateLayout, start)
		if err != nil {
			return "", time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "start_date must be YYYY-MM-DD")
		}
		last, err := time.Parse(dateLayout, end)
		if err != nil {
			return "", time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "end_date must be YYYY-MM-DD")
		}
		if last.Before(from) {
			return "", time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "end_date must not be before start_date")
		}
		return PeriodCustom, from, last.AddDate(0, 0, 1), nil
	}

	period = strings.ToLower(strings.TrimSpace(q.Period))
	if period == "" {
		period = PeriodWeek
	}
	// A microsecond past now keeps events written this instant inside the window.
	to = now.Add(time.Microsecond)
	switch period {
	case PeriodDay:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodWeek:
		from = now.AddDate(0, 0, -7)
	case PeriodMonth:
		from = now.AddDate(0, 0, -30)
	default:
		return "", time.Time{}, time.Time{}, pkgerrors.Newf(pkgerrors.CodeValidation, "period must be one of day, week, month; got %q", q.Period)
	}
	return period, from, to, nil
}

func (s *Service) Activity(ctx context.Context, q ActivityQuery) (*ActivityReport, error) {
	period, from, to, err := s.ResolveRange(q)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListAll(ctx, ledger.Filter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	report := &ActivityReport{
		Summary: ActivitySummary{
			Period:                period,
			DateFrom:              from,
			DateTo:                to,
			TotalItemsDistributed: decimal.Zero,
		},
		UserActivities: []UserActivity{},
		Productions:    []*ledger.ProductionEvent{},
		Purchases:      []*ledger.PurchaseEvent{},
		Distributions:  []*ledger.DistributionEvent{},
		Assemblies:     []*ledger.AssemblyEvent{},
		Adjustments:    []*ledger.AdjustmentEvent{},
	}
	users := map[uuid.UUID]*UserActivity{}
	for _, event := range events {
		activity := userActivity(users, event.Header())
		switch e := event.(type) {
		case *ledger.ProductionEvent:
			report.Productions = append(report.Productions, e)
			activity.ProductionsCount++
		case *ledger.PurchaseEvent:
			report.Purchases = append(report.Purchases, e)
			activity.PurchasesCount++
		case *ledger.DistributionEvent:
			report.Distributions = append(report.Distributions, e)
			report.Summary.TotalItemsDistributed = report.Summary.TotalItemsDistributed.Add(e.TotalQuantity)
			activity.DistributionsCount++
		case *ledger.AssemblyEvent:
			report.Assemblies = append(report.Assemblies, e)
			activity.AssembliesCount++
		case *ledger.AdjustmentEvent:
			report.Adjustments = append(report.Adjustments, e)
			activity.AdjustmentsCount++
		}
		activity.TotalEntries++
	}

	report.Summary.TotalProductions = len(report.Productions)
	report.Summary.TotalPurchases = len(report.Purchases)
	report.Summary.TotalDistributions = len(report.Distributions)
	report.Summary.TotalAssemblies = len(report.Assemblies)
	report.Summary.TotalAdjustments = len(report.Adjustments)

	for id, activity := range users {
		if id == uuid.Nil {
			continue
		}
		report.UserActivities = append(report.UserActivities, *activity)
	}
	sort.Slice(report.UserActivities, func(i, j int) bool {
		a, b := report.UserActivities[i], report.UserActivities[j]
		if a.TotalEntries != b.TotalEntries {
			return a.TotalEntries > b.TotalEntries
		}
		return a.Username < b.Username
	})
	report.Summary.UniqueUsers = len(report.UserActivities)
	return report, nil
}

// Distributions lists the period's distributions newest first, optionally of
// one type. Custom date ranges are not accepted here.
func (s *Service) Distributions(ctx context.Context, q DistributionsQuery) ([]DistributionSummary, error) {
	_, from, to, err := s.ResolveRange(ActivityQuery{Period: q.Period})
	if err != nil {
		return nil, err
	}
	filter := ledger.Filter{
		Kinds: []enums.StockEventKind{enums.StockEventDistribution},
		From:  &from,
		To:    &to,
	}
	if raw := strings.TrimSpace(q.DistributionType); raw != "" {
		distType, err := enums.ParseDistributionType(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid distribution_type").
				WithDetails(map[string]any{"field": "distribution_type"})
		}
		filter.DistributionType = distType
	}
	events, err := s.events.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	names, err := s.displayNames(ctx, events)
	if err != nil {
		return nil, err
	}
	out := make([]DistributionSummary, 0, len(events))
	for _, event := range events {
		dist, ok := event.(*ledger.DistributionEvent)
		if !ok {
			continue
		}
		row := DistributionSummary{
			ID:               dist.ID,
			Date:             dist.OccurredAt,
			DistributionType: dist.DistributionType,
			Items:            make([]DistributedItem, 0, len(dist.Items)),
			RecipientID:      dist.RecipientID,
			RecipientName:    dist.RecipientName,
			RecipientInfo:    dist.RecipientInfo,
			UserName:         "Unknown",
			Notes:            dist.Notes,
		}
		if dist.ActorUserID != nil {
			if name, ok := names[*dist.ActorUserID]; ok {
				row.UserName = name
			}
		}
		for _, line := range dist.Items {
			row.Items = append(row.Items, DistributedItem{
				ItemID:        line.ItemID,
				ItemName:      line.ItemName,
				UnitOfMeasure: line.UnitOfMeasure,
				Quantity:      line.Quantity,
			})
		}
		out = append(out, row)
	}
	return out, nil
}

// displayNames maps each actor to their full name, or username when unset.
func (s *Service) displayNames(ctx context.Context, events []ledger.Event) (map[uuid.UUID]string, error) {
	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		if id := event.Header().ActorUserID; id != nil {
			ids = append(ids, *id)
		}
	}
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load users")
	}
	for _, user := range users {
		name := user.Username
		if user.FullName != nil && strings.TrimSpace(*user.FullName) != "" {
			name = strings.TrimSpace(*user.FullName)
		}
		names[user.ID] = name
	}
	return names, nil
}

// userActivity returns the tally for the event's actor; events without one share the nil bucket.
func userActivity(users map[uuid.UUID]*UserActivity, header ledger.EventHeader) *UserActivity {
	id := uuid.Nil
	if header.ActorUserID != nil {
		id = *header.ActorUserID
	}
	activity, ok := users[id]
	if !ok {
		activity = &UserActivity{UserID: id, Username: header.ActorUsername}
		users[id] = activity
	}
	return activity
}
