package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/pagination"
)

// Filter narrows event reads. Zero values mean "no constraint".
type Filter struct {
	Kinds       []enums.StockEventKind
	ItemID      *uuid.UUID
	ActorUserID *uuid.UUID
	// DistributionType matches the type stored in a distribution's metadata.
	DistributionType enums.DistributionType
	From             *time.Time
	To               *time.Time
	Cursor           *pagination.Cursor
	Limit            int
}

// Repository is append and read only; stock events are never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.StockEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockEvent, error)
	List(ctx context.Context, filter Filter) ([]models.StockEvent, error)
	CountByKind(ctx context.Context, from, to *time.Time) (map[enums.StockEventKind]int64, error)
	ReferencesItem(ctx context.Context, itemID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, event *models.StockEvent) error {
	if event == nil {
		return errors.New("stock event is required")
	}
	if !event.Kind.IsValid() {
		return fmt.Errorf("invalid stock event kind %q", event.Kind)
	}
	if len(event.Lines) == 0 {
		return errors.New("stock event needs at least one line")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	// Postgres keeps microseconds; truncate so cursors round-trip on both engines.
	event.OccurredAt = event.OccurredAt.UTC().Truncate(time.Microsecond)
	for i := range event.Lines {
		event.Lines[i].Position = i
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockEvent, error) {
	var event models.StockEvent
	err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		First(&event, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events newest first.
func (r *repository) List(ctx context.Context, filter Filter) ([]models.StockEvent, error) {
	query := r.db.WithContext(ctx).Model(&models.StockEvent{})
	if len(filter.Kinds) > 0 {
		query = query.Where("kind IN ?", filter.Kinds)
	}
	if filter.ItemID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.StockEventLine{}).Select("event_id").Where("item_id = ?", *filter.ItemID))
	}
	if filter.ActorUserID != nil {
		query = query.Where("actor_user_id = ?", *filter.ActorUserID)
	}
	if filter.DistributionType != "" {
		query = query.Where(metadataField(r.db, "distribution_type")+" = ?", string(filter.DistributionType))
	}
	if filter.From != nil {
		query = query.Where("occurred_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("occurred_at < ?", filter.To.UTC())
	}
	if filter.Cursor != nil {
		at := filter.Cursor.At.UTC()
		query = query.Where("(occurred_at < ? OR (occurred_at = ? AND id < ?))", at, at, filter.Cursor.ID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var events []models.StockEvent
	err := query.
		Preload("Lines", orderedLines).
		Order("occurred_at DESC").
		Order("id DESC").
		Find(&events).Error
	return events, err
}

func (r *repository) CountByKind(ctx context.Context, from, to *time.Time) (map[enums.StockEventKind]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StockEvent{})
	if from != nil {
		query = query.Where("occurred_at >= ?", from.UTC())
	}
	if to != nil {
		query = query.Where("occurred_at < ?", to.UTC())
	}
	var rows []struct {
		Kind  enums.StockEventKind
		Total int64
	}
	if err := query.Select("kind, COUNT(*) AS total").Group("kind").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[enums.StockEventKind]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Total
	}
	return counts, nil
}

func (r *repository) ReferencesItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockEventLine{}).
		Where("item_id = ?", itemID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// metadataField extracts a top-level text field from stock_events.metadata.
// key must be a constant.
func metadataField(db *gorm.DB, key string) string {
	if db.Dialector.Name() == "postgres" {
		return "metadata->>'" + key + "'"
	}
	return "json_extract(metadata, '$." + key + "')"
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
