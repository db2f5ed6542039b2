package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/pagination"
)

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// UserRef returns the actor id as a nullable column value.
func (a Actor) UserRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// Service reads the event log and turns rows into typed events.
type Service struct {
	db   *gorm.DB
	repo Repository
}

// NewService wires a ledger reader.
func NewService(db *gorm.DB, repo Repository) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger db required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Service{db: db, repo: repo}, nil
}

// Page is one cursor page of events.
type Page struct {
	Events     []Event `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// ListPage returns events newest first using keyset pagination.
func (s *Service) ListPage(ctx context.Context, filter Filter, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor
	filter.Limit = pagination.LimitWithBuffer(params.Limit)

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock events")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.StockEvent) pagination.Cursor {
		return pagination.Cursor{At: row.OccurredAt, ID: row.ID}
	})
	events, err := Hydrate(ctx, s.db, rows)
	if err != nil {
		return nil, err
	}
	return &Page{Events: events, NextCursor: next}, nil
}

// ListAll returns every event matching filter, newest first.
func (s *Service) ListAll(ctx context.Context, filter Filter) ([]Event, error) {
	filter.Cursor = nil
	filter.Limit = 0
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock events")
	}
	return Hydrate(ctx, s.db, rows)
}

// Recent returns the latest limit events.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.repo.List(ctx, Filter{Limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent stock events")
	}
	return Hydrate(ctx, s.db, rows)
}

// Get loads one event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock event")
	}
	events, err := Hydrate(ctx, s.db, []models.StockEvent{*row})
	if err != nil {
		return nil, err
	}
	return events[0], nil
}

// Repository exposes the underlying repository for writers.
func (s *Service) Repository() Repository {
	return s.repo
}

type itemRef struct {
	ID            uuid.UUID
	Name          string
	UnitOfMeasure string
}

type names struct {
	items map[uuid.UUID]itemRef
	users map[uuid.UUID]string
}

// Hydrate decodes rows into typed events, resolving item and user names
// with db (pass the transaction when called inside one).
func Hydrate(ctx context.Context, db *gorm.DB, rows []models.StockEvent) ([]Event, error) {
	lookup, err := loadNames(ctx, db, rows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve event names")
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, err := decode(row, lookup)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stock event")
		}
		events = append(events, event)
	}
	return events, nil
}

func loadNames(ctx context.Context, db *gorm.DB, rows []models.StockEvent) (names, error) {
	out := names{items: map[uuid.UUID]itemRef{}, users: map[uuid.UUID]string{}}
	itemIDs := map[uuid.UUID]struct{}{}
	userIDs := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		if row.ActorUserID != nil {
			userIDs[*row.ActorUserID] = struct{}{}
		}
		for _, line := range row.Lines {
			itemIDs[line.ItemID] = struct{}{}
		}
	}
	if len(itemIDs) > 0 {
		var items []itemRef
		if err := db.WithContext(ctx).Model(&models.Item{}).
			Select("id, name, unit_of_measure").
			Where("id IN ?", keys(itemIDs)).
			Scan(&items).Error; err != nil {
			return out, err
		}
		for _, item := range items {
			out.items[item.ID] = item
		}
	}
	if len(userIDs) > 0 {
		var users []struct {
			ID       uuid.UUID
			Username string
		}
		if err := db.WithContext(ctx).Model(&models.User{}).
			Select("id, username").
			Where("id IN ?", keys(userIDs)).
			Scan(&users).Error; err != nil {
			return out, err
		}
		for _, user := range users {
			out.users[user.ID] = user.Username
		}
	}
	return out, nil
}

func keys(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func decode(row models.StockEvent, lookup names) (Event, error) {
	header := EventHeader{
		ID:          row.ID,
		Kind:        row.Kind,
		OccurredAt:  row.OccurredAt,
		ActorUserID: row.ActorUserID,
		Notes:       row.Notes,
	}
	if row.ActorUserID != nil {
		header.ActorUsername = lookup.users[*row.ActorUserID]
	}
	line := func(l models.StockEventLine) ItemLine {
		ref := lookup.items[l.ItemID]
		return ItemLine{
			ItemID:        l.ItemID,
			ItemName:      ref.Name,
			UnitOfMeasure: ref.UnitOfMeasure,
			Quantity:      l.Quantity,
			Direction:     l.Direction,
			BalanceAfter:  l.BalanceAfter,
		}
	}

	switch row.Kind {
	case enums.StockEventProduction:
		if len(row.Lines) != 1 {
			return nil, fmt.Errorf("production event %s has %d lines", row.ID, len(row.Lines))
		}
		return &ProductionEvent{EventHeader: header, Item: line(row.Lines[0])}, nil

	case enums.StockEventAdjustment:
		if len(row.Lines) != 1 {
			return nil, fmt.Errorf("adjustment event %s has %d lines", row.ID, len(row.Lines))
		}
		var meta AdjustmentMetadata
		if err := row.Metadata.Decode(&meta); err != nil {
			return nil, err
		}
		return &AdjustmentEvent{
			EventHeader: header,
			Reason:      meta.Reason,
			Delta:       row.Lines[0].Signed(),
			Item:        line(row.Lines[0]),
		}, nil

	case enums.StockEventPurchase:
		var meta PurchaseMetadata
		if err := row.Metadata.Decode(&meta); err != nil {
			return nil, err
		}
		event := &PurchaseEvent{EventHeader: header, SupplierName: meta.SupplierName, TotalCost: meta.TotalCost}
		for _, l := range row.Lines {
			pl := PurchaseLine{ItemLine: line(l), UnitCost: l.UnitCost}
			if l.UnitCost.Valid {
				pl.LineCost = decimal.NewNullDecimal(l.UnitCost.Decimal.Mul(l.Quantity))
			}
			event.Items = append(event.Items, pl)
		}
		return event, nil

	case enums.StockEventDistribution:
		var meta DistributionMetadata
		if err := row.Metadata.Decode(&meta); err != nil {
			return nil, err
		}
		event := &DistributionEvent{
			EventHeader:      header,
			DistributionType: meta.DistributionType,
			RecipientID:      meta.RecipientID,
			RecipientName:    meta.RecipientName,
			RecipientInfo:    meta.RecipientInfo,
			TotalQuantity:    decimal.Zero,
		}
		for _, l := range row.Lines {
			event.Items = append(event.Items, line(l))
			event.TotalQuantity = event.TotalQuantity.Add(l.Quantity)
		}
		return event, nil

	case enums.StockEventAssembly:
		var meta AssemblyMetadata
		if err := row.Metadata.Decode(&meta); err != nil {
			return nil, err
		}
		event := &AssemblyEvent{
			EventHeader:   header,
			TemplateID:    meta.TemplateID,
			TemplateName:  meta.TemplateName,
			KitsAssembled: meta.KitsAssembled,
		}
		kitFound := false
		for _, l := range row.Lines {
			switch l.Role {
			case enums.LineRoleKit:
				event.Kit = line(l)
				kitFound = true
			default:
				event.Consumed = append(event.Consumed, line(l))
			}
		}
		if !kitFound {
			return nil, fmt.Errorf("assembly event %s has no kit line", row.ID)
		}
		return event, nil
	}
	return nil, fmt.Errorf("unknown stock event kind %q", row.Kind)
}
