package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/ledger"
	dbpkg "github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/db/models"
	dbtypes "github.com/openaid/aid-inventory/pkg/db/types"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/outbox/payloads"
)

// EngineParams wires the engine's collaborators.
type EngineParams struct {
	DB      dbpkg.TxRunner
	Store   Store
	Ledger  ledger.Repository
	Outbox  outbox.Emitter
	Metrics *metrics.StockMetrics
	Logger  *logger.Logger
}

// Engine turns stock operations into atomic deltas plus one ledger event each.
type Engine struct {
	db      dbpkg.TxRunner
	store   Store
	ledger  ledger.Repository
	outbox  outbox.Emitter
	metrics *metrics.StockMetrics
	logg    *logger.Logger
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	store := params.Store
	if store == nil {
		store = NewStore()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{
		db:      params.DB,
		store:   store,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// Store exposes the delta store for callers that build their own movements.
func (e *Engine) Store() Store {
	return e.store
}

// ApplyTx applies every line of m through the store, appends the stock event and
// queues its outbox notification, all on tx. Any error leaves tx to be rolled back.
func (e *Engine) ApplyTx(ctx context.Context, tx *gorm.DB, actor ledger.Actor, m Movement) (*models.StockEvent, error) {
	if len(m.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	row := &models.StockEvent{
		Kind:        m.Kind,
		ActorUserID: actor.UserRef(),
		Notes:       trimmed(m.Notes),
		Lines:       make([]models.StockEventLine, 0, len(m.Lines)),
	}
	if m.Metadata != nil {
		row.Metadata = dbtypes.MustJSON(m.Metadata)
	}

	for _, line := range m.Lines {
		if err := ValidateQuantity("Quantity", line.Quantity); err != nil {
			return nil, err
		}
		item, err := e.store.ApplyDelta(ctx, tx, line.delta())
		if err != nil {
			return nil, err
		}
		row.Lines = append(row.Lines, models.StockEventLine{
			ItemID:       line.ItemID,
			Direction:    line.Direction,
			Role:         line.Role,
			Quantity:     line.Quantity,
			UnitCost:     line.UnitCost,
			BalanceAfter: item.CurrentStockLevel,
		})
	}

	if err := e.ledger.WithTx(tx).Append(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock event")
	}
	if err := e.outbox.Emit(ctx, tx, recordedEvent(row, actor)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue stock event")
	}
	return row, nil
}

func recordedEvent(row *models.StockEvent, actor ledger.Actor) outbox.DomainEvent {
	data := payloads.StockEventRecorded{
		StockEventID: row.ID,
		Kind:         row.Kind,
		ActorUserID:  row.ActorUserID,
		OccurredAt:   row.OccurredAt,
		Lines:        make([]payloads.StockEventLine, 0, len(row.Lines)),
	}
	for _, line := range row.Lines {
		data.Lines = append(data.Lines, payloads.StockEventLine{
			ItemID:       line.ItemID,
			Direction:    line.Direction,
			Role:         line.Role,
			Quantity:     line.Quantity,
			BalanceAfter: line.BalanceAfter,
		})
	}
	var ref *outbox.ActorRef
	if actor.UserID != uuid.Nil {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	return outbox.DomainEvent{
		EventType:     enums.EventStockRecorded,
		AggregateType: enums.AggregateStockEvent,
		AggregateID:   row.ID,
		Actor:         ref,
		Data:          data,
		OccurredAt:    row.OccurredAt,
	}
}

// Record runs fn in a transaction, hydrates the stored event and counts the outcome.
func (e *Engine) Record(ctx context.Context, kind enums.StockEventKind, fn func(tx *gorm.DB) (*models.StockEvent, error)) (ledger.Event, error) {
	var event ledger.Event
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := fn(tx)
		if err != nil {
			return err
		}
		events, err := ledger.Hydrate(ctx, tx, []models.StockEvent{*row})
		if err != nil {
			return err
		}
		event = events[0]
		return nil
	})
	e.metrics.ObserveOperation(string(kind), err)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock transaction failed")
		}
		return nil, err
	}
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"stock_event_id": event.Header().ID.String(),
		"kind":           kind,
	})
	e.logg.Info(logCtx, "stock event recorded")
	return event, nil
}

// Adjust applies a signed manual correction and returns the updated item.
func (e *Engine) Adjust(ctx context.Context, actor ledger.Actor, input AdjustInput) (*models.Item, error) {
	if input.Delta.IsZero() {
		e.metrics.ObserveOperation(string(enums.StockEventAdjustment), errInvalidDelta)
		return nil, errInvalidDelta
	}
	var updated models.Item
	_, err := e.Record(ctx, enums.StockEventAdjustment, func(tx *gorm.DB) (*models.StockEvent, error) {
		row, err := e.AdjustTx(ctx, tx, actor, input)
		if err != nil {
			return nil, err
		}
		if err := tx.WithContext(ctx).First(&updated, "id = ?", input.ItemID).Error; err != nil {
			return nil, err
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

var errInvalidDelta = pkgerrors.New(pkgerrors.CodeInvalidQuantity, "Adjustment delta must not be zero")

// AdjustTx records an adjustment inside the caller's transaction. Item creation uses
// it to book the opening balance.
func (e *Engine) AdjustTx(ctx context.Context, tx *gorm.DB, actor ledger.Actor, input AdjustInput) (*models.StockEvent, error) {
	if input.Delta.IsZero() {
		return nil, errInvalidDelta
	}
	direction := enums.MovementIn
	if input.Delta.IsNegative() {
		direction = enums.MovementOut
	}
	return e.ApplyTx(ctx, tx, actor, Movement{
		Kind:     enums.StockEventAdjustment,
		Metadata: ledger.AdjustmentMetadata{Reason: trimmed(input.Reason)},
		Lines: []MovementLine{{
			ItemID:    input.ItemID,
			Quantity:  input.Delta.Abs(),
			Direction: direction,
			Role:      enums.LineRoleItem,
		}},
	})
}

// RecordProduction books an in-house production run.
func (e *Engine) RecordProduction(ctx context.Context, actor ledger.Actor, input ProductionInput) (ledger.Event, error) {
	if err := ValidateQuantity("Quantity produced", input.Quantity); err != nil {
		e.metrics.ObserveOperation(string(enums.StockEventProduction), err)
		return nil, err
	}
	return e.Record(ctx, enums.StockEventProduction, func(tx *gorm.DB) (*models.StockEvent, error) {
		return e.ApplyTx(ctx, tx, actor, Movement{
			Kind:  enums.StockEventProduction,
			Notes: input.Notes,
			Lines: []MovementLine{{
				ItemID:    input.ItemID,
				Quantity:  input.Quantity,
				Direction: enums.MovementIn,
				Role:      enums.LineRoleItem,
			}},
		})
	})
}

// RecordPurchase validates every line before touching stock; one bad line rejects the purchase.
func (e *Engine) RecordPurchase(ctx context.Context, actor ledger.Actor, input PurchaseInput) (ledger.Event, error) {
	return e.Record(ctx, enums.StockEventPurchase, func(tx *gorm.DB) (*models.StockEvent, error) {
		items, err := e.validatePurchase(ctx, tx, input)
		if err != nil {
			return nil, err
		}

		lines := make([]MovementLine, 0, len(input.Items))
		total := decimal.Zero
		costed := false
		for _, in := range input.Items {
			cost := in.UnitCost
			if !cost.Valid {
				cost = items[in.ItemID].UnitCost
			}
			if cost.Valid {
				total = total.Add(cost.Decimal.Mul(in.Quantity))
				costed = true
			}
			lines = append(lines, MovementLine{
				ItemID:    in.ItemID,
				Quantity:  in.Quantity,
				Direction: enums.MovementIn,
				Role:      enums.LineRoleItem,
				UnitCost:  cost,
			})
		}
		meta := ledger.PurchaseMetadata{SupplierName: trimmed(input.SupplierName)}
		if costed {
			meta.TotalCost = decimal.NewNullDecimal(total)
		}
		return e.ApplyTx(ctx, tx, actor, Movement{
			Kind:     enums.StockEventPurchase,
			Notes:    input.Notes,
			Metadata: meta,
			Lines:    lines,
		})
	})
}

func (e *Engine) validatePurchase(ctx context.Context, tx *gorm.DB, input PurchaseInput) (map[uuid.UUID]models.Item, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "At least one item is required")
	}
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, line := range input.Items {
		ids = append(ids, line.ItemID)
	}
	items, err := e.store.LoadItems(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	var (
		combined    error
		lineErrs    []LineError
		badQuantity bool
		badCost     bool
	)
	for i, line := range input.Items {
		itemID := line.ItemID
		if problem := quantityProblem(line.Quantity); problem != "" {
			badQuantity = true
			le := LineError{Index: i, ItemID: &itemID, Field: "quantity", Message: fmt.Sprintf("item %d: quantity %s", i+1, problem)}
			lineErrs = append(lineErrs, le)
			combined = multierr.Append(combined, le)
		}
		if line.UnitCost.Valid && line.UnitCost.Decimal.IsNegative() {
			badCost = true
			le := LineError{Index: i, ItemID: &itemID, Field: "unit_cost", Message: fmt.Sprintf("item %d: unit cost cannot be negative", i+1)}
			lineErrs = append(lineErrs, le)
			combined = multierr.Append(combined, le)
		}
		if _, ok := items[line.ItemID]; !ok {
			le := LineError{Index: i, ItemID: &itemID, Field: "item_id", Message: fmt.Sprintf("item %d: item not found", i+1)}
			lineErrs = append(lineErrs, le)
			combined = multierr.Append(combined, le)
		}
	}
	if combined == nil {
		return items, nil
	}

	code := pkgerrors.CodeNotFound
	switch {
	case badQuantity:
		code = pkgerrors.CodeInvalidQuantity
	case badCost:
		code = pkgerrors.CodeValidation
	}
	return nil, pkgerrors.Wrap(code, combined, joinErrors(combined)).
		WithDetails(map[string]any{"lines": lineErrs})
}

// RecordDistribution books outgoing aid. The first line that would overdraw fails the whole distribution.
func (e *Engine) RecordDistribution(ctx context.Context, actor ledger.Actor, input DistributionInput) (ledger.Event, error) {
	if err := validateDistribution(input); err != nil {
		e.metrics.ObserveOperation(string(enums.StockEventDistribution), err)
		return nil, err
	}
	return e.Record(ctx, enums.StockEventDistribution, func(tx *gorm.DB) (*models.StockEvent, error) {
		meta := ledger.DistributionMetadata{
			DistributionType: input.Type,
			RecipientInfo:    trimmed(input.RecipientInfo),
		}
		if input.RecipientID != nil {
			var recipient models.Recipient
			err := tx.WithContext(ctx).
				Where("id = ? AND is_active = ?", *input.RecipientID, true).
				First(&recipient).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Recipient not found")
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
			}
			meta.RecipientID = &recipient.ID
			meta.RecipientName = recipient.Name
		}

		merged := mergeDistributionLines(input.Items)
		lines := make([]MovementLine, 0, len(merged))
		for _, in := range merged {
			lines = append(lines, MovementLine{
				ItemID:    in.ItemID,
				Quantity:  in.Quantity,
				Direction: enums.MovementOut,
				Role:      enums.LineRoleItem,
			})
		}
		return e.ApplyTx(ctx, tx, actor, Movement{
			Kind:     enums.StockEventDistribution,
			Notes:    input.Notes,
			Metadata: meta,
			Lines:    lines,
		})
	})
}

func validateDistribution(input DistributionInput) error {
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid distribution type %q", input.Type)
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "At least one item is required")
	}
	var (
		lineErrs []LineError
		first    string
	)
	for i, line := range input.Items {
		if problem := quantityProblem(line.Quantity); problem != "" {
			itemID := line.ItemID
			lineErrs = append(lineErrs, LineError{Index: i, ItemID: &itemID, Field: "quantity", Message: fmt.Sprintf("item %d: quantity %s", i+1, problem)})
			if first == "" {
				first = problem
			}
		}
	}
	if len(lineErrs) > 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "Quantity "+first).
			WithDetails(map[string]any{"lines": lineErrs})
	}
	return nil
}

// mergeDistributionLines folds repeated items into one line so the stock
// check sees the full amount requested per item. First-seen order is kept.
func mergeDistributionLines(in []DistributionLineInput) []DistributionLineInput {
	out := make([]DistributionLineInput, 0, len(in))
	index := make(map[uuid.UUID]int, len(in))
	for _, line := range in {
		if i, ok := index[line.ItemID]; ok {
			out[i].Quantity = out[i].Quantity.Add(line.Quantity)
			continue
		}
		index[line.ItemID] = len(out)
		out = append(out, line)
	}
	return out
}

func joinErrors(err error) string {
	errs := multierr.Errors(err)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
