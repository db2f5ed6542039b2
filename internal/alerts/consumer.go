// Package alerts raises low stock alerts from the stock event stream.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/outbox/idempotency"
	"github.com/openaid/aid-inventory/pkg/outbox/payloads"
	"github.com/openaid/aid-inventory/pkg/outbox/registry"
)

const consumerName = "low-stock-alerts"

type itemReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type ConsumerParams struct {
	Items        itemReader
	DB           txRunner
	Outbox       outbox.Emitter
	Subscription receiver
	Idempotency  *idempotency.Manager
	Decoders     *registry.DecoderRegistry
	Metrics      *metrics.StockMetrics
	Logger       *logger.Logger
}

// Consumer checks every item an outgoing movement touched and raises an
// item_low_stock event for those left at or below their minimum.
type Consumer struct {
	items        itemReader
	db           txRunner
	outbox       outbox.Emitter
	subscription receiver
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	metrics      *metrics.StockMetrics
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	switch {
	case params.Items == nil:
		return nil, fmt.Errorf("item repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Subscription == nil:
		return nil, fmt.Errorf("stock events subscription required")
	case params.Idempotency == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = registry.NewDefaultDecoderRegistry()
	}
	return &Consumer{
		items:        params.Items,
		db:           params.DB,
		outbox:       params.Outbox,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		decoders:     decoders,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == outcomeRetry {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
)

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) outcome {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
		"consumer":   consumerName,
	})

	if eventType != enums.EventStockRecorded {
		c.logg.Debug(logCtx, "skipping event")
		return outcomeAck
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return outcomeAck
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return outcomeAck
	}
	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return outcomeAck
	}
	recorded, ok := decoded.(*payloads.StockEventRecorded)
	if !ok {
		c.logg.Error(logCtx, "unexpected payload type", fmt.Errorf("got %T", decoded))
		return outcomeAck
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":       eventID.String(),
		"stock_event_id": recorded.StockEventID.String(),
		"kind":           recorded.Kind,
	})

	duplicate, err := c.idempotency.Run(ctx, consumerName, eventID, func(ctx context.Context) error {
		return c.checkLevels(ctx, logCtx, recorded)
	})
	switch {
	case err != nil:
		c.logg.Error(logCtx, "low stock check failed", err)
		return outcomeRetry
	case duplicate:
		c.logg.Info(logCtx, "event already processed")
	}
	return outcomeAck
}

// checkLevels emits every alert for the event in one transaction, so a
// retried delivery never finds some of them already queued.
func (c *Consumer) checkLevels(ctx, logCtx context.Context, recorded *payloads.StockEventRecorded) error {
	outgoing := map[uuid.UUID]struct{}{}
	for _, line := range recorded.Lines {
		if line.Direction == enums.MovementOut {
			outgoing[line.ItemID] = struct{}{}
		}
	}
	var low []*models.Item
	for _, itemID := range recorded.ItemIDs() {
		if _, ok := outgoing[itemID]; !ok {
			continue
		}
		item, err := c.items.FindByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("load item %s: %w", itemID, err)
		}
		if item != nil && item.IsLowStock() {
			low = append(low, item)
		}
	}
	if len(low) == 0 {
		return nil
	}

	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range low {
			if err := c.outbox.Emit(ctx, tx, lowStockEvent(item, recorded.StockEventID)); err != nil {
				return fmt.Errorf("emit low stock alert for %s: %w", item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, item := range low {
		c.metrics.IncLowStockAlert()
		c.logg.Warn(c.logg.WithFields(logCtx, map[string]any{
			"item_id":             item.ID.String(),
			"item_name":           item.Name,
			"current_stock_level": item.CurrentStockLevel.String(),
			"minimum_stock_level": item.MinimumStockLevel.Decimal.String(),
		}), "item.low_stock")
	}
	return nil
}

func lowStockEvent(item *models.Item, stockEventID uuid.UUID) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventItemLowStock,
		AggregateType: enums.AggregateItem,
		AggregateID:   item.ID,
		Data: payloads.ItemLowStock{
			ItemID:            item.ID,
			Name:              item.Name,
			Category:          item.Category,
			CurrentStockLevel: item.CurrentStockLevel,
			MinimumStockLevel: item.MinimumStockLevel.Decimal,
			UnitOfMeasure:     item.UnitOfMeasure,
			StockEventID:      stockEventID,
		},
	}
}
