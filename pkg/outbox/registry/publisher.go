package registry

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/outbox"
)

// EventDescriptor routes one event type to its topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row checked against its descriptor with the
// payload decoded for the envelope's version.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry is the publisher's routing table. Payload decoding is shared
// with consumers through a DecoderRegistry.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// NewEventRegistry builds the routing table from the configured topics.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	stockTopic := strings.TrimSpace(cfg.StockEventsTopic)
	alertsTopic := strings.TrimSpace(cfg.AlertsTopic)
	var missing []error
	if stockTopic == "" {
		missing = append(missing, errors.New("stock events topic is required"))
	}
	if alertsTopic == "" {
		missing = append(missing, errors.New("alerts topic is required"))
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	reg := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]EventDescriptor, 3),
		decoders: NewDefaultDecoderRegistry(),
	}
	reg.route(enums.EventStockRecorded, enums.AggregateStockEvent, stockTopic)
	reg.route(enums.EventKitTemplateChanged, enums.AggregateKitTemplate, stockTopic)
	reg.route(enums.EventItemLowStock, enums.AggregateItem, alertsTopic)
	return reg, nil
}

func (r *EventRegistry) route(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	r.routes[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic}
}

// Resolve validates the row and decodes its typed payload. Every failure is
// a NonRetryableError since the row content cannot change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := event.Payload.Decode(&envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
