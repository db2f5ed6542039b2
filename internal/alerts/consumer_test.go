package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/db/dbtest"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/outbox/idempotency"
	"github.com/openaid/aid-inventory/pkg/outbox/payloads"
)

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memIdempotency) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type nopReceiver struct{}

func (nopReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error { return nil }

type fixture struct {
	client   *db.Client
	consumer *Consumer
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	manager, err := idempotency.NewManager(&memIdempotency{keys: map[string]string{}}, time.Hour)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	consumer, err := NewConsumer(ConsumerParams{
		Items:        items.NewRepository(conn),
		DB:           client,
		Outbox:       outbox.NewService(outbox.NewRepository(conn), nil),
		Subscription: nopReceiver{},
		Idempotency:  manager,
		Metrics:      metrics.NewStockMetrics(reg),
		Logger:       logger.New(logger.Options{ServiceName: "alerts-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return &fixture{client: client, consumer: consumer, registry: reg}
}

func (f *fixture) seedItem(t *testing.T, name string, level, minimum int64) *models.Item {
	t.Helper()
	item := &models.Item{
		Name:              name,
		Category:          enums.ItemCategoryPurchasedItem,
		UnitOfMeasure:     "kg",
		CurrentStockLevel: decimal.NewFromInt(level),
		MinimumStockLevel: decimal.NewNullDecimal(decimal.NewFromInt(minimum)),
	}
	require.NoError(t, f.client.DB().Create(item).Error)
	return item
}

func (f *fixture) lowStockRows(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.client.DB().Where("event_type = ?", enums.EventItemLowStock).Find(&rows).Error)
	return rows
}

func stockMessage(t *testing.T, eventID uuid.UUID, lines ...payloads.StockEventLine) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payloads.StockEventRecorded{
		StockEventID: uuid.New(),
		Kind:         enums.StockEventDistribution,
		OccurredAt:   time.Now().UTC(),
		Lines:        lines,
	})
	require.NoError(t, err)
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       raw,
		Attributes: map[string]string{"event_type": string(enums.EventStockRecorded)},
	}
}

func outLine(itemID uuid.UUID) payloads.StockEventLine {
	return payloads.StockEventLine{ItemID: itemID, Direction: enums.MovementOut, Role: enums.LineRoleItem, Quantity: decimal.NewFromInt(1)}
}

func TestRaisesAlertForItemAtMinimum(t *testing.T) {
	f := newFixture(t)
	rice := f.seedItem(t, "Rice", 5, 5)
	beans := f.seedItem(t, "Beans", 40, 5)

	got := f.consumer.process(context.Background(), stockMessage(t, uuid.New(), outLine(rice.ID), outLine(beans.ID)))
	require.Equal(t, outcomeAck, got)

	rows := f.lowStockRows(t)
	require.Len(t, rows, 1)
	require.Equal(t, rice.ID, rows[0].AggregateID)
	require.Equal(t, enums.AggregateItem, rows[0].AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, rows[0].Payload.Decode(&envelope))
	var alert payloads.ItemLowStock
	require.NoError(t, json.Unmarshal(envelope.Data, &alert))
	require.Equal(t, "Rice", alert.Name)
	require.True(t, alert.MinimumStockLevel.Equal(decimal.NewFromInt(5)))

	families, err := f.registry.Gather()
	require.NoError(t, err)
	var alerts float64
	for _, fam := range families {
		if fam.GetName() == "aidinv_low_stock_alerts_total" {
			alerts = fam.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(1), alerts)
}

type flakyEmitter struct {
	outbox.Emitter
	failOn int
	calls  int
}

func (e *flakyEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.calls++
	if e.calls == e.failOn {
		return errors.New("outbox unavailable")
	}
	return e.Emitter.Emit(ctx, tx, event)
}

func TestAlertsForOneEventCommitTogether(t *testing.T) {
	f := newFixture(t)
	rice := f.seedItem(t, "Rice", 1, 5)
	beans := f.seedItem(t, "Beans", 2, 5)
	f.consumer.outbox = &flakyEmitter{Emitter: f.consumer.outbox, failOn: 2}

	got := f.consumer.process(context.Background(), stockMessage(t, uuid.New(), outLine(rice.ID), outLine(beans.ID)))
	require.Equal(t, outcomeRetry, got)
	require.Empty(t, f.lowStockRows(t))

	f.consumer.outbox = outbox.NewService(outbox.NewRepository(f.client.DB()), nil)
	got = f.consumer.process(context.Background(), stockMessage(t, uuid.New(), outLine(rice.ID), outLine(beans.ID)))
	require.Equal(t, outcomeAck, got)
	require.Len(t, f.lowStockRows(t), 2)
}

func TestIgnoresIncomingMovements(t *testing.T) {
	f := newFixture(t)
	rice := f.seedItem(t, "Rice", 2, 5)
	line := outLine(rice.ID)
	line.Direction = enums.MovementIn

	require.Equal(t, outcomeAck, f.consumer.process(context.Background(), stockMessage(t, uuid.New(), line)))
	require.Empty(t, f.lowStockRows(t))
}

func TestDuplicateDeliveryRaisesOnce(t *testing.T) {
	f := newFixture(t)
	rice := f.seedItem(t, "Rice", 1, 5)
	eventID := uuid.New()

	require.Equal(t, outcomeAck, f.consumer.process(context.Background(), stockMessage(t, eventID, outLine(rice.ID))))
	require.Equal(t, outcomeAck, f.consumer.process(context.Background(), stockMessage(t, eventID, outLine(rice.ID))))
	require.Len(t, f.lowStockRows(t), 1)
}

func TestSkipsOtherEventTypes(t *testing.T) {
	f := newFixture(t)
	msg := &pubsub.Message{ID: "m-1", Data: []byte(`{}`), Attributes: map[string]string{"event_type": string(enums.EventKitTemplateChanged)}}
	require.Equal(t, outcomeAck, f.consumer.process(context.Background(), msg))
}

func TestMalformedEnvelopeIsAcked(t *testing.T) {
	f := newFixture(t)
	msg := &pubsub.Message{ID: "m-2", Data: []byte(`not-json`), Attributes: map[string]string{"event_type": string(enums.EventStockRecorded)}}
	require.Equal(t, outcomeAck, f.consumer.process(context.Background(), msg))
}
