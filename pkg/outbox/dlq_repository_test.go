package outbox_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/db/dbtest"
	"github.com/openaid/aid-inventory/pkg/db/models"
	dbtypes "github.com/openaid/aid-inventory/pkg/db/types"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/outbox"
)

func dlqEntry(eventID uuid.UUID, message string) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventStockRecorded,
		AggregateType: enums.AggregateStockEvent,
		AggregateID:   uuid.New(),
		Payload:       dbtypes.JSON(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &message,
		AttemptCount:  10,
		FailedAt:      time.Now().UTC(),
	}
}

func TestDLQInsertIsIdempotentPerEvent(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()
	eventID := uuid.New()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.InsertTx(tx, dlqEntry(eventID, "first failure"))
	}))
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.InsertTx(tx, dlqEntry(eventID, "second failure"))
	}))

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxDLQ{}).Where("event_id = ?", eventID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	stored, err := repo.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "first failure", *stored.ErrorMessage)
}

func TestDLQInsertTruncatesLongErrors(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	eventID := uuid.New()

	require.NoError(t, repo.InsertTx(client.DB(), dlqEntry(eventID, strings.Repeat("x", 10_000))))
	stored, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.Less(t, len(*stored.ErrorMessage), 10_000)

	require.Error(t, repo.InsertTx(nil, dlqEntry(uuid.New(), "no tx")))
}
