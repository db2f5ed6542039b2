package maintenance

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/pkg/logger"
)

const defaultOutboxRetentionDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJob deletes outbox rows that were published more than
// RetentionDays ago. Unpublished and dead-lettered rows are kept.
type OutboxRetentionJob struct {
	logg          *logger.Logger
	db            txRunner
	outbox        outboxPurger
	retentionDays int
	now           func() time.Time
}

func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, outbox outboxPurger, retentionDays int) (*OutboxRetentionJob, error) {
	if logg == nil || db == nil || outbox == nil {
		return nil, fmt.Errorf("logger, db and outbox repository are required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultOutboxRetentionDays
	}
	return &OutboxRetentionJob{logg: logg, db: db, outbox: outbox, retentionDays: retentionDays, now: time.Now}, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox_retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeletePublishedBefore(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("purge outbox: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retentionDays,
		"rows_deleted":   deleted,
	}), "outbox retention complete")
	return nil
}
