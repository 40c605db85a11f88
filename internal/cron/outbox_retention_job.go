package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// OutboxRetentionJobName is the job's registry and metrics name.
const OutboxRetentionJobName = "outbox-retention"

const defaultOutboxRetentionDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJob removes published outbox rows past the retention window.
type OutboxRetentionJob struct {
	logg *logger.Logger
	db   txRunner
	repo outboxRetentionRepo
	days int
	now  func() time.Time
}

func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, repo outboxRetentionRepo, days int) (*OutboxRetentionJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if db == nil || repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	return &OutboxRetentionJob{logg: logg, db: db, repo: repo, days: days, now: time.Now}, nil
}

func (j *OutboxRetentionJob) Name() string { return OutboxRetentionJobName }

func (j *OutboxRetentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}), "outbox retention complete")
	return deleted, nil
}
