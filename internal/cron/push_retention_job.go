package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// PushRetentionJobName is the job's registry and metrics name.
const PushRetentionJobName = "push-notification-retention"

const defaultPushRetention = 7 * 24 * time.Hour

type pushRetentionRepo interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteBulkTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PushRetentionJob deletes finished push and bulk requests older than the retention window. Pending
// and queued rows are never touched.
type PushRetentionJob struct {
	logg      *logger.Logger
	repo      pushRetentionRepo
	retention time.Duration
	now       func() time.Time
}

// NewPushRetentionJob builds the job. A non-positive retention uses seven days.
func NewPushRetentionJob(logg *logger.Logger, repo pushRetentionRepo, retention time.Duration) (*PushRetentionJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if repo == nil {
		return nil, errors.New("notification repository required")
	}
	if retention <= 0 {
		retention = defaultPushRetention
	}
	return &PushRetentionJob{logg: logg, repo: repo, retention: retention, now: time.Now}, nil
}

func (j *PushRetentionJob) Name() string { return PushRetentionJobName }

func (j *PushRetentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)

	pushes, err := j.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete push notifications: %w", err)
	}
	bulks, err := j.repo.DeleteBulkTerminalBefore(ctx, cutoff)
	if err != nil {
		return pushes, fmt.Errorf("delete bulk notifications: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"push_deleted": pushes,
		"bulk_deleted": bulks,
	}), "push notification retention complete")
	return pushes + bulks, nil
}
