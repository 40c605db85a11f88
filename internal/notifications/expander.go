package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/metrics"
)

// Expander turns one bulk request into one pending push notification per recipient.
type Expander struct {
	tx      txRunner
	repo    *Repository
	service *Service
	metrics *metrics.PushMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewExpander wires an Expander. m may be nil.
func NewExpander(tx txRunner, repo *Repository, service *Service, m *metrics.PushMetrics, logg *logger.Logger) (*Expander, error) {
	if tx == nil || repo == nil || service == nil {
		return nil, errors.New("expander dependencies required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Expander{tx: tx, repo: repo, service: service, metrics: m, logg: logg, now: time.Now}, nil
}

// BulkDeduplicationID is the deduplication id given to a bulk request's per-user row.
func BulkDeduplicationID(bulkID, userID string) string {
	return fmt.Sprintf("%s_%s", bulkID, userID)
}

// Expand writes every per-user row, its outbox event and the bulk row's sent status in a single
// transaction. Any failure rolls the fan-out back and marks the bulk row failed.
func (e *Expander) Expand(ctx context.Context, bulkID string) error {
	ctx = e.logg.WithField(ctx, "bulk_id", bulkID)

	bulk, err := e.repo.FindBulkByID(ctx, bulkID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			e.logg.Warn(ctx, "bulk notification vanished before expansion")
			return nil
		}
		return fmt.Errorf("%w: %v", ErrNotificationUnavailable, err)
	}
	if bulk.Status.IsTerminal() {
		e.logg.Info(e.logg.WithField(ctx, "status", bulk.Status), "bulk notification already terminal, skipping")
		return nil
	}
	if bulk.Status != enums.NotificationPending {
		e.fail(ctx, bulk, "bulk notification is not pending: "+string(bulk.Status))
		return nil
	}
	if err := ValidatePayload(bulk.Payload); err != nil {
		e.fail(ctx, bulk, "invalid payload: missing title or body")
		return nil
	}

	userIDs := uniqueIDs(bulk.UserIDs)
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, userID := range userIDs {
			_, err := e.service.EnqueueTx(ctx, tx, Request{
				UserID:          userID,
				Payload:         bulk.Payload,
				DeduplicationID: BulkDeduplicationID(bulk.ID, userID),
				BulkID:          bulk.ID,
			})
			if err != nil {
				return fmt.Errorf("enqueue for user %s: %w", userID, err)
			}
		}
		updated, err := e.repo.WithTx(tx).FinishBulk(ctx, bulk.ID, enums.NotificationPending, enums.NotificationSent, len(userIDs), nil, e.now().UTC())
		if err != nil {
			return err
		}
		if !updated {
			return errors.New("bulk notification changed concurrently")
		}
		return nil
	})
	if err != nil {
		e.fail(ctx, bulk, err.Error())
		return err
	}

	e.metrics.AddFanout(len(userIDs))
	e.logg.Info(e.logg.WithField(ctx, "created_count", len(userIDs)), "bulk notification expanded")
	return nil
}

func (e *Expander) fail(ctx context.Context, bulk *models.BulkNotification, reason string) {
	msg := reason
	updated, err := e.repo.FinishBulk(ctx, bulk.ID, bulk.Status, enums.NotificationFailed, 0, &msg, e.now().UTC())
	if err != nil {
		e.logg.Error(ctx, "failed to mark bulk notification failed", err)
		return
	}
	if updated {
		e.logg.Warn(e.logg.WithField(ctx, "reason", reason), "bulk notification failed")
	}
}
