package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/internal/repo"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
)

var outcomeColumns = []string{"status", "success_count", "failure_count", "results", "error", "processed_at", "updated_at"}

// Outcome is the terminal write for one push notification.
type Outcome struct {
	Status       enums.NotificationStatus
	SuccessCount int
	FailureCount int
	Results      []models.DeliveryRecord
	Error        *string
	ProcessedAt  time.Time
}

// Repository persists push and bulk notification requests.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository running on tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// Create inserts a push notification. A missing id is generated.
func (r *Repository) Create(ctx context.Context, n *models.PushNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return r.base.DB(ctx).Create(n).Error
}

// FindByID loads one push notification.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.PushNotification, error) {
	var n models.PushNotification
	err := r.base.DB(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "push notification not found")
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// HasDelivered reports whether another request with dedupID already reached sent or duplicate.
// The check is not atomic with the send: two requests dispatched at once can both see false.
func (r *Repository) HasDelivered(ctx context.Context, dedupID, excludeID string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.PushNotification{}).
		Where("deduplication_id = ? AND status IN ? AND id <> ?", dedupID, enums.DedupNotificationStatuses, excludeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Finish writes out when the row is still in status from. It reports whether a row changed.
func (r *Repository) Finish(ctx context.Context, id string, from enums.NotificationStatus, out Outcome) (bool, error) {
	processedAt := out.ProcessedAt
	res := r.base.DB(ctx).
		Model(&models.PushNotification{}).
		Where("id = ? AND status = ?", id, from).
		Select(outcomeColumns).
		Updates(&models.PushNotification{
			Status:       out.Status,
			SuccessCount: out.SuccessCount,
			FailureCount: out.FailureCount,
			Results:      out.Results,
			Error:        out.Error,
			ProcessedAt:  &processedAt,
			UpdatedAt:    processedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteTerminalBefore removes terminal push notifications created before cutoff.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Where("status IN ? AND created_at < ?", enums.TerminalNotificationStatuses, cutoff).
		Delete(&models.PushNotification{})
	return res.RowsAffected, res.Error
}

// CreateBulk inserts a bulk request. A missing id is generated.
func (r *Repository) CreateBulk(ctx context.Context, b *models.BulkNotification) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return r.base.DB(ctx).Create(b).Error
}

// FindBulkByID loads one bulk request.
func (r *Repository) FindBulkByID(ctx context.Context, id string) (*models.BulkNotification, error) {
	var b models.BulkNotification
	err := r.base.DB(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bulk notification not found")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FinishBulk records the fan-out result when the bulk row is still in status from.
func (r *Repository) FinishBulk(ctx context.Context, id string, from, to enums.NotificationStatus, created int, errMsg *string, now time.Time) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.BulkNotification{}).
		Where("id = ? AND status = ?", id, from).
		Select("status", "created_count", "error", "processed_at", "updated_at").
		Updates(&models.BulkNotification{
			Status:       to,
			CreatedCount: created,
			Error:        errMsg,
			ProcessedAt:  &now,
			UpdatedAt:    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteBulkTerminalBefore removes terminal bulk requests created before cutoff.
func (r *Repository) DeleteBulkTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Where("status IN ? AND created_at < ?", enums.TerminalNotificationStatuses, cutoff).
		Delete(&models.BulkNotification{})
	return res.RowsAffected, res.Error
}
