package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookinga/bookinga-backend/internal/repo"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
)

// Repository persists appointments and reads salon services.
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

// ListBySalon returns every appointment of the salon, soft-deleted ones included, newest first.
func (r *Repository) ListBySalon(ctx context.Context, salonID string) ([]models.Appointment, error) {
	var list []models.Appointment
	err := r.base.DB(ctx).
		Where("salon_id = ?", salonID).
		Order("date DESC, time DESC, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListServices returns the salon's active services ordered by name.
func (r *Repository) ListServices(ctx context.Context, salonID string) ([]models.SalonService, error) {
	var list []models.SalonService
	err := r.base.DB(ctx).
		Where("salon_id = ? AND active = ?", salonID, true).
		Order("name, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// FindForUpdate loads one appointment of a salon and locks it for the surrounding transaction.
func (r *Repository) FindForUpdate(ctx context.Context, salonID, appointmentID string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND salon_id = ?", appointmentID, salonID).
		First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
	}
	return &appt, nil
}

// Create inserts a new appointment. Missing ids are generated.
func (r *Repository) Create(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	return r.base.DB(ctx).Create(appt).Error
}

// UpdateStatus writes a new lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, appt *models.Appointment, now time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Updates(map[string]any{"status": appt.Status, "updated_at": now}).Error
}

// UpdateDeletion writes the soft-delete columns, clearing them when the appointment is restored.
func (r *Repository) UpdateDeletion(ctx context.Context, appt *models.Appointment, now time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Updates(map[string]any{
			"deleted":    appt.Deleted,
			"deleted_at": appt.DeletedAt,
			"deleted_by": appt.DeletedBy,
			"updated_at": now,
		}).Error
}
