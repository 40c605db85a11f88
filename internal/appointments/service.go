package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/internal/notifications"
	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
)

// Action is an admin operation on one appointment.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionReject   Action = "reject"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionDelete   Action = "delete"
	ActionRestore  Action = "restore"
)

var actionTargets = map[Action]enums.AppointmentStatus{
	ActionConfirm:  enums.AppointmentConfirmed,
	ActionReject:   enums.AppointmentCancelled,
	ActionStart:    enums.AppointmentInProgress,
	ActionComplete: enums.AppointmentCompleted,
}

// ParseAction validates a route segment.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionConfirm, ActionReject, ActionStart, ActionComplete, ActionDelete, ActionRestore:
		return a, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown appointment action %q", raw))
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type enqueuer interface {
	EnqueueTx(ctx context.Context, tx *gorm.DB, req notifications.Request) (*models.PushNotification, error)
}

type salonPublisher interface {
	PublishSalon(ctx context.Context, salonID string, evt realtime.Event) error
}

// Service applies admin actions. Each action commits the row change and the customer's push
// notification together, then invalidates the salon cache and tells live dashboards.
type Service struct {
	tx       txRunner
	repo     *Repository
	notifier enqueuer
	cache    *DataCache
	realtime salonPublisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the admin action service. pub may be nil.
func NewService(tx txRunner, repo *Repository, notifier enqueuer, cache *DataCache, pub salonPublisher, logg *logger.Logger) (*Service, error) {
	if tx == nil || repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "appointment repository required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification enqueuer required")
	}
	if cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "data cache required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{tx: tx, repo: repo, notifier: notifier, cache: cache, realtime: pub, logg: logg, now: time.Now}, nil
}

func (s *Service) Confirm(ctx context.Context, salonID, appointmentID, actorID string) (*models.Appointment, error) {
	return s.Apply(ctx, salonID, appointmentID, actorID, ActionConfirm)
}

// Reject cancels a pending or confirmed appointment.
func (s *Service) Reject(ctx context.Context, salonID, appointmentID, actorID string) (*models.Appointment, error) {
	return s.Apply(ctx, salonID, appointmentID, actorID, ActionReject)
}

func (s *Service) Start(ctx context.Context, salonID, appointmentID, actorID string) (*models.Appointment, error) {
	return s.Apply(ctx, salonID, appointmentID, actorID, ActionStart)
}

func (s *Service) Complete(ctx context.Context, salonID, appointmentID, actorID string) (*models.Appointment, error) {
	return s.Apply(ctx, salonID, appointmentID, actorID, ActionComplete)
}

// SoftDelete hides the appointment from active views and records who did it.
func (s *Service) SoftDelete(ctx context.Context, salonID, appointmentID, actorID string) (*models.Appointment, error) {
	return s.Apply(ctx, salonID, appointmentID, actorID, ActionDelete)
}

// Restore brings a soft-deleted appointment back and clears the deletion columns.
func (s *Service) Restore(ctx context.Context, salonID, appointmentID, actorID string) (*models.Appointment, error) {
	return s.Apply(ctx, salonID, appointmentID, actorID, ActionRestore)
}

// Apply runs action against one appointment of salonID.
func (s *Service) Apply(ctx context.Context, salonID, appointmentID, actorID string, action Action) (*models.Appointment, error) {
	if salonID == "" || appointmentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "salon id and appointment id required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"salon_id":       salonID,
		"appointment_id": appointmentID,
		"action":         action,
	})

	var (
		updated *models.Appointment
		status  string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		appt, err := repo.FindForUpdate(ctx, salonID, appointmentID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		label, err := s.mutate(ctx, repo, appt, actorID, action, now)
		if err != nil {
			return err
		}
		if _, err := s.notifier.EnqueueTx(ctx, tx, customerNotification(appt, label, actorID)); err != nil {
			return err
		}
		updated, status = appt, label
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply appointment action")
	}

	s.cache.ClearSalon(salonID)
	s.announce(ctx, updated, status)
	s.logg.Info(ctx, "appointment action applied")
	return updated, nil
}

// mutate applies action to appt in memory and persists it. It returns the status label used in the
// notification deduplication id.
func (s *Service) mutate(ctx context.Context, repo *Repository, appt *models.Appointment, actorID string, action Action, now time.Time) (string, error) {
	switch action {
	case ActionDelete:
		if appt.Deleted {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "appointment already deleted")
		}
		appt.Deleted = true
		appt.DeletedAt = &now
		if actorID != "" {
			appt.DeletedBy = &actorID
		}
		appt.UpdatedAt = now
		return "deleted", repo.UpdateDeletion(ctx, appt, now)
	case ActionRestore:
		if !appt.Deleted {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "appointment is not deleted")
		}
		appt.Deleted = false
		appt.DeletedAt = nil
		appt.DeletedBy = nil
		appt.UpdatedAt = now
		return "restored", repo.UpdateDeletion(ctx, appt, now)
	}

	target, ok := actionTargets[action]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown appointment action")
	}
	if appt.Deleted {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "appointment is deleted")
	}
	if !appt.Status.CanTransitionTo(target) {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "appointment status transition not allowed").
			WithDetails(map[string]string{"from": string(appt.Status), "to": string(target)})
	}
	appt.Status = target
	appt.UpdatedAt = now
	return string(target), repo.UpdateStatus(ctx, appt, now)
}

// NotificationDeduplicationID identifies the one push a customer gets per appointment and status.
func NotificationDeduplicationID(appointmentID, status string) string {
	return fmt.Sprintf("appointment_%s_%s", appointmentID, status)
}

// NotificationType is the push data type for a status change. Foreground dedup keys on it, so
// each status is its own event.
func NotificationType(status string) string {
	return "appointment_" + status
}

var notificationCopy = map[string]struct{ title, body string }{
	string(enums.AppointmentConfirmed):  {"Appointment confirmed", "Your appointment on %s at %s is confirmed."},
	string(enums.AppointmentCancelled):  {"Appointment cancelled", "Your appointment on %s at %s was cancelled by the salon."},
	string(enums.AppointmentInProgress): {"Appointment started", "Your appointment on %s at %s has started."},
	string(enums.AppointmentCompleted):  {"Appointment completed", "Thanks for visiting! Your appointment on %s at %s is complete."},
	"deleted":                           {"Appointment removed", "Your appointment on %s at %s was removed by the salon."},
	"restored":                          {"Appointment restored", "Your appointment on %s at %s was restored."},
}

func customerNotification(appt *models.Appointment, status, actorID string) notifications.Request {
	copyText := notificationCopy[status]
	day := appt.Date
	if len(day) > len(dateLayout) {
		day = day[:len(dateLayout)]
	}
	req := notifications.Request{
		UserID: appt.CustomerID,
		Payload: models.PushPayload{
			Title: copyText.title,
			Body:  fmt.Sprintf(copyText.body, day, appt.Time),
			Tag:   "appointment-" + appt.ID,
			URL:   "/appointments/" + appt.ID,
			Data: map[string]string{
				"type":      NotificationType(status),
				"relatedId": appt.ID,
				"salonId":   appt.SalonID,
				"status":    status,
			},
		},
		DeduplicationID: NotificationDeduplicationID(appt.ID, status),
	}
	if actorID != "" {
		req.Actor = &outbox.ActorRef{UserID: actorID, Role: "salon_admin"}
	}
	return req
}

func (s *Service) announce(ctx context.Context, appt *models.Appointment, status string) {
	if s.realtime == nil {
		return
	}
	err := s.realtime.PublishSalon(ctx, appt.SalonID, realtime.Event{
		Type:          realtime.EventAppointmentsChanged,
		SalonID:       appt.SalonID,
		AppointmentID: appt.ID,
		Status:        status,
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to publish appointment change")
	}
}
