package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookinga/bookinga-backend/api/middleware"
	"github.com/bookinga/bookinga-backend/api/responses"
	"github.com/bookinga/bookinga-backend/internal/appointments"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// AppointmentReader answers dashboard queries.
type AppointmentReader interface {
	Query(ctx context.Context, salonID string, filters appointments.Filters) (appointments.State, error)
	Refresh(ctx context.Context, salonID string, filters appointments.Filters) (appointments.State, error)
}

// AppointmentActor applies admin actions.
type AppointmentActor interface {
	Apply(ctx context.Context, salonID, appointmentID, actorID string, action appointments.Action) (*models.Appointment, error)
}

// ListAppointments returns the filtered dashboard view for a salon.
func ListAppointments(reader AppointmentReader, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment reader unavailable"))
			return
		}
		salonID, filters, err := salonQuery(r, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := salonContext(r.Context(), logg, salonID)

		state, err := reader.Query(ctx, salonID, filters)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointments.NewViewDTO(state))
	}
}

// RefreshAppointments drops the salon's cached data and returns a freshly fetched view.
func RefreshAppointments(reader AppointmentReader, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment reader unavailable"))
			return
		}
		salonID, filters, err := salonQuery(r, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := salonContext(r.Context(), logg, salonID)

		state, err := reader.Refresh(ctx, salonID, filters)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointments.NewViewDTO(state))
	}
}

// AppointmentAction runs the action named by the final path segment.
func AppointmentAction(svc AppointmentActor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointment service unavailable"))
			return
		}
		salonID := strings.TrimSpace(chi.URLParam(r, "salonID"))
		appointmentID := strings.TrimSpace(chi.URLParam(r, "appointmentID"))
		if salonID == "" || appointmentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "salon id and appointment id are required"))
			return
		}
		action, err := appointments.ParseAction(chi.URLParam(r, "action"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID := middleware.UserIDFromContext(r.Context())
		if actorID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		ctx := salonContext(r.Context(), logg, salonID)
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"appointment_id": appointmentID, "action": string(action)})
		}
		appt, err := svc.Apply(ctx, salonID, appointmentID, actorID, action)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

func salonQuery(r *http.Request, loc *time.Location) (string, appointments.Filters, error) {
	salonID := strings.TrimSpace(chi.URLParam(r, "salonID"))
	if salonID == "" {
		return "", appointments.Filters{}, pkgerrors.New(pkgerrors.CodeValidation, "salon id is required")
	}
	q := r.URL.Query()
	filters, err := appointments.ParseFilters(q.Get("date"), q.Get("status"), q.Get("deleted"), q.Get("from"), q.Get("to"), loc)
	if err != nil {
		return "", appointments.Filters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return salonID, filters, nil
}

func salonContext(ctx context.Context, logg *logger.Logger, salonID string) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithSalonID(ctx, salonID)
}
