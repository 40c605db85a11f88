package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/bookinga/bookinga-backend/api/middleware"
	"github.com/bookinga/bookinga-backend/api/responses"
	"github.com/bookinga/bookinga-backend/api/validators"
	"github.com/bookinga/bookinga-backend/internal/notifications"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
)

const notificationActorRole = "salon_admin"

// NotificationEnqueuer creates push notification documents.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, req notifications.Request) (*models.PushNotification, error)
	EnqueueBulk(ctx context.Context, req notifications.BulkRequest) (*models.BulkNotification, error)
}

// DeviceTokenRegistry manages a user's push tokens.
type DeviceTokenRegistry interface {
	RegisterToken(ctx context.Context, req notifications.TokenRequest) error
	RemoveToken(ctx context.Context, userID, token string) error
}

type createNotificationRequest struct {
	UserID          string             `json:"userId" validate:"required,max=128"`
	Payload         models.PushPayload `json:"payload"`
	DeduplicationID string             `json:"deduplicationId,omitempty" validate:"omitempty,max=256"`
}

type createBulkNotificationRequest struct {
	UserIDs []string           `json:"userIds" validate:"required,min=1,max=500,dive,required,max=128"`
	Payload models.PushPayload `json:"payload"`
}

type deviceTokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform,omitempty" validate:"omitempty,device_platform"`
}

// CreateNotification enqueues one push notification for a user.
func CreateNotification(svc NotificationEnqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		actor, ok := requestActor(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body createNotificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		n, err := svc.Enqueue(r.Context(), notifications.Request{
			UserID:          body.UserID,
			Payload:         body.Payload,
			DeduplicationID: body.DeduplicationID,
			Actor:           actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, n)
	}
}

// CreateBulkNotification enqueues one payload for many users.
func CreateBulkNotification(svc NotificationEnqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		actor, ok := requestActor(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body createBulkNotificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bulk, err := svc.EnqueueBulk(r.Context(), notifications.BulkRequest{
			UserIDs: body.UserIDs,
			Payload: body.Payload,
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, bulk)
	}
}

// RegisterDeviceToken adds a push token to the caller's set.
func RegisterDeviceToken(svc DeviceTokenRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device token service unavailable"))
			return
		}
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body deviceTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.RegisterToken(r.Context(), notifications.TokenRequest{
			UserID:   userID,
			Token:    body.Token,
			Platform: enums.DevicePlatform(strings.ToLower(strings.TrimSpace(body.Platform))),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

// RemoveDeviceToken drops a push token from the caller's set.
func RemoveDeviceToken(svc DeviceTokenRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device token service unavailable"))
			return
		}
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body deviceTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.RemoveToken(r.Context(), userID, body.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

func requestActor(r *http.Request) (*outbox.ActorRef, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return nil, false
	}
	return &outbox.ActorRef{UserID: userID, Role: notificationActorRole}, true
}
