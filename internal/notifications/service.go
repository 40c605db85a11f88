package notifications

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
	"github.com/bookinga/bookinga-backend/pkg/outbox/payloads"
)

// MaxBulkRecipients caps one bulk request.
const MaxBulkRecipients = 500

// Request enqueues one push notification for one user.
type Request struct {
	UserID          string             `json:"userId" validate:"required,max=128"`
	Payload         models.PushPayload `json:"payload"`
	DeduplicationID string             `json:"deduplicationId,omitempty" validate:"omitempty,max=256"`
	BulkID          string             `json:"-"`
	Actor           *outbox.ActorRef   `json:"-"`
}

// BulkRequest fans one payload out to many users.
type BulkRequest struct {
	UserIDs []string           `json:"userIds" validate:"required,min=1,max=500,dive,required,max=128"`
	Payload models.PushPayload `json:"payload"`
	Actor   *outbox.ActorRef   `json:"-"`
}

// TokenRequest registers a device token for a user.
type TokenRequest struct {
	UserID   string               `json:"-" validate:"required"`
	Token    string               `json:"token" validate:"required,max=4096"`
	Platform enums.DevicePlatform `json:"platform"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service writes notification requests together with the outbox events that trigger delivery.
type Service struct {
	tx     txRunner
	repo   *Repository
	tokens *TokenRepository
	outbox outboxEmitter
	logg   *logger.Logger
}

// NewService wires notification dependencies.
func NewService(tx txRunner, repo *Repository, tokens *TokenRepository, emitter outboxEmitter, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil || tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification repositories required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{tx: tx, repo: repo, tokens: tokens, outbox: emitter, logg: logg}, nil
}

// Enqueue stores a pending push notification and its outbox event in one transaction.
func (s *Service) Enqueue(ctx context.Context, req Request) (*models.PushNotification, error) {
	var created *models.PushNotification
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.EnqueueTx(ctx, tx, req)
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "enqueue push notification")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"notification_id": created.ID, "user_id": created.UserID}), "push notification enqueued")
	return created, nil
}

// EnqueueTx is Enqueue inside a caller-owned transaction.
func (s *Service) EnqueueTx(ctx context.Context, tx *gorm.DB, req Request) (*models.PushNotification, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.DeduplicationID = strings.TrimSpace(req.DeduplicationID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := ValidatePayload(req.Payload); err != nil {
		return nil, err
	}

	n := &models.PushNotification{
		UserID:  req.UserID,
		Payload: req.Payload,
		Status:  enums.NotificationPending,
	}
	if req.DeduplicationID != "" {
		n.DeduplicationID = &req.DeduplicationID
	}
	if req.BulkID != "" {
		n.BulkID = &req.BulkID
	}
	if err := s.repo.WithTx(tx).Create(ctx, n); err != nil {
		return nil, err
	}

	return n, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPushNotificationCreated,
		AggregateType: enums.AggregatePushNotification,
		AggregateID:   n.ID,
		Actor:         req.Actor,
		Data: payloads.PushNotificationCreatedEvent{
			NotificationID:  n.ID,
			UserID:          n.UserID,
			DeduplicationID: n.DeduplicationID,
			BulkID:          n.BulkID,
		},
	})
}

// EnqueueBulk stores a pending bulk request and its outbox event in one transaction.
func (s *Service) EnqueueBulk(ctx context.Context, req BulkRequest) (*models.BulkNotification, error) {
	req.UserIDs = uniqueIDs(req.UserIDs)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := ValidatePayload(req.Payload); err != nil {
		return nil, err
	}

	bulk := &models.BulkNotification{
		UserIDs: req.UserIDs,
		Payload: req.Payload,
		Status:  enums.NotificationPending,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateBulk(ctx, bulk); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBulkNotificationCreated,
			AggregateType: enums.AggregateBulkNotification,
			AggregateID:   bulk.ID,
			Actor:         req.Actor,
			Data: payloads.BulkNotificationCreatedEvent{
				BulkID:         bulk.ID,
				RecipientCount: len(bulk.UserIDs),
			},
		})
	})
	if err != nil {
		return nil, asServiceError(err, "enqueue bulk notification")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"bulk_id": bulk.ID, "recipients": len(bulk.UserIDs)}), "bulk notification enqueued")
	return bulk, nil
}

// RegisterToken adds token to the user's set. Re-registering refreshes the platform.
func (s *Service) RegisterToken(ctx context.Context, req TokenRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Platform == "" {
		req.Platform = enums.PlatformWeb
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if !req.Platform.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid platform").WithDetails(map[string]string{"platform": string(req.Platform)})
	}
	if err := s.tokens.Upsert(ctx, &models.DeviceToken{UserID: req.UserID, Token: req.Token, Platform: req.Platform}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register device token")
	}
	return nil
}

// RemoveToken drops one token from the user's set. Removing an unknown token is not an error.
func (s *Service) RemoveToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and token required")
	}
	if _, err := s.tokens.Delete(ctx, userID, token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove device token")
	}
	return nil
}

func asServiceError(err error, msg string) error {
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
