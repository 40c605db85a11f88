package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/metrics"
	"github.com/bookinga/bookinga-backend/pkg/push"
)

// Sender delivers a payload to one device token.
type Sender interface {
	Send(ctx context.Context, token string, payload models.PushPayload) (string, error)
}

type notificationStore interface {
	FindByID(ctx context.Context, id string) (*models.PushNotification, error)
	HasDelivered(ctx context.Context, dedupID, excludeID string) (bool, error)
	Finish(ctx context.Context, id string, from enums.NotificationStatus, out Outcome) (bool, error)
}

type tokenStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.DeviceToken, error)
	Delete(ctx context.Context, userID, token string) (bool, error)
}

type userPublisher interface {
	PublishUser(ctx context.Context, userID string, evt realtime.Event) error
}

// ErrNotificationUnavailable means the request could not be loaded, so nothing was recorded and a
// redelivery may retry it.
var ErrNotificationUnavailable = errors.New("notification request unavailable")

// Dispatcher delivers one pending push notification to every device of its user.
type Dispatcher struct {
	repo     notificationStore
	tokens   tokenStore
	sender   Sender
	realtime userPublisher
	metrics  *metrics.PushMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRealtime mirrors every sent notification onto the user's realtime channel.
func WithRealtime(pub userPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.realtime = pub }
}

// WithPushMetrics records dispatch and delivery counters.
func WithPushMetrics(m *metrics.PushMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDispatcherClock replaces the wall clock.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(repo notificationStore, tokens tokenStore, sender Sender, logg *logger.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if repo == nil || tokens == nil {
		return nil, errors.New("notification stores required")
	}
	if sender == nil {
		return nil, errors.New("push sender required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	d := &Dispatcher{repo: repo, tokens: tokens, sender: sender, logg: logg, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch processes the notification once. Every failure after the row is loaded ends in a
// terminal status; the returned error is for logging only.
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID string) error {
	ctx = d.logg.WithNotificationID(ctx, notificationID)

	n, err := d.repo.FindByID(ctx, notificationID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			d.logg.Warn(ctx, "push notification vanished before dispatch")
			return nil
		}
		return fmt.Errorf("%w: %v", ErrNotificationUnavailable, err)
	}
	ctx = d.logg.WithUserID(ctx, n.UserID)

	if err := d.dispatch(ctx, n); err != nil {
		d.markFailed(ctx, n, err.Error())
		return err
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, n *models.PushNotification) error {
	if n.Status.IsTerminal() {
		d.logg.Info(d.logg.WithField(ctx, "status", n.Status), "push notification already terminal, skipping")
		return nil
	}
	if n.Status != enums.NotificationPending {
		d.markFailed(ctx, n, "notification is not pending: "+string(n.Status))
		return nil
	}
	if err := ValidatePayload(n.Payload); err != nil {
		d.markFailed(ctx, n, "invalid payload: missing title or body")
		return nil
	}

	if n.DeduplicationID != nil && *n.DeduplicationID != "" {
		seen, err := d.repo.HasDelivered(ctx, *n.DeduplicationID, n.ID)
		if err != nil {
			return err
		}
		if seen {
			d.logg.Info(d.logg.WithField(ctx, "deduplication_id", *n.DeduplicationID), "duplicate push notification suppressed")
			return d.finish(ctx, n, Outcome{Status: enums.NotificationDuplicate})
		}
	}

	tokens, err := d.tokens.ListByUser(ctx, n.UserID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		d.logg.Info(ctx, "user has no registered device tokens")
		return d.finish(ctx, n, Outcome{Status: enums.NotificationNoTokens})
	}

	results := d.sendAll(ctx, n, tokens)
	out := Outcome{Status: enums.NotificationSent, Results: results}
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	if err := d.finish(ctx, n, out); err != nil {
		return err
	}

	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"success_count": out.SuccessCount,
		"failure_count": out.FailureCount,
	}), "push notification sent")
	d.mirror(ctx, n)
	return nil
}

// sendAll fans out to every token in parallel. One token failing never stops the others.
func (d *Dispatcher) sendAll(ctx context.Context, n *models.PushNotification, tokens []models.DeviceToken) []models.DeliveryRecord {
	results := make([]models.DeliveryRecord, len(tokens))
	var g errgroup.Group
	for i, tok := range tokens {
		g.Go(func() error {
			results[i] = d.sendOne(ctx, n, tok.Token)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, n *models.PushNotification, token string) models.DeliveryRecord {
	record := models.DeliveryRecord{Token: token}
	messageID, err := d.sender.Send(ctx, token, n.Payload)
	d.metrics.ObserveDelivery(err == nil)
	if err == nil {
		record.Success = true
		record.Response = messageID
		return record
	}

	record.Error = err.Error()
	record.ErrorCode = push.ErrorCode(err)
	if push.IsStaleToken(record.ErrorCode) {
		d.prune(ctx, n.UserID, token, record.ErrorCode)
	}
	return record
}

func (d *Dispatcher) prune(ctx context.Context, userID, token, code string) {
	logCtx := d.logg.WithField(ctx, "error_code", code)
	removed, err := d.tokens.Delete(ctx, userID, token)
	if err != nil {
		d.logg.Error(logCtx, "failed to prune device token", err)
		return
	}
	if removed {
		d.metrics.IncPruned()
		d.logg.Info(logCtx, "pruned invalid device token")
	}
}

func (d *Dispatcher) finish(ctx context.Context, n *models.PushNotification, out Outcome) error {
	out.ProcessedAt = d.now().UTC()
	updated, err := d.repo.Finish(ctx, n.ID, n.Status, out)
	if err != nil {
		return err
	}
	if !updated {
		d.logg.Warn(d.logg.WithField(ctx, "status", out.Status), "push notification changed concurrently, outcome dropped")
		return nil
	}
	d.metrics.IncDispatch(string(out.Status))
	return nil
}

// markFailed is best effort. A failing write is logged and swallowed.
func (d *Dispatcher) markFailed(ctx context.Context, n *models.PushNotification, reason string) {
	msg := reason
	out := Outcome{Status: enums.NotificationFailed, Error: &msg, ProcessedAt: d.now().UTC()}
	updated, err := d.repo.Finish(ctx, n.ID, n.Status, out)
	if err != nil {
		d.logg.Error(ctx, "failed to mark push notification failed", err)
		return
	}
	if updated {
		d.metrics.IncDispatch(string(enums.NotificationFailed))
		d.logg.Warn(d.logg.WithField(ctx, "reason", reason), "push notification failed")
	}
}

func (d *Dispatcher) mirror(ctx context.Context, n *models.PushNotification) {
	if d.realtime == nil {
		return
	}
	payload := n.Payload
	if err := d.realtime.PublishUser(ctx, n.UserID, realtime.Event{
		Type:           realtime.EventNotification,
		NotificationID: n.ID,
		Payload:        &payload,
	}); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "failed to mirror notification to realtime channel")
	}
}
