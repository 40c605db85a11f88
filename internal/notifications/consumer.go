package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/bookinga/bookinga-backend/pkg/enums"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
	"github.com/bookinga/bookinga-backend/pkg/outbox/payloads"
)

const dispatchConsumer = "push-notification-dispatch"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type claimer interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, notificationID string) error
}

type expander interface {
	Expand(ctx context.Context, bulkID string) error
}

// Consumer runs the Dispatcher or Expander once per created notification document.
type Consumer struct {
	subscription receiver
	idempotency  claimer
	dispatcher   dispatcher
	expander     expander
	logg         *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(subscription receiver, manager claimer, d dispatcher, e expander, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if d == nil || e == nil {
		return nil, fmt.Errorf("dispatcher and expander required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{subscription: subscription, idempotency: manager, dispatcher: d, expander: e, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unsupported event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, dispatchConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var handleErr error
	switch eventType {
	case enums.EventPushNotificationCreated:
		var payload payloads.PushNotificationCreatedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.NotificationID == "" {
			c.logg.Error(logCtx, "failed to parse push notification payload", err)
			return processResult{ack: true}
		}
		handleErr = c.dispatcher.Dispatch(logCtx, payload.NotificationID)
	case enums.EventBulkNotificationCreated:
		var payload payloads.BulkNotificationCreatedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.BulkID == "" {
			c.logg.Error(logCtx, "failed to parse bulk notification payload", err)
			return processResult{ack: true}
		}
		handleErr = c.expander.Expand(logCtx, payload.BulkID)
	}

	if handleErr != nil {
		if errors.Is(handleErr, ErrNotificationUnavailable) {
			c.logg.Error(logCtx, "notification request unavailable, releasing for redelivery", handleErr)
			_ = c.idempotency.Delete(ctx, dispatchConsumer, eventID)
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "notification processing ended in failure", handleErr)
	}
	return processResult{ack: true}
}
