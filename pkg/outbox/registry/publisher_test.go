package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
	"github.com/bookinga/bookinga-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventPushNotificationCreated,
		AggregateType: enums.AggregatePushNotification,
		AggregateID:   "notif-1",
		Payload: mustEnvelope(t, mustMarshal(t, payloads.PushNotificationCreatedEvent{
			NotificationID: "notif-1",
			UserID:         "user-1",
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "notification-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.PushNotificationCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.NotificationID != "notif-1" || payload.UserID != "user-1" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolveErrorsAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)
	validPayload := mustEnvelope(t, mustMarshal(t, payloads.BulkNotificationCreatedEvent{BulkID: "bulk-1"}))

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("appointment_moved"),
			AggregateType: enums.AggregateBulkNotification,
			AggregateID:   "bulk-1",
			Payload:       validPayload,
		},
		"aggregate mismatch": {
			EventType:     enums.EventBulkNotificationCreated,
			AggregateType: enums.AggregatePushNotification,
			AggregateID:   "bulk-1",
			Payload:       validPayload,
		},
		"missing aggregate id": {
			EventType:     enums.EventBulkNotificationCreated,
			AggregateType: enums.AggregateBulkNotification,
			Payload:       validPayload,
		},
		"null data": {
			EventType:     enums.EventBulkNotificationCreated,
			AggregateType: enums.AggregateBulkNotification,
			AggregateID:   "bulk-1",
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventBulkNotificationCreated,
			AggregateType: enums.AggregateBulkNotification,
			AggregateID:   "bulk-1",
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error without notification topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "notification-topic"})
	if err != nil {
		t.Fatalf("NewEventRegistry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, data []byte) json.RawMessage {
	t.Helper()
	return mustMarshal(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "evt-1",
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}
