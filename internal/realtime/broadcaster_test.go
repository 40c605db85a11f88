package realtime

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

type publishCall struct {
	channel string
	body    []byte
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, publishCall{channel: channel, body: payload})
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestPublishSalonUsesSalonChannel(t *testing.T) {
	pub := &fakePublisher{}
	b, err := NewBroadcaster(pub, testLogger())
	if err != nil {
		t.Fatalf("new broadcaster: %v", err)
	}
	b.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }

	if err := b.PublishSalon(context.Background(), "s1", Event{Type: EventAppointmentsChanged, AppointmentID: "a1", Status: "confirmed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.calls))
	}
	if pub.calls[0].channel != "bookinga:rt:salon:s1" {
		t.Fatalf("unexpected channel %q", pub.calls[0].channel)
	}

	evt, err := DecodeEvent(pub.calls[0].body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.SalonID != "s1" || evt.AppointmentID != "a1" || evt.OccurredAt.IsZero() {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestPublishUserCarriesPayload(t *testing.T) {
	pub := &fakePublisher{}
	b, _ := NewBroadcaster(pub, testLogger())

	payload := &models.PushPayload{Title: "Hi", Body: "There", Data: map[string]string{"type": "appointment"}}
	if err := b.PublishUser(context.Background(), "u1", Event{Type: EventNotification, NotificationID: "n1", Payload: payload}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.calls[0].channel != "bookinga:rt:user:u1" {
		t.Fatalf("unexpected channel %q", pub.calls[0].channel)
	}
	evt, err := DecodeEvent(pub.calls[0].body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Payload == nil || evt.Payload.Title != "Hi" || evt.UserID != "u1" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestPublishRequiresTarget(t *testing.T) {
	b, _ := NewBroadcaster(&fakePublisher{}, testLogger())
	if err := b.PublishSalon(context.Background(), "", Event{Type: EventAppointmentsChanged}); err == nil {
		t.Fatal("expected error for empty salon")
	}
	if err := b.PublishUser(context.Background(), "", Event{Type: EventNotification}); err == nil {
		t.Fatal("expected error for empty user")
	}
}

func TestPublishWrapsTransportError(t *testing.T) {
	b, _ := NewBroadcaster(&fakePublisher{err: errors.New("down")}, testLogger())
	if err := b.PublishSalon(context.Background(), "s1", Event{Type: EventAppointmentsChanged}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":"other"}`)); err == nil {
		t.Fatal("expected unknown type error")
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
