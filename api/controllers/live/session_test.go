package live

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/bookinga/bookinga-backend/internal/appointments"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

func TestSessionKeepsLatestViewWhenBufferIsFull(t *testing.T) {
	s := newSession("salon-1", "u1", time.UTC, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	ctx := context.Background()

	for i := 0; i < sendBuffer+5; i++ {
		if err := s.ShowNotification(ctx, models.PushPayload{Title: "t"}); err != nil {
			t.Fatalf("show notification: %v", err)
		}
	}
	if len(s.send) != sendBuffer {
		t.Fatalf("expected full send buffer, got %d", len(s.send))
	}

	onChange := s.onChange(ctx)
	onChange(appointments.State{SalonID: "salon-1", Loading: true})
	onChange(appointments.State{
		SalonID: "salon-1",
		Appointments: []models.Appointment{
			{ID: "a1", SalonID: "salon-1", CustomerID: "u2", Status: enums.AppointmentConfirmed},
		},
	})

	select {
	case <-s.wake:
	default:
		t.Fatal("expected the write pump to be woken")
	}

	body := s.takeLatest()
	if body == nil {
		t.Fatal("expected a pending appointments frame")
	}
	var frame Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != FrameAppointments || frame.View == nil {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if frame.View.Loading || len(frame.View.Appointments) != 1 || frame.View.Appointments[0].ID != "a1" {
		t.Fatalf("expected the committed view, got %+v", frame.View)
	}
	if s.takeLatest() != nil {
		t.Fatal("expected the slot to be empty after it was taken")
	}
	if len(s.send) != sendBuffer {
		t.Fatalf("appointments frames must not use the send buffer, got %d", len(s.send))
	}
}
