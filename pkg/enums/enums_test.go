package enums

import "testing"

func TestAppointmentTransitions(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		ok       bool
	}{
		{AppointmentPending, AppointmentConfirmed, true},
		{AppointmentPending, AppointmentCancelled, true},
		{AppointmentPending, AppointmentCompleted, false},
		{AppointmentConfirmed, AppointmentInProgress, true},
		{AppointmentInProgress, AppointmentCompleted, true},
		{AppointmentCompleted, AppointmentCancelled, false},
		{AppointmentCancelled, AppointmentConfirmed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	if s, err := ParseAppointmentStatus("in_progress"); err != nil || s != AppointmentInProgress {
		t.Fatalf("unexpected parse result %q err=%v", s, err)
	}
	if _, err := ParseAppointmentStatus("done"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestNotificationStatusTerminal(t *testing.T) {
	for _, s := range []NotificationStatus{NotificationSent, NotificationFailed, NotificationNoTokens, NotificationDuplicate} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []NotificationStatus{NotificationPending, NotificationQueued} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
	if _, err := ParseNotificationStatus("delivered"); err == nil {
		t.Fatal("expected error for unknown notification status")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventPushNotificationCreated.IsValid() || OutboxEventType("order_created").IsValid() {
		t.Fatal("unexpected event type validity")
	}
	if _, err := ParseOutboxAggregateType("bulk_notification"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if OutboxDLQErrorReason("other").IsValid() {
		t.Fatal("unexpected dlq reason validity")
	}
}
