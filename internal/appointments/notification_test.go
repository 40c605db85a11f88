package appointments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookinga/bookinga-backend/internal/foreground"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

type shownPushes struct {
	titles []string
}

func (s *shownPushes) ShowNotification(ctx context.Context, payload models.PushPayload) error {
	s.titles = append(s.titles, payload.Title)
	return nil
}

func (s *shownPushes) FocusOrOpen(ctx context.Context, url string) error { return nil }

func newForeground(t *testing.T) (*foreground.Handler, *shownPushes) {
	t.Helper()
	shown := &shownPushes{}
	h, err := foreground.NewHandler(foreground.NewDeduplicator(30*time.Second), shown, shown, "/", logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, shown
}

func TestCustomerNotificationsForDistinctStatusesAreAllShown(t *testing.T) {
	h, shown := newForeground(t)
	appt := &models.Appointment{ID: "a1", SalonID: "salon-1", CustomerID: "u1", Date: "2026-03-02", Time: "10:00"}

	for _, status := range []enums.AppointmentStatus{enums.AppointmentConfirmed, enums.AppointmentInProgress, enums.AppointmentCompleted} {
		req := customerNotification(appt, string(status), "admin-1")
		ok, err := h.OnBackgroundMessage(context.Background(), req.Payload)
		require.NoError(t, err)
		require.True(t, ok, "status %s should render", status)
	}
	require.Equal(t, []string{"Appointment confirmed", "Appointment started", "Appointment completed"}, shown.titles)
}

func TestCustomerNotificationRepeatIsSuppressed(t *testing.T) {
	h, shown := newForeground(t)
	appt := &models.Appointment{ID: "a1", SalonID: "salon-1", CustomerID: "u1", Date: "2026-03-02", Time: "10:00"}

	req := customerNotification(appt, string(enums.AppointmentConfirmed), "")
	require.Equal(t, NotificationType("confirmed"), req.Payload.Data["type"])
	require.Equal(t, "a1", req.Payload.Data["relatedId"])

	first, err := h.OnBackgroundMessage(context.Background(), req.Payload)
	require.NoError(t, err)
	second, err := h.OnBackgroundMessage(context.Background(), req.Payload)
	require.NoError(t, err)
	require.True(t, first)
	require.False(t, second)
	require.Len(t, shown.titles, 1)

	cancelled := customerNotification(appt, string(enums.AppointmentCancelled), "")
	ok, err := h.OnBackgroundMessage(context.Background(), cancelled.Payload)
	require.NoError(t, err)
	require.True(t, ok, "a cancellation after a confirmation must still render")
}
