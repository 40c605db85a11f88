package foreground

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

type recordingRenderer struct {
	shown []models.PushPayload
}

func (r *recordingRenderer) ShowNotification(ctx context.Context, payload models.PushPayload) error {
	r.shown = append(r.shown, payload)
	return nil
}

type recordingNavigator struct {
	urls []string
}

func (n *recordingNavigator) FocusOrOpen(ctx context.Context, url string) error {
	n.urls = append(n.urls, url)
	return nil
}

func newTestHandler(t *testing.T, clickURL string) (*Handler, *recordingRenderer, *recordingNavigator, *fakeClock) {
	t.Helper()
	dedup, clock := newTestDedup()
	renderer := &recordingRenderer{}
	nav := &recordingNavigator{}
	h, err := NewHandler(dedup, renderer, nav, clickURL, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	t.Cleanup(h.Close)
	return h, renderer, nav, clock
}

func push(relatedID string) models.PushPayload {
	return models.PushPayload{
		Title: "Appointment confirmed",
		Body:  "See you soon",
		Data:  map[string]string{"type": "appointment", "relatedId": relatedID},
	}
}

func TestOnBackgroundMessageDeduplicates(t *testing.T) {
	h, renderer, _, clock := newTestHandler(t, "")
	ctx := context.Background()

	shown, err := h.OnBackgroundMessage(ctx, push("a1"))
	if err != nil || !shown {
		t.Fatalf("expected first push shown, got shown=%t err=%v", shown, err)
	}
	clock.Advance(10 * time.Second)
	shown, err = h.OnBackgroundMessage(ctx, push("a1"))
	if err != nil || shown {
		t.Fatalf("expected repeat suppressed, got shown=%t err=%v", shown, err)
	}
	clock.Advance(30 * time.Second)
	shown, _ = h.OnBackgroundMessage(ctx, push("a1"))
	if !shown {
		t.Fatal("expected push after cooldown shown")
	}
	if len(renderer.shown) != 2 {
		t.Fatalf("expected 2 rendered notifications, got %d", len(renderer.shown))
	}
}

func TestOnBackgroundMessageRejectsMalformedBeforeDedup(t *testing.T) {
	h, renderer, _, _ := newTestHandler(t, "")
	ctx := context.Background()

	bad := push("a1")
	bad.Body = "  "
	shown, err := h.OnBackgroundMessage(ctx, bad)
	if shown || !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got shown=%t err=%v", shown, err)
	}
	if h.dedup.Len() != 0 {
		t.Fatal("malformed push must not be recorded")
	}

	shown, err = h.OnBackgroundMessage(ctx, push("a1"))
	if err != nil || !shown {
		t.Fatal("expected valid push with the same key to be shown")
	}
	if len(renderer.shown) != 1 {
		t.Fatalf("expected 1 rendered notification, got %d", len(renderer.shown))
	}
}

func TestOnBackgroundMessageWithoutKeyIsNeverSuppressed(t *testing.T) {
	h, renderer, _, _ := newTestHandler(t, "")
	p := models.PushPayload{Title: "Hello", Body: "World"}
	for i := 0; i < 3; i++ {
		if shown, err := h.OnBackgroundMessage(context.Background(), p); err != nil || !shown {
			t.Fatalf("expected keyless push shown, got shown=%t err=%v", shown, err)
		}
	}
	if len(renderer.shown) != 3 {
		t.Fatalf("expected 3 rendered notifications, got %d", len(renderer.shown))
	}
}

func TestOnNotificationClick(t *testing.T) {
	h, _, nav, _ := newTestHandler(t, "/dashboard")
	ctx := context.Background()

	if err := h.OnNotificationClick(ctx, map[string]string{"url": "/appointments/a1"}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if err := h.OnNotificationClick(ctx, nil); err != nil {
		t.Fatalf("click without url: %v", err)
	}
	if len(nav.urls) != 2 || nav.urls[0] != "/appointments/a1" || nav.urls[1] != "/dashboard" {
		t.Fatalf("unexpected navigations %v", nav.urls)
	}
}
