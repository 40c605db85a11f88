package foreground

import (
	"context"
	"strings"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// DefaultClickURL is opened when a clicked notification carries no url.
const DefaultClickURL = "/"

// Renderer displays a notification to the user.
type Renderer interface {
	ShowNotification(ctx context.Context, payload models.PushPayload) error
}

// Navigator focuses an open view of url or opens a new one.
type Navigator interface {
	FocusOrOpen(ctx context.Context, url string) error
}

// Handler routes incoming pushes and clicks for one client session.
type Handler struct {
	dedup    *Deduplicator
	renderer Renderer
	nav      Navigator
	clickURL string
	logg     *logger.Logger
}

// NewHandler builds a Handler. An empty clickURL uses DefaultClickURL.
func NewHandler(dedup *Deduplicator, renderer Renderer, nav Navigator, clickURL string, logg *logger.Logger) (*Handler, error) {
	if dedup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "deduplicator required")
	}
	if renderer == nil || nav == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "renderer and navigator required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if strings.TrimSpace(clickURL) == "" {
		clickURL = DefaultClickURL
	}
	return &Handler{dedup: dedup, renderer: renderer, nav: nav, clickURL: clickURL, logg: logg}, nil
}

// OnBackgroundMessage shows payload unless it is malformed or a recent duplicate. It reports whether
// the notification was shown.
func (h *Handler) OnBackgroundMessage(ctx context.Context, payload models.PushPayload) (bool, error) {
	if strings.TrimSpace(payload.Title) == "" || strings.TrimSpace(payload.Body) == "" {
		h.logg.Warn(ctx, "dropping push without title or body")
		return false, pkgerrors.New(pkgerrors.CodeValidation, "notification title and body are required")
	}

	if key, ok := dedupKey(payload); ok && !h.dedup.AllowKey(key) {
		h.logg.Debug(h.logg.WithField(ctx, "dedup_key", key), "duplicate push suppressed")
		return false, nil
	}

	if err := h.renderer.ShowNotification(ctx, payload); err != nil {
		return false, err
	}
	return true, nil
}

// OnNotificationClick brings the notification's target into focus.
func (h *Handler) OnNotificationClick(ctx context.Context, data map[string]string) error {
	url := strings.TrimSpace(data["url"])
	if url == "" {
		url = h.clickURL
	}
	return h.nav.FocusOrOpen(ctx, url)
}

// Close releases the deduplicator's timers.
func (h *Handler) Close() {
	h.dedup.Close()
}

// dedupKey builds the key from data type and relatedId, falling back to the tag. Pushes with
// neither are never deduplicated.
func dedupKey(payload models.PushPayload) (string, bool) {
	eventType := strings.TrimSpace(payload.Data["type"])
	relatedID := strings.TrimSpace(payload.Data["relatedId"])
	if eventType != "" || relatedID != "" {
		return Key(eventType, relatedID), true
	}
	if tag := strings.TrimSpace(payload.Tag); tag != "" {
		return "tag_" + tag, true
	}
	return "", false
}
