package notifications

import (
	"context"
	"io"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/pkg/db"
	"github.com/bookinga/bookinga-backend/pkg/db/dbtest"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
)

type harness struct {
	db      *gorm.DB
	client  *db.Client
	repo    *Repository
	tokens  *TokenRepository
	service *Service
	logg    *logger.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client := db.NewFromGorm(conn)
	repo := NewRepository(conn)
	tokens := NewTokenRepository(conn)
	svc, err := NewService(client, repo, tokens, outbox.NewService(outbox.NewRepository(conn), logg), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{db: conn, client: client, repo: repo, tokens: tokens, service: svc, logg: logg}
}

func (h *harness) addTokens(t *testing.T, userID string, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		if err := h.service.RegisterToken(context.Background(), TokenRequest{UserID: userID, Token: tok}); err != nil {
			t.Fatalf("register token %s: %v", tok, err)
		}
	}
}

func (h *harness) tokenSet(t *testing.T, userID string) map[string]bool {
	t.Helper()
	list, err := h.tokens.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	out := make(map[string]bool, len(list))
	for _, tok := range list {
		out[tok.Token] = true
	}
	return out
}

func (h *harness) reload(t *testing.T, id string) *models.PushNotification {
	t.Helper()
	n, err := h.repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return n
}

type fakeSender struct {
	mu     sync.Mutex
	errs   map[string]error
	called []string
}

func (f *fakeSender) Send(ctx context.Context, token string, payload models.PushPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, token)
	if err := f.errs[token]; err != nil {
		return "", err
	}
	return "projects/test/messages/" + token, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.called)
}

type fakeUserPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakeUserPublisher) PublishUser(ctx context.Context, userID string, evt realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	evt.UserID = userID
	f.events = append(f.events, evt)
	return nil
}

func validPayload() models.PushPayload {
	return models.PushPayload{
		Title: "Appointment confirmed",
		Body:  "See you on Friday at 10:00",
		URL:   "/appointments/a1",
		Data:  map[string]string{"type": "appointment", "relatedId": "a1"},
	}
}
