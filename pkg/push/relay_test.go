package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"

	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := NewClient(context.Background(),
		config.GCPConfig{ProjectID: "bookinga-test"},
		config.NotificationsConfig{},
		logg,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendReturnsMessageName(t *testing.T) {
	var got fcm.SendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/projects/bookinga-test/messages:send") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"projects/bookinga-test/messages/42"}`))
	})

	badge := 3
	name, err := client.Send(context.Background(), "tok-1", models.PushPayload{
		Title:      "Booking confirmed",
		Body:       "See you Friday",
		URL:        "/appointments/a1",
		BadgeCount: &badge,
		Data:       map[string]string{"type": "appointment", "relatedId": "a1"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if name != "projects/bookinga-test/messages/42" {
		t.Fatalf("unexpected message name %q", name)
	}
	if got.Message == nil || got.Message.Token != "tok-1" {
		t.Fatalf("expected token in request, got %+v", got.Message)
	}
	if got.Message.Data["url"] != "/appointments/a1" || got.Message.Data["relatedId"] != "a1" {
		t.Fatalf("unexpected data %+v", got.Message.Data)
	}
	if got.Message.Android.Notification.NotificationCount != 3 {
		t.Fatalf("expected badge count 3, got %d", got.Message.Android.Notification.NotificationCount)
	}
}

func TestSendClassifiesUnregistered(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`))
	})

	_, err := client.Send(context.Background(), "stale", models.PushPayload{Title: "t", Body: "b"})
	if code := ErrorCode(err); code != CodeTokenNotRegistered {
		t.Fatalf("expected %s, got %q (%v)", CodeTokenNotRegistered, code, err)
	}
	if !IsStaleToken(ErrorCode(err)) {
		t.Fatal("expected stale token")
	}
}

func TestSendClassifiesInvalidToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"The registration token is not a valid FCM registration token","status":"INVALID_ARGUMENT","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"INVALID_ARGUMENT"}]}}`))
	})

	_, err := client.Send(context.Background(), "garbage", models.PushPayload{Title: "t", Body: "b"})
	if code := ErrorCode(err); code != CodeInvalidToken {
		t.Fatalf("expected %s, got %q (%v)", CodeInvalidToken, code, err)
	}
}

func TestSendTransientErrorIsNotStale(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend unavailable","status":"UNAVAILABLE"}}`))
	})

	_, err := client.Send(context.Background(), "tok", models.PushPayload{Title: "t", Body: "b"})
	code := ErrorCode(err)
	if code != CodeUnavailable {
		t.Fatalf("expected %s, got %q", CodeUnavailable, code)
	}
	if IsStaleToken(code) {
		t.Fatal("transient failure must not mark token stale")
	}
}

func TestSendRejectsEmptyToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("relay should not be called")
	})
	_, err := client.Send(context.Background(), " ", models.PushPayload{Title: "t", Body: "b"})
	if ErrorCode(err) != CodeInvalidToken {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestErrorCodeIgnoresForeignErrors(t *testing.T) {
	if code := ErrorCode(errors.New("boom")); code != "" {
		t.Fatalf("expected empty code, got %q", code)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.NotificationsConfig{}, nil); err == nil {
		t.Fatal("expected error without project id")
	}
}
