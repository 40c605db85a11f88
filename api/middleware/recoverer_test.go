package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/types"
)

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &out})

	r := chi.NewRouter()
	r.Use(Recoverer(logg))
	r.Get("/salons/{salonID}/appointments", func(w http.ResponseWriter, r *http.Request) {
		panic("nil loader")
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/salons/salon-9/appointments", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) || strings.Contains(body.Error.Message, "nil loader") {
		t.Fatalf("unexpected envelope %+v", body.Error)
	}

	logged := out.String()
	for _, want := range []string{`"salon_id":"salon-9"`, `"panic":"nil loader"`, `"path":"/salons/salon-9/appointments"`} {
		if !strings.Contains(logged, want) {
			t.Fatalf("expected %s in log output:\n%s", want, logged)
		}
	}
}

func TestRecovererReraisesAbort(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
