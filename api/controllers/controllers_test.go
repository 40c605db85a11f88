package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookinga/bookinga-backend/api/middleware"
	"github.com/bookinga/bookinga-backend/internal/appointments"
	"github.com/bookinga/bookinga-backend/internal/notifications"
	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
)

type stubReader struct {
	salonID   string
	filters   appointments.Filters
	refreshed bool
	state     appointments.State
	err       error
}

func (s *stubReader) Query(ctx context.Context, salonID string, filters appointments.Filters) (appointments.State, error) {
	s.salonID, s.filters = salonID, filters
	return s.state, s.err
}

func (s *stubReader) Refresh(ctx context.Context, salonID string, filters appointments.Filters) (appointments.State, error) {
	s.refreshed = true
	s.salonID, s.filters = salonID, filters
	return s.state, s.err
}

type stubActor struct {
	salonID, appointmentID, actorID string
	action                          appointments.Action
	err                             error
}

func (s *stubActor) Apply(ctx context.Context, salonID, appointmentID, actorID string, action appointments.Action) (*models.Appointment, error) {
	s.salonID, s.appointmentID, s.actorID, s.action = salonID, appointmentID, actorID, action
	if s.err != nil {
		return nil, s.err
	}
	return &models.Appointment{ID: appointmentID, SalonID: salonID, Status: enums.AppointmentConfirmed}, nil
}

type stubNotifications struct {
	single *notifications.Request
	bulk   *notifications.BulkRequest
	token  *notifications.TokenRequest
	remove string
	err    error
}

func (s *stubNotifications) Enqueue(ctx context.Context, req notifications.Request) (*models.PushNotification, error) {
	s.single = &req
	if s.err != nil {
		return nil, s.err
	}
	return &models.PushNotification{ID: "n1", UserID: req.UserID, Payload: req.Payload, Status: enums.NotificationPending}, nil
}

func (s *stubNotifications) EnqueueBulk(ctx context.Context, req notifications.BulkRequest) (*models.BulkNotification, error) {
	s.bulk = &req
	if s.err != nil {
		return nil, s.err
	}
	return &models.BulkNotification{ID: "b1", UserIDs: req.UserIDs, Payload: req.Payload, Status: enums.NotificationPending}, nil
}

func (s *stubNotifications) RegisterToken(ctx context.Context, req notifications.TokenRequest) error {
	s.token = &req
	return s.err
}

func (s *stubNotifications) RemoveToken(ctx context.Context, userID, token string) error {
	s.remove = userID + ":" + token
	return s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func salonRouter(reader AppointmentReader, actor AppointmentActor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), "admin-1")))
		})
	})
	r.Get("/salons/{salonID}/appointments", ListAppointments(reader, time.UTC, nil))
	r.Post("/salons/{salonID}/appointments/refresh", RefreshAppointments(reader, time.UTC, nil))
	r.Post("/salons/{salonID}/appointments/{appointmentID}/{action}", AppointmentAction(actor, nil))
	return r
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestListAppointmentsParsesFilters(t *testing.T) {
	reader := &stubReader{state: appointments.State{
		SalonID:      "salon-1",
		Appointments: []models.Appointment{{ID: "a1", SalonID: "salon-1", CustomerID: "u1", Date: "2026-03-04", Status: enums.AppointmentPending}},
		Customers:    map[string]appointments.CachedUser{"u1": {ID: "u1", DisplayName: "Ana"}},
	}}
	req := httptest.NewRequest(http.MethodGet, "/salons/salon-1/appointments?date=custom&from=2026-03-01&to=2026-03-31&status=pending&deleted=false", nil)
	resp := httptest.NewRecorder()
	salonRouter(reader, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if reader.salonID != "salon-1" {
		t.Fatalf("unexpected salon %q", reader.salonID)
	}
	if reader.filters.Date != appointments.DateCustom || reader.filters.Status != appointments.StatusPending {
		t.Fatalf("unexpected filters %+v", reader.filters)
	}
	if reader.filters.CustomRange == nil || reader.filters.CustomRange.From.Day() != 1 {
		t.Fatalf("custom range not parsed: %+v", reader.filters.CustomRange)
	}

	var body struct {
		Data appointments.ViewDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data.Appointments) != 1 || body.Data.Appointments[0].Customer == nil {
		t.Fatalf("expected one appointment with customer, got %+v", body.Data.Appointments)
	}
}

func TestListAppointmentsRejectsBadFilter(t *testing.T) {
	reader := &stubReader{}
	resp := httptest.NewRecorder()
	salonRouter(reader, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/salons/salon-1/appointments?date=yesterday", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if reader.salonID != "" {
		t.Fatal("reader should not be called")
	}
}

func TestListAppointmentsMapsDependencyError(t *testing.T) {
	reader := &stubReader{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "load appointments")}
	resp := httptest.NewRecorder()
	salonRouter(reader, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/salons/salon-1/appointments", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestRefreshAppointments(t *testing.T) {
	reader := &stubReader{state: appointments.State{SalonID: "salon-1"}}
	resp := httptest.NewRecorder()
	salonRouter(reader, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/salons/salon-1/appointments/refresh?date=today", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !reader.refreshed || reader.filters.Date != appointments.DateToday {
		t.Fatalf("expected refresh with today filter, got %+v", reader)
	}
}

func TestAppointmentActionAppliesWithActor(t *testing.T) {
	actor := &stubActor{}
	resp := httptest.NewRecorder()
	salonRouter(nil, actor).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/salons/salon-1/appointments/a1/confirm", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if actor.salonID != "salon-1" || actor.appointmentID != "a1" || actor.actorID != "admin-1" || actor.action != appointments.ActionConfirm {
		t.Fatalf("unexpected apply call %+v", actor)
	}
}

func TestAppointmentActionRejectsUnknownAction(t *testing.T) {
	actor := &stubActor{}
	resp := httptest.NewRecorder()
	salonRouter(nil, actor).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/salons/salon-1/appointments/a1/archive", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if actor.appointmentID != "" {
		t.Fatal("service should not be called")
	}
}

func TestAppointmentActionStateConflict(t *testing.T) {
	actor := &stubActor{err: pkgerrors.New(pkgerrors.CodeStateConflict, "cannot start a pending appointment")}
	resp := httptest.NewRecorder()
	salonRouter(nil, actor).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/salons/salon-1/appointments/a1/start", nil))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestCreateNotificationCarriesActor(t *testing.T) {
	svc := &stubNotifications{}
	body := `{"userId":"u1","payload":{"title":"Hi","body":"There","data":{"type":"appointment","relatedId":"a1"}},"deduplicationId":"d1"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(body)), "admin-1")
	resp := httptest.NewRecorder()
	CreateNotification(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.single == nil || svc.single.UserID != "u1" || svc.single.DeduplicationID != "d1" {
		t.Fatalf("unexpected request %+v", svc.single)
	}
	if svc.single.Actor == nil || svc.single.Actor.UserID != "admin-1" {
		t.Fatalf("expected actor from context, got %+v", svc.single.Actor)
	}
	if svc.single.Payload.Data["relatedId"] != "a1" {
		t.Fatalf("payload data lost: %+v", svc.single.Payload)
	}
}

func TestCreateNotificationValidatesPayload(t *testing.T) {
	svc := &stubNotifications{}
	req := withUser(httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(`{"userId":"u1","payload":{"body":"no title"}}`)), "admin-1")
	resp := httptest.NewRecorder()
	CreateNotification(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.single != nil {
		t.Fatal("service should not be called")
	}
}

func TestCreateNotificationRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	CreateNotification(&stubNotifications{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(`{}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCreateBulkNotification(t *testing.T) {
	svc := &stubNotifications{}
	body := `{"userIds":["u1","u2"],"payload":{"title":"Closed","body":"Salon closed tomorrow"}}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/notifications/bulk", strings.NewReader(body)), "admin-1")
	resp := httptest.NewRecorder()
	CreateBulkNotification(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.bulk == nil || len(svc.bulk.UserIDs) != 2 {
		t.Fatalf("unexpected bulk request %+v", svc.bulk)
	}
}

func TestDeviceTokens(t *testing.T) {
	svc := &stubNotifications{}

	resp := httptest.NewRecorder()
	RegisterDeviceToken(svc, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodPost, "/device-tokens", strings.NewReader(`{"token":"tok-1","platform":"Android"}`)), "u1"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.token == nil || svc.token.UserID != "u1" || svc.token.Platform != enums.DevicePlatform("android") {
		t.Fatalf("unexpected token request %+v", svc.token)
	}

	resp = httptest.NewRecorder()
	RemoveDeviceToken(svc, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodDelete, "/device-tokens", strings.NewReader(`{"token":"tok-1"}`)), "u1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.remove != "u1:tok-1" {
		t.Fatalf("unexpected remove call %q", svc.remove)
	}
}

func TestDeviceTokenRejectsUnknownPlatform(t *testing.T) {
	svc := &stubNotifications{}
	resp := httptest.NewRecorder()
	RegisterDeviceToken(svc, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodPost, "/device-tokens", strings.NewReader(`{"token":"tok-1","platform":"blackberry"}`)), "u1"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "platform") {
		t.Fatalf("expected platform detail, got %s", resp.Body.String())
	}
	if svc.token != nil {
		t.Fatal("service should not be called")
	}
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{err: errors.New("refused")}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeDependency) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(&config.Config{App: config.AppConfig{Env: "test"}}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK || resp.Header().Get("X-Bookinga-Env") != "test" {
		t.Fatalf("unexpected live response %d %v", resp.Code, resp.Header())
	}
}
