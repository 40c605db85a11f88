package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
	"github.com/bookinga/bookinga-backend/pkg/metrics"
	"github.com/bookinga/bookinga-backend/pkg/push"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newDispatcher(t *testing.T, h *harness, sender Sender, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	opts = append(opts, WithDispatcherClock(func() time.Time { return fixedNow }))
	d, err := NewDispatcher(h.repo, h.tokens, sender, h.logg, opts...)
	require.NoError(t, err)
	return d
}

func TestDispatchSendsToEveryTokenAndPrunesOnlyStaleOnes(t *testing.T) {
	h := newHarness(t)
	h.addTokens(t, "u1", "good", "stale", "flaky")
	h.addTokens(t, "u2", "stale")

	sender := &fakeSender{errs: map[string]error{
		"stale": &push.SendError{Code: push.CodeTokenNotRegistered, Message: "not registered"},
		"flaky": &push.SendError{Code: push.CodeUnavailable, Message: "try later"},
	}}
	pub := &fakeUserPublisher{}
	d := newDispatcher(t, h, sender, WithRealtime(pub), WithPushMetrics(metrics.NewPushMetrics(prometheus.NewRegistry())))

	n, err := h.service.Enqueue(context.Background(), Request{UserID: "u1", Payload: validPayload()})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), n.ID))

	stored := h.reload(t, n.ID)
	assert.Equal(t, enums.NotificationSent, stored.Status)
	assert.Equal(t, 1, stored.SuccessCount)
	assert.Equal(t, 2, stored.FailureCount)
	require.Len(t, stored.Results, 3)
	require.NotNil(t, stored.ProcessedAt)
	assert.True(t, stored.ProcessedAt.Equal(fixedNow))

	byToken := map[string]models.DeliveryRecord{}
	for _, r := range stored.Results {
		byToken[r.Token] = r
	}
	assert.True(t, byToken["good"].Success)
	assert.Equal(t, "projects/test/messages/good", byToken["good"].Response)
	assert.Equal(t, push.CodeTokenNotRegistered, byToken["stale"].ErrorCode)
	assert.Equal(t, push.CodeUnavailable, byToken["flaky"].ErrorCode)

	assert.Equal(t, map[string]bool{"good": true, "flaky": true}, h.tokenSet(t, "u1"))
	assert.Equal(t, map[string]bool{"stale": true}, h.tokenSet(t, "u2"))

	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.EventNotification, pub.events[0].Type)
	assert.Equal(t, n.ID, pub.events[0].NotificationID)
	assert.Equal(t, "u1", pub.events[0].UserID)
}

func TestDispatchPrunesInvalidTokenCode(t *testing.T) {
	h := newHarness(t)
	h.addTokens(t, "u1", "bad", "good")
	sender := &fakeSender{errs: map[string]error{
		"bad": &push.SendError{Code: push.CodeInvalidToken, Message: "malformed"},
	}}
	d := newDispatcher(t, h, sender)

	n, err := h.service.Enqueue(context.Background(), Request{UserID: "u1", Payload: validPayload()})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), n.ID))

	assert.Equal(t, map[string]bool{"good": true}, h.tokenSet(t, "u1"))
}

func TestDispatchMarksSecondRequestWithSameDedupIDAsDuplicate(t *testing.T) {
	h := newHarness(t)
	h.addTokens(t, "u1", "tok")
	sender := &fakeSender{}
	d := newDispatcher(t, h, sender)
	ctx := context.Background()

	first, err := h.service.Enqueue(ctx, Request{UserID: "u1", Payload: validPayload(), DeduplicationID: "appointment_a1_confirmed"})
	require.NoError(t, err)
	second, err := h.service.Enqueue(ctx, Request{UserID: "u1", Payload: validPayload(), DeduplicationID: "appointment_a1_confirmed"})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(ctx, first.ID))
	require.NoError(t, d.Dispatch(ctx, second.ID))

	assert.Equal(t, enums.NotificationSent, h.reload(t, first.ID).Status)
	assert.Equal(t, enums.NotificationDuplicate, h.reload(t, second.ID).Status)
	assert.Equal(t, 1, sender.calls())

	third, err := h.service.Enqueue(ctx, Request{UserID: "u1", Payload: validPayload(), DeduplicationID: "appointment_a1_confirmed"})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(ctx, third.ID))
	assert.Equal(t, enums.NotificationDuplicate, h.reload(t, third.ID).Status)
}

func TestDispatchWithoutTokensIsNoTokens(t *testing.T) {
	h := newHarness(t)
	sender := &fakeSender{}
	d := newDispatcher(t, h, sender)

	n, err := h.service.Enqueue(context.Background(), Request{UserID: "u1", Payload: validPayload()})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), n.ID))

	assert.Equal(t, enums.NotificationNoTokens, h.reload(t, n.ID).Status)
	assert.Zero(t, sender.calls())
}

func TestDispatchFailsMalformedPayload(t *testing.T) {
	h := newHarness(t)
	h.addTokens(t, "u1", "tok")
	sender := &fakeSender{}
	d := newDispatcher(t, h, sender)

	n := &models.PushNotification{UserID: "u1", Payload: models.PushPayload{Body: "no title"}, Status: enums.NotificationPending}
	require.NoError(t, h.repo.Create(context.Background(), n))

	require.NoError(t, d.Dispatch(context.Background(), n.ID))

	stored := h.reload(t, n.ID)
	assert.Equal(t, enums.NotificationFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "invalid payload")
	assert.Zero(t, sender.calls())
}

func TestDispatchFailsNonPendingRequest(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(t, h, &fakeSender{})

	n := &models.PushNotification{UserID: "u1", Payload: validPayload(), Status: enums.NotificationQueued}
	require.NoError(t, h.repo.Create(context.Background(), n))

	require.NoError(t, d.Dispatch(context.Background(), n.ID))
	assert.Equal(t, enums.NotificationFailed, h.reload(t, n.ID).Status)
}

func TestDispatchLeavesTerminalRequestUntouched(t *testing.T) {
	h := newHarness(t)
	h.addTokens(t, "u1", "tok")
	sender := &fakeSender{}
	d := newDispatcher(t, h, sender)

	n := &models.PushNotification{UserID: "u1", Payload: validPayload(), Status: enums.NotificationSent, SuccessCount: 4}
	require.NoError(t, h.repo.Create(context.Background(), n))

	require.NoError(t, d.Dispatch(context.Background(), n.ID))

	stored := h.reload(t, n.ID)
	assert.Equal(t, enums.NotificationSent, stored.Status)
	assert.Equal(t, 4, stored.SuccessCount)
	assert.Zero(t, sender.calls())
}

type failingTokens struct{}

func (failingTokens) ListByUser(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	return nil, errors.New("token store offline")
}

func (failingTokens) Delete(ctx context.Context, userID, token string) (bool, error) {
	return false, nil
}

func TestDispatchTopLevelErrorMarksFailed(t *testing.T) {
	h := newHarness(t)
	d, err := NewDispatcher(h.repo, failingTokens{}, &fakeSender{}, h.logg)
	require.NoError(t, err)

	n, err := h.service.Enqueue(context.Background(), Request{UserID: "u1", Payload: validPayload()})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), n.ID)
	require.Error(t, err)

	stored := h.reload(t, n.ID)
	assert.Equal(t, enums.NotificationFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "token store offline")
}

func TestDispatchMissingRowIsIgnored(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(t, h, &fakeSender{})
	assert.NoError(t, d.Dispatch(context.Background(), "missing"))
}
