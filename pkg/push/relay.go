// Package push delivers payloads to device tokens through the FCM HTTP v1 relay.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Relay error codes recorded on delivery results.
const (
	CodeTokenNotRegistered = "messaging/registration-token-not-registered"
	CodeInvalidToken       = "messaging/invalid-registration-token"
	CodeInvalidArgument    = "messaging/invalid-argument"
	CodeUnavailable        = "messaging/server-unavailable"
	CodeQuotaExceeded      = "messaging/message-rate-exceeded"
	CodeAuthentication     = "messaging/authentication-error"
	CodeUnknown            = "messaging/unknown-error"
)

// SendError is a relay rejection for one token.
type SendError struct {
	Code    string
	Message string
	Status  int
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode extracts the relay code from err, or "" when err is not a relay rejection.
func ErrorCode(err error) string {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Code
	}
	return ""
}

// IsStaleToken reports whether the relay said the token will never be deliverable again.
func IsStaleToken(code string) bool {
	return code == CodeTokenNotRegistered || code == CodeInvalidToken
}

// Client sends single-token messages through FCM.
type Client struct {
	svc          *fcm.Service
	parent       string
	validateOnly bool
	logg         *logger.Logger
}

// NewClient builds an FCM client for the configured project. Extra options are appended after the
// credential options, which lets tests point the client at a local endpoint.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.NotificationsConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}

	opts := []option.ClientOption{option.WithScopes(messagingScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	opts = append(opts, extra...)

	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating fcm service: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "validate_only", cfg.RelayDryRun), "fcm relay client initialized")
	}

	return &Client{
		svc:          svc,
		parent:       "projects/" + projectID,
		validateOnly: cfg.RelayDryRun,
		logg:         logg,
	}, nil
}

// Send delivers payload to token and returns the relay message name.
func (c *Client) Send(ctx context.Context, token string, payload models.PushPayload) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", &SendError{Code: CodeInvalidToken, Message: "empty registration token"}
	}

	msg, err := buildMessage(token, payload)
	if err != nil {
		return "", err
	}

	resp, err := c.svc.Projects.Messages.Send(c.parent, &fcm.SendMessageRequest{
		Message:      msg,
		ValidateOnly: c.validateOnly,
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return resp.Name, nil
}

func buildMessage(token string, payload models.PushPayload) (*fcm.Message, error) {
	data := make(map[string]string, len(payload.Data)+1)
	for k, v := range payload.Data {
		data[k] = v
	}
	if payload.URL != "" {
		data["url"] = payload.URL
	}

	msg := &fcm.Message{
		Token: token,
		Notification: &fcm.Notification{
			Title: payload.Title,
			Body:  payload.Body,
			Image: payload.Image,
		},
		Data: data,
		Android: &fcm.AndroidConfig{
			Priority: "HIGH",
			Notification: &fcm.AndroidNotification{
				Icon: payload.Icon,
				Tag:  payload.Tag,
			},
		},
	}
	if payload.BadgeCount != nil {
		msg.Android.Notification.NotificationCount = int64(*payload.BadgeCount)
	}

	webNotification := map[string]any{
		"title": payload.Title,
		"body":  payload.Body,
	}
	if payload.Icon != "" {
		webNotification["icon"] = payload.Icon
	}
	if payload.Tag != "" {
		webNotification["tag"] = payload.Tag
	}
	rawWeb, err := json.Marshal(webNotification)
	if err != nil {
		return nil, fmt.Errorf("encoding webpush notification: %w", err)
	}
	msg.Webpush = &fcm.WebpushConfig{Notification: googleapi.RawMessage(rawWeb)}
	if payload.URL != "" {
		msg.Webpush.FcmOptions = &fcm.WebpushFcmOptions{Link: payload.URL}
	}

	aps := map[string]any{"sound": "default"}
	if payload.BadgeCount != nil {
		aps["badge"] = *payload.BadgeCount
	}
	rawAPNS, err := json.Marshal(map[string]any{"aps": aps})
	if err != nil {
		return nil, fmt.Errorf("encoding apns payload: %w", err)
	}
	msg.Apns = &fcm.ApnsConfig{
		Headers: map[string]string{"apns-priority": "10"},
		Payload: googleapi.RawMessage(rawAPNS),
	}
	return msg, nil
}

// classify maps an FCM API failure onto a relay error code.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	fcmCode := fcmErrorCode(apiErr)
	sendErr := &SendError{Message: apiErr.Message, Status: apiErr.Code}
	switch {
	case fcmCode == "UNREGISTERED" || apiErr.Code == http.StatusNotFound:
		sendErr.Code = CodeTokenNotRegistered
	case fcmCode == "INVALID_ARGUMENT" && strings.Contains(strings.ToLower(apiErr.Message), "registration token"):
		sendErr.Code = CodeInvalidToken
	case fcmCode == "INVALID_ARGUMENT" || apiErr.Code == http.StatusBadRequest:
		sendErr.Code = CodeInvalidArgument
	case fcmCode == "QUOTA_EXCEEDED" || apiErr.Code == http.StatusTooManyRequests:
		sendErr.Code = CodeQuotaExceeded
	case fcmCode == "UNAVAILABLE" || apiErr.Code == http.StatusServiceUnavailable:
		sendErr.Code = CodeUnavailable
	case fcmCode == "THIRD_PARTY_AUTH_ERROR" || apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		sendErr.Code = CodeAuthentication
	default:
		sendErr.Code = CodeUnknown
	}
	if sendErr.Message == "" {
		sendErr.Message = "fcm status " + strconv.Itoa(apiErr.Code)
	}
	return sendErr
}

func fcmErrorCode(apiErr *googleapi.Error) string {
	for _, detail := range apiErr.Details {
		entry, ok := detail.(map[string]any)
		if !ok {
			continue
		}
		if code, ok := entry["errorCode"].(string); ok && code != "" {
			return code
		}
	}
	return ""
}
