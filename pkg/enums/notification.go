package enums

import "fmt"

// NotificationStatus maps to the notification_status enum in Postgres. It is shared by
// push_notifications and bulk_notifications rows.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationQueued    NotificationStatus = "queued"
	NotificationSent      NotificationStatus = "sent"
	NotificationDuplicate NotificationStatus = "duplicate"
	NotificationNoTokens  NotificationStatus = "no_tokens"
	NotificationFailed    NotificationStatus = "failed"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationPending,
	NotificationQueued,
	NotificationSent,
	NotificationDuplicate,
	NotificationNoTokens,
	NotificationFailed,
}

// TerminalNotificationStatuses are the statuses eligible for the retention sweep.
var TerminalNotificationStatuses = []NotificationStatus{
	NotificationSent,
	NotificationFailed,
	NotificationNoTokens,
	NotificationDuplicate,
}

// DedupNotificationStatuses are the prior statuses that make a matching deduplication id a duplicate.
var DedupNotificationStatuses = []NotificationStatus{
	NotificationSent,
	NotificationDuplicate,
}

func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s NotificationStatus) IsTerminal() bool {
	for _, candidate := range TerminalNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseNotificationStatus(value string) (NotificationStatus, error) {
	for _, candidate := range validNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification status %q", value)
}

// DevicePlatform identifies where a device token was registered.
type DevicePlatform string

const (
	PlatformWeb     DevicePlatform = "web"
	PlatformAndroid DevicePlatform = "android"
	PlatformIOS     DevicePlatform = "ios"
)

func (p DevicePlatform) IsValid() bool {
	switch p {
	case PlatformWeb, PlatformAndroid, PlatformIOS:
		return true
	}
	return false
}
