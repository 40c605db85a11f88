package payloads

// PushNotificationCreatedEvent announces a new pending push_notifications row.
type PushNotificationCreatedEvent struct {
	NotificationID  string  `json:"notification_id"`
	UserID          string  `json:"user_id"`
	DeduplicationID *string `json:"deduplication_id,omitempty"`
	BulkID          *string `json:"bulk_id,omitempty"`
}

// BulkNotificationCreatedEvent announces a new bulk_notifications row awaiting fan-out.
type BulkNotificationCreatedEvent struct {
	BulkID         string `json:"bulk_id"`
	RecipientCount int    `json:"recipient_count"`
}
