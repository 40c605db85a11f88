package models

import (
	"time"

	"github.com/bookinga/bookinga-backend/pkg/enums"
)

// PushPayload is the closed record delivered to devices.
type PushPayload struct {
	Title      string            `json:"title" validate:"required,max=200"`
	Body       string            `json:"body" validate:"required,max=2000"`
	Icon       string            `json:"icon,omitempty" validate:"omitempty,max=2048"`
	Image      string            `json:"image,omitempty" validate:"omitempty,max=2048"`
	Tag        string            `json:"tag,omitempty" validate:"omitempty,max=200"`
	URL        string            `json:"url,omitempty" validate:"omitempty,max=2048"`
	BadgeCount *int              `json:"badgeCount,omitempty" validate:"omitempty,min=0"`
	Data       map[string]string `json:"data,omitempty"`
}

// DeliveryRecord is the outcome of one token send.
type DeliveryRecord struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// PushNotification is a request to deliver one payload to every device of one user.
type PushNotification struct {
	ID              string                   `gorm:"column:id;type:text;primaryKey" json:"id"`
	UserID          string                   `gorm:"column:user_id;type:text;not null;index" json:"userId"`
	Payload         PushPayload              `gorm:"column:payload;type:jsonb;serializer:json;not null" json:"payload"`
	Status          enums.NotificationStatus `gorm:"column:status;type:notification_status;not null" json:"status"`
	DeduplicationID *string                  `gorm:"column:deduplication_id;type:text;index" json:"deduplicationId,omitempty"`
	BulkID          *string                  `gorm:"column:bulk_id;type:text;index" json:"bulkId,omitempty"`
	SuccessCount    int                      `gorm:"column:success_count;not null;default:0" json:"successCount"`
	FailureCount    int                      `gorm:"column:failure_count;not null;default:0" json:"failureCount"`
	Results         []DeliveryRecord         `gorm:"column:results;type:jsonb;serializer:json" json:"results,omitempty"`
	Error           *string                  `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	ProcessedAt     *time.Time               `gorm:"column:processed_at" json:"processedAt,omitempty"`
}

func (PushNotification) TableName() string { return "push_notifications" }
