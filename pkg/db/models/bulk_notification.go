package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/bookinga/bookinga-backend/pkg/enums"
)

// BulkNotification fans one payload out to many users as individual PushNotification rows.
type BulkNotification struct {
	ID           string                   `gorm:"column:id;type:text;primaryKey" json:"id"`
	UserIDs      pq.StringArray           `gorm:"column:user_ids;type:text[];not null" json:"userIds"`
	Payload      PushPayload              `gorm:"column:payload;type:jsonb;serializer:json;not null" json:"payload"`
	Status       enums.NotificationStatus `gorm:"column:status;type:notification_status;not null" json:"status"`
	CreatedCount int                      `gorm:"column:created_count;not null;default:0" json:"createdCount"`
	Error        *string                  `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	ProcessedAt  *time.Time               `gorm:"column:processed_at" json:"processedAt,omitempty"`
}

func (BulkNotification) TableName() string { return "bulk_notifications" }
