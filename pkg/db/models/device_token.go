package models

import (
	"time"

	"github.com/bookinga/bookinga-backend/pkg/enums"
)

// DeviceToken is one entry of a user's registered push token set.
type DeviceToken struct {
	UserID    string               `gorm:"column:user_id;type:text;primaryKey" json:"userId"`
	Token     string               `gorm:"column:token;type:text;primaryKey" json:"-"`
	Platform  enums.DevicePlatform `gorm:"column:platform;type:text;not null;default:'web'" json:"platform"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (DeviceToken) TableName() string { return "device_tokens" }
