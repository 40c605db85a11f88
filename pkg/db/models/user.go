package models

import "time"

// User is a customer or salon staff member.
type User struct {
	ID          string    `gorm:"column:id;type:text;primaryKey" json:"id"`
	DisplayName string    `gorm:"column:display_name;type:text" json:"displayName"`
	Phone       *string   `gorm:"column:phone;type:text" json:"phone,omitempty"`
	Email       *string   `gorm:"column:email;type:text" json:"email,omitempty"`
	Role        string    `gorm:"column:role;type:text;not null;default:'customer'" json:"role"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "users" }
