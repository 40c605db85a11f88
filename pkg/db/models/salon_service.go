package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalonService is a bookable service offered by a salon.
type SalonService struct {
	ID        string          `gorm:"column:id;type:text;primaryKey" json:"id"`
	SalonID   string          `gorm:"column:salon_id;type:text;not null;index" json:"salonId"`
	Name      string          `gorm:"column:name;type:text;not null" json:"name"`
	Duration  int             `gorm:"column:duration;not null;default:0" json:"duration"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0" json:"price"`
	Currency  string          `gorm:"column:currency;type:text;not null;default:'USD'" json:"currency"`
	Active    bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (SalonService) TableName() string { return "salon_services" }
