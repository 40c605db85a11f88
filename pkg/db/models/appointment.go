package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookinga/bookinga-backend/pkg/enums"
)

// Appointment is a booking of one salon service by one customer. Rows are soft-deleted only.
type Appointment struct {
	ID          string                  `gorm:"column:id;type:text;primaryKey" json:"id"`
	SalonID     string                  `gorm:"column:salon_id;type:text;not null;index" json:"salonId"`
	CustomerID  string                  `gorm:"column:customer_id;type:text;not null" json:"customerId"`
	ServiceID   string                  `gorm:"column:service_id;type:text" json:"serviceId,omitempty"`
	StaffID     *string                 `gorm:"column:staff_id;type:text" json:"staffId,omitempty"`
	Date        string                  `gorm:"column:date;type:text;not null" json:"date"`
	Time        string                  `gorm:"column:time;type:text" json:"time,omitempty"`
	Duration    int                     `gorm:"column:duration;not null;default:0" json:"duration"`
	Status      enums.AppointmentStatus `gorm:"column:status;type:appointment_status;not null" json:"status"`
	TotalAmount decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null;default:0" json:"totalAmount"`
	Currency    string                  `gorm:"column:currency;type:text;not null;default:'USD'" json:"currency"`
	Notes       *string                 `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Deleted     bool                    `gorm:"column:deleted;not null;default:false" json:"deleted"`
	DeletedAt   *time.Time              `gorm:"column:deleted_at" json:"deletedAt,omitempty"`
	DeletedBy   *string                 `gorm:"column:deleted_by;type:text" json:"deletedBy,omitempty"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Appointment) TableName() string { return "appointments" }
