package models

import (
	"time"

	"github.com/carelink/clinicpay/pkg/types"
)

type BookingSource string

const (
	BookingSourceManual         BookingSource = "manual"
	BookingSourcePaymentWebhook BookingSource = "payment_webhook"
)

// Appointment is the partial view owned by this service: rows created by the
// payment saga. Scheduling edits happen in the portal's booking module.
type Appointment struct {
	ID          string                  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID      string                  `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	BranchID    string                  `gorm:"column:branch_id;type:varchar(64);not null" json:"branch_id"`
	ServiceID   string                  `gorm:"column:service_id;type:varchar(64)" json:"service_id"`
	DoctorID    string                  `gorm:"column:doctor_id;type:varchar(64)" json:"doctor_id"`
	ScheduledAt time.Time               `gorm:"column:scheduled_at;not null" json:"scheduled_at"`
	Status      types.AppointmentStatus `gorm:"column:status;type:varchar(32);not null;default:'pending'" json:"status"`
	Notes       string                  `gorm:"column:notes;type:text" json:"notes"`

	// PaymentID back-references the payment that funded this booking.
	PaymentID     *string       `gorm:"column:payment_id;type:uuid;index" json:"payment_id"`
	BookingSource BookingSource `gorm:"column:booking_source;type:varchar(32);not null;default:'manual'" json:"booking_source"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointment"
}
