package booking

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/carelink/clinicpay/internal/models"
)

// ErrAlreadyLinked means another appointment won the link-back write.
var ErrAlreadyLinked = errors.New("payment already linked to an appointment")

// Store is the persistence collaborator for the saga. LinkPaymentAppointment
// must only link when the payment has no appointment yet.
type Store interface {
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointment(ctx context.Context, id string) error
	LinkPaymentAppointment(ctx context.Context, paymentID, appointmentID string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &GormStore{db: db}
}

func (s *GormStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	return s.db.WithContext(ctx).Create(appt).Error
}

func (s *GormStore) DeleteAppointment(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Appointment{}, "id = ?", id).Error
}

func (s *GormStore) LinkPaymentAppointment(ctx context.Context, paymentID, appointmentID string) error {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND appointment_id IS NULL", paymentID).
		Update("appointment_id", appointmentID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyLinked
	}
	return nil
}
