package booking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/pkg/logctx"
	"github.com/carelink/clinicpay/pkg/tool"
	"github.com/carelink/clinicpay/pkg/types"
)

// ErrSagaCompensation means a later saga step failed and the compensating
// action failed too, possibly leaving an orphaned appointment. There is no
// automatic corrective path; this must reach an operator.
var ErrSagaCompensation = errors.New("saga compensation failed")

// Saga creates an appointment from the booking payload embedded in a
// completed payment and links it back, with a compensating delete if the
// link fails. Steps are explicit so later additions (e.g. a confirmation
// message) slot in without weakening the rollback guarantee.
type Saga struct {
	store Store
	log   *zap.SugaredLogger
}

func New(store Store, log *zap.SugaredLogger) *Saga {
	return &Saga{store: store, log: log}
}

type step struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// AutoCreate runs the saga for payment. It returns (nil, nil) when the
// preconditions don't hold: no embedded booking payload, an appointment
// already linked, or an explicit opt-out.
func (s *Saga) AutoCreate(ctx context.Context, payment *models.Payment) (*models.Appointment, error) {
	if payment == nil {
		return nil, fmt.Errorf("nil payment")
	}
	if payment.AppointmentID != nil {
		return nil, nil
	}
	if OptedOut(payment.Metadata) {
		return nil, nil
	}
	payload, err := PendingFromMetadata(payment.Metadata)
	if err != nil {
		return nil, fmt.Errorf("invalid pending appointment payload: %w", err)
	}
	if payload == nil {
		return nil, nil
	}

	// Owner comes from the payment row, never from the payload.
	appt := &models.Appointment{
		ID:            tool.GenerateUUIDV7(),
		UserID:        payment.UserID,
		BranchID:      payload.BranchID,
		ServiceID:     payload.ServiceID,
		DoctorID:      payload.DoctorID,
		ScheduledAt:   payload.ScheduledAt,
		Status:        types.AppointmentStatusPending,
		Notes:         payload.Notes,
		PaymentID:     &payment.ID,
		BookingSource: models.BookingSourcePaymentWebhook,
	}

	steps := []step{
		{
			name: "create_appointment",
			run: func(ctx context.Context) error {
				return s.store.CreateAppointment(ctx, appt)
			},
			compensate: func(ctx context.Context) error {
				return s.store.DeleteAppointment(ctx, appt.ID)
			},
		},
		{
			name: "link_payment",
			run: func(ctx context.Context) error {
				if err := s.store.LinkPaymentAppointment(ctx, payment.ID, appt.ID); err != nil {
					return err
				}
				payment.AppointmentID = &appt.ID
				return nil
			},
		},
	}

	if err := s.execute(ctx, payment.ID, steps); err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("appointment_autocreated",
		"payment_id", payment.ID, "appointment_id", appt.ID,
		"branch_id", appt.BranchID, "scheduled_at", appt.ScheduledAt)
	return appt, nil
}

// execute runs steps in order; on failure it compensates the completed steps
// in reverse and surfaces the original error.
func (s *Saga) execute(ctx context.Context, paymentID string, steps []step) error {
	for i, st := range steps {
		if err := st.run(ctx); err != nil {
			runErr := fmt.Errorf("saga step %s failed: %w", st.name, err)
			for j := i - 1; j >= 0; j-- {
				prev := steps[j]
				if prev.compensate == nil {
					continue
				}
				if cerr := prev.compensate(ctx); cerr != nil {
					logctx.FromCtx(ctx, s.log).Errorw("saga_compensation_failed",
						"payment_id", paymentID, "step", prev.name, "error", cerr.Error())
					return fmt.Errorf("%w: step %s: %v (after: %v)", ErrSagaCompensation, prev.name, cerr, runErr)
				}
				logctx.FromCtx(ctx, s.log).Warnw("saga_step_compensated",
					"payment_id", paymentID, "step", prev.name)
			}
			return runErr
		}
	}
	return nil
}
