package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/internal/platform/signature"
	"github.com/carelink/clinicpay/pkg/logctx"
	"github.com/carelink/clinicpay/pkg/metrics"
	"github.com/carelink/clinicpay/pkg/types"
)

// AppointmentSaga creates the dependent appointment for a completed payment
// and links it back, compensating on partial failure.
type AppointmentSaga interface {
	AutoCreate(ctx context.Context, payment *models.Payment) (*models.Appointment, error)
}

// LedgerWriter appends one audit entry per meaningful status transition.
type LedgerWriter interface {
	AppendForStatus(ctx context.Context, payment *models.Payment, status types.PaymentStatus) (*models.PaymentLedgerEntry, error)
}

// HandleResult is the acknowledgement returned to the webhook endpoint.
type HandleResult struct {
	Payment *models.Payment
	// Duplicate is true when the event identity was already processed and
	// the delivery was a no-op.
	Duplicate bool
	// Applied is false when the event was recorded but its status was not
	// applied (terminal-state conflict).
	Applied     bool
	Appointment *models.Appointment
}

// Service orchestrates webhook reconciliation: verify, parse, lookup,
// dedupe, transition, persist, then saga and ledger.
type Service struct {
	verifier *signature.Verifier
	payments PaymentStore
	saga     AppointmentSaga
	ledger   LedgerWriter
	log      *zap.SugaredLogger
	metrics  *metrics.WebhookMetrics
	now      func() time.Time
}

func NewService(verifier *signature.Verifier, payments PaymentStore, saga AppointmentSaga, ledger LedgerWriter, log *zap.SugaredLogger, m *metrics.WebhookMetrics) (*Service, error) {
	if verifier == nil {
		return nil, signature.ErrSecretNotConfigured
	}
	return &Service{
		verifier: verifier,
		payments: payments,
		saga:     saga,
		ledger:   ledger,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HandleWebhook applies one provider notification exactly once.
func (s *Service) HandleWebhook(ctx context.Context, provider types.PaymentProvider, rawBody []byte, signatureHeader string) (*HandleResult, error) {
	s.metrics.IncReceived(string(provider))

	if !s.verifier.Verify(rawBody, signatureHeader) {
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, ErrAuthentication
	}

	n, err := ParseNotification(rawBody)
	if err != nil {
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, err
	}
	if err := n.Validate(); err != nil {
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, err
	}
	if n.Provider != "" && n.Provider != string(provider) {
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, fmt.Errorf("%w: provider mismatch: got %q, want %q", ErrValidation, n.Provider, provider)
	}

	payment, err := s.payments.GetByProviderRef(ctx, provider, n.TransactionRef())
	if err != nil {
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, err
	}
	if payment.Provider != provider {
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, fmt.Errorf("%w: payment belongs to provider %q", ErrValidation, payment.Provider)
	}

	identity := EventIdentity(provider, n)
	if AlreadyProcessed(payment.Metadata, identity) {
		logctx.FromCtx(ctx, s.log).Infow("webhook_duplicate",
			"payment_id", payment.ID, "event_id", identity)
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeDuplicate)
		return &HandleResult{Payment: payment, Duplicate: true}, nil
	}

	reported := statusFromProvider(n.Status)
	target, conflict := nextStatus(payment.Status, reported)
	statusChanged := target != payment.Status
	previous := payment.Status

	meta := RecordProcessed(payment.Metadata, identity, n.ResolvedEventType(), s.now(), map[string]any{
		"last_provider_status": n.Status,
	})
	if conflict {
		meta = recordStatusConflict(meta, identity, payment.Status, reported, s.now())
		logctx.FromCtx(ctx, s.log).Warnw("webhook_terminal_status_conflict",
			"payment_id", payment.ID, "event_id", identity,
			"current_status", payment.Status, "reported_status", reported)
	}

	if err := s.payments.UpdateStatusAndMetadata(ctx, payment, target, meta); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// A concurrent delivery won the write. If it applied the same
			// event, this delivery is a duplicate; otherwise let the
			// provider retry against the fresh row.
			fresh, lerr := s.payments.GetByProviderRef(ctx, provider, n.TransactionRef())
			if lerr == nil && AlreadyProcessed(fresh.Metadata, identity) {
				s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeDuplicate)
				return &HandleResult{Payment: fresh, Duplicate: true}, nil
			}
			s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
			return nil, fmt.Errorf("%w: concurrent update on payment %s", ErrTransientPersistence, payment.ID)
		}
		s.metrics.IncOutcome(string(provider), metrics.WebhookOutcomeError)
		return nil, err
	}

	res := &HandleResult{Payment: payment, Applied: !conflict}

	if statusChanged && target == types.PaymentStatusCompleted && s.saga != nil {
		appt, serr := s.saga.AutoCreate(ctx, payment)
		if serr != nil {
			// The status transition is already committed; the booking is
			// left for manual reconciliation.
			logctx.FromCtx(ctx, s.log).Errorw("appointment_autocreate_failed",
				"payment_id", payment.ID, "event_id", identity, "error", serr.Error())
		} else if appt != nil {
			res.Appointment = appt
		}
	}

	if statusChanged && s.ledger != nil {
		if _, lerr := s.ledger.AppendForStatus(ctx, payment, target); lerr != nil {
			// Audit trail is off the critical path; surface to operators only.
			logctx.FromCtx(ctx, s.log).Errorw("ledger_append_failed",
				"payment_id", payment.ID, "status", target, "error", lerr.Error())
		}
	}

	outcome := metrics.WebhookOutcomeApplied
	if conflict {
		outcome = metrics.WebhookOutcomeConflict
	}
	s.metrics.IncOutcome(string(provider), outcome)

	logctx.FromCtx(ctx, s.log).Infow("webhook_reconciled",
		"payment_id", payment.ID, "event_id", identity,
		"previous_status", previous, "status", payment.Status,
		"applied", !conflict)
	return res, nil
}

// ScanPayments exposes admin listing over the payment table.
func (s *Service) ScanPayments(ctx context.Context, req *ScanPaymentsRequest) ([]*models.Payment, int64, error) {
	return s.payments.Scan(ctx, req)
}
