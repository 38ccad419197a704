package reconciliation

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/internal/platform/signature"
	"github.com/carelink/clinicpay/pkg/metrics"
	"github.com/carelink/clinicpay/pkg/types"
)

const testSecret = "test-webhook-secret"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// stubPaymentStore keeps one backing row and mimics the conditional write of
// the gorm store, including version bumping on success.
type stubPaymentStore struct {
	payment *models.Payment
	getErr  error
	updErr  error
	updates int
	// onUpdate runs before the version check, so tests can simulate a
	// concurrent writer landing first.
	onUpdate func()
}

func (s *stubPaymentStore) GetByProviderRef(_ context.Context, provider types.PaymentProvider, ref string) (*models.Payment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.payment == nil || s.payment.Provider != provider || s.payment.ProviderTransactionID != ref {
		return nil, ErrPaymentNotFound
	}
	cp := *s.payment
	return &cp, nil
}

func (s *stubPaymentStore) UpdateStatusAndMetadata(_ context.Context, payment *models.Payment, status types.PaymentStatus, metadata datatypes.JSONMap) error {
	if s.updErr != nil {
		return s.updErr
	}
	if s.onUpdate != nil {
		s.onUpdate()
		s.onUpdate = nil
	}
	if payment.Version != s.payment.Version {
		return ErrVersionConflict
	}
	s.payment.Status = status
	s.payment.Metadata = metadata
	s.payment.Version++
	payment.Status = status
	payment.Metadata = metadata
	payment.Version++
	s.updates++
	return nil
}

func (s *stubPaymentStore) Scan(_ context.Context, _ *ScanPaymentsRequest) ([]*models.Payment, int64, error) {
	return []*models.Payment{s.payment}, 1, nil
}

type stubSaga struct {
	calls int
	appt  *models.Appointment
	err   error
}

func (s *stubSaga) AutoCreate(_ context.Context, payment *models.Payment) (*models.Appointment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.appt != nil {
		payment.AppointmentID = &s.appt.ID
	}
	return s.appt, nil
}

type stubLedger struct {
	statuses []types.PaymentStatus
	err      error
}

func (s *stubLedger) AppendForStatus(_ context.Context, payment *models.Payment, status types.PaymentStatus) (*models.PaymentLedgerEntry, error) {
	s.statuses = append(s.statuses, status)
	if s.err != nil {
		return nil, s.err
	}
	return &models.PaymentLedgerEntry{PaymentID: payment.ID, TransactionType: types.LedgerTransactionTypePaymentCompleted}, nil
}

func pendingPayment() *models.Payment {
	return &models.Payment{
		ID:                    "pay_1",
		UserID:                "user_1",
		Provider:              types.PaymentProviderFlutterwave,
		ProviderTransactionID: "FLW-123",
		Amount:                5000,
		Currency:              "NGN",
		Status:                types.PaymentStatusPending,
		Metadata:              datatypes.JSONMap{},
	}
}

func newTestService(t *testing.T, store PaymentStore, saga AppointmentSaga, ledger LedgerWriter) *Service {
	t.Helper()
	v, err := signature.New(testSecret)
	require.NoError(t, err)
	svc, err := NewService(v, store, saga, ledger, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	return svc
}

func completedBody(eventID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":"charge.completed","provider":"flutterwave","provider_transaction_id":"FLW-123","status":"completed"}`, eventID))
}

func TestHandleWebhookCompletedPath(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	saga := &stubSaga{appt: &models.Appointment{ID: "appt_1"}}
	ledger := &stubLedger{}
	svc := newTestService(t, store, saga, ledger)

	body := completedBody("evt_1")
	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.True(t, res.Applied)
	require.Equal(t, types.PaymentStatusCompleted, res.Payment.Status)
	require.NotNil(t, res.Appointment)
	require.Equal(t, "appt_1", res.Appointment.ID)

	require.Equal(t, 1, saga.calls)
	require.Equal(t, []types.PaymentStatus{types.PaymentStatusCompleted}, ledger.statuses)
	require.Equal(t, 1, store.updates)
	require.True(t, AlreadyProcessed(store.payment.Metadata, "flutterwave:evt_1"))
	require.Equal(t, int64(1), store.payment.Version)
}

func TestHandleWebhookDuplicateDelivery(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	saga := &stubSaga{appt: &models.Appointment{ID: "appt_1"}}
	ledger := &stubLedger{}
	svc := newTestService(t, store, saga, ledger)

	body := completedBody("evt_1")
	_, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)

	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Nil(t, res.Appointment)

	// Second delivery is a no-op end to end.
	require.Equal(t, 1, saga.calls)
	require.Len(t, ledger.statuses, 1)
	require.Equal(t, 1, store.updates)
}

func TestHandleWebhookBadSignature(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	svc := newTestService(t, store, &stubSaga{}, &stubLedger{})

	body := completedBody("evt_1")
	_, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign([]byte("other")))
	require.ErrorIs(t, err, ErrAuthentication)
	require.Equal(t, 0, store.updates)

	_, err = svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, "")
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestHandleWebhookValidation(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	svc := newTestService(t, store, &stubSaga{}, &stubLedger{})

	body := []byte(`not json`)
	_, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.ErrorIs(t, err, ErrValidation)

	body = []byte(`{"id":"evt_1","status":"completed"}`)
	_, err = svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.ErrorIs(t, err, ErrValidation)

	// A body claiming a different provider than the endpoint is rejected.
	body = []byte(`{"id":"evt_1","provider":"paystack","provider_transaction_id":"FLW-123","status":"completed"}`)
	_, err = svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.ErrorIs(t, err, ErrValidation)
}

func TestHandleWebhookPaymentNotFound(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	svc := newTestService(t, store, &stubSaga{}, &stubLedger{})

	body := []byte(`{"id":"evt_1","provider_transaction_id":"FLW-999","status":"completed"}`)
	_, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestHandleWebhookVersionConflictSameEvent(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	saga := &stubSaga{}
	svc := newTestService(t, store, saga, &stubLedger{})

	// A concurrent delivery of the same event commits between this handler's
	// read and write; the retry path must resolve to a duplicate.
	store.onUpdate = func() {
		store.payment.Metadata = RecordProcessed(store.payment.Metadata,
			"flutterwave:evt_1", "charge.completed", svc.now(), nil)
		store.payment.Status = types.PaymentStatusCompleted
		store.payment.Version++
	}

	body := completedBody("evt_1")
	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, 0, saga.calls)
}

func TestHandleWebhookVersionConflictOtherEvent(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	svc := newTestService(t, store, &stubSaga{}, &stubLedger{})

	// The concurrent writer applied a different event; the provider should
	// retry against the fresh row.
	store.onUpdate = func() {
		store.payment.Metadata = RecordProcessed(store.payment.Metadata,
			"flutterwave:evt_other", "charge.completed", svc.now(), nil)
		store.payment.Version++
	}

	body := completedBody("evt_1")
	_, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.ErrorIs(t, err, ErrTransientPersistence)
}

func TestHandleWebhookTerminalConflict(t *testing.T) {
	payment := pendingPayment()
	payment.Status = types.PaymentStatusCompleted
	store := &stubPaymentStore{payment: payment}
	saga := &stubSaga{}
	ledger := &stubLedger{}
	svc := newTestService(t, store, saga, ledger)

	body := []byte(`{"id":"evt_2","provider_transaction_id":"FLW-123","status":"failed"}`)
	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.False(t, res.Applied)
	require.Equal(t, types.PaymentStatusCompleted, res.Payment.Status)

	// The event is recorded (so a redelivery is a duplicate) and the anomaly
	// is noted, but nothing downstream runs.
	require.True(t, AlreadyProcessed(store.payment.Metadata, "flutterwave:evt_2"))
	require.Contains(t, store.payment.Metadata, "status_conflicts")
	require.Equal(t, 0, saga.calls)
	require.Empty(t, ledger.statuses)

	res, err = svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
}

func TestHandleWebhookSagaFailureDoesNotFailRequest(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	saga := &stubSaga{err: fmt.Errorf("boom")}
	ledger := &stubLedger{}
	svc := newTestService(t, store, saga, ledger)

	body := completedBody("evt_1")
	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Nil(t, res.Appointment)
	// The status transition stays committed and the ledger still runs.
	require.Equal(t, types.PaymentStatusCompleted, store.payment.Status)
	require.Len(t, ledger.statuses, 1)
}

func TestHandleWebhookLedgerFailureDoesNotFailRequest(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	svc := newTestService(t, store, &stubSaga{}, &stubLedger{err: fmt.Errorf("db down")})

	body := completedBody("evt_1")
	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.True(t, res.Applied)
}

func TestHandleWebhookFailedEvent(t *testing.T) {
	store := &stubPaymentStore{payment: pendingPayment()}
	saga := &stubSaga{}
	ledger := &stubLedger{}
	svc := newTestService(t, store, saga, ledger)

	body := []byte(`{"id":"evt_1","provider_transaction_id":"FLW-123","status":"failed"}`)
	res, err := svc.HandleWebhook(context.Background(), types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, types.PaymentStatusFailed, res.Payment.Status)

	// No appointment for a failed payment, but the transition is audited.
	require.Equal(t, 0, saga.calls)
	require.Equal(t, []types.PaymentStatus{types.PaymentStatusFailed}, ledger.statuses)
}

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for k, v := range labels {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						found = true
						break
					}
				}
				if !found {
					match = false
					break
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestHandleWebhookOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWebhookMetricsWith(reg)
	store := &stubPaymentStore{payment: pendingPayment()}
	v, err := signature.New(testSecret)
	require.NoError(t, err)
	svc, err := NewService(v, store, &stubSaga{}, &stubLedger{}, zap.NewNop().Sugar(), m)
	require.NoError(t, err)

	ctx := context.Background()
	body := completedBody("evt_1")

	_, err = svc.HandleWebhook(ctx, types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	_, err = svc.HandleWebhook(ctx, types.PaymentProviderFlutterwave, body, sign(body))
	require.NoError(t, err)
	_, err = svc.HandleWebhook(ctx, types.PaymentProviderFlutterwave, body, sign([]byte("tampered")))
	require.ErrorIs(t, err, ErrAuthentication)
	missingRef := []byte(`{"id":"evt_2","status":"completed"}`)
	_, err = svc.HandleWebhook(ctx, types.PaymentProviderFlutterwave, missingRef, sign(missingRef))
	require.ErrorIs(t, err, ErrValidation)
	unknownTx := []byte(`{"id":"evt_3","provider_transaction_id":"FLW-999","status":"completed"}`)
	_, err = svc.HandleWebhook(ctx, types.PaymentProviderFlutterwave, unknownTx, sign(unknownTx))
	require.ErrorIs(t, err, ErrPaymentNotFound)

	provider := map[string]string{"provider": "flutterwave"}
	require.Equal(t, 5.0, gatherCounter(t, reg, "webhook_received_total", provider))

	outcome := func(o string) map[string]string {
		return map[string]string{"provider": "flutterwave", "outcome": o}
	}
	require.Equal(t, 1.0, gatherCounter(t, reg, "webhook_outcome_total", outcome(metrics.WebhookOutcomeApplied)))
	require.Equal(t, 1.0, gatherCounter(t, reg, "webhook_outcome_total", outcome(metrics.WebhookOutcomeDuplicate)))
	// Every failed delivery lands on the error outcome, so received and
	// outcome totals reconcile.
	require.Equal(t, 3.0, gatherCounter(t, reg, "webhook_outcome_total", outcome(metrics.WebhookOutcomeError)))
}

func TestNewServiceRequiresVerifier(t *testing.T) {
	_, err := NewService(nil, &stubPaymentStore{}, &stubSaga{}, &stubLedger{}, zap.NewNop().Sugar(), nil)
	require.ErrorIs(t, err, signature.ErrSecretNotConfigured)
}
