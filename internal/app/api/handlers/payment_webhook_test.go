package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/carelink/clinicpay/internal/app/service/reconciliation"
	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/internal/platform/signature"
	"github.com/carelink/clinicpay/pkg/types"
)

const webhookTestSecret = "webhook-secret"

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type memPaymentStore struct {
	mu      sync.Mutex
	payment *models.Payment
}

func (s *memPaymentStore) GetByProviderRef(_ context.Context, provider types.PaymentProvider, ref string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payment == nil || s.payment.Provider != provider || s.payment.ProviderTransactionID != ref {
		return nil, reconciliation.ErrPaymentNotFound
	}
	cp := *s.payment
	return &cp, nil
}

func (s *memPaymentStore) UpdateStatusAndMetadata(_ context.Context, payment *models.Payment, status types.PaymentStatus, metadata datatypes.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment.Version != s.payment.Version {
		return reconciliation.ErrVersionConflict
	}
	s.payment.Status = status
	s.payment.Metadata = metadata
	s.payment.Version++
	payment.Status = status
	payment.Metadata = metadata
	payment.Version++
	return nil
}

func (s *memPaymentStore) Scan(_ context.Context, _ *reconciliation.ScanPaymentsRequest) ([]*models.Payment, int64, error) {
	return []*models.Payment{s.payment}, 1, nil
}

type recordingAuditLog struct {
	mu   sync.Mutex
	rows []*models.WebhookNotificationLog
}

func (a *recordingAuditLog) Save(_ context.Context, row *models.WebhookNotificationLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, row)
}

func (a *recordingAuditLog) statuses() []models.WebhookNotificationLogStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.WebhookNotificationLogStatus, 0, len(a.rows))
	for _, r := range a.rows {
		out = append(out, r.Status)
	}
	return out
}

func newWebhookTestRouter(t *testing.T, store reconciliation.PaymentStore, audit *recordingAuditLog) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := signature.New(webhookTestSecret)
	require.NoError(t, err)
	svc, err := reconciliation.NewService(v, store, nil, nil, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)

	r := gin.New()
	RegisterPaymentWebhookRoutes(r.Group("/api/v1/payment/webhook"), svc, audit, zap.NewNop().Sugar())
	return r
}

func postWebhook(r *gin.Engine, path string, body []byte, sig string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) *WebhookAck {
	t.Helper()
	var envelope struct {
		Code int        `json:"code"`
		Data WebhookAck `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 0, envelope.Code)
	return &envelope.Data
}

func TestApiPaymentWebhookAppliesThenDeduplicates(t *testing.T) {
	store := &memPaymentStore{payment: &models.Payment{
		ID:                    "pay_1",
		UserID:                "user_1",
		Provider:              types.PaymentProviderFlutterwave,
		ProviderTransactionID: "FLW-123",
		Amount:                5000,
		Status:                types.PaymentStatusPending,
		Metadata:              datatypes.JSONMap{},
	}}
	audit := &recordingAuditLog{}
	r := newWebhookTestRouter(t, store, audit)

	body := []byte(`{"id":"evt_1","type":"charge.completed","provider_transaction_id":"FLW-123","status":"completed"}`)

	w := postWebhook(r, "/api/v1/payment/webhook/flutterwave", body, signBody(body))
	require.Equal(t, http.StatusOK, w.Code)
	ack := decodeAck(t, w)
	require.Equal(t, "pay_1", ack.PaymentID)
	require.Equal(t, types.PaymentStatusCompleted, ack.Status)
	require.False(t, ack.Duplicate)
	require.True(t, ack.Applied)

	w = postWebhook(r, "/api/v1/payment/webhook/flutterwave", body, signBody(body))
	require.Equal(t, http.StatusOK, w.Code)
	ack = decodeAck(t, w)
	require.True(t, ack.Duplicate)

	// Two deliveries, each audited on receipt and on result.
	require.Equal(t, []models.WebhookNotificationLogStatus{
		models.WebhookNotificationLogStatusReceived,
		models.WebhookNotificationLogStatusHandled,
		models.WebhookNotificationLogStatusReceived,
		models.WebhookNotificationLogStatusDuplicate,
	}, audit.statuses())
}

func TestApiPaymentWebhookBadSignature(t *testing.T) {
	store := &memPaymentStore{payment: &models.Payment{
		Provider:              types.PaymentProviderFlutterwave,
		ProviderTransactionID: "FLW-123",
		Status:                types.PaymentStatusPending,
	}}
	audit := &recordingAuditLog{}
	r := newWebhookTestRouter(t, store, audit)

	body := []byte(`{"id":"evt_1","provider_transaction_id":"FLW-123","status":"completed"}`)

	w := postWebhook(r, "/api/v1/payment/webhook/flutterwave", body, signBody([]byte("tampered")))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, "/api/v1/payment/webhook/flutterwave", body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.Contains(t, audit.statuses(), models.WebhookNotificationLogStatusHandleFailed)
	require.Equal(t, types.PaymentStatusPending, store.payment.Status)
}

func TestApiPaymentWebhookUnknownTransaction(t *testing.T) {
	store := &memPaymentStore{payment: &models.Payment{
		Provider:              types.PaymentProviderFlutterwave,
		ProviderTransactionID: "FLW-123",
		Status:                types.PaymentStatusPending,
	}}
	r := newWebhookTestRouter(t, store, &recordingAuditLog{})

	body := []byte(`{"id":"evt_1","provider_transaction_id":"FLW-999","status":"completed"}`)
	w := postWebhook(r, "/api/v1/payment/webhook/flutterwave", body, signBody(body))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApiPaymentWebhookMalformedBody(t *testing.T) {
	store := &memPaymentStore{payment: &models.Payment{
		Provider:              types.PaymentProviderFlutterwave,
		ProviderTransactionID: "FLW-123",
		Status:                types.PaymentStatusPending,
	}}
	r := newWebhookTestRouter(t, store, &recordingAuditLog{})

	body := []byte(`{"status":"completed"}`)
	w := postWebhook(r, "/api/v1/payment/webhook/flutterwave", body, signBody(body))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
