package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/carelink/clinicpay/internal/app/service/reconciliation"
	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/pkg/logctx"
	"github.com/carelink/clinicpay/pkg/response"
	"github.com/carelink/clinicpay/pkg/types"
)

// SignatureHeader carries the provider's body signature, verified in
// addition to the bearer credential.
const SignatureHeader = "X-Webhook-Signature"

// WebhookAuditLog records raw deliveries and their handling results.
// Satisfied by notification_log.Service.
type WebhookAuditLog interface {
	Save(ctx context.Context, log *models.WebhookNotificationLog)
}

type WebhookAck struct {
	PaymentID     string              `json:"payment_id"`
	Status        types.PaymentStatus `json:"status"`
	Duplicate     bool                `json:"duplicate"`
	Applied       bool                `json:"applied"`
	AppointmentID *string             `json:"appointment_id,omitempty"`
}

// @Summary      Payment Webhook
// @Description  Handles asynchronous payment outcome notifications from the configured provider. The body must be signed with the shared webhook secret.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body reconciliation.Notification true "Provider notification"
// @Success      200  {object}  handlers.RespWebhookAck
// @Failure      400  {object}  handlers.RespOK
// @Failure      401  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/payment/webhook/{provider} [post]
// ApiPaymentWebhook reconciles one provider notification.
func ApiPaymentWebhook(svc *reconciliation.Service, notifSvc WebhookAuditLog, log *zap.SugaredLogger, provider types.PaymentProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logctx.FromGin(c, log).Infow("webhook_received", "provider", provider)

		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "failed to read body"))
			return
		}

		var traceID string
		if v, ok := c.Get("traceID"); ok {
			traceID, _ = v.(string)
		}

		// Best-effort peek at identifying fields for the audit row; the
		// body may not even be JSON at this point.
		var eventID, txRef string
		if n, perr := reconciliation.ParseNotification(rawBody); perr == nil {
			eventID = n.EventID
			txRef = n.TransactionRef()
		}

		notifSvc.Save(ctx, &models.WebhookNotificationLog{
			Provider:              string(provider),
			TraceID:               traceID,
			ProviderTransactionID: txRef,
			EventID:               eventID,
			ReceivedAt:            time.Now(),
			Data:                  datatypes.JSON(rawBody),
			Status:                models.WebhookNotificationLogStatusReceived,
		})

		res, err := svc.HandleWebhook(ctx, provider, rawBody, c.GetHeader(SignatureHeader))

		// Result audit row mirrors the outcome.
		resMap := map[string]any{}
		status := models.WebhookNotificationLogStatusHandled
		if err != nil {
			status = models.WebhookNotificationLogStatusHandleFailed
			resMap["error"] = err.Error()
		} else {
			resMap["payment_id"] = res.Payment.ID
			resMap["status"] = res.Payment.Status
			resMap["duplicate"] = res.Duplicate
			resMap["applied"] = res.Applied
			if res.Duplicate {
				status = models.WebhookNotificationLogStatusDuplicate
			}
		}
		resBytes, _ := json.Marshal(resMap)
		notifSvc.Save(ctx, &models.WebhookNotificationLog{
			Provider:              string(provider),
			TraceID:               traceID,
			ProviderTransactionID: txRef,
			EventID:               eventID,
			ReceivedAt:            time.Now(),
			Data:                  datatypes.JSON(rawBody),
			Result:                func() *datatypes.JSON { j := datatypes.JSON(resBytes); return &j }(),
			Status:                status,
		})

		if err != nil {
			logctx.FromGin(c, log).Errorw("webhook_handle_error", "provider", provider, "error", err.Error())
			switch {
			case errors.Is(err, reconciliation.ErrAuthentication):
				c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, err.Error()))
			case errors.Is(err, reconciliation.ErrValidation):
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			case errors.Is(err, reconciliation.ErrPaymentNotFound):
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			default:
				c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			}
			return
		}

		ack := &WebhookAck{
			PaymentID: res.Payment.ID,
			Status:    res.Payment.Status,
			Duplicate: res.Duplicate,
			Applied:   res.Applied,
		}
		if res.Appointment != nil {
			ack.AppointmentID = &res.Appointment.ID
		}
		logctx.FromGin(c, log).Infow("webhook_handled",
			"provider", provider, "payment_id", ack.PaymentID,
			"duplicate", ack.Duplicate, "applied", ack.Applied)
		c.JSON(http.StatusOK, response.OKT(ack))
	}
}

func RegisterPaymentWebhookRoutes(r gin.IRouter, svc *reconciliation.Service, notifSvc WebhookAuditLog, log *zap.SugaredLogger) {
	// Mount under provided group, expected at "/api/v1/payment/webhook"
	r.POST("/flutterwave", ApiPaymentWebhook(svc, notifSvc, log, types.PaymentProviderFlutterwave))
	r.POST("/paystack", ApiPaymentWebhook(svc, notifSvc, log, types.PaymentProviderPaystack))
}
