package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/carelink/clinicpay/internal/app/service/ledger"
	"github.com/carelink/clinicpay/internal/app/service/reconciliation"
	"github.com/carelink/clinicpay/internal/app/service/statistics"
	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/pkg/response"
	"github.com/carelink/clinicpay/pkg/types"
)

type ListPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// PaymentItem is the admin read view of a payment.
type PaymentItem struct {
	ID                    string                `json:"id"`
	UserID                string                `json:"user_id"`
	Provider              types.PaymentProvider `json:"provider"`
	ProviderTransactionID string                `json:"provider_transaction_id"`
	Amount                int64                 `json:"amount"`
	Currency              string                `json:"currency"`
	PaymentMethod         string                `json:"payment_method"`
	Status                types.PaymentStatus   `json:"status"`
	AppointmentID         *string               `json:"appointment_id"`
	LastWebhookEventID    string                `json:"last_webhook_event_id,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

func toPaymentItem(m *models.Payment) *PaymentItem {
	item := &PaymentItem{
		ID:                    m.ID,
		UserID:                m.UserID,
		Provider:              m.Provider,
		ProviderTransactionID: m.ProviderTransactionID,
		Amount:                m.Amount,
		Currency:              m.Currency,
		PaymentMethod:         m.PaymentMethod,
		Status:                m.Status,
		AppointmentID:         m.AppointmentID,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.Metadata != nil {
		if v, ok := m.Metadata["last_webhook_event_id"].(string); ok {
			item.LastWebhookEventID = v
		}
	}
	return item
}

type ListPaymentsResponse struct {
	Items []*PaymentItem `json:"items"`
	Total int64          `json:"total"`
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of payments.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListPaymentsRequest true "List payments request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payments [post]
func ApiListPayments(svc *reconciliation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		scanReq := &reconciliation.ScanPaymentsRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder}
		rows, total, err := svc.ScanPayments(c.Request.Context(), scanReq)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(rows, func(it *models.Payment, _ int) *PaymentItem { return toPaymentItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: total}))
	}
}

type ListLedgerEntriesRequest struct {
	PaymentID string `json:"payment_id"`
}

// @Summary      List Ledger Entries (Admin)
// @Description  Retrieves the append-only ledger entries for one payment, oldest first.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListLedgerEntriesRequest true "Ledger listing request"
// @Success      200  {object}  handlers.RespListLedgerEntries
// @Router       /api/v1/admin/list_ledger_entries [post]
func ApiListLedgerEntries(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListLedgerEntriesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.PaymentID == "" {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing payment_id"))
			return
		}
		rows, err := svc.ListByPayment(c.Request.Context(), req.PaymentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Get Payment Statistics (Admin)
// @Description  Retrieves daily payment counts and revenue figures.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.PaymentStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespPaymentStatistic
// @Router       /api/v1/admin/get_payment_statistic [post]
func ApiGetPaymentStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.PaymentStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetPaymentStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminPaymentRoutes(r gin.IRouter, recon *reconciliation.Service, led *ledger.Service, stats *statistics.Service) {
	r.POST("/list_payments", ApiListPayments(recon))
	r.POST("/list_ledger_entries", ApiListLedgerEntries(led))
	r.POST("/get_payment_statistic", ApiGetPaymentStatistic(stats))
}
