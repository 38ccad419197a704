package handlers

import (
	"github.com/carelink/clinicpay/internal/app/service/statistics"
	"github.com/carelink/clinicpay/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespWebhookAck wraps WebhookAck in the standard envelope.
type RespWebhookAck struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    WebhookAck               `json:"data"`
}

// RespListPayments wraps ListPaymentsResponse in the standard envelope.
type RespListPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListPaymentsResponse     `json:"data"`
}

// RespListLedgerEntries wraps the ledger listing in the standard envelope.
type RespListLedgerEntries struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []interface{}            `json:"data"`
}

// RespPaymentStatistic wraps PaymentStatisticResponse in the standard envelope.
type RespPaymentStatistic struct {
	Code    response.APIResponseCode             `json:"code"`
	Message string                               `json:"message"`
	Data    statistics.PaymentStatisticResponse `json:"data"`
}
