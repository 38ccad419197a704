package models

import (
	"time"

	"github.com/carelink/clinicpay/pkg/types"
)

// PaymentLedgerEntry is an append-only audit row. Entries are never updated
// or deleted once written; reporting reads this table directly.
type PaymentLedgerEntry struct {
	ID              string                      `gorm:"column:id;primary_key;type:uuid" json:"id"`
	PaymentID       string                      `gorm:"column:payment_id;type:uuid;not null;index:idx_ledger_payment_id_id,priority:1" json:"payment_id"`
	TransactionType types.LedgerTransactionType `gorm:"column:transaction_type;type:varchar(64);not null" json:"transaction_type"`
	Amount          int64                       `gorm:"column:amount;type:bigint;not null" json:"amount"`
	// BalanceAfter is the running per-payment balance after this entry.
	BalanceAfter int64     `gorm:"column:balance_after;type:bigint;not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_ledger_payment_id_id,priority:2,sort:desc" json:"created_at"`
}

func (PaymentLedgerEntry) TableName() string {
	return "payment_ledger_entry"
}
