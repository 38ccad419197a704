package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/carelink/clinicpay/pkg/types"
)

// Payment represents one attempted financial transaction. It is created at
// payment initiation and mutated only by webhook reconciliation; rows are
// never deleted here.
type Payment struct {
	ID     string `gorm:"column:id;primary_key;type:uuid;index:idx_payment_user_id_id,priority:2,sort:desc" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user_id_id,priority:1" json:"user_id"`

	Provider types.PaymentProvider `gorm:"column:provider;type:varchar(64);not null;uniqueIndex:unique_provider_provider_transaction_id,priority:1" json:"provider"`
	// ProviderTransactionID is the external reference assigned by the rail,
	// unique per provider.
	ProviderTransactionID string `gorm:"column:provider_transaction_id;type:varchar(128);not null;uniqueIndex:unique_provider_provider_transaction_id,priority:2" json:"provider_transaction_id"`

	// Amount is in the smallest currency unit.
	Amount        int64               `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	PaymentMethod string              `gorm:"column:payment_method;type:varchar(64)" json:"payment_method"`
	Status        types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;default:'pending'" json:"status"`

	// AppointmentID is set at most once, by the auto-creation saga.
	AppointmentID *string `gorm:"column:appointment_id;type:uuid" json:"appointment_id"`

	// Metadata carries deferred booking instructions supplied at initiation
	// time plus idempotency bookkeeping (processed webhook event ids,
	// last-event fields).
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`

	// Version is the optimistic concurrency token guarding the
	// dedupe-check-then-persist sequence.
	Version int64 `gorm:"column:version;type:bigint;not null;default:0" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

func (p *Payment) IsTerminal() bool {
	if p == nil {
		return false
	}
	return p.Status.IsTerminal()
}
