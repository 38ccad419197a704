package types

type PaymentProvider string

const (
	PaymentProviderFlutterwave PaymentProvider = "flutterwave"
	PaymentProviderPaystack    PaymentProvider = "paystack"
	// PaymentProviderInner marks records created by back-office tooling
	// rather than an external rail; excluded from revenue statistics.
	PaymentProviderInner PaymentProvider = "inner"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is expected from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// LedgerTransactionType labels one append-only ledger row.
type LedgerTransactionType string

const (
	LedgerTransactionTypePaymentCompleted LedgerTransactionType = "payment_completed"
	LedgerTransactionTypePaymentFailed    LedgerTransactionType = "payment_failed"
	LedgerTransactionTypePaymentPending   LedgerTransactionType = "payment_pending"
)
