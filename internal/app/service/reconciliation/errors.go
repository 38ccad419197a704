package reconciliation

import "errors"

var (
	// ErrAuthentication means the webhook signature did not verify. No state
	// is touched.
	ErrAuthentication = errors.New("webhook authentication failed")

	// ErrValidation covers malformed payloads and provider mismatches.
	ErrValidation = errors.New("invalid webhook payload")

	// ErrPaymentNotFound means no payment matches the notification's
	// transaction reference; the webhook is likely misrouted or the payment
	// was never initiated.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrTransientPersistence is surfaced to the caller so the provider's
	// retry mechanism re-attempts; retries are safe because of dedupe.
	ErrTransientPersistence = errors.New("transient persistence failure")

	// ErrVersionConflict is returned by the payment store when the
	// optimistic concurrency condition fails.
	ErrVersionConflict = errors.New("payment version conflict")
)
