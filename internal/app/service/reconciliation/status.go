package reconciliation

import (
	"strings"

	"github.com/carelink/clinicpay/pkg/types"
)

// statusFromProvider maps a provider-reported status onto the payment state
// machine. Only the two terminal outcomes are authoritative; everything else
// (including the provider's own pending/processing vocabulary) maps to
// pending.
func statusFromProvider(reported string) types.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(reported)) {
	case "completed", "successful", "success":
		return types.PaymentStatusCompleted
	case "failed", "error":
		return types.PaymentStatusFailed
	default:
		return types.PaymentStatusPending
	}
}

// nextStatus applies the terminal-state lock: once a payment is terminal it
// never moves to a different status. The second return reports whether the
// reported status conflicts with an already-reached terminal outcome.
func nextStatus(current, reported types.PaymentStatus) (types.PaymentStatus, bool) {
	if !current.IsTerminal() {
		return reported, false
	}
	if reported.IsTerminal() && reported != current {
		return current, true
	}
	return current, false
}
