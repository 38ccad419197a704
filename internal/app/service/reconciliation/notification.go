package reconciliation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Notification is the provider-agnostic shape of a webhook body. Only the
// transaction reference and reported status are required; event id/type are
// optional and feed the idempotency identity.
type Notification struct {
	EventID               string         `json:"id"`
	EventType             string         `json:"type"`
	Provider              string         `json:"provider"`
	ProviderTransactionID string         `json:"provider_transaction_id"`
	TxRef                 string         `json:"tx_ref"`
	Status                string         `json:"status"`
	Data                  map[string]any `json:"data"`
}

func ParseNotification(rawBody []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &n, nil
}

// TransactionRef returns the external transaction reference, accepting the
// tx_ref alias some rails use.
func (n *Notification) TransactionRef() string {
	if n.ProviderTransactionID != "" {
		return n.ProviderTransactionID
	}
	return n.TxRef
}

// ResolvedEventType falls back to a status-derived type when the provider
// omits an explicit one.
func (n *Notification) ResolvedEventType() string {
	if n.EventType != "" {
		return n.EventType
	}
	return "charge." + strings.ToLower(n.Status)
}

// Validate checks the fields reconciliation cannot proceed without.
func (n *Notification) Validate() error {
	if n.TransactionRef() == "" {
		return fmt.Errorf("%w: missing transaction reference", ErrValidation)
	}
	if n.Status == "" {
		return fmt.Errorf("%w: missing status", ErrValidation)
	}
	return nil
}
