package reconciliation

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/carelink/clinicpay/pkg/types"
)

// Metadata keys used for idempotency bookkeeping on the payment row.
const (
	metaKeyProcessedEvents = "processed_webhook_event_ids"
	metaKeyLastEventID     = "last_webhook_event_id"
	metaKeyLastEventType   = "last_webhook_event_type"
	metaKeyLastEventAt     = "last_webhook_event_at"
	metaKeyStatusConflicts = "status_conflicts"
)

// maxProcessedEvents bounds the processed-id list so metadata growth stays
// capped under long retry storms.
const maxProcessedEvents = 200

// EventIdentity derives the idempotency key for one logical notification.
// Providers that assign explicit event ids get "<provider>:<eventId>";
// otherwise the identity is composed so that redeliveries of the same event
// collapse while distinct events stay distinguishable.
func EventIdentity(provider types.PaymentProvider, n *Notification) string {
	if n.EventID != "" {
		return fmt.Sprintf("%s:%s", provider, n.EventID)
	}
	return fmt.Sprintf("%s:%s:%s:%s", provider, n.ResolvedEventType(), n.TransactionRef(), n.Status)
}

// AlreadyProcessed reports whether identity is present in the payment's
// processed-event list. A missing or malformed list is treated as empty.
func AlreadyProcessed(meta datatypes.JSONMap, identity string) bool {
	for _, id := range processedList(meta) {
		if id == identity {
			return true
		}
	}
	return false
}

// RecordProcessed returns a new metadata document with identity appended to
// the processed list (deduplicated, order-preserving, capped), the
// last-event fields refreshed, and extra merged in. Unrelated keys are left
// untouched.
func RecordProcessed(meta datatypes.JSONMap, identity, eventType string, at time.Time, extra map[string]any) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(meta)+len(extra)+4)
	for k, v := range meta {
		out[k] = v
	}

	ids := processedList(meta)
	seen := make(map[string]struct{}, len(ids)+1)
	deduped := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	if _, ok := seen[identity]; !ok {
		deduped = append(deduped, identity)
	}
	if len(deduped) > maxProcessedEvents {
		deduped = deduped[len(deduped)-maxProcessedEvents:]
	}

	out[metaKeyProcessedEvents] = deduped
	out[metaKeyLastEventID] = identity
	out[metaKeyLastEventType] = eventType
	out[metaKeyLastEventAt] = at.UTC().Format(time.RFC3339)

	for k, v := range extra {
		out[k] = v
	}
	return out
}

// recordStatusConflict appends an anomaly note when a terminal payment
// receives a contradictory terminal event.
func recordStatusConflict(meta datatypes.JSONMap, identity string, current, reported types.PaymentStatus, at time.Time) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	var conflicts []any
	if existing, ok := out[metaKeyStatusConflicts].([]any); ok {
		conflicts = existing
	}
	conflicts = append(conflicts, map[string]any{
		"event_id":        identity,
		"current_status":  string(current),
		"reported_status": string(reported),
		"at":              at.UTC().Format(time.RFC3339),
	})
	out[metaKeyStatusConflicts] = conflicts
	return out
}

// processedList tolerates the two shapes jsonb round-trips produce ([]any
// after decode, []string when set in-process) and ignores anything else.
func processedList(meta datatypes.JSONMap) []string {
	if meta == nil {
		return nil
	}
	switch raw := meta[metaKeyProcessedEvents].(type) {
	case []any:
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return raw
	default:
		return nil
	}
}
