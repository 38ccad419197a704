package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Metadata keys written at payment-initiation time.
const (
	metaKeyPendingAppointment = "pending_appointment"
	metaKeyAutoCreate         = "auto_create_appointment"
)

// PendingAppointment is the deferred booking payload embedded in payment
// metadata at initiation time.
type PendingAppointment struct {
	BranchID    string    `json:"branch_id"`
	ServiceID   string    `json:"service_id"`
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes"`
}

// PendingFromMetadata decodes the embedded payload. Returns (nil, nil) when
// no payload is present, an error when one is present but malformed.
func PendingFromMetadata(meta datatypes.JSONMap) (*PendingAppointment, error) {
	if meta == nil {
		return nil, nil
	}
	raw, ok := meta[metaKeyPendingAppointment]
	if !ok || raw == nil {
		return nil, nil
	}
	// jsonb round-trips the payload as map[string]any; re-marshal to decode
	// into the typed struct.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var p PendingAppointment
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if p.BranchID == "" {
		return nil, fmt.Errorf("missing branch_id")
	}
	if p.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("missing scheduled_at")
	}
	return &p, nil
}

// OptedOut reports whether the payload explicitly disabled auto-creation.
func OptedOut(meta datatypes.JSONMap) bool {
	if meta == nil {
		return false
	}
	if v, ok := meta[metaKeyAutoCreate].(bool); ok {
		return !v
	}
	return false
}
