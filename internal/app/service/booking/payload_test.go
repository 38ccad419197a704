package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestPendingFromMetadata(t *testing.T) {
	p, err := PendingFromMetadata(nil)
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = PendingFromMetadata(datatypes.JSONMap{"unrelated": "x"})
	require.NoError(t, err)
	require.Nil(t, p)

	// jsonb decode shape: nested map with RFC3339 timestamp.
	meta := datatypes.JSONMap{
		"pending_appointment": map[string]any{
			"branch_id":    "branch_1",
			"service_id":   "svc_1",
			"doctor_id":    "doc_1",
			"scheduled_at": "2026-09-01T10:00:00Z",
			"notes":        "first visit",
		},
	}
	p, err = PendingFromMetadata(meta)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "branch_1", p.BranchID)
	require.Equal(t, "svc_1", p.ServiceID)
	require.Equal(t, "doc_1", p.DoctorID)
	require.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), p.ScheduledAt)
	require.Equal(t, "first visit", p.Notes)
}

func TestPendingFromMetadataMalformed(t *testing.T) {
	_, err := PendingFromMetadata(datatypes.JSONMap{
		"pending_appointment": map[string]any{
			"scheduled_at": "2026-09-01T10:00:00Z",
		},
	})
	require.Error(t, err)

	_, err = PendingFromMetadata(datatypes.JSONMap{
		"pending_appointment": map[string]any{
			"branch_id": "branch_1",
		},
	})
	require.Error(t, err)

	_, err = PendingFromMetadata(datatypes.JSONMap{
		"pending_appointment": map[string]any{
			"branch_id":    "branch_1",
			"scheduled_at": "not-a-time",
		},
	})
	require.Error(t, err)
}

func TestOptedOut(t *testing.T) {
	require.False(t, OptedOut(nil))
	require.False(t, OptedOut(datatypes.JSONMap{}))
	require.False(t, OptedOut(datatypes.JSONMap{"auto_create_appointment": true}))
	require.True(t, OptedOut(datatypes.JSONMap{"auto_create_appointment": false}))
	// Non-boolean values do not opt out.
	require.False(t, OptedOut(datatypes.JSONMap{"auto_create_appointment": "false"}))
}
