package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookNotificationLogStatus string

const (
	WebhookNotificationLogStatusReceived     WebhookNotificationLogStatus = "received"
	WebhookNotificationLogStatusHandled      WebhookNotificationLogStatus = "handled"
	WebhookNotificationLogStatusDuplicate    WebhookNotificationLogStatus = "duplicate"
	WebhookNotificationLogStatusHandleFailed WebhookNotificationLogStatus = "handle_failed"
)

// WebhookNotificationLog keeps the raw provider payload and the handling
// result for every delivery, trace-id correlated for support lookups.
type WebhookNotificationLog struct {
	ID                    string                       `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider              string                       `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	TraceID               string                       `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ProviderTransactionID string                       `gorm:"column:provider_transaction_id;type:varchar(128)" json:"provider_transaction_id"`
	EventID               string                       `gorm:"column:event_id;type:varchar(128)" json:"event_id"`
	ReceivedAt            time.Time                    `gorm:"column:received_at" json:"received_at"`
	Data                  datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data"`
	Result                *datatypes.JSON              `gorm:"column:result;type:jsonb" json:"result"`
	Status                WebhookNotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt             time.Time                    `json:"created_at"`
	UpdatedAt             time.Time                    `json:"updated_at"`
}

func (WebhookNotificationLog) TableName() string { return "webhook_notification_log" }
