package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookLogStatus string

const (
	WebhookLogStatusReceived     WebhookLogStatus = "received"
	WebhookLogStatusHandled      WebhookLogStatus = "handled"
	WebhookLogStatusRejected     WebhookLogStatus = "rejected"
	WebhookLogStatusHandleFailed WebhookLogStatus = "handle_failed"
)

// WebhookLog keeps every raw inbound notification together with the outcome
// of processing it. Rejected payloads land here too; that is the operational
// trail the validator's "reported, never applied" rule requires.
type WebhookLog struct {
	ID              string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider        string           `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	UserIdentity    *string          `gorm:"column:user_identity;type:varchar(64)" json:"user_identity"`
	TraceID         string           `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ExternalEventID string           `gorm:"column:external_event_id;type:varchar(128)" json:"external_event_id"`
	ReceivedAt      time.Time        `gorm:"column:received_at" json:"received_at"`
	Data            datatypes.JSON   `gorm:"column:data;type:jsonb" json:"data"`
	Result          *datatypes.JSON  `gorm:"column:result;type:jsonb" json:"result"`
	Status          WebhookLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (WebhookLog) TableName() string { return "webhook_log" }
