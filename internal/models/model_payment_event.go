package models

import (
	"time"

	"github.com/pagflow/gatekeeper/pkg/types"
)

// PaymentEvent is an applied canonical event. The unique (provider,
// external_event_id) pair is the idempotency key: inserting an already-seen
// pair fails the constraint, which is how replays are detected inside the
// same transaction that mutates the ledger row.
type PaymentEvent struct {
	ID              string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider        types.PaymentProvider  `gorm:"column:provider;type:varchar(64);not null;uniqueIndex:unique_provider_event_id,priority:1" json:"provider"`
	ExternalEventID string                 `gorm:"column:external_event_id;type:varchar(128);not null;uniqueIndex:unique_provider_event_id,priority:2" json:"external_event_id"`
	UserIdentity    string                 `gorm:"column:user_identity;type:varchar(64);not null;index" json:"user_identity"`
	PlanID          string                 `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Kind            types.PaymentEventKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	OccurredAt      time.Time              `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt       time.Time              `json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_event"
}
