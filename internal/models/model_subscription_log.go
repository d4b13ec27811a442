package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/pagflow/gatekeeper/pkg/types"
)

// SubscriptionLog records changes to ledger rows.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserIdentity string `gorm:"column:user_identity;type:varchar(64);index:idx_sub_log_user,priority:1;not null"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before stores the row before the change in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores the row after the change in JSON format.
	After datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores additional context such as the triggering event id.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
