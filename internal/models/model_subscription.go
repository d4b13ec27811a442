package models

import (
	"time"

	"github.com/pagflow/gatekeeper/pkg/types"
)

// Subscription is the ledger row: one per user identity.
// Rows are never deleted; cancellation marks the row revoked so the audit
// history survives. Use ValidAt() to decide access, never a cached flag.
type Subscription struct {
	ID           string  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserIdentity string  `gorm:"column:user_identity;type:varchar(64);not null;uniqueIndex" json:"user_identity"`
	Email        *string `gorm:"column:email;type:varchar(255)" json:"email"`
	PlanID       string  `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	// ProviderRef is the last external event id applied, kept for support
	// lookups against the gateway's dashboard.
	ProviderRef *string                  `gorm:"column:provider_ref;type:varchar(128)" json:"provider_ref"`
	Status      types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ActivatedAt time.Time                `gorm:"column:activated_at;not null" json:"activated_at"`
	ValidUntil  *time.Time               `gorm:"column:valid_until;default:null" json:"valid_until"`
	// LastEventAt is the occurredAt of the newest event applied to this row.
	LastEventAt time.Time `gorm:"column:last_event_at;not null" json:"last_event_at"`
	// LastRevokedAt is the occurredAt of the newest terminal event applied.
	// Cancellations are last-write-wins on this column.
	LastRevokedAt *time.Time `gorm:"column:last_revoked_at;default:null" json:"last_revoked_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// ValidAt reports whether the row grants access at the given instant.
func (s *Subscription) ValidAt(at time.Time) bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.ValidUntil != nil &&
		s.ValidUntil.After(at)
}

// Decision converts the row into an access decision at the given instant.
func (s *Subscription) Decision(at time.Time) *types.AccessDecision {
	if s == nil {
		return &types.AccessDecision{Granted: false, Reason: types.AccessDenyReasonNoSubscription}
	}
	if s.ValidAt(at) {
		return &types.AccessDecision{Granted: true, PlanID: s.PlanID, ValidUntil: s.ValidUntil}
	}
	reason := types.AccessDenyReasonExpired
	if s.Status == types.SubscriptionStatusRevoked {
		reason = types.AccessDenyReasonRevoked
	}
	return &types.AccessDecision{Granted: false, Reason: reason, PlanID: s.PlanID, ValidUntil: s.ValidUntil}
}
