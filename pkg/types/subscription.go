package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusRevoked SubscriptionStatus = "revoked"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonPurchase SubscriptionChangeReason = "purchase"
	SubscriptionChangeReasonRenewal  SubscriptionChangeReason = "renewal"
	SubscriptionChangeReasonRevoke   SubscriptionChangeReason = "revoke"
	SubscriptionChangeReasonGrant    SubscriptionChangeReason = "grant"
)

type AccessDenyReason string

const (
	AccessDenyReasonNoSubscription AccessDenyReason = "no_subscription"
	AccessDenyReasonExpired        AccessDenyReason = "expired"
	AccessDenyReasonRevoked        AccessDenyReason = "revoked"
	// AccessDenyReasonUnavailable means the ledger could not be read in time.
	// Access fails closed; the caller should suggest a retry, not a purchase.
	AccessDenyReasonUnavailable AccessDenyReason = "unavailable"
)

// AccessDecision is the answer to "does this user currently hold access".
// Granted is always computed from status and valid_until, never cached.
type AccessDecision struct {
	Granted    bool             `json:"granted"`
	Reason     AccessDenyReason `json:"reason,omitempty"`
	PlanID     string           `json:"plan_id,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"`
}
