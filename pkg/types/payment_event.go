package types

import "time"

type PaymentProvider string

const (
	PaymentProviderMercadoPago PaymentProvider = "mercadopago"
	PaymentProviderKirvano     PaymentProvider = "kirvano"
	PaymentProviderPerfectPay  PaymentProvider = "perfectpay"
	// PaymentProviderInner is used for comp grants issued by operators.
	PaymentProviderInner PaymentProvider = "inner"
)

type PaymentEventKind string

const (
	PaymentEventKindApproved  PaymentEventKind = "approved"
	PaymentEventKindCancelled PaymentEventKind = "cancelled"
	PaymentEventKindPaused    PaymentEventKind = "paused"
)

// Terminal reports whether the event kind revokes access.
func (k PaymentEventKind) Terminal() bool {
	return k == PaymentEventKindCancelled || k == PaymentEventKindPaused
}

// PaymentEvent is the canonical form every provider payload is normalized
// into. (Provider, ExternalEventID) is the deduplication key.
type PaymentEvent struct {
	Provider        PaymentProvider  `json:"provider"`
	ExternalEventID string           `json:"external_event_id"`
	UserIdentity    string           `json:"user_identity"`
	Email           string           `json:"email,omitempty"`
	PlanID          string           `json:"plan_id"`
	Kind            PaymentEventKind `json:"kind"`
	OccurredAt      time.Time        `json:"occurred_at"`
}
