package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// Kirvano wraps everything in an `{event, data:{...}}` envelope. The plan is
// matched by the external offer id and the user by the buyer reference the
// checkout page collects (buyer email as fallback).
type Kirvano struct {
	cfg *config.Config
}

func NewKirvano(cfg *config.Config) *Kirvano { return &Kirvano{cfg: cfg} }

func (k *Kirvano) Provider() types.PaymentProvider { return types.PaymentProviderKirvano }

var kirvanoEventKinds = map[string]types.PaymentEventKind{
	"purchase.approved":     types.PaymentEventKindApproved,
	"purchase.paid":         types.PaymentEventKindApproved,
	"subscription.renewed":  types.PaymentEventKindApproved,
	"subscription.canceled": types.PaymentEventKindCancelled,
	"subscription.paused":   types.PaymentEventKindPaused,
}

type kirvanoNotification struct {
	Event string `json:"event"`
	Data  struct {
		SaleID    string `json:"sale_id"`
		OfferID   string `json:"offer_id"`
		CreatedAt string `json:"created_at"`
		Customer  struct {
			Reference string `json:"reference"`
			Email     string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

func (k *Kirvano) Normalize(payload []byte, receivedAt time.Time) (*types.PaymentEvent, error) {
	var n kirvanoNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}
	kind, ok := kirvanoEventKinds[n.Event]
	if !ok {
		return nil, fmt.Errorf("%w: event=%q", ErrIgnoredEvent, n.Event)
	}
	if n.Data.SaleID == "" {
		return nil, fmt.Errorf("%w: missing data.sale_id", ErrMalformedPayload)
	}

	identity := n.Data.Customer.Reference
	if identity == "" {
		identity = n.Data.Customer.Email
	}
	if identity == "" {
		return nil, ErrMissingUserIdentity
	}

	// Cancellation payloads often omit the offer id; only approvals need a
	// catalog match, terminal events pass through with whatever key came in.
	planID := n.Data.OfferID
	if plan, err := k.cfg.PlanByProviderKey(k.Provider(), n.Data.OfferID); err == nil {
		planID = plan.ID
	} else if kind == types.PaymentEventKindApproved {
		return nil, err
	}

	occurredAt := receivedAt
	if ts, err := time.Parse(time.RFC3339, n.Data.CreatedAt); err == nil {
		occurredAt = ts
	}

	return &types.PaymentEvent{
		Provider:        k.Provider(),
		ExternalEventID: n.Data.SaleID,
		UserIdentity:    identity,
		Email:           n.Data.Customer.Email,
		PlanID:          planID,
		Kind:            kind,
		OccurredAt:      occurredAt,
	}, nil
}
