package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// PerfectPay posts a flat `{email, plano, userId, status, transactionId,
// date}` body. The plan is matched by product name; when userId is absent
// the email is the strongest available correlator and becomes the identity.
type PerfectPay struct {
	cfg *config.Config
}

func NewPerfectPay(cfg *config.Config) *PerfectPay { return &PerfectPay{cfg: cfg} }

func (p *PerfectPay) Provider() types.PaymentProvider { return types.PaymentProviderPerfectPay }

var perfectPayStatusKinds = map[string]types.PaymentEventKind{
	"approved":  types.PaymentEventKindApproved,
	"paid":      types.PaymentEventKindApproved,
	"cancelled": types.PaymentEventKindCancelled,
	"canceled":  types.PaymentEventKindCancelled,
	"paused":    types.PaymentEventKindPaused,
}

type perfectPayNotification struct {
	Email         string `json:"email"`
	Plano         string `json:"plano"`
	UserID        string `json:"userId"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	Date          string `json:"date"`
}

func (p *PerfectPay) Normalize(payload []byte, receivedAt time.Time) (*types.PaymentEvent, error) {
	var n perfectPayNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transactionId", ErrMalformedPayload)
	}

	kind, ok := perfectPayStatusKinds[n.Status]
	if !ok {
		return nil, fmt.Errorf("%w: status=%q", ErrIgnoredEvent, n.Status)
	}

	identity := n.UserID
	if identity == "" {
		identity = n.Email
	}
	if identity == "" {
		return nil, ErrMissingUserIdentity
	}

	// Cancellation payloads may omit the product name; only approvals need a
	// catalog match, terminal events pass through with whatever key came in.
	planID := n.Plano
	if plan, err := p.cfg.PlanByProviderKey(p.Provider(), n.Plano); err == nil {
		planID = plan.ID
	} else if kind == types.PaymentEventKindApproved {
		return nil, err
	}

	occurredAt := receivedAt
	if ts, err := time.Parse(time.RFC3339, n.Date); err == nil {
		occurredAt = ts
	}

	return &types.PaymentEvent{
		Provider:        p.Provider(),
		ExternalEventID: n.TransactionID,
		UserIdentity:    identity,
		Email:           n.Email,
		PlanID:          planID,
		Kind:            kind,
		OccurredAt:      occurredAt,
	}, nil
}
