package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// Mercado Pago posts `{id, type, action, date_created, data:{...}}`
// notifications. The payment detail travels inline in data; the plan is
// matched by the payment description string and the user by the
// telegram_user_id metadata attached at charge creation (payer email as
// fallback).
type MercadoPago struct {
	cfg *config.Config
}

func NewMercadoPago(cfg *config.Config) *MercadoPago { return &MercadoPago{cfg: cfg} }

func (m *MercadoPago) Provider() types.PaymentProvider { return types.PaymentProviderMercadoPago }

// Status vocabulary is static data, not inferred.
var mercadoPagoStatusKinds = map[string]types.PaymentEventKind{
	"approved":   types.PaymentEventKindApproved,
	"authorized": types.PaymentEventKindApproved,
	"cancelled":  types.PaymentEventKindCancelled,
}

type mercadoPagoNotification struct {
	ID          json.Number `json:"id"`
	Type        string      `json:"type"`
	Action      string      `json:"action"`
	DateCreated string      `json:"date_created"`
	Data        struct {
		ID           json.Number `json:"id"`
		Status       string      `json:"status"`
		Description  string      `json:"description"`
		DateApproved string      `json:"date_approved"`
		Payer        struct {
			Email string `json:"email"`
		} `json:"payer"`
		Metadata struct {
			TelegramUserID json.Number `json:"telegram_user_id"`
		} `json:"metadata"`
	} `json:"data"`
}

func (m *MercadoPago) Normalize(payload []byte, receivedAt time.Time) (*types.PaymentEvent, error) {
	var n mercadoPagoNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.Type != "payment" && n.Type != "subscription_preapproval" {
		return nil, fmt.Errorf("%w: type=%q", ErrIgnoredEvent, n.Type)
	}
	if n.Data.ID.String() == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrMalformedPayload)
	}

	kind, ok := mercadoPagoStatusKinds[n.Data.Status]
	if !ok {
		return nil, fmt.Errorf("%w: status=%q", ErrIgnoredEvent, n.Data.Status)
	}

	identity := n.Data.Metadata.TelegramUserID.String()
	if identity == "" {
		identity = n.Data.Payer.Email
	}
	if identity == "" {
		return nil, ErrMissingUserIdentity
	}

	// Cancellation payloads may carry no description; only approvals need a
	// catalog match, terminal events pass through with whatever key came in.
	planID := n.Data.Description
	if plan, err := m.cfg.PlanByProviderKey(m.Provider(), n.Data.Description); err == nil {
		planID = plan.ID
	} else if kind == types.PaymentEventKindApproved {
		return nil, err
	}

	occurredAt := receivedAt
	for _, raw := range []string{n.Data.DateApproved, n.DateCreated} {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			occurredAt = ts
			break
		}
	}

	return &types.PaymentEvent{
		Provider:        m.Provider(),
		ExternalEventID: n.Data.ID.String(),
		UserIdentity:    identity,
		Email:           n.Data.Payer.Email,
		PlanID:          planID,
		Kind:            kind,
		OccurredAt:      occurredAt,
	}, nil
}
