package normalizer

import (
	"errors"
	"time"

	"go.uber.org/fx"

	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

var (
	// ErrMalformedPayload marks payloads that cannot be decoded or that are
	// missing required provider fields.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMissingUserIdentity marks events that cannot be correlated to any
	// user. They are rejected, never silently dropped.
	ErrMissingUserIdentity = errors.New("missing user identity")
	// ErrIgnoredEvent marks notifications that carry no subscription state
	// change (pending charges, test pings). Not a failure.
	ErrIgnoredEvent = errors.New("event carries no state change")
)

// Normalizer turns one provider's raw webhook payload into a canonical
// PaymentEvent. Implementations are pure: no ledger, no network.
// receivedAt is used as occurredAt only when the payload carries no usable
// timestamp of its own.
type Normalizer interface {
	Provider() types.PaymentProvider
	Normalize(payload []byte, receivedAt time.Time) (*types.PaymentEvent, error)
}

// Registry holds one adapter per provider, selected by the explicit provider
// tag in the webhook route. No shape sniffing.
type Registry struct {
	byProvider map[types.PaymentProvider]Normalizer
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{byProvider: map[types.PaymentProvider]Normalizer{}}
	for _, n := range []Normalizer{
		NewMercadoPago(cfg),
		NewKirvano(cfg),
		NewPerfectPay(cfg),
	} {
		r.byProvider[n.Provider()] = n
	}
	return r
}

// For returns the adapter registered for the provider tag.
func (r *Registry) For(provider types.PaymentProvider) (Normalizer, bool) {
	n, ok := r.byProvider[provider]
	return n, ok
}

var Module = fx.Options(
	fx.Provide(NewRegistry),
)
