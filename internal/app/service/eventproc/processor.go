package eventproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/logctx"
	"github.com/pagflow/gatekeeper/pkg/types"
)

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	// OutcomeIgnored is used for notifications that carry no subscription
	// state change. Acknowledged and dropped without reaching the validator.
	OutcomeIgnored Outcome = "ignored"
)

// RecordOutcome increments the shared outcome counter. Exposed so the
// webhook receiver can meter payloads that never become canonical events.
func RecordOutcome(provider types.PaymentProvider, outcome Outcome) {
	eventOutcomes.WithLabelValues(string(provider), string(outcome)).Inc()
}

// Result is the terminal answer for one event. Rejected results carry the
// reason; they are reported here and metered, never raised as errors.
type Result struct {
	Outcome      Outcome              `json:"outcome"`
	Reason       string               `json:"reason,omitempty"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Applier is the ledger's write path as seen by the processor.
type Applier interface {
	Upsert(ctx context.Context, ev *types.PaymentEvent) (*models.Subscription, bool, error)
}

var eventOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payment_events_total",
	Help: "Processed payment events partitioned by provider and outcome.",
}, []string{"provider", "outcome"})

// Processor validates canonical events and hands them to the ledger. Replays
// come back as Duplicate, data-quality failures as Rejected; only store
// trouble surfaces as an error so the webhook caller can ask the provider to
// retry.
type Processor struct {
	cfg     *config.Config
	applier Applier
	log     *zap.SugaredLogger
}

func NewProcessor(cfg *config.Config, applier Applier, log *zap.SugaredLogger) *Processor {
	return &Processor{cfg: cfg, applier: applier, log: log}
}

func (p *Processor) Process(ctx context.Context, ev *types.PaymentEvent) (*Result, error) {
	if reason := p.validate(ev); reason != "" {
		p.reject(ctx, ev, reason)
		return &Result{Outcome: OutcomeRejected, Reason: reason}, nil
	}

	rec, applied, err := p.applier.Upsert(ctx, ev)
	if err != nil {
		if errors.Is(err, config.ErrPlanNotFound) {
			p.reject(ctx, ev, err.Error())
			return &Result{Outcome: OutcomeRejected, Reason: err.Error()}, nil
		}
		return nil, fmt.Errorf("failed to apply event: %w", err)
	}

	if !applied {
		eventOutcomes.WithLabelValues(string(ev.Provider), string(OutcomeDuplicate)).Inc()
		logctx.FromCtx(ctx, p.log).Infow("duplicate payment event",
			"provider", ev.Provider, "external_event_id", ev.ExternalEventID)
		return &Result{Outcome: OutcomeDuplicate, Subscription: rec}, nil
	}

	eventOutcomes.WithLabelValues(string(ev.Provider), string(OutcomeAccepted)).Inc()
	logctx.FromCtx(ctx, p.log).Infow("payment event applied",
		"provider", ev.Provider,
		"external_event_id", ev.ExternalEventID,
		"user_identity", ev.UserIdentity,
		"kind", ev.Kind)
	return &Result{Outcome: OutcomeAccepted, Subscription: rec}, nil
}

func (p *Processor) validate(ev *types.PaymentEvent) string {
	switch {
	case ev == nil:
		return "nil event"
	case ev.UserIdentity == "":
		return "missing user identity"
	case ev.ExternalEventID == "":
		return "missing external event id"
	case ev.OccurredAt.IsZero():
		return "missing occurredAt"
	}
	switch ev.Kind {
	case types.PaymentEventKindApproved, types.PaymentEventKindCancelled, types.PaymentEventKindPaused:
	default:
		return fmt.Sprintf("unknown event kind: %s", ev.Kind)
	}
	if ev.Kind == types.PaymentEventKindApproved {
		if _, err := p.cfg.PlanByID(ev.PlanID); err != nil {
			return err.Error()
		}
	}
	return ""
}

func (p *Processor) reject(ctx context.Context, ev *types.PaymentEvent, reason string) {
	provider := ""
	if ev != nil {
		provider = string(ev.Provider)
	}
	eventOutcomes.WithLabelValues(provider, string(OutcomeRejected)).Inc()
	logctx.FromCtx(ctx, p.log).Warnw("payment event rejected", "provider", provider, "reason", reason)
}
