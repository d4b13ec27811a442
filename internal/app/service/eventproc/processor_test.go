package eventproc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

type stubApplier struct {
	rec     *models.Subscription
	applied bool
	err     error
	calls   int
	lastEv  *types.PaymentEvent
}

func (s *stubApplier) Upsert(_ context.Context, ev *types.PaymentEvent) (*models.Subscription, bool, error) {
	s.calls++
	s.lastEv = ev
	return s.rec, s.applied, s.err
}

func testConfig() *config.Config {
	return &config.Config{Plans: []*config.Plan{
		{ID: "weekly", ValidityDays: 7, PriceMinor: 990},
	}}
}

func validEvent() *types.PaymentEvent {
	return &types.PaymentEvent{
		Provider:        types.PaymentProviderMercadoPago,
		ExternalEventID: "e1",
		UserIdentity:    "u1",
		PlanID:          "weekly",
		Kind:            types.PaymentEventKindApproved,
		OccurredAt:      time.Now(),
	}
}

func TestProcess_Accepted(t *testing.T) {
	applier := &stubApplier{rec: &models.Subscription{UserIdentity: "u1"}, applied: true}
	p := NewProcessor(testConfig(), applier, zap.NewNop().Sugar())

	res, err := p.Process(context.Background(), validEvent())
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, res.Outcome)
	require.NotNil(t, res.Subscription)
	require.Equal(t, 1, applier.calls)
}

func TestProcess_DuplicateIsNotAnError(t *testing.T) {
	applier := &stubApplier{rec: &models.Subscription{UserIdentity: "u1"}, applied: false}
	p := NewProcessor(testConfig(), applier, zap.NewNop().Sugar())

	res, err := p.Process(context.Background(), validEvent())
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, res.Outcome)
}

func TestProcess_RejectsWithoutTouchingLedger(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ev *types.PaymentEvent)
	}{
		{"missing user identity", func(ev *types.PaymentEvent) { ev.UserIdentity = "" }},
		{"missing external event id", func(ev *types.PaymentEvent) { ev.ExternalEventID = "" }},
		{"zero occurredAt", func(ev *types.PaymentEvent) { ev.OccurredAt = time.Time{} }},
		{"unknown kind", func(ev *types.PaymentEvent) { ev.Kind = "chargeback" }},
		{"unknown plan", func(ev *types.PaymentEvent) { ev.PlanID = "yearly" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &stubApplier{}
			p := NewProcessor(testConfig(), applier, zap.NewNop().Sugar())

			ev := validEvent()
			tt.mutate(ev)
			res, err := p.Process(context.Background(), ev)
			require.NoError(t, err, "data-quality failures are terminal, not errors")
			require.Equal(t, OutcomeRejected, res.Outcome)
			require.NotEmpty(t, res.Reason)
			require.Equal(t, 0, applier.calls, "rejected events must never reach the ledger")
		})
	}
}

func TestProcess_CancelledNeedsNoPlan(t *testing.T) {
	applier := &stubApplier{rec: &models.Subscription{UserIdentity: "u1"}, applied: true}
	p := NewProcessor(testConfig(), applier, zap.NewNop().Sugar())

	ev := validEvent()
	ev.Kind = types.PaymentEventKindCancelled
	ev.PlanID = ""

	res, err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, res.Outcome)
}

func TestProcess_StoreErrorPropagates(t *testing.T) {
	applier := &stubApplier{err: fmt.Errorf("connection refused")}
	p := NewProcessor(testConfig(), applier, zap.NewNop().Sugar())

	_, err := p.Process(context.Background(), validEvent())
	require.Error(t, err, "store trouble must surface so the provider retries")
}
