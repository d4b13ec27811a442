package webhooks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/eventproc"
	"github.com/pagflow/gatekeeper/internal/app/service/normalizer"
	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

type stubApplier struct {
	rec     *models.Subscription
	applied bool
	err     error
	calls   int
}

func (s *stubApplier) Upsert(_ context.Context, _ *types.PaymentEvent) (*models.Subscription, bool, error) {
	s.calls++
	return s.rec, s.applied, s.err
}

type stubAudit struct {
	mu      sync.Mutex
	entries []*models.WebhookLog
}

func (s *stubAudit) Save(_ context.Context, entry *models.WebhookLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *stubAudit) statuses() []models.WebhookLogStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WebhookLogStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Status)
	}
	return out
}

type stubNotifier struct {
	sent chan string
}

func (s *stubNotifier) SendText(_ context.Context, userIdentity, text string) error {
	s.sent <- userIdentity + ": " + text
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Plans: []*config.Plan{
		{
			ID:           "weekly",
			ValidityDays: 7,
			PriceMinor:   990,
			ProviderKeys: map[string]string{"kirvano": "offer-weekly"},
		},
	}}
}

func newTestReceiver(cfg *config.Config, applier eventproc.Applier, audit AuditLog, notifier Notifier) *Receiver {
	log := zap.NewNop().Sugar()
	processor := eventproc.NewProcessor(cfg, applier, log)
	return NewReceiver(normalizer.NewRegistry(cfg), processor, audit, notifier, log)
}

func approvedPayload(saleID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "purchase.approved",
		"data": {
			"sale_id": %q,
			"offer_id": "offer-weekly",
			"created_at": "2026-03-01T10:00:00Z",
			"customer": {"reference": "777", "email": "a@b.com"}
		}
	}`, saleID))
}

func TestReceive_AcceptedWritesTrailAndNotifies(t *testing.T) {
	validUntil := time.Now().Add(7 * 24 * time.Hour)
	applier := &stubApplier{
		rec:     &models.Subscription{UserIdentity: "777", ValidUntil: &validUntil},
		applied: true,
	}
	audit := &stubAudit{}
	notifier := &stubNotifier{sent: make(chan string, 1)}
	r := newTestReceiver(testConfig(), applier, audit, notifier)

	res, err := r.Receive(context.Background(), types.PaymentProviderKirvano, approvedPayload("s1"))
	require.NoError(t, err)
	require.Equal(t, eventproc.OutcomeAccepted, res.Outcome)
	require.Equal(t, 1, applier.calls)
	require.Equal(t, []models.WebhookLogStatus{
		models.WebhookLogStatusReceived,
		models.WebhookLogStatusHandled,
	}, audit.statuses())

	select {
	case msg := <-notifier.sent:
		require.Contains(t, msg, "777: ")
	case <-time.After(time.Second):
		t.Fatal("expected an activation notice")
	}
}

func TestReceive_UnknownProvider(t *testing.T) {
	r := newTestReceiver(testConfig(), &stubApplier{}, &stubAudit{}, nil)

	_, err := r.Receive(context.Background(), types.PaymentProvider("stripe"), []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestReceive_IgnoredEventIsAcknowledged(t *testing.T) {
	applier := &stubApplier{}
	audit := &stubAudit{}
	r := newTestReceiver(testConfig(), applier, audit, nil)

	payload := []byte(`{"event": "purchase.refund_requested", "data": {"sale_id": "s1"}}`)
	res, err := r.Receive(context.Background(), types.PaymentProviderKirvano, payload)
	require.NoError(t, err)
	require.Equal(t, eventproc.OutcomeIgnored, res.Outcome)
	require.Equal(t, 0, applier.calls)
}

func TestReceive_MalformedPayloadIsRejectedNotErrored(t *testing.T) {
	applier := &stubApplier{}
	audit := &stubAudit{}
	r := newTestReceiver(testConfig(), applier, audit, nil)

	res, err := r.Receive(context.Background(), types.PaymentProviderKirvano, []byte(`not json`))
	require.NoError(t, err, "permanent failures must be acknowledged so the provider stops retrying")
	require.Equal(t, eventproc.OutcomeRejected, res.Outcome)
	require.NotEmpty(t, res.Reason)
	require.Equal(t, 0, applier.calls)
	require.Equal(t, []models.WebhookLogStatus{
		models.WebhookLogStatusReceived,
		models.WebhookLogStatusRejected,
	}, audit.statuses())
}

func TestReceive_StoreErrorPropagates(t *testing.T) {
	applier := &stubApplier{err: fmt.Errorf("connection refused")}
	audit := &stubAudit{}
	r := newTestReceiver(testConfig(), applier, audit, nil)

	_, err := r.Receive(context.Background(), types.PaymentProviderKirvano, approvedPayload("s1"))
	require.Error(t, err)
	require.Equal(t, []models.WebhookLogStatus{
		models.WebhookLogStatusReceived,
		models.WebhookLogStatusHandleFailed,
	}, audit.statuses())
}

func TestReceive_CancelledDoesNotNotify(t *testing.T) {
	applier := &stubApplier{rec: &models.Subscription{UserIdentity: "777"}, applied: true}
	notifier := &stubNotifier{sent: make(chan string, 1)}
	r := newTestReceiver(testConfig(), applier, &stubAudit{}, notifier)

	payload := []byte(`{
		"event": "subscription.canceled",
		"data": {"sale_id": "s2", "customer": {"reference": "777"}}
	}`)
	res, err := r.Receive(context.Background(), types.PaymentProviderKirvano, payload)
	require.NoError(t, err)
	require.Equal(t, eventproc.OutcomeAccepted, res.Outcome)

	select {
	case msg := <-notifier.sent:
		t.Fatalf("unexpected notice: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
