package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/eventproc"
	"github.com/pagflow/gatekeeper/internal/app/service/normalizer"
	"github.com/pagflow/gatekeeper/internal/app/service/webhooks"
	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

type stubApplier struct {
	rec     *models.Subscription
	applied bool
	err     error
}

func (s *stubApplier) Upsert(_ context.Context, _ *types.PaymentEvent) (*models.Subscription, bool, error) {
	return s.rec, s.applied, s.err
}

type noopAudit struct{}

func (noopAudit) Save(_ context.Context, _ *models.WebhookLog) {}

func webhookTestRouter(applier eventproc.Applier, timeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Plans: []*config.Plan{
		{ID: "weekly", ValidityDays: 7, ProviderKeys: map[string]string{"kirvano": "offer-weekly"}},
	}}
	log := zap.NewNop().Sugar()
	recv := webhooks.NewReceiver(
		normalizer.NewRegistry(cfg),
		eventproc.NewProcessor(cfg, applier, log),
		noopAudit{}, nil, log,
	)

	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1"), recv, timeout)
	return r
}

func postWebhook(r *gin.Engine, provider string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/"+provider, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var kirvanoApproved = []byte(`{
	"event": "purchase.approved",
	"data": {
		"sale_id": "s1",
		"offer_id": "offer-weekly",
		"customer": {"reference": "777", "email": "a@b.com"}
	}
}`)

func TestApiProviderWebhook_Accepted(t *testing.T) {
	r := webhookTestRouter(&stubApplier{rec: &models.Subscription{UserIdentity: "777"}, applied: true}, 0)

	w := postWebhook(r, "kirvano", kirvanoApproved)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"outcome":"accepted"`)
}

func TestApiProviderWebhook_DuplicateStillAcknowledged(t *testing.T) {
	r := webhookTestRouter(&stubApplier{rec: &models.Subscription{UserIdentity: "777"}, applied: false}, 0)

	w := postWebhook(r, "kirvano", kirvanoApproved)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"outcome":"duplicate"`)
}

func TestApiProviderWebhook_MalformedAcknowledged(t *testing.T) {
	r := webhookTestRouter(&stubApplier{}, 0)

	w := postWebhook(r, "kirvano", []byte(`not json`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"outcome":"rejected"`)
}

func TestApiProviderWebhook_UnknownProvider(t *testing.T) {
	r := webhookTestRouter(&stubApplier{}, 0)

	w := postWebhook(r, "stripe", []byte(`{}`))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApiProviderWebhook_StoreErrorAsksForRetry(t *testing.T) {
	r := webhookTestRouter(&stubApplier{err: fmt.Errorf("connection refused")}, 0)

	w := postWebhook(r, "kirvano", kirvanoApproved)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type hangingApplier struct{}

func (hangingApplier) Upsert(ctx context.Context, _ *types.PaymentEvent) (*models.Subscription, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func TestApiProviderWebhook_HungStoreAnswersWithinTimeout(t *testing.T) {
	r := webhookTestRouter(hangingApplier{}, 50*time.Millisecond)

	start := time.Now()
	w := postWebhook(r, "kirvano", kirvanoApproved)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Less(t, time.Since(start), 5*time.Second, "the handler must not hang on a stuck store")
}
