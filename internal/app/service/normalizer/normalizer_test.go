package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

func testCatalog() *config.Config {
	return &config.Config{Plans: []*config.Plan{
		{
			ID: "weekly", DisplayName: "Plano Semanal", PriceMinor: 990, ValidityDays: 7,
			ProviderKeys: map[string]string{
				"mercadopago": "Plano Semanal",
				"kirvano":     "off_weekly_01",
				"perfectpay":  "Plano Semanal",
			},
		},
		{
			ID: "monthly", DisplayName: "Plano Mensal", PriceMinor: 1990, ValidityDays: 30,
			ProviderKeys: map[string]string{
				"mercadopago": "Plano Mensal",
				"kirvano":     "off_monthly_01",
				"perfectpay":  "Plano Mensal",
			},
		},
	}}
}

var receivedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRegistrySelectsByProviderTag(t *testing.T) {
	r := NewRegistry(testCatalog())

	for _, p := range []types.PaymentProvider{
		types.PaymentProviderMercadoPago,
		types.PaymentProviderKirvano,
		types.PaymentProviderPerfectPay,
	} {
		n, ok := r.For(p)
		require.True(t, ok, p)
		require.Equal(t, p, n.Provider())
	}

	_, ok := r.For(types.PaymentProvider("stripe"))
	require.False(t, ok)
}

func TestMercadoPagoNormalize(t *testing.T) {
	n := NewMercadoPago(testCatalog())

	tests := []struct {
		name     string
		payload  string
		wantErr  error
		wantKind types.PaymentEventKind
		wantUser string
		wantPlan string
	}{
		{
			name: "approved payment with telegram metadata",
			payload: `{"id":101,"type":"payment","action":"payment.updated","date_created":"2025-03-01T11:58:00Z",
				"data":{"id":9001,"status":"approved","description":"Plano Semanal",
				"payer":{"email":"ana@example.com"},"metadata":{"telegram_user_id":555123}}}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "555123",
			wantPlan: "weekly",
		},
		{
			name: "authorized maps to approved",
			payload: `{"type":"payment","data":{"id":"9002","status":"authorized","description":"Plano Mensal",
				"metadata":{"telegram_user_id":"777"}}}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "777",
			wantPlan: "monthly",
		},
		{
			name: "cancelled payment",
			payload: `{"type":"payment","data":{"id":"9003","status":"cancelled","description":"Plano Semanal",
				"metadata":{"telegram_user_id":"555123"}}}`,
			wantKind: types.PaymentEventKindCancelled,
			wantUser: "555123",
			wantPlan: "weekly",
		},
		{
			name: "email fallback when metadata missing",
			payload: `{"type":"payment","data":{"id":"9004","status":"approved","description":"Plano Semanal",
				"payer":{"email":"ana@example.com"}}}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "ana@example.com",
			wantPlan: "weekly",
		},
		{
			name: "cancellation without description still normalizes",
			payload: `{"type":"payment","data":{"id":"9010","status":"cancelled",
				"metadata":{"telegram_user_id":"555123"}}}`,
			wantKind: types.PaymentEventKindCancelled,
			wantUser: "555123",
			wantPlan: "",
		},
		{
			name:    "pending status is ignored",
			payload: `{"type":"payment","data":{"id":"9005","status":"pending","description":"Plano Semanal","metadata":{"telegram_user_id":"1"}}}`,
			wantErr: ErrIgnoredEvent,
		},
		{
			name:    "non payment notification is ignored",
			payload: `{"type":"plan","data":{"id":"9006"}}`,
			wantErr: ErrIgnoredEvent,
		},
		{
			name:    "no correlator at all",
			payload: `{"type":"payment","data":{"id":"9007","status":"approved","description":"Plano Semanal"}}`,
			wantErr: ErrMissingUserIdentity,
		},
		{
			name:    "unknown plan is rejected, never guessed",
			payload: `{"type":"payment","data":{"id":"9008","status":"approved","description":"Plano Anual","metadata":{"telegram_user_id":"1"}}}`,
			wantErr: config.ErrPlanNotFound,
		},
		{
			name:    "missing data id",
			payload: `{"type":"payment","data":{"status":"approved","description":"Plano Semanal","metadata":{"telegram_user_id":"1"}}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "not json",
			payload: `status=approved&id=1`,
			wantErr: ErrMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := n.Normalize([]byte(tt.payload), receivedAt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, types.PaymentProviderMercadoPago, ev.Provider)
			require.Equal(t, tt.wantKind, ev.Kind)
			require.Equal(t, tt.wantUser, ev.UserIdentity)
			require.Equal(t, tt.wantPlan, ev.PlanID)
			require.NotEmpty(t, ev.ExternalEventID)
			require.False(t, ev.OccurredAt.IsZero())
		})
	}
}

func TestMercadoPagoOccurredAtPrefersPayloadTimestamp(t *testing.T) {
	n := NewMercadoPago(testCatalog())
	payload := `{"type":"payment","date_created":"2025-02-28T08:00:00Z",
		"data":{"id":"1","status":"approved","description":"Plano Semanal","date_approved":"2025-02-28T08:05:00Z",
		"metadata":{"telegram_user_id":"1"}}}`

	ev, err := n.Normalize([]byte(payload), receivedAt)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 2, 28, 8, 5, 0, 0, time.UTC), ev.OccurredAt)
}

func TestKirvanoNormalize(t *testing.T) {
	n := NewKirvano(testCatalog())

	tests := []struct {
		name     string
		payload  string
		wantErr  error
		wantKind types.PaymentEventKind
		wantUser string
	}{
		{
			name: "paid purchase",
			payload: `{"event":"purchase.paid","data":{"sale_id":"k-1","offer_id":"off_weekly_01",
				"created_at":"2025-03-01T10:00:00Z","customer":{"reference":"555123","email":"ana@example.com"}}}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "555123",
		},
		{
			name: "renewal maps to approved",
			payload: `{"event":"subscription.renewed","data":{"sale_id":"k-2","offer_id":"off_monthly_01",
				"customer":{"reference":"555123"}}}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "555123",
		},
		{
			name: "canceled subscription",
			payload: `{"event":"subscription.canceled","data":{"sale_id":"k-3","offer_id":"off_weekly_01",
				"customer":{"reference":"555123"}}}`,
			wantKind: types.PaymentEventKindCancelled,
			wantUser: "555123",
		},
		{
			name: "paused subscription",
			payload: `{"event":"subscription.paused","data":{"sale_id":"k-4","offer_id":"off_weekly_01",
				"customer":{"email":"ana@example.com"}}}`,
			wantKind: types.PaymentEventKindPaused,
			wantUser: "ana@example.com",
		},
		{
			name: "canceled without offer id still normalizes",
			payload: `{"event":"subscription.canceled","data":{"sale_id":"k-9",
				"customer":{"reference":"555123"}}}`,
			wantKind: types.PaymentEventKindCancelled,
			wantUser: "555123",
		},
		{
			name:    "unknown event is ignored",
			payload: `{"event":"cart.abandoned","data":{"sale_id":"k-5","offer_id":"off_weekly_01","customer":{"reference":"1"}}}`,
			wantErr: ErrIgnoredEvent,
		},
		{
			name:    "missing event",
			payload: `{"data":{"sale_id":"k-6"}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "missing sale id",
			payload: `{"event":"purchase.paid","data":{"offer_id":"off_weekly_01","customer":{"reference":"1"}}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "unknown offer",
			payload: `{"event":"purchase.paid","data":{"sale_id":"k-7","offer_id":"off_yearly_01","customer":{"reference":"1"}}}`,
			wantErr: config.ErrPlanNotFound,
		},
		{
			name:    "no correlator",
			payload: `{"event":"purchase.paid","data":{"sale_id":"k-8","offer_id":"off_weekly_01","customer":{}}}`,
			wantErr: ErrMissingUserIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := n.Normalize([]byte(tt.payload), receivedAt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, types.PaymentProviderKirvano, ev.Provider)
			require.Equal(t, tt.wantKind, ev.Kind)
			require.Equal(t, tt.wantUser, ev.UserIdentity)
		})
	}
}

func TestKirvanoCancelKeepsRawOfferKey(t *testing.T) {
	n := NewKirvano(testCatalog())
	payload := `{"event":"subscription.canceled","data":{"sale_id":"k-10","offer_id":"off_gone_01","customer":{"reference":"1"}}}`

	ev, err := n.Normalize([]byte(payload), receivedAt)
	require.NoError(t, err)
	require.Equal(t, types.PaymentEventKindCancelled, ev.Kind)
	require.Equal(t, "off_gone_01", ev.PlanID)
}

func TestPerfectPayNormalize(t *testing.T) {
	n := NewPerfectPay(testCatalog())

	tests := []struct {
		name     string
		payload  string
		wantErr  error
		wantKind types.PaymentEventKind
		wantUser string
	}{
		{
			name:     "approved with userId",
			payload:  `{"email":"ana@example.com","plano":"Plano Semanal","userId":"555123","status":"approved","transactionId":"pp-1","date":"2025-03-01T09:00:00Z"}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "555123",
		},
		{
			name:     "email is identity when userId absent",
			payload:  `{"email":"ana@example.com","plano":"Plano Mensal","status":"paid","transactionId":"pp-2"}`,
			wantKind: types.PaymentEventKindApproved,
			wantUser: "ana@example.com",
		},
		{
			name:     "cancelled with either spelling",
			payload:  `{"userId":"555123","plano":"Plano Semanal","status":"canceled","transactionId":"pp-3"}`,
			wantKind: types.PaymentEventKindCancelled,
			wantUser: "555123",
		},
		{
			name:     "paused",
			payload:  `{"userId":"555123","plano":"Plano Semanal","status":"paused","transactionId":"pp-4"}`,
			wantKind: types.PaymentEventKindPaused,
			wantUser: "555123",
		},
		{
			name:     "cancelled without plano still normalizes",
			payload:  `{"userId":"555123","status":"cancelled","transactionId":"pp-8"}`,
			wantKind: types.PaymentEventKindCancelled,
			wantUser: "555123",
		},
		{
			name:    "missing transaction id",
			payload: `{"userId":"555123","plano":"Plano Semanal","status":"approved"}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "no correlator",
			payload: `{"plano":"Plano Semanal","status":"approved","transactionId":"pp-5"}`,
			wantErr: ErrMissingUserIdentity,
		},
		{
			name:    "unknown plan name",
			payload: `{"userId":"1","plano":"Plano Diamante","status":"approved","transactionId":"pp-6"}`,
			wantErr: config.ErrPlanNotFound,
		},
		{
			name:    "unknown status ignored",
			payload: `{"userId":"1","plano":"Plano Semanal","status":"chargeback","transactionId":"pp-7"}`,
			wantErr: ErrIgnoredEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := n.Normalize([]byte(tt.payload), receivedAt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, types.PaymentProviderPerfectPay, ev.Provider)
			require.Equal(t, tt.wantKind, ev.Kind)
			require.Equal(t, tt.wantUser, ev.UserIdentity)
		})
	}
}
