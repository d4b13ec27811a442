package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagflow/gatekeeper/pkg/types"
)

func catalogFixture() *Config {
	return &Config{Plans: []*Plan{
		{
			ID: "weekly", DisplayName: "Plano Semanal", PriceMinor: 990, ValidityDays: 7,
			ProviderKeys: map[string]string{"mercadopago": "Plano Semanal", "kirvano": "off_wk_01", "perfectpay": "Plano Semanal"},
		},
		{
			ID: "monthly", DisplayName: "Plano Mensal", PriceMinor: 1990, ValidityDays: 30,
			ProviderKeys: map[string]string{"mercadopago": "Plano Mensal", "kirvano": "off_mo_01"},
		},
	}}
}

func TestPlanByID(t *testing.T) {
	cfg := catalogFixture()

	p, err := cfg.PlanByID("weekly")
	require.NoError(t, err)
	require.Equal(t, int64(990), p.PriceMinor)
	require.Equal(t, 7, p.ValidityDays)

	_, err = cfg.PlanByID("yearly")
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanByProviderKey(t *testing.T) {
	cfg := catalogFixture()

	p, err := cfg.PlanByProviderKey(types.PaymentProviderKirvano, "off_mo_01")
	require.NoError(t, err)
	require.Equal(t, "monthly", p.ID)

	// perfectpay never sold the monthly plan; the key must not match.
	_, err = cfg.PlanByProviderKey(types.PaymentProviderPerfectPay, "Plano Mensal")
	require.ErrorIs(t, err, ErrPlanNotFound)

	// an empty key must not match plans that omit the provider entry
	_, err = cfg.PlanByProviderKey(types.PaymentProviderPerfectPay, "")
	require.ErrorIs(t, err, ErrPlanNotFound)
}
