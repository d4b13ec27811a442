package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/tool"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Client creates Pix charges against the Mercado Pago payments API. The
// telegram user id is carried in the charge metadata so the webhook can
// correlate the eventual approval back to the buyer.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	log     *zap.SugaredLogger
	baseURL string
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
		baseURL: defaultBaseURL,
	}
}

type chargeRequest struct {
	TransactionAmount float64           `json:"transaction_amount"`
	Description       string            `json:"description"`
	PaymentMethodID   string            `json:"payment_method_id"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Payer             chargePayer       `json:"payer"`
	Metadata          map[string]string `json:"metadata"`
}

type chargePayer struct {
	Email string `json:"email"`
}

type chargeResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			TicketURL string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// Charge is the payment link handed back to the buyer.
type Charge struct {
	ID        string
	Status    string
	TicketURL string
}

// CreateCharge opens a Pix charge for the plan and returns the hosted
// payment link. The description doubles as the plan key the webhook
// normalizer matches on, so it must be the provider key, not a display name.
func (c *Client) CreateCharge(ctx context.Context, plan *config.Plan, userIdentity, payerEmail string) (*Charge, error) {
	if c.cfg.MercadoPago.AccessToken == "" {
		return nil, fmt.Errorf("mercadopago access token not configured")
	}

	description := plan.ProviderKeys["mercadopago"]
	if description == "" {
		description = plan.DisplayName
	}

	body, err := json.Marshal(&chargeRequest{
		TransactionAmount: float64(plan.PriceMinor) / 100,
		Description:       description,
		PaymentMethodID:   "pix",
		NotificationURL:   c.cfg.MercadoPago.NotificationURL,
		Payer:             chargePayer{Email: payerEmail},
		Metadata:          map[string]string{"telegram_user_id": userIdentity},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.MercadoPago.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", tool.GenerateUUIDV7())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mercadopago error: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}
	if out.PointOfInteraction.TransactionData.TicketURL == "" {
		return nil, fmt.Errorf("charge response carries no ticket url")
	}

	c.log.Infow("charge created",
		"charge_id", out.ID.String(), "plan_id", plan.ID, "user_identity", userIdentity)

	return &Charge{
		ID:        out.ID.String(),
		Status:    out.Status,
		TicketURL: out.PointOfInteraction.TransactionData.TicketURL,
	}, nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
