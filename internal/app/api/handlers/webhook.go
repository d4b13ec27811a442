package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagflow/gatekeeper/internal/app/service/webhooks"
	"github.com/pagflow/gatekeeper/pkg/logctx"
	"github.com/pagflow/gatekeeper/pkg/response"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// Provider payloads are small JSON documents; anything past this is abuse.
const maxWebhookBody = 1 << 20

const defaultHandleTimeout = 10 * time.Second

// ApiProviderWebhook handles POST /webhook/:provider. Every terminal outcome
// (accepted, duplicate, rejected, ignored) answers 200 so the provider stops
// retrying; only store trouble answers 503 to request a redelivery. Handling
// is bounded by timeout: a hung store turns into the same retryable 503
// instead of an open request.
func ApiProviderWebhook(recv *webhooks.Receiver, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}
	return func(c *gin.Context) {
		provider := types.PaymentProvider(c.Param("provider"))

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, response.ErrorT[any](response.APIResponseCodeBadRequest, "payload too large"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		res, err := recv.Receive(ctx, provider, body)
		if err != nil {
			if errors.Is(err, webhooks.ErrUnknownProvider) {
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			logctx.FromCtx(c, recv.Logger).Errorw("webhook handling failed",
				"provider", provider, "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, response.ErrorT[any](response.APIResponseCodeError, "temporary failure, please retry"))
			return
		}

		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, recv *webhooks.Receiver, timeout time.Duration) {
	r.POST("/webhook/:provider", ApiProviderWebhook(recv, timeout))
}
