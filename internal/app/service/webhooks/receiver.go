package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/pagflow/gatekeeper/internal/app/service/eventproc"
	"github.com/pagflow/gatekeeper/internal/app/service/normalizer"
	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/logctx"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// ErrUnknownProvider marks a webhook posted to a provider tag no adapter is
// registered for.
var ErrUnknownProvider = errors.New("unknown provider")

// Notifier pushes a short text back to the chat connector. Optional; nil
// disables activation notices.
type Notifier interface {
	SendText(ctx context.Context, userIdentity, text string) error
}

// AuditLog persists the raw-notification trail. Satisfied by
// webhook_log.Service.
type AuditLog interface {
	Save(ctx context.Context, entry *models.WebhookLog)
}

// Receiver drives one inbound notification through normalize → validate →
// apply, writing the audit trail around it. Data-quality failures terminate
// here with an acknowledged outcome; only store trouble escapes as an error
// so the HTTP layer can answer retryable.
type Receiver struct {
	registry  *normalizer.Registry
	processor *eventproc.Processor
	logSvc    AuditLog
	notifier  Notifier
	Logger    *zap.SugaredLogger
}

func NewReceiver(registry *normalizer.Registry, processor *eventproc.Processor, logSvc AuditLog, notifier Notifier, log *zap.SugaredLogger) *Receiver {
	return &Receiver{registry: registry, processor: processor, logSvc: logSvc, notifier: notifier, Logger: log}
}

func (r *Receiver) Receive(ctx context.Context, provider types.PaymentProvider, payload []byte) (*eventproc.Result, error) {
	receivedAt := time.Now()

	adapter, ok := r.registry.For(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	traceID, _ := ctx.Value("traceID").(string)
	r.logSvc.Save(ctx, &models.WebhookLog{
		Provider:   string(provider),
		TraceID:    traceID,
		ReceivedAt: receivedAt,
		Data:       datatypes.JSON(payload),
		Status:     models.WebhookLogStatusReceived,
	})

	ev, err := adapter.Normalize(payload, receivedAt)
	if err != nil {
		if errors.Is(err, normalizer.ErrIgnoredEvent) {
			logctx.FromCtx(ctx, r.Logger).Infow("webhook ignored",
				"provider", provider, "reason", err.Error())
			return &eventproc.Result{Outcome: eventproc.OutcomeIgnored, Reason: err.Error()}, nil
		}
		// Malformed, uncorrelatable or unknown-plan payloads are permanent:
		// record, report, acknowledge. A retry would fail the same way.
		res := &eventproc.Result{Outcome: eventproc.OutcomeRejected, Reason: err.Error()}
		eventproc.RecordOutcome(provider, eventproc.OutcomeRejected)
		logctx.FromCtx(ctx, r.Logger).Warnw("webhook normalization rejected",
			"provider", provider, "reason", err.Error())
		r.saveResult(ctx, provider, traceID, receivedAt, payload, nil, res, models.WebhookLogStatusRejected)
		return res, nil
	}

	res, err := r.processor.Process(ctx, ev)
	if err != nil {
		failure := &eventproc.Result{Outcome: eventproc.OutcomeRejected, Reason: err.Error()}
		r.saveResult(ctx, provider, traceID, receivedAt, payload, ev, failure, models.WebhookLogStatusHandleFailed)
		return nil, err
	}

	status := models.WebhookLogStatusHandled
	if res.Outcome == eventproc.OutcomeRejected {
		status = models.WebhookLogStatusRejected
	}
	r.saveResult(ctx, provider, traceID, receivedAt, payload, ev, res, status)

	if res.Outcome == eventproc.OutcomeAccepted && ev.Kind == types.PaymentEventKindApproved {
		r.notifyActivation(ctx, ev, res.Subscription)
	}
	return res, nil
}

func (r *Receiver) saveResult(ctx context.Context, provider types.PaymentProvider, traceID string, receivedAt time.Time, payload []byte, ev *types.PaymentEvent, res *eventproc.Result, status models.WebhookLogStatus) {
	resBytes, _ := json.Marshal(res)
	entry := &models.WebhookLog{
		Provider:   string(provider),
		TraceID:    traceID,
		ReceivedAt: receivedAt,
		Data:       datatypes.JSON(payload),
		Result:     func() *datatypes.JSON { j := datatypes.JSON(resBytes); return &j }(),
		Status:     status,
	}
	if ev != nil {
		entry.UserIdentity = lo.ToPtr(ev.UserIdentity)
		entry.ExternalEventID = ev.ExternalEventID
	}
	r.logSvc.Save(ctx, entry)
}

func (r *Receiver) notifyActivation(ctx context.Context, ev *types.PaymentEvent, rec *models.Subscription) {
	if r.notifier == nil || rec == nil || rec.ValidUntil == nil {
		return
	}
	msg := fmt.Sprintf("Pagamento confirmado! Seu acesso está liberado até %s.",
		rec.ValidUntil.Format("02/01/2006 15:04"))
	go func() {
		if err := r.notifier.SendText(context.WithoutCancel(ctx), ev.UserIdentity, msg); err != nil {
			r.Logger.Warnw("failed to send activation notice",
				"user_identity", ev.UserIdentity, "error", err.Error())
		}
	}()
}
