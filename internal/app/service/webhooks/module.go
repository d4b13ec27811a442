package webhooks

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/eventproc"
	"github.com/pagflow/gatekeeper/internal/app/service/normalizer"
	webhooklog "github.com/pagflow/gatekeeper/internal/app/service/webhook_log"
)

type receiverParams struct {
	fx.In

	Registry  *normalizer.Registry
	Processor *eventproc.Processor
	LogSvc    *webhooklog.Service
	Notifier  Notifier `optional:"true"`
	Logger    *zap.SugaredLogger
}

var Module = fx.Options(
	fx.Provide(func(p receiverParams) *Receiver {
		return NewReceiver(p.Registry, p.Processor, p.LogSvc, p.Notifier, p.Logger)
	}),
)
