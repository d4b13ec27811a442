package eventproc

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/ledger"
	"github.com/pagflow/gatekeeper/pkg/config"
)

var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, led *ledger.Service, log *zap.SugaredLogger) *Processor {
		return NewProcessor(cfg, led, log)
	}),
)
