package accessgate

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/ledger"
	"github.com/pagflow/gatekeeper/pkg/config"
)

var Module = fx.Options(
	fx.Provide(func(led *ledger.Service, log *zap.SugaredLogger, cfg *config.Config) *Gate {
		return New(led, log, cfg.Gate.QueryTimeout)
	}),
)
