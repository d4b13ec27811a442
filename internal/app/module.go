package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/pagflow/gatekeeper/internal/app/api/server"
	"github.com/pagflow/gatekeeper/internal/app/service/accessgate"
	"github.com/pagflow/gatekeeper/internal/app/service/eventproc"
	"github.com/pagflow/gatekeeper/internal/app/service/ledger"
	"github.com/pagflow/gatekeeper/internal/app/service/normalizer"
	"github.com/pagflow/gatekeeper/internal/app/service/statistics"
	webhooklog "github.com/pagflow/gatekeeper/internal/app/service/webhook_log"
	"github.com/pagflow/gatekeeper/internal/app/service/webhooks"
	"github.com/pagflow/gatekeeper/internal/bot"
	"github.com/pagflow/gatekeeper/internal/platform/db"
	"github.com/pagflow/gatekeeper/internal/platform/llm"
	"github.com/pagflow/gatekeeper/internal/platform/mercadopago"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	normalizer.Module,
	ledger.Module,
	eventproc.Module,
	accessgate.Module,
	webhooklog.Module,
	webhooks.Module,
	statistics.Module,
	llm.Module,
	mercadopago.Module,
	bot.Module,
)
