package bot

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/webhooks"
)

func provideNotifier(b *Bot) webhooks.Notifier {
	if b == nil {
		return nil
	}
	return b
}

func runBot(lc fx.Lifecycle, b *Bot, log *zap.SugaredLogger) {
	if b == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				b.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				log.Warnw("telegram bot did not stop in time")
			}
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(provideNotifier),
	fx.Invoke(runBot),
)
