package notify

import (
	"context"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/config"
	connsvc "bracket_bot/internal/modules/connection/service"
	"bracket_bot/internal/modules/notify/service"
	"bracket_bot/pkg/logger"
)

func newNotifier(lc fx.Lifecycle, cfg *config.Config, conn *connsvc.Manager) service.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("[NOTIFY] telegram не настроен, алерты в лог")
		return service.NewStdout()
	}
	tg, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, conn)
	if err != nil {
		logger.Error("[NOTIFY] telegram: %v, алерты в лог", err)
		return service.NewStdout()
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			return tg.Start(ctx)
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			tg.Stop()
			return nil
		},
	})
	return tg
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			newNotifier,
		),
	)
}
