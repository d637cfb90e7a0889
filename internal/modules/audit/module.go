package audit

import (
	"context"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/audit/service"
	"bracket_bot/pkg/db"
	"bracket_bot/pkg/logger"
)

type sinkParams struct {
	fx.In

	Local *service.OrderLog
	Pg    *db.PgTxManager `optional:"true"`
}

func newRecorder(lc fx.Lifecycle, p sinkParams) *service.Recorder {
	if p.Pg == nil {
		logger.Info("[AUDIT] postgres не настроен, пишем только локальный журнал")
		return service.NewRecorder(p.Local)
	}

	pg := service.NewPgSink(p.Pg)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pg.Migrate(ctx); err != nil {
				// внешний аудит не должен мешать старту
				logger.Error("[AUDIT] миграция order_audit: %v", err)
			}
			return nil
		},
	})
	return service.NewRecorder(p.Local, pg)
}

func Module() fx.Option {
	return fx.Module("audit",
		fx.Provide(
			service.NewOrderLog,
			service.NewJournal,
			newRecorder,
		),
	)
}
