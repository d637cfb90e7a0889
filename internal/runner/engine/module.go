package engine

import (
	"context"

	"go.uber.org/fx"

	auditsvc "bracket_bot/internal/modules/audit/service"
	"bracket_bot/internal/modules/config"
	connsvc "bracket_bot/internal/modules/connection/service"
	notifysvc "bracket_bot/internal/modules/notify/service"
)

func newEngine(lc fx.Lifecycle, conn *connsvc.Manager, reg *Registry, rec *auditsvc.Recorder,
	journal *auditsvc.Journal, n notifysvc.Notifier, cfg *config.Config) *Engine {
	e := New(conn, reg, rec, journal, n, cfg)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			e.Close()
			return nil
		},
	})
	return e
}

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			NewRegistry,
			newEngine,
		),
	)
}
